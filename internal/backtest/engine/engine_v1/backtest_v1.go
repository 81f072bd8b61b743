package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lanternworks/lantern-backtest/internal/backtest/engine"
	"github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/lanternworks/lantern-backtest/internal/logger"
	"github.com/lanternworks/lantern-backtest/internal/metrics"
	"github.com/lanternworks/lantern-backtest/internal/strategy"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/internal/version"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// eventStreamBuffer caps the in-flight event stream. Past this depth the
// oldest event is dropped instead of blocking the run loop.
const eventStreamBuffer = 256

type BacktestEngineV1 struct {
	config              BacktestEngineV1Config
	strategies          []strategy.Strategy
	strategyConfigPaths []string
	strategyConfigs     []string
	dataPaths           []string
	resultsFolder       string
	log                 *logger.Logger
	datasource          datasource.DataSource
	events              chan types.BacktestEvent
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config:              EmptyConfig(),
		strategies:          nil,
		strategyConfigPaths: nil,
		strategyConfigs:     nil,
		dataPaths:           nil,
		resultsFolder:       "",
		log:                 nil,
		datasource:          nil,
		events:              make(chan types.BacktestEvent, eventStreamBuffer),
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	// parse the config
	if err := yaml.Unmarshal([]byte(config), &b.config); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse engine config", err)
	}

	if err := b.config.Validate(); err != nil {
		return err
	}

	var loggerError error

	b.log, loggerError = logger.NewLogger()
	if loggerError != nil {
		return loggerError
	}

	b.log.Debug("Backtest engine initialized",
		zap.String("config", config),
	)

	return nil
}

// LoadStrategy implements engine.Engine. Strategies that declare an API
// version are rejected when that version is incompatible with the engine's.
func (b *BacktestEngineV1) LoadStrategy(strat strategy.Strategy) error {
	if versioner, ok := strat.(strategy.APIVersioner); ok {
		if err := version.CheckVersionCompatibility(version.GetVersion(), versioner.APIVersion()); err != nil {
			return errors.Wrapf(errors.ErrCodeVersionMismatch, err,
				"strategy %s is not compatible with engine %s", strat.Name(), version.GetVersion())
		}
	}

	b.strategies = append(b.strategies, strat)
	b.log.Debug("Strategy loaded",
		zap.String("strategy", strat.Name()),
		zap.Int("total_strategies", len(b.strategies)),
	)

	return nil
}

// SetConfigPath implements engine.Engine.
func (b *BacktestEngineV1) SetConfigPath(path string) error {
	// use glob to get all the files that match the path
	files, err := filepath.Glob(path)
	if err != nil {
		b.log.Error("Failed to set config path",
			zap.String("path", path),
			zap.Error(err),
		)

		return err
	}

	b.strategyConfigPaths = files
	b.log.Debug("Config paths set",
		zap.Strings("files", files),
	)

	return nil
}

// SetConfigContent implements engine.Engine.
func (b *BacktestEngineV1) SetConfigContent(configs []string) error {
	b.strategyConfigs = configs
	b.strategyConfigPaths = nil
	b.log.Debug("Config content set",
		zap.Int("count", len(configs)),
	)

	return nil
}

// SetDataPath implements engine.Engine.
func (b *BacktestEngineV1) SetDataPath(path string) error {
	// use glob to get all the files that match the path
	files, err := filepath.Glob(path)
	if err != nil {
		b.log.Error("Failed to set data path",
			zap.String("path", path),
			zap.Error(err),
		)

		return err
	}

	// Convert all paths to absolute paths
	absolutePaths := make([]string, len(files))

	for i, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			b.log.Error("Failed to get absolute path",
				zap.String("path", file),
				zap.Error(err),
			)

			return err
		}

		absolutePaths[i] = absPath
	}

	b.dataPaths = absolutePaths
	b.log.Debug("Data paths set",
		zap.Strings("files", absolutePaths),
	)

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder
	b.log.Debug("Results folder set",
		zap.String("folder", folder),
	)

	return nil
}

// SetDataSource implements engine.Engine.
func (b *BacktestEngineV1) SetDataSource(datasource datasource.DataSource) error {
	b.datasource = datasource

	return nil
}

// Events implements engine.Engine. The stream carries started, progress,
// equity, trade and terminal events for every run; Run closes it on return.
func (b *BacktestEngineV1) Events() <-chan types.BacktestEvent {
	return b.events
}

// emit publishes an event without ever blocking the run loop. When the buffer
// is full the oldest event is dropped to make room.
func (b *BacktestEngineV1) emit(event types.BacktestEvent) {
	for {
		select {
		case b.events <- event:
			return
		default:
		}

		select {
		case <-b.events:
		default:
		}
	}
}

// configItem pairs one strategy parameter set with a name used in result
// folder paths.
type configItem struct {
	name    string
	content string
}

// activeRun bundles the per-run components the event loop touches. Every run
// gets a fresh instance of each; nothing is shared across runs.
type activeRun struct {
	id              string
	strategy        strategy.Strategy
	dayEnd          strategy.DayEndHandler
	scheduler       *Scheduler
	ledger          *PortfolioLedger
	execution       *ExecutionSimulator
	state           *BacktestState
	marker          *BacktestMarker
	strategyLog     *BacktestLog
	symbols         []string
	benchmark       string
	benchmarkCloses []float64
	processed       int64
	total           int
}

// Run implements engine.Engine. Every loaded strategy is run against every
// parameter set and every data path, sequentially; the first failing run
// aborts the remainder. The context is checked at each batch boundary.
func (b *BacktestEngineV1) Run(ctx context.Context, callbacks engine.LifecycleCallbacks) error {
	if err := b.preRunCheck(); err != nil {
		return err
	}

	defer close(b.events)

	var runErr error

	if callbacks.OnBacktestEnd != nil {
		defer func() { (*callbacks.OnBacktestEnd)(runErr) }()
	}

	// clean the results folder
	if _, err := os.Stat(b.resultsFolder); err == nil {
		os.RemoveAll(b.resultsFolder)
	}

	if err := os.MkdirAll(b.resultsFolder, 0755); err != nil {
		runErr = errors.Wrapf(errors.ErrCodeBacktestInitFailed, err, "failed to create results folder %s", b.resultsFolder)

		return runErr
	}

	configs, err := b.collectConfigs()
	if err != nil {
		runErr = err

		return runErr
	}

	dataPaths := b.dataPaths
	if len(dataPaths) == 0 {
		// a pre-initialized datasource runs once without a path
		dataPaths = []string{""}
	}

	if callbacks.OnBacktestStart != nil {
		if err := (*callbacks.OnBacktestStart)(len(b.strategies), len(configs), len(dataPaths)); err != nil {
			runErr = errors.Wrap(errors.ErrCodeCallbackFailed, "backtest start callback failed", err)

			return runErr
		}
	}

	for strategyIndex, strat := range b.strategies {
		if callbacks.OnStrategyStart != nil {
			if err := (*callbacks.OnStrategyStart)(strategyIndex, strat.Name(), len(b.strategies)); err != nil {
				runErr = errors.Wrap(errors.ErrCodeCallbackFailed, "strategy start callback failed", err)

				return runErr
			}
		}

		for configIndex, cfg := range configs {
			for dataIndex, dataPath := range dataPaths {
				if err := b.runCombination(ctx, callbacks, strat, cfg, configIndex, dataIndex, dataPath); err != nil {
					runErr = err

					return runErr
				}
			}
		}

		if callbacks.OnStrategyEnd != nil {
			(*callbacks.OnStrategyEnd)(strategyIndex, strat.Name())
		}
	}

	return nil
}

// runCombination executes one strategy x parameter set x data path run with a
// fresh scheduler, ledger, execution queue and state store. The result is
// assembled and written even when the loop ends cancelled or failed.
func (b *BacktestEngineV1) runCombination(ctx context.Context, callbacks engine.LifecycleCallbacks, strat strategy.Strategy, cfg configItem, configIndex, dataIndex int, dataPath string) error {
	runID := uuid.New().String()

	if dataPath != "" {
		if err := b.datasource.Initialize(dataPath); err != nil {
			return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to initialize data source with %s", dataPath)
		}
	}

	// Initialize resets strategy state, so instances are reusable across runs
	if err := strat.Initialize(cfg.content); err != nil {
		return err
	}

	state, err := NewBacktestState(b.log)
	if err != nil {
		return err
	}
	defer state.Close()

	if err := state.Initialize(); err != nil {
		return err
	}

	marker, err := NewBacktestMarker(b.log)
	if err != nil {
		return err
	}
	defer marker.Close()

	strategyLog, err := NewBacktestLog(b.log)
	if err != nil {
		return err
	}
	defer strategyLog.Close()

	ledger, err := NewPortfolioLedger(b.config.InitialCapital, strat.Name())
	if err != nil {
		return err
	}

	scheduler, symbols, err := b.buildScheduler()
	if err != nil {
		return err
	}

	for _, seed := range b.config.InitialPositions {
		if err := ledger.SeedPosition(seed.Symbol, seed.Quantity, seed.Price, scheduler.StartTime()); err != nil {
			return err
		}
	}

	run := &activeRun{
		id:          runID,
		strategy:    strat,
		scheduler:   scheduler,
		ledger:      ledger,
		execution:   NewExecutionSimulator(state, b.config, strat.Name()),
		state:       state,
		marker:      marker,
		strategyLog: strategyLog,
		symbols:     symbols,
		total:       scheduler.Stats().TotalEvents,
	}

	if dayEnd, ok := strat.(strategy.DayEndHandler); ok {
		run.dayEnd = dayEnd
	}

	if b.config.Benchmark.IsSome() {
		run.benchmark = b.config.Benchmark.Unwrap()
	}

	resultFolder := b.resultFolderFor(cfg.name, dataPath, strat)

	if callbacks.OnRunStart != nil {
		if err := (*callbacks.OnRunStart)(runID, configIndex, cfg.name, dataIndex, dataPath, run.total); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "run start callback failed", err)
		}
	}

	b.log.Debug("Running strategy",
		zap.String("strategy", strat.Name()),
		zap.String("config", cfg.name),
		zap.String("data", dataPath),
		zap.String("result", resultFolder),
	)

	b.emit(types.BacktestEvent{
		Type:  types.BacktestEventStarted,
		RunID: runID,
		Time:  time.Now().UTC(),
	})

	status, loopErr := b.processEvents(ctx, run, callbacks)

	if err := b.finishRun(run, status, loopErr, resultFolder, dataPath, cfg.name); err != nil {
		b.log.Error("Failed to write run results",
			zap.String("run_id", runID),
			zap.Error(err),
		)

		if loopErr == nil {
			return err
		}
	}

	if callbacks.OnRunEnd != nil {
		(*callbacks.OnRunEnd)(configIndex, cfg.name, dataIndex, dataPath, resultFolder)
	}

	return loopErr
}

// buildScheduler reads the datasource once, groups bars per symbol and
// registers each feed in ticker order so batch contents are reproducible.
func (b *BacktestEngineV1) buildScheduler() (*Scheduler, []string, error) {
	feeds := make(map[string][]types.MarketData)

	for bar, err := range b.datasource.ReadAll(b.config.StartTime, b.config.EndTime) {
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read market data", err)
		}

		feeds[bar.Symbol] = append(feeds[bar.Symbol], bar)
	}

	symbols := make([]string, 0, len(feeds))
	for symbol := range feeds {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	scheduler := NewScheduler()

	for _, symbol := range symbols {
		if err := scheduler.AddFeed(symbol, feeds[symbol]); err != nil {
			return nil, nil, err
		}
	}

	if err := scheduler.Initialize(); err != nil {
		return nil, nil, err
	}

	return scheduler, symbols, nil
}

// processEvents drives one run's batch loop to a terminal status. The error
// is nil for COMPLETED, ctx.Err() for CANCELLED, and the failing error for
// FAILED.
func (b *BacktestEngineV1) processEvents(ctx context.Context, run *activeRun, callbacks engine.LifecycleCallbacks) (types.BacktestStatus, error) {
	var lastEventTime time.Time

	for {
		select {
		case <-ctx.Done():
			if err := run.execution.CancelAllOrders(); err != nil {
				return types.BacktestStatusFailed, err
			}

			return types.BacktestStatusCancelled, ctx.Err()
		default:
		}

		event, ok, err := run.scheduler.NextBatch()
		if err != nil {
			return types.BacktestStatusFailed, err
		}

		if !ok {
			break
		}

		if run.dayEnd != nil && !lastEventTime.IsZero() && !sameUTCDay(lastEventTime, event.Time) {
			if err := b.handleDayEnd(run, lastEventTime, event.Time); err != nil {
				return types.BacktestStatusFailed, err
			}
		}

		if err := b.processBatch(run, event); err != nil {
			return types.BacktestStatusFailed, err
		}

		lastEventTime = event.Time
		run.processed++

		b.emit(types.BacktestEvent{
			Type:  types.BacktestEventProgress,
			RunID: run.id,
			Time:  event.Time,
			Progress: &types.ProgressUpdate{
				Completed:       run.scheduler.Progress(),
				CurrentTime:     event.Time,
				EventsProcessed: run.processed,
			},
		})

		if callbacks.OnProcessData != nil {
			if err := (*callbacks.OnProcessData)(int(run.processed), run.total); err != nil {
				return types.BacktestStatusFailed, errors.Wrap(errors.ErrCodeCallbackFailed, "process data callback failed", err)
			}
		}
	}

	// the last trading day ends when the feed does
	if run.dayEnd != nil && !lastEventTime.IsZero() {
		if err := b.handleDayEnd(run, lastEventTime, run.scheduler.EndTime()); err != nil {
			return types.BacktestStatusFailed, err
		}
	}

	// orders still pending at the end of data resolve as cancelled
	if err := run.execution.CancelAllOrders(); err != nil {
		return types.BacktestStatusFailed, err
	}

	return types.BacktestStatusCompleted, nil
}

// processBatch runs one event batch through the strategy, the execution
// queue and the ledger, then snapshots equity at the batch's closes.
func (b *BacktestEngineV1) processBatch(run *activeRun, event types.Event) error {
	strategyContext := strategy.Context{
		Portfolio: run.ledger,
		Marker:    run.marker,
		Log:       run.strategyLog,
		Time:      event.Time,
	}

	intents, err := run.strategy.OnEvent(event, strategyContext)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStrategyRuntimeError, err,
			"strategy %s failed at %s", run.strategy.Name(), event.Time.Format(time.RFC3339))
	}

	for _, intent := range intents {
		if _, err := run.execution.SubmitOrder(intent, event.Time); err != nil {
			return err
		}
	}

	fills, err := run.execution.ProcessBatch(event)
	if err != nil {
		return err
	}

	for _, fill := range fills {
		_, closed, err := run.ledger.ApplyFill(fill)
		if err != nil {
			return err
		}

		if closed.IsSome() {
			trade := closed.Unwrap()
			if err := run.state.RecordTrade(trade); err != nil {
				return err
			}

			b.emit(types.BacktestEvent{
				Type:  types.BacktestEventTradeExecuted,
				RunID: run.id,
				Time:  event.Time,
				Trade: &trade,
			})
		}
	}

	run.execution.SetCash(run.ledger.Cash())

	marks := make(map[string]float64, len(event.Bars))
	for _, bar := range event.Bars {
		marks[bar.Symbol] = bar.Close
	}

	point, err := run.ledger.Snapshot(event.Time, marks)
	if err != nil {
		return err
	}

	if err := run.state.RecordEquityPoint(point); err != nil {
		return err
	}

	b.emit(types.BacktestEvent{
		Type:   types.BacktestEventEquityUpdate,
		RunID:  run.id,
		Time:   event.Time,
		Equity: &point,
	})

	if run.benchmark != "" {
		if bar, ok := event.Bar(run.benchmark); ok {
			run.benchmarkCloses = append(run.benchmarkCloses, bar.Close)
		} else if n := len(run.benchmarkCloses); n > 0 {
			// no benchmark bar this batch, carry the last close
			run.benchmarkCloses = append(run.benchmarkCloses, run.benchmarkCloses[n-1])
		}
	}

	return nil
}

// handleDayEnd lets the strategy act on the completed day. Returned intents
// enter the queue at submitAt, the batch time of the following day, so they
// are evaluated against the next day's bars.
func (b *BacktestEngineV1) handleDayEnd(run *activeRun, day time.Time, submitAt time.Time) error {
	strategyContext := strategy.Context{
		Portfolio: run.ledger,
		Marker:    run.marker,
		Log:       run.strategyLog,
		Time:      day,
	}

	intents, err := run.dayEnd.OnDayEnd(day, strategyContext)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStrategyRuntimeError, err,
			"day end handler of %s failed for %s", run.strategy.Name(), day.Format("2006-01-02"))
	}

	for _, intent := range intents {
		if _, err := run.execution.SubmitOrder(intent, submitAt); err != nil {
			return err
		}
	}

	return nil
}

// finishRun assembles the run's result, writes every artifact into the
// result folder and emits the terminal event.
func (b *BacktestEngineV1) finishRun(run *activeRun, status types.BacktestStatus, loopErr error, resultFolder, dataPath, configName string) error {
	counts, err := run.state.GetCounts()
	if err != nil {
		return err
	}

	curve := run.ledger.Curve()
	trades := append(run.ledger.ClosedTrades(), run.ledger.OpenTradeRecords()...)

	performance := metrics.Calculate(curve, trades, b.config.InitialCapital, metrics.Options{
		RiskFreeRate:     b.config.RiskFreeRate,
		BenchmarkReturns: closeReturns(run.benchmarkCloses),
	})

	finalEquity := b.config.InitialCapital
	if len(curve) > 0 {
		finalEquity = curve[len(curve)-1].PortfolioValue
	}

	result := types.BacktestResult{
		ID:                  run.id,
		Timestamp:           time.Now().UTC(),
		Status:              status,
		EngineVersion:       version.GetVersion(),
		StrategyName:        run.strategy.Name(),
		Symbols:             run.symbols,
		StartTime:           run.scheduler.StartTime(),
		EndTime:             run.scheduler.EndTime(),
		InitialCapital:      b.config.InitialCapital,
		FinalEquity:         finalEquity,
		Metrics:             performance,
		OrdersSubmitted:     counts.OrdersSubmitted,
		OrdersFilled:        counts.OrdersFilled,
		OrdersRejected:      counts.OrdersRejected,
		OrdersExpired:       counts.OrdersExpired,
		TradesClosed:        counts.TradesClosed,
		EquityCurveFilePath: filepath.Join(resultFolder, "equity_curve.parquet"),
		TradesFilePath:      filepath.Join(resultFolder, "trades.parquet"),
		OrdersFilePath:      filepath.Join(resultFolder, "orders.parquet"),
		MarksFilePath:       filepath.Join(resultFolder, "marks.parquet"),
		DataPath:            dataPath,
		ConfigPath:          configName,
	}

	if loopErr != nil {
		result.Error = loopErr.Error()
	}

	if err := os.MkdirAll(resultFolder, 0755); err != nil {
		return fmt.Errorf("failed to create result folder: %w", err)
	}

	if err := run.state.Write(resultFolder); err != nil {
		return err
	}

	if err := run.marker.Write(resultFolder); err != nil {
		return err
	}

	if err := run.strategyLog.Write(resultFolder); err != nil {
		return err
	}

	if err := types.WriteBacktestResult(filepath.Join(resultFolder, "result.yaml"), result); err != nil {
		return err
	}

	terminal := types.BacktestEvent{
		RunID:  run.id,
		Time:   time.Now().UTC(),
		Result: &result,
	}

	switch status {
	case types.BacktestStatusCompleted:
		terminal.Type = types.BacktestEventCompleted
	case types.BacktestStatusCancelled:
		terminal.Type = types.BacktestEventCancelled
	default:
		terminal.Type = types.BacktestEventFailed
		if loopErr != nil {
			terminal.Error = loopErr.Error()
		}
	}

	b.emit(terminal)

	b.log.Info("Backtest run finished",
		zap.String("run_id", run.id),
		zap.String("strategy", run.strategy.Name()),
		zap.String("status", string(status)),
		zap.Float64("final_equity", finalEquity),
		zap.Int("trades_closed", counts.TradesClosed),
		zap.String("result", resultFolder),
	)

	return nil
}

func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	config := b.config

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", fmt.Errorf("failed to generate schema: %w", err)
	}

	return schema, nil
}

// collectConfigs builds the parameter set list from either direct content or
// config file paths. Direct content wins when both are set.
func (b *BacktestEngineV1) collectConfigs() ([]configItem, error) {
	if len(b.strategyConfigs) > 0 {
		items := make([]configItem, 0, len(b.strategyConfigs))
		for i, content := range b.strategyConfigs {
			items = append(items, configItem{
				name:    fmt.Sprintf("config_%d", i),
				content: content,
			})
		}

		return items, nil
	}

	items := make([]configItem, 0, len(b.strategyConfigPaths))

	for _, configPath := range b.strategyConfigPaths {
		content, err := os.ReadFile(configPath)
		if err != nil {
			b.log.Error("Failed to read config",
				zap.String("config", configPath),
				zap.Error(err),
			)

			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read strategy config %s", configPath)
		}

		items = append(items, configItem{
			name:    configPath,
			content: string(content),
		})
	}

	return items, nil
}

func (b *BacktestEngineV1) preRunCheck() error {
	if b.log == nil {
		return errors.New(errors.ErrCodeBacktestInitFailed, "engine is not initialized")
	}

	if len(b.strategies) == 0 {
		b.log.Error("No strategies loaded")

		return errors.New(errors.ErrCodeBacktestNoStrategies, "no strategies loaded")
	}

	if len(b.strategyConfigPaths) == 0 && len(b.strategyConfigs) == 0 {
		b.log.Error("No strategy configs loaded")

		return errors.New(errors.ErrCodeBacktestNoConfigs, "no strategy configs loaded")
	}

	if b.resultsFolder == "" {
		b.log.Error("No results folder set")

		return errors.New(errors.ErrCodeBacktestNoResultsDir, "no results folder set")
	}

	if b.datasource == nil {
		b.log.Error("No datasource set")

		return errors.New(errors.ErrCodeBacktestNoDatasource, "no datasource set")
	}

	return nil
}

// closeReturns converts a close series into simple period returns.
func closeReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(closes)-1)

	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}

		returns = append(returns, closes[i]/closes[i-1]-1)
	}

	return returns
}
