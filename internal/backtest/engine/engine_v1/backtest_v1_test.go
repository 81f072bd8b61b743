package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	engine_types "github.com/lanternworks/lantern-backtest/internal/backtest/engine"
	"github.com/lanternworks/lantern-backtest/internal/strategy"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/internal/version"
	"github.com/lanternworks/lantern-backtest/mocks"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// flatBar builds a bar whose midpoint equals its close, so market orders fill
// exactly at the close price.
func flatBar(symbol string, ts time.Time, price float64) types.MarketData {
	return types.MarketData{
		Symbol: symbol,
		Time:   ts,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: 1000,
	}
}

// tradingDay returns 15:00 UTC on the given January 2023 day, inside the
// default session window. Days 2 through 6 are weekdays.
func tradingDay(day int) time.Time {
	return time.Date(2023, 1, day, 15, 0, 0, 0, time.UTC)
}

// feedDataSource builds a mock datasource whose ReadAll yields the given bars
// on every call.
func feedDataSource(ctrl *gomock.Controller, bars []types.MarketData) *mocks.MockDataSource {
	mockDatasource := mocks.NewMockDataSource(ctrl)
	mockDatasource.EXPECT().Initialize(gomock.Any()).Return(nil).AnyTimes()
	mockDatasource.EXPECT().ReadAll(gomock.Any(), gomock.Any()).Return(func(yield func(types.MarketData, error) bool) {
		for _, bar := range bars {
			if !yield(bar, nil) {
				return
			}
		}
	}).AnyTimes()

	return mockDatasource
}

func drainEvents(stream <-chan types.BacktestEvent) []types.BacktestEvent {
	var events []types.BacktestEvent
	for event := range stream {
		events = append(events, event)
	}

	return events
}

func eventsOfType(events []types.BacktestEvent, eventType types.BacktestEventType) []types.BacktestEvent {
	var matched []types.BacktestEvent

	for _, event := range events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

const testEngineConfig = `
initial_capital: 10000
broker: zero_commission
`

// buyAndHoldAll invests the full starting cash into AAPL on the first bar.
const buyAndHoldAll = "symbol: AAPL\ninvest_ratio: 1\n"

// threeDayFeed is a flat AAPL feed over three consecutive weekdays. A full
// allocation at 100 marks to 10000, 10500 and 10300.
func threeDayFeed() []types.MarketData {
	return []types.MarketData{
		flatBar("AAPL", tradingDay(2), 100),
		flatBar("AAPL", tradingDay(3), 105),
		flatBar("AAPL", tradingDay(4), 103),
	}
}

// idleStrategy never trades.
type idleStrategy struct{}

func (s *idleStrategy) Name() string { return "idle" }

func (s *idleStrategy) Initialize(config string) error { return nil }

func (s *idleStrategy) OnEvent(event types.Event, ctx strategy.Context) ([]types.OrderIntent, error) {
	return nil, nil
}

// faultyStrategy fails on the first event it sees.
type faultyStrategy struct{}

func (s *faultyStrategy) Name() string { return "faulty" }

func (s *faultyStrategy) Initialize(config string) error { return nil }

func (s *faultyStrategy) OnEvent(event types.Event, ctx strategy.Context) ([]types.OrderIntent, error) {
	return nil, fmt.Errorf("indicator window not warmed up")
}

// pinnedVersionStrategy declares an API version no engine release satisfies.
type pinnedVersionStrategy struct {
	idleStrategy
}

func (s *pinnedVersionStrategy) APIVersion() string { return "9.9.0" }

// dayEndRecorder notes every day-end call and buys one share on the first.
type dayEndRecorder struct {
	days   []time.Time
	bought bool
}

func (s *dayEndRecorder) Name() string { return "day_end_recorder" }

func (s *dayEndRecorder) Initialize(config string) error {
	s.days = nil
	s.bought = false

	return nil
}

func (s *dayEndRecorder) OnEvent(event types.Event, ctx strategy.Context) ([]types.OrderIntent, error) {
	return nil, nil
}

func (s *dayEndRecorder) OnDayEnd(day time.Time, ctx strategy.Context) ([]types.OrderIntent, error) {
	s.days = append(s.days, day)

	if s.bought {
		return nil, nil
	}

	s.bought = true

	return []types.OrderIntent{{
		Symbol:    "AAPL",
		Side:      types.SideBuy,
		OrderType: types.OrderTypeMarket,
		Quantity:  1,
		Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: "overnight entry"},
	}}, nil
}

func TestBacktestEngineV1_Run(t *testing.T) {
	t.Run("Buy and hold over a three day feed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		resultsDir := t.TempDir()

		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(testEngineConfig))
		require.NoError(t, eng.SetDataSource(feedDataSource(ctrl, threeDayFeed())))
		require.NoError(t, eng.LoadStrategy(strategy.NewBuyAndHold()))
		require.NoError(t, eng.SetConfigContent([]string{buyAndHoldAll}))
		require.NoError(t, eng.SetResultsFolder(resultsDir))

		require.NoError(t, eng.Run(context.Background(), engine_types.LifecycleCallbacks{}))

		events := drainEvents(eng.Events())
		require.NotEmpty(t, events)
		assert.Equal(t, types.BacktestEventStarted, events[0].Type)
		assert.Equal(t, types.BacktestEventCompleted, events[len(events)-1].Type)

		equityEvents := eventsOfType(events, types.BacktestEventEquityUpdate)
		require.Len(t, equityEvents, 3)
		assert.InDelta(t, 10000, equityEvents[0].Equity.PortfolioValue, 1e-9)
		assert.InDelta(t, 10500, equityEvents[1].Equity.PortfolioValue, 1e-9)
		assert.InDelta(t, 10300, equityEvents[2].Equity.PortfolioValue, 1e-9)

		progressEvents := eventsOfType(events, types.BacktestEventProgress)
		require.Len(t, progressEvents, 3)
		assert.InDelta(t, 1.0, progressEvents[2].Progress.Completed, 1e-9)
		assert.Equal(t, int64(3), progressEvents[2].Progress.EventsProcessed)

		runFolder := filepath.Join(resultsDir, "buy_and_hold", "config_0")
		for _, name := range []string{
			"result.yaml",
			"equity_curve.parquet",
			"orders.parquet",
			"trades.parquet",
			"marks.parquet",
			"logs.parquet",
		} {
			_, err := os.Stat(filepath.Join(runFolder, name))
			assert.NoError(t, err, "expected %s in the run folder", name)
		}

		result, err := types.ReadBacktestResult(filepath.Join(runFolder, "result.yaml"))
		require.NoError(t, err)
		assert.Equal(t, types.BacktestStatusCompleted, result.Status)
		assert.Equal(t, version.GetVersion(), result.EngineVersion)
		assert.Empty(t, result.Error)
		assert.Equal(t, "buy_and_hold", result.StrategyName)
		assert.Equal(t, []string{"AAPL"}, result.Symbols)
		assert.Equal(t, tradingDay(2), result.StartTime.UTC())
		assert.Equal(t, tradingDay(4), result.EndTime.UTC())
		assert.InDelta(t, 10000, result.InitialCapital, 1e-9)
		assert.InDelta(t, 10300, result.FinalEquity, 1e-9)
		assert.InDelta(t, 0.03, result.Metrics.TotalReturn, 1e-9)
		assert.Equal(t, 1, result.OrdersSubmitted)
		assert.Equal(t, 1, result.OrdersFilled)
		assert.Zero(t, result.OrdersRejected)
		assert.Zero(t, result.OrdersExpired)
		assert.Zero(t, result.TradesClosed)
		assert.Equal(t, "config_0", result.ConfigPath)
		assert.Empty(t, result.DataPath)
	})

	t.Run("Strategy parameter sets run in sequence", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		resultsDir := t.TempDir()

		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(testEngineConfig))
		require.NoError(t, eng.SetDataSource(feedDataSource(ctrl, threeDayFeed())))
		require.NoError(t, eng.LoadStrategy(strategy.NewBuyAndHold()))
		require.NoError(t, eng.SetConfigContent([]string{
			buyAndHoldAll,
			"symbol: AAPL\ninvest_ratio: 0.5\n",
		}))
		require.NoError(t, eng.SetResultsFolder(resultsDir))

		var (
			totals    []int
			runOrder  []string
			runEnds   []string
			processed int
		)

		onBacktestStart := engine_types.OnBacktestStartCallback(func(totalStrategies, totalConfigs, totalDataFiles int) error {
			totals = []int{totalStrategies, totalConfigs, totalDataFiles}
			return nil
		})
		onRunStart := engine_types.OnRunStartCallback(func(runID string, configIndex int, configName string, dataFileIndex int, dataFilePath string, totalDataPoints int) error {
			runOrder = append(runOrder, configName)
			return nil
		})
		onRunEnd := engine_types.OnRunEndCallback(func(configIndex int, configName string, dataFileIndex int, dataFilePath string, resultFolderPath string) {
			runEnds = append(runEnds, resultFolderPath)
		})
		onProcessData := engine_types.OnProcessDataCallback(func(current, total int) error {
			processed++
			return nil
		})

		err := eng.Run(context.Background(), engine_types.LifecycleCallbacks{
			OnBacktestStart: &onBacktestStart,
			OnRunStart:      &onRunStart,
			OnRunEnd:        &onRunEnd,
			OnProcessData:   &onProcessData,
		})
		require.NoError(t, err)

		assert.Equal(t, []int{1, 2, 1}, totals)
		assert.Equal(t, []string{"config_0", "config_1"}, runOrder)
		assert.Equal(t, 6, processed, "three batches per parameter set")
		require.Len(t, runEnds, 2)

		fullResult, err := types.ReadBacktestResult(filepath.Join(runEnds[0], "result.yaml"))
		require.NoError(t, err)
		halfResult, err := types.ReadBacktestResult(filepath.Join(runEnds[1], "result.yaml"))
		require.NoError(t, err)

		assert.InDelta(t, 10300, fullResult.FinalEquity, 1e-9)
		assert.InDelta(t, 10150, halfResult.FinalEquity, 1e-9, "half allocation holds 50 shares")

		events := drainEvents(eng.Events())
		assert.Len(t, eventsOfType(events, types.BacktestEventStarted), 2)
		assert.Len(t, eventsOfType(events, types.BacktestEventCompleted), 2)
	})

	t.Run("Config files resolved from a glob", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		resultsDir := t.TempDir()
		configDir := t.TempDir()

		configPath := filepath.Join(configDir, "allocation.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(buyAndHoldAll), 0644))

		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(testEngineConfig))
		require.NoError(t, eng.SetDataSource(feedDataSource(ctrl, threeDayFeed())))
		require.NoError(t, eng.LoadStrategy(strategy.NewBuyAndHold()))
		require.NoError(t, eng.SetConfigPath(filepath.Join(configDir, "*.yaml")))
		require.NoError(t, eng.SetResultsFolder(resultsDir))

		require.NoError(t, eng.Run(context.Background(), engine_types.LifecycleCallbacks{}))

		runFolder := filepath.Join(resultsDir, "buy_and_hold", "allocation")
		result, err := types.ReadBacktestResult(filepath.Join(runFolder, "result.yaml"))
		require.NoError(t, err)
		assert.Equal(t, configPath, result.ConfigPath)
		assert.InDelta(t, 10300, result.FinalEquity, 1e-9)
	})

	t.Run("Data path initializes the datasource per run", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		resultsDir := t.TempDir()
		dataDir := t.TempDir()

		dataPath := filepath.Join(dataDir, "bars.csv")
		require.NoError(t, os.WriteFile(dataPath, []byte("symbol,time\n"), 0644))

		mockDatasource := mocks.NewMockDataSource(ctrl)
		mockDatasource.EXPECT().Initialize(dataPath).Return(nil)
		mockDatasource.EXPECT().ReadAll(gomock.Any(), gomock.Any()).Return(func(yield func(types.MarketData, error) bool) {
			for _, bar := range threeDayFeed() {
				if !yield(bar, nil) {
					return
				}
			}
		})

		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(testEngineConfig))
		require.NoError(t, eng.SetDataSource(mockDatasource))
		require.NoError(t, eng.LoadStrategy(strategy.NewBuyAndHold()))
		require.NoError(t, eng.SetConfigContent([]string{buyAndHoldAll}))
		require.NoError(t, eng.SetDataPath(dataPath))
		require.NoError(t, eng.SetResultsFolder(resultsDir))

		require.NoError(t, eng.Run(context.Background(), engine_types.LifecycleCallbacks{}))

		runFolder := filepath.Join(resultsDir, "buy_and_hold", "config_0", "bars")
		result, err := types.ReadBacktestResult(filepath.Join(runFolder, "result.yaml"))
		require.NoError(t, err)
		assert.Equal(t, dataPath, result.DataPath)
	})

	t.Run("Initial positions seed the ledger", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		resultsDir := t.TempDir()

		config := testEngineConfig + `
initial_positions:
  - symbol: AAPL
    quantity: 10
    price: 90
`

		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(config))
		require.NoError(t, eng.SetDataSource(feedDataSource(ctrl, threeDayFeed())))
		require.NoError(t, eng.LoadStrategy(&idleStrategy{}))
		require.NoError(t, eng.SetConfigContent([]string{""}))
		require.NoError(t, eng.SetResultsFolder(resultsDir))

		require.NoError(t, eng.Run(context.Background(), engine_types.LifecycleCallbacks{}))

		events := drainEvents(eng.Events())
		equityEvents := eventsOfType(events, types.BacktestEventEquityUpdate)
		require.Len(t, equityEvents, 3)

		// 10 seeded shares mark to the batch close on top of untouched cash
		assert.InDelta(t, 11000, equityEvents[0].Equity.PortfolioValue, 1e-9)
		assert.InDelta(t, 11050, equityEvents[1].Equity.PortfolioValue, 1e-9)
		assert.InDelta(t, 11030, equityEvents[2].Equity.PortfolioValue, 1e-9)

		result, err := types.ReadBacktestResult(filepath.Join(resultsDir, "idle", "config_0", "result.yaml"))
		require.NoError(t, err)
		assert.InDelta(t, 11030, result.FinalEquity, 1e-9)
		assert.Zero(t, result.OrdersSubmitted)
	})

	t.Run("Benchmark closes feed the benchmark metrics", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		resultsDir := t.TempDir()

		bars := append(threeDayFeed(),
			flatBar("SPY", tradingDay(2), 400),
			flatBar("SPY", tradingDay(3), 404),
			flatBar("SPY", tradingDay(4), 408),
		)

		config := testEngineConfig + "benchmark: SPY\n"

		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(config))
		require.NoError(t, eng.SetDataSource(feedDataSource(ctrl, bars)))
		require.NoError(t, eng.LoadStrategy(strategy.NewBuyAndHold()))
		require.NoError(t, eng.SetConfigContent([]string{buyAndHoldAll}))
		require.NoError(t, eng.SetResultsFolder(resultsDir))

		require.NoError(t, eng.Run(context.Background(), engine_types.LifecycleCallbacks{}))

		result, err := types.ReadBacktestResult(filepath.Join(resultsDir, "buy_and_hold", "config_0", "result.yaml"))
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL", "SPY"}, result.Symbols)
		assert.NotNil(t, result.Metrics.Beta)
		assert.NotNil(t, result.Metrics.Alpha)
		assert.NotNil(t, result.Metrics.InformationRatio)
	})

	t.Run("Day end handler fires between days and at the end of the feed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		resultsDir := t.TempDir()
		recorder := &dayEndRecorder{}

		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(testEngineConfig))
		require.NoError(t, eng.SetDataSource(feedDataSource(ctrl, threeDayFeed())))
		require.NoError(t, eng.LoadStrategy(recorder))
		require.NoError(t, eng.SetConfigContent([]string{""}))
		require.NoError(t, eng.SetResultsFolder(resultsDir))

		require.NoError(t, eng.Run(context.Background(), engine_types.LifecycleCallbacks{}))

		require.Equal(t, []time.Time{tradingDay(2), tradingDay(3), tradingDay(4)}, recorder.days)

		result, err := types.ReadBacktestResult(filepath.Join(resultsDir, "day_end_recorder", "config_0", "result.yaml"))
		require.NoError(t, err)

		// the overnight order fills against the next day's bar at 105
		assert.Equal(t, 1, result.OrdersSubmitted)
		assert.Equal(t, 1, result.OrdersFilled)
		assert.InDelta(t, 9998, result.FinalEquity, 1e-9)
	})

	t.Run("Cancellation mid run writes a cancelled result", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		resultsDir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(testEngineConfig))
		require.NoError(t, eng.SetDataSource(feedDataSource(ctrl, threeDayFeed())))
		require.NoError(t, eng.LoadStrategy(strategy.NewBuyAndHold()))
		require.NoError(t, eng.SetConfigContent([]string{buyAndHoldAll}))
		require.NoError(t, eng.SetResultsFolder(resultsDir))

		onProcessData := engine_types.OnProcessDataCallback(func(current, total int) error {
			if current == 1 {
				cancel()
			}
			return nil
		})

		err := eng.Run(ctx, engine_types.LifecycleCallbacks{OnProcessData: &onProcessData})
		require.ErrorIs(t, err, context.Canceled)

		events := drainEvents(eng.Events())
		require.NotEmpty(t, events)
		assert.Equal(t, types.BacktestEventCancelled, events[len(events)-1].Type)
		assert.Len(t, eventsOfType(events, types.BacktestEventEquityUpdate), 1)

		result, err := types.ReadBacktestResult(filepath.Join(resultsDir, "buy_and_hold", "config_0", "result.yaml"))
		require.NoError(t, err)
		assert.Equal(t, types.BacktestStatusCancelled, result.Status)
		assert.InDelta(t, 10000, result.FinalEquity, 1e-9, "only the first batch was processed")
	})

	t.Run("Strategy failure writes a failed result", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		resultsDir := t.TempDir()

		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(testEngineConfig))
		require.NoError(t, eng.SetDataSource(feedDataSource(ctrl, threeDayFeed())))
		require.NoError(t, eng.LoadStrategy(&faultyStrategy{}))
		require.NoError(t, eng.SetConfigContent([]string{""}))
		require.NoError(t, eng.SetResultsFolder(resultsDir))

		err := eng.Run(context.Background(), engine_types.LifecycleCallbacks{})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeStrategyRuntimeError))

		events := drainEvents(eng.Events())
		require.NotEmpty(t, events)
		failed := events[len(events)-1]
		assert.Equal(t, types.BacktestEventFailed, failed.Type)
		assert.Contains(t, failed.Error, "indicator window not warmed up")

		result, err := types.ReadBacktestResult(filepath.Join(resultsDir, "faulty", "config_0", "result.yaml"))
		require.NoError(t, err)
		assert.Equal(t, types.BacktestStatusFailed, result.Status)
		assert.Contains(t, result.Error, "indicator window not warmed up")
		assert.InDelta(t, 10000, result.FinalEquity, 1e-9)
	})

	t.Run("Empty feed fails the run", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(testEngineConfig))
		require.NoError(t, eng.SetDataSource(feedDataSource(ctrl, nil)))
		require.NoError(t, eng.LoadStrategy(&idleStrategy{}))
		require.NoError(t, eng.SetConfigContent([]string{""}))
		require.NoError(t, eng.SetResultsFolder(t.TempDir()))

		err := eng.Run(context.Background(), engine_types.LifecycleCallbacks{})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeSchedulerNoFeeds))
	})

	t.Run("Two identical runs produce identical results", func(t *testing.T) {
		run := func() (types.BacktestResult, []float64) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			resultsDir := t.TempDir()

			eng := NewBacktestEngineV1()
			require.NoError(t, eng.Initialize(testEngineConfig))
			require.NoError(t, eng.SetDataSource(feedDataSource(ctrl, threeDayFeed())))
			require.NoError(t, eng.LoadStrategy(strategy.NewBuyAndHold()))
			require.NoError(t, eng.SetConfigContent([]string{buyAndHoldAll}))
			require.NoError(t, eng.SetResultsFolder(resultsDir))
			require.NoError(t, eng.Run(context.Background(), engine_types.LifecycleCallbacks{}))

			result, err := types.ReadBacktestResult(filepath.Join(resultsDir, "buy_and_hold", "config_0", "result.yaml"))
			require.NoError(t, err)

			var curve []float64
			for _, event := range eventsOfType(drainEvents(eng.Events()), types.BacktestEventEquityUpdate) {
				curve = append(curve, event.Equity.PortfolioValue)
			}

			return result, curve
		}

		firstResult, firstCurve := run()
		secondResult, secondCurve := run()

		assert.Equal(t, firstCurve, secondCurve)
		assert.Equal(t, firstResult.FinalEquity, secondResult.FinalEquity)
		assert.Equal(t, firstResult.Metrics, secondResult.Metrics)
		assert.Equal(t, firstResult.OrdersSubmitted, secondResult.OrdersSubmitted)
		assert.Equal(t, firstResult.OrdersFilled, secondResult.OrdersFilled)
	})
}

func TestBacktestEngineV1_LoadStrategy(t *testing.T) {
	t.Run("Incompatible API version is rejected", func(t *testing.T) {
		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(testEngineConfig))

		err := eng.LoadStrategy(&pinnedVersionStrategy{})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeVersionMismatch))
	})

	t.Run("Strategy without a declared version is accepted", func(t *testing.T) {
		eng := NewBacktestEngineV1()
		require.NoError(t, eng.Initialize(testEngineConfig))
		require.NoError(t, eng.LoadStrategy(&idleStrategy{}))
	})
}

func TestBacktestEngineV1_PreRunChecks(t *testing.T) {
	ctx := context.Background()

	eng := NewBacktestEngineV1()
	err := eng.Run(ctx, engine_types.LifecycleCallbacks{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBacktestInitFailed))

	require.NoError(t, eng.Initialize(testEngineConfig))
	err = eng.Run(ctx, engine_types.LifecycleCallbacks{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBacktestNoStrategies))

	require.NoError(t, eng.LoadStrategy(&idleStrategy{}))
	err = eng.Run(ctx, engine_types.LifecycleCallbacks{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBacktestNoConfigs))

	require.NoError(t, eng.SetConfigContent([]string{""}))
	err = eng.Run(ctx, engine_types.LifecycleCallbacks{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBacktestNoResultsDir))

	require.NoError(t, eng.SetResultsFolder(t.TempDir()))
	err = eng.Run(ctx, engine_types.LifecycleCallbacks{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBacktestNoDatasource))
}
