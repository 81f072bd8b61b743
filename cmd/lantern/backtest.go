package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lanternworks/lantern-backtest/internal/backtest/engine"
	engine_v1 "github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1"
	"github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/lanternworks/lantern-backtest/internal/logger"
	"github.com/lanternworks/lantern-backtest/internal/server"
	"github.com/lanternworks/lantern-backtest/internal/strategy"
	"github.com/lanternworks/lantern-backtest/internal/tui"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Run one or more strategies against historical market data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the engine config YAML",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "strategy",
				Aliases: []string{"s"},
				Usage:   fmt.Sprintf("Strategy to run, repeatable (available: %s)", strings.Join(strategy.Names(), ", ")),
				Value:   []string{"buy_and_hold"},
			},
			&cli.StringFlag{
				Name:  "strategy-config",
				Usage: "Glob of strategy parameter YAML files; each match becomes one run",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Glob of market data files (CSV or Parquet); each match becomes one run",
			},
			&cli.StringFlag{
				Name:    "results",
				Aliases: []string{"r"},
				Usage:   "Folder to write run results to",
				Value:   "results",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Watch the backtest in a terminal UI",
			},
			&cli.StringFlag{
				Name:  "serve",
				Usage: "Serve run results and live events over HTTP on this address (e.g. :8080)",
			},
		},
		Action: backtestAction,
	}
}

// backtestAction wires the engine, optional watch UI and optional HTTP server
// together and runs every selected strategy. An interrupt cancels the run and
// still writes a result for it.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	strategyNames := cmd.StringSlice("strategy")
	resultsFolder := cmd.String("results")
	watch := cmd.Bool("watch")
	serveAddress := cmd.String("serve")

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancelRun := context.WithCancel(signalCtx)
	defer cancelRun()

	engineConfig, err := os.ReadFile(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to read engine config: %w", err)
	}

	log, err := logger.NewLogger()
	if err != nil {
		return err
	}

	eng := engine_v1.NewBacktestEngineV1()
	if err := eng.Initialize(string(engineConfig)); err != nil {
		return err
	}

	for _, name := range strategyNames {
		strat, err := strategy.New(name)
		if err != nil {
			return err
		}

		if err := eng.LoadStrategy(strat); err != nil {
			return err
		}
	}

	if glob := cmd.String("strategy-config"); glob != "" {
		if err := eng.SetConfigPath(glob); err != nil {
			return err
		}
	} else {
		// run each strategy once with its built-in defaults
		if err := eng.SetConfigContent([]string{""}); err != nil {
			return err
		}
	}

	if glob := cmd.String("data"); glob != "" {
		if err := eng.SetDataPath(glob); err != nil {
			return err
		}
	}

	if err := eng.SetResultsFolder(resultsFolder); err != nil {
		return err
	}

	source, err := datasource.NewDataSource(":memory:", log)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}
	defer source.Close()

	if err := eng.SetDataSource(source); err != nil {
		return err
	}

	var watchEvents, serveEvents <-chan types.BacktestEvent

	switch {
	case watch && serveAddress != "":
		streams := fanOutEvents(eng.Events(), 2)
		watchEvents, serveEvents = streams[0], streams[1]
	case watch:
		watchEvents = eng.Events()
	case serveAddress != "":
		serveEvents = eng.Events()
	}

	var srv *server.Server

	if serveAddress != "" {
		srv = server.NewServer(server.Config{
			ResultsFolder: resultsFolder,
			Logger:        log,
		})
		srv.Watch(serveEvents)

		if err := srv.Start(serveAddress); err != nil {
			return err
		}

		defer func() { _ = srv.Stop() }()

		fmt.Printf("Serving runs on %s\n", srv.BaseURL())
	}

	var runErr error

	if watch {
		runDone := make(chan error, 1)
		go func() { runDone <- eng.Run(runCtx, engine.LifecycleCallbacks{}) }()

		model := tui.NewModel(strings.Join(strategyNames, ", "), watchEvents, cancelRun)

		if _, err := tea.NewProgram(model, tea.WithContext(signalCtx)).Run(); err != nil && signalCtx.Err() == nil {
			cancelRun()
			<-runDone

			return fmt.Errorf("watch ui failed: %w", err)
		}

		runErr = <-runDone
	} else {
		runErr = eng.Run(runCtx, progressCallbacks())
	}

	switch {
	case errors.Is(runErr, context.Canceled):
		fmt.Println("\nBacktest cancelled.")
	case runErr != nil:
		return runErr
	}

	printResultsSummary(resultsFolder)

	if srv != nil && signalCtx.Err() == nil {
		fmt.Println("Results server still running, press ctrl-c to stop.")
		<-signalCtx.Done()
	}

	return nil
}

// progressCallbacks renders one progress bar per run on the terminal.
func progressCallbacks() engine.LifecycleCallbacks {
	var bar *progressbar.ProgressBar

	currentStrategy := ""

	onStrategyStart := engine.OnStrategyStartCallback(func(_ int, strategyName string, _ int) error {
		currentStrategy = strategyName

		return nil
	})

	onRunStart := engine.OnRunStartCallback(func(_ string, _ int, configName string, _ int, dataFilePath string, totalDataPoints int) error {
		label := currentStrategy + " · " + filepath.Base(configName)
		if dataFilePath != "" {
			label += " · " + filepath.Base(dataFilePath)
		}

		bar = progressbar.New(totalDataPoints)
		bar.Describe(label)

		return nil
	})

	onProcessData := engine.OnProcessDataCallback(func(current, _ int) error {
		if bar != nil {
			return bar.Set(current)
		}

		return nil
	})

	onRunEnd := engine.OnRunEndCallback(func(_ int, _ string, _ int, _ string, _ string) {
		if bar != nil {
			_ = bar.Finish()

			fmt.Println()
		}
	})

	return engine.LifecycleCallbacks{
		OnStrategyStart: &onStrategyStart,
		OnRunStart:      &onRunStart,
		OnProcessData:   &onProcessData,
		OnRunEnd:        &onRunEnd,
	}
}

// fanOutEvents copies one event stream to count consumers. A slow consumer
// loses its oldest buffered events instead of stalling the others; every
// output closes when the source closes.
func fanOutEvents(source <-chan types.BacktestEvent, count int) []chan types.BacktestEvent {
	outs := make([]chan types.BacktestEvent, count)
	for i := range outs {
		outs[i] = make(chan types.BacktestEvent, 256)
	}

	go func() {
		for event := range source {
			for _, out := range outs {
				offerEvent(out, event)
			}
		}

		for _, out := range outs {
			close(out)
		}
	}()

	return outs
}

func offerEvent(ch chan types.BacktestEvent, event types.BacktestEvent) {
	for {
		select {
		case ch <- event:
			return
		default:
		}

		select {
		case <-ch:
		default:
		}
	}
}

// loadResults collects every result.yaml under the results folder.
func loadResults(resultsFolder string) []types.BacktestResult {
	var results []types.BacktestResult

	_ = filepath.WalkDir(resultsFolder, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() || entry.Name() != "result.yaml" {
			return nil
		}

		result, readErr := types.ReadBacktestResult(path)
		if readErr != nil {
			return nil
		}

		results = append(results, result)

		return nil
	})

	return results
}

func printResultsSummary(resultsFolder string) {
	results := loadResults(resultsFolder)
	if len(results) == 0 {
		return
	}

	fmt.Printf("\n%d run(s) written to %s:\n", len(results), resultsFolder)

	for _, result := range results {
		fmt.Printf("  %-9s  %-15s %-20s equity %12.2f  return %+7.2f%%\n",
			result.Status,
			result.StrategyName,
			filepath.Base(result.ConfigPath),
			result.FinalEquity,
			result.Metrics.TotalReturn*100,
		)
	}
}
