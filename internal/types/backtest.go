package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type BacktestStatus string

const (
	BacktestStatusPending   BacktestStatus = "PENDING"
	BacktestStatusRunning   BacktestStatus = "RUNNING"
	BacktestStatusCompleted BacktestStatus = "COMPLETED"
	BacktestStatusFailed    BacktestStatus = "FAILED"
	BacktestStatusCancelled BacktestStatus = "CANCELLED"
)

type BacktestEventType string

const (
	BacktestEventStarted       BacktestEventType = "started"
	BacktestEventProgress      BacktestEventType = "progress"
	BacktestEventEquityUpdate  BacktestEventType = "equity_update"
	BacktestEventTradeExecuted BacktestEventType = "trade_executed"
	BacktestEventCompleted     BacktestEventType = "completed"
	BacktestEventFailed        BacktestEventType = "failed"
	BacktestEventCancelled     BacktestEventType = "cancelled"
)

// BacktestEvent is one update emitted by a running backtest. Exactly one of
// the payload pointers is set, matching Type.
type BacktestEvent struct {
	Type     BacktestEventType `json:"type" yaml:"type"`
	RunID    string            `json:"run_id" yaml:"run_id"`
	Time     time.Time         `json:"time" yaml:"time"`
	Progress *ProgressUpdate   `json:"progress,omitempty" yaml:"progress,omitempty"`
	Equity   *EquityCurvePoint `json:"equity,omitempty" yaml:"equity,omitempty"`
	Trade    *TradeRecord      `json:"trade,omitempty" yaml:"trade,omitempty"`
	Result   *BacktestResult   `json:"result,omitempty" yaml:"result,omitempty"`
	Error    string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// ProgressUpdate reports how far the simulation clock has advanced.
type ProgressUpdate struct {
	// Completed is the fraction of the feed processed, in [0, 1].
	Completed float64 `json:"completed" yaml:"completed"`
	// CurrentTime is the simulation time of the last processed batch.
	CurrentTime time.Time `json:"current_time" yaml:"current_time"`
	// EventsProcessed counts batches delivered to strategies so far.
	EventsProcessed int64 `json:"events_processed" yaml:"events_processed"`
}

// EquityCurvePoint is one sample of the portfolio's value over time.
type EquityCurvePoint struct {
	Timestamp        time.Time `json:"timestamp" yaml:"timestamp"`
	PortfolioValue   float64   `json:"portfolio_value" yaml:"portfolio_value"`
	Cash             float64   `json:"cash" yaml:"cash"`
	PositionsValue   float64   `json:"positions_value" yaml:"positions_value"`
	TotalPnl         float64   `json:"total_pnl" yaml:"total_pnl"`
	DailyReturn      *float64  `json:"daily_return,omitempty" yaml:"daily_return,omitempty"`
	CumulativeReturn float64   `json:"cumulative_return" yaml:"cumulative_return"`
	Drawdown         float64   `json:"drawdown" yaml:"drawdown"`
}

// TradeRecord is one round trip in a symbol. ExitTime, ExitPrice, Pnl and
// DurationHours stay nil while the trade is still open.
type TradeRecord struct {
	ID            string     `json:"id" yaml:"id"`
	Symbol        string     `json:"symbol" yaml:"symbol"`
	EntryTime     time.Time  `json:"entry_time" yaml:"entry_time"`
	ExitTime      *time.Time `json:"exit_time,omitempty" yaml:"exit_time,omitempty"`
	EntryPrice    float64    `json:"entry_price" yaml:"entry_price"`
	ExitPrice     *float64   `json:"exit_price,omitempty" yaml:"exit_price,omitempty"`
	Quantity      float64    `json:"quantity" yaml:"quantity"`
	Side          Side       `json:"side" yaml:"side"`
	Pnl           *float64   `json:"pnl,omitempty" yaml:"pnl,omitempty"`
	Commission    float64    `json:"commission" yaml:"commission"`
	DurationHours *float64   `json:"duration_hours,omitempty" yaml:"duration_hours,omitempty"`
	StrategyName  string     `json:"strategy_name" yaml:"strategy_name"`
	Tags          []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// IsClosed reports whether the round trip has completed.
func (t *TradeRecord) IsClosed() bool {
	return t.ExitTime != nil
}

type BacktestResult struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Status is the terminal status of the run.
	Status BacktestStatus `yaml:"status" json:"status"`
	// EngineVersion is the engine release that produced this result.
	EngineVersion string `yaml:"engine_version" json:"engine_version"`
	// Error describes why a failed run stopped. Empty otherwise.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
	// StrategyName identifies the strategy that produced this result.
	StrategyName string `yaml:"strategy_name" json:"strategy_name"`
	// Symbols traded during the run.
	Symbols []string `yaml:"symbols" json:"symbols"`
	// StartTime of the simulated period.
	StartTime time.Time `yaml:"start_time" json:"start_time"`
	// EndTime of the simulated period.
	EndTime time.Time `yaml:"end_time" json:"end_time"`
	// InitialCapital the run started with.
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	// FinalEquity is the portfolio value at the end of the run.
	FinalEquity float64 `yaml:"final_equity" json:"final_equity"`
	// Metrics computed from the equity curve and closed trades.
	Metrics PerformanceMetrics `yaml:"metrics" json:"metrics"`
	// OrdersSubmitted counts orders handed to the execution simulator,
	// including ones rejected at submission.
	OrdersSubmitted int `yaml:"orders_submitted" json:"orders_submitted"`
	// OrdersFilled counts orders that reached FILLED.
	OrdersFilled int `yaml:"orders_filled" json:"orders_filled"`
	// OrdersRejected counts orders rejected at submit or execution.
	OrdersRejected int `yaml:"orders_rejected" json:"orders_rejected"`
	// OrdersExpired counts orders expired by time in force.
	OrdersExpired int `yaml:"orders_expired" json:"orders_expired"`
	// TradesClosed counts completed round trips.
	TradesClosed int `yaml:"trades_closed" json:"trades_closed"`
	// EquityCurveFilePath is the path to the equity curve parquet file.
	EquityCurveFilePath string `yaml:"equity_curve_file_path" json:"equity_curve_file_path"`
	// TradesFilePath is the path to the trades parquet file.
	TradesFilePath string `yaml:"trades_file_path" json:"trades_file_path"`
	// OrdersFilePath is the path to the orders parquet file.
	OrdersFilePath string `yaml:"orders_file_path" json:"orders_file_path"`
	// MarksFilePath is the path to the marks parquet file.
	MarksFilePath string `yaml:"marks_file_path" json:"marks_file_path"`
	// DataPath is the path to the market data used for this backtest.
	DataPath string `yaml:"data_path" json:"data_path"`
	// ConfigPath is the path to the strategy config used for this backtest.
	ConfigPath string `yaml:"config_path" json:"config_path"`
}

func WriteBacktestResult(path string, result BacktestResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest result to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest result to file: %w", err)
	}

	return nil
}

func ReadBacktestResult(path string) (BacktestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BacktestResult{}, fmt.Errorf("failed to read backtest result file: %w", err)
	}

	var result BacktestResult
	if err := yaml.Unmarshal(data, &result); err != nil {
		return BacktestResult{}, fmt.Errorf("failed to parse backtest result YAML: %w", err)
	}

	return result, nil
}
