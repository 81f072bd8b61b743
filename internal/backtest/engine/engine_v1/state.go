package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lanternworks/lantern-backtest/internal/logger"
	"github.com/lanternworks/lantern-backtest/internal/types"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"
)

// BacktestState is the persistent log of one run: every order transition, every
// closed round trip, and every equity snapshot, kept in an in-memory DuckDB so
// results can be queried during the run and exported to Parquet afterwards.
type BacktestState struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

func NewBacktestState(logger *logger.Logger) (*BacktestState, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	state := &BacktestState{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := state.Initialize(); err != nil {
		return nil, err
	}

	return state, nil
}

// Initialize creates the tables for tracking orders, trades and the equity
// curve.
func (b *BacktestState) Initialize() error {
	// Sequence keeps equity points in insertion order even when timestamps tie
	_, err := b.db.Exec(`CREATE SEQUENCE IF NOT EXISTS equity_point_id_seq`)
	if err != nil {
		return fmt.Errorf("failed to create sequence: %w", err)
	}

	_, err = b.db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			symbol TEXT,
			side TEXT,
			order_type TEXT,
			quantity DOUBLE,
			limit_price DOUBLE,
			stop_price DOUBLE,
			time_in_force TEXT,
			status TEXT,
			filled_quantity DOUBLE,
			remaining_quantity DOUBLE,
			avg_fill_price DOUBLE,
			reason TEXT,
			message TEXT,
			strategy_name TEXT,
			submitted_at TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create orders table: %w", err)
	}

	_, err = b.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			trade_id TEXT PRIMARY KEY,
			symbol TEXT,
			side TEXT,
			quantity DOUBLE,
			entry_time TIMESTAMP,
			entry_price DOUBLE,
			exit_time TIMESTAMP,
			exit_price DOUBLE,
			pnl DOUBLE,
			commission DOUBLE,
			duration_hours DOUBLE,
			strategy_name TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create trades table: %w", err)
	}

	_, err = b.db.Exec(`
		CREATE TABLE IF NOT EXISTS equity_curve (
			id INTEGER PRIMARY KEY DEFAULT nextval('equity_point_id_seq'),
			timestamp TIMESTAMP,
			portfolio_value DOUBLE,
			cash DOUBLE,
			positions_value DOUBLE,
			total_pnl DOUBLE,
			daily_return DOUBLE,
			cumulative_return DOUBLE,
			drawdown DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create equity_curve table: %w", err)
	}

	return nil
}

// RecordOrder inserts a freshly submitted or rejected order.
func (b *BacktestState) RecordOrder(order types.Order) error {
	insertQuery := b.sq.
		Insert("orders").
		Columns(
			"order_id", "symbol", "side", "order_type", "quantity", "limit_price",
			"stop_price", "time_in_force", "status", "filled_quantity",
			"remaining_quantity", "avg_fill_price", "reason", "message",
			"strategy_name", "submitted_at",
		).
		Values(
			order.ID, order.Symbol, order.Side, order.OrderType, order.Quantity,
			optionalFloat(order.LimitPrice), optionalFloat(order.StopPrice),
			order.TimeInForce, order.Status, order.FilledQuantity,
			order.RemainingQuantity, optionalFloat(order.AvgFillPrice),
			order.Reason.Reason, order.Reason.Message, order.StrategyName,
			order.SubmittedAt,
		).
		RunWith(b.db)

	if _, err := insertQuery.Exec(); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// UpdateOrder rewrites the mutable half of an order row after a fill, cancel or
// expiry.
func (b *BacktestState) UpdateOrder(order types.Order) error {
	updateQuery := b.sq.
		Update("orders").
		Set("status", order.Status).
		Set("filled_quantity", order.FilledQuantity).
		Set("remaining_quantity", order.RemainingQuantity).
		Set("avg_fill_price", optionalFloat(order.AvgFillPrice)).
		Set("reason", order.Reason.Reason).
		Set("message", order.Reason.Message).
		Where(squirrel.Eq{"order_id": order.ID}).
		RunWith(b.db)

	if _, err := updateQuery.Exec(); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	return nil
}

// RecordTrade inserts one round trip. Trades still open at the end of a run are
// written with their exit fields unset.
func (b *BacktestState) RecordTrade(trade types.TradeRecord) error {
	insertQuery := b.sq.
		Insert("trades").
		Columns(
			"trade_id", "symbol", "side", "quantity", "entry_time", "entry_price",
			"exit_time", "exit_price", "pnl", "commission", "duration_hours",
			"strategy_name",
		).
		Values(
			trade.ID, trade.Symbol, trade.Side, trade.Quantity, trade.EntryTime,
			trade.EntryPrice, nullableTime(trade.ExitTime),
			nullableFloat(trade.ExitPrice), nullableFloat(trade.Pnl),
			trade.Commission, nullableFloat(trade.DurationHours),
			trade.StrategyName,
		).
		RunWith(b.db)

	if _, err := insertQuery.Exec(); err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	return nil
}

// RecordEquityPoint appends one snapshot to the equity curve.
func (b *BacktestState) RecordEquityPoint(point types.EquityCurvePoint) error {
	insertQuery := b.sq.
		Insert("equity_curve").
		Columns(
			"timestamp", "portfolio_value", "cash", "positions_value", "total_pnl",
			"daily_return", "cumulative_return", "drawdown",
		).
		Values(
			point.Timestamp, point.PortfolioValue, point.Cash, point.PositionsValue,
			point.TotalPnl, nullableFloat(point.DailyReturn),
			point.CumulativeReturn, point.Drawdown,
		).
		RunWith(b.db)

	if _, err := insertQuery.Exec(); err != nil {
		return fmt.Errorf("failed to insert equity point: %w", err)
	}

	return nil
}

// GetAllOrders returns every recorded order in submission order.
func (b *BacktestState) GetAllOrders() ([]types.Order, error) {
	selectQuery := b.sq.
		Select(
			"order_id", "symbol", "side", "order_type", "quantity", "limit_price",
			"stop_price", "time_in_force", "status", "filled_quantity",
			"remaining_quantity", "avg_fill_price", "reason", "message",
			"strategy_name", "submitted_at",
		).
		From("orders").
		OrderBy("submitted_at ASC", "order_id ASC").
		RunWith(b.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []types.Order

	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}

		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// GetOrderById returns the order with the given id, or None when the id is
// unknown.
func (b *BacktestState) GetOrderById(orderID string) (optional.Option[types.Order], error) {
	selectQuery := b.sq.
		Select(
			"order_id", "symbol", "side", "order_type", "quantity", "limit_price",
			"stop_price", "time_in_force", "status", "filled_quantity",
			"remaining_quantity", "avg_fill_price", "reason", "message",
			"strategy_name", "submitted_at",
		).
		From("orders").
		Where(squirrel.Eq{"order_id": orderID}).
		RunWith(b.db)

	order, err := scanOrder(selectQuery.QueryRow().Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return optional.None[types.Order](), nil
		}

		return optional.None[types.Order](), fmt.Errorf("failed to get order by id: %w", err)
	}

	return optional.Some(order), nil
}

// GetAllTrades returns every round trip ordered by entry time.
func (b *BacktestState) GetAllTrades() ([]types.TradeRecord, error) {
	selectQuery := b.sq.
		Select(
			"trade_id", "symbol", "side", "quantity", "entry_time", "entry_price",
			"exit_time", "exit_price", "pnl", "commission", "duration_hours",
			"strategy_name",
		).
		From("trades").
		OrderBy("entry_time ASC", "trade_id ASC").
		RunWith(b.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []types.TradeRecord

	for rows.Next() {
		var (
			trade         types.TradeRecord
			exitTime      sql.NullTime
			exitPrice     sql.NullFloat64
			pnl           sql.NullFloat64
			durationHours sql.NullFloat64
		)

		err := rows.Scan(
			&trade.ID, &trade.Symbol, &trade.Side, &trade.Quantity,
			&trade.EntryTime, &trade.EntryPrice, &exitTime, &exitPrice, &pnl,
			&trade.Commission, &durationHours, &trade.StrategyName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		if exitTime.Valid {
			t := exitTime.Time
			trade.ExitTime = &t
		}

		trade.ExitPrice = floatPointer(exitPrice)
		trade.Pnl = floatPointer(pnl)
		trade.DurationHours = floatPointer(durationHours)

		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

// GetEquityCurve returns every snapshot in insertion order.
func (b *BacktestState) GetEquityCurve() ([]types.EquityCurvePoint, error) {
	selectQuery := b.sq.
		Select(
			"timestamp", "portfolio_value", "cash", "positions_value", "total_pnl",
			"daily_return", "cumulative_return", "drawdown",
		).
		From("equity_curve").
		OrderBy("id ASC").
		RunWith(b.db)

	rows, err := selectQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query equity curve: %w", err)
	}
	defer rows.Close()

	var curve []types.EquityCurvePoint

	for rows.Next() {
		var (
			point       types.EquityCurvePoint
			dailyReturn sql.NullFloat64
		)

		err := rows.Scan(
			&point.Timestamp, &point.PortfolioValue, &point.Cash,
			&point.PositionsValue, &point.TotalPnl, &dailyReturn,
			&point.CumulativeReturn, &point.Drawdown,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan equity point: %w", err)
		}

		point.DailyReturn = floatPointer(dailyReturn)

		curve = append(curve, point)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equity curve: %w", err)
	}

	return curve, nil
}

// RunCounts summarizes a run's order and trade outcomes for the result
// artifact.
type RunCounts struct {
	OrdersSubmitted int
	OrdersFilled    int
	OrdersRejected  int
	OrdersExpired   int
	TradesClosed    int
}

// GetCounts tallies order statuses and closed trades.
func (b *BacktestState) GetCounts() (RunCounts, error) {
	var counts RunCounts

	rows, err := b.db.Query(`SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return counts, fmt.Errorf("failed to count orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)

		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("failed to scan order count: %w", err)
		}

		counts.OrdersSubmitted += n

		switch types.OrderStatus(status) {
		case types.OrderStatusFilled:
			counts.OrdersFilled += n
		case types.OrderStatusRejected:
			counts.OrdersRejected += n
		case types.OrderStatusExpired:
			counts.OrdersExpired += n
		}
	}

	if err = rows.Err(); err != nil {
		return counts, fmt.Errorf("error iterating order counts: %w", err)
	}

	row := b.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE exit_time IS NOT NULL`)
	if err := row.Scan(&counts.TradesClosed); err != nil {
		return counts, fmt.Errorf("failed to count trades: %w", err)
	}

	return counts, nil
}

// Cleanup resets the database state between runs.
func (b *BacktestState) Cleanup() error {
	// Raw SQL for dropping tables - Squirrel doesn't have DROP syntax
	_, err := b.db.Exec(`
		DROP TABLE IF EXISTS equity_curve;
		DROP TABLE IF EXISTS trades;
		DROP TABLE IF EXISTS orders;
		DROP SEQUENCE IF EXISTS equity_point_id_seq;
	`)
	if err != nil {
		return fmt.Errorf("failed to cleanup tables: %w", err)
	}

	return b.Initialize()
}

// Write exports the run state to Parquet files in the specified directory.
func (b *BacktestState) Write(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Raw SQL as Squirrel doesn't support COPY
	ordersPath := filepath.Join(path, "orders.parquet")
	if _, err := b.db.Exec(fmt.Sprintf(`COPY orders TO '%s' (FORMAT PARQUET)`, ordersPath)); err != nil {
		return fmt.Errorf("failed to export orders to Parquet: %w", err)
	}

	tradesPath := filepath.Join(path, "trades.parquet")
	if _, err := b.db.Exec(fmt.Sprintf(`COPY trades TO '%s' (FORMAT PARQUET)`, tradesPath)); err != nil {
		return fmt.Errorf("failed to export trades to Parquet: %w", err)
	}

	equityPath := filepath.Join(path, "equity_curve.parquet")
	if _, err := b.db.Exec(fmt.Sprintf(`COPY equity_curve TO '%s' (FORMAT PARQUET)`, equityPath)); err != nil {
		return fmt.Errorf("failed to export equity curve to Parquet: %w", err)
	}

	b.logger.Info("Exported run state to Parquet files",
		zap.String("orders", ordersPath),
		zap.String("trades", tradesPath),
		zap.String("equity_curve", equityPath),
	)

	return nil
}

// Close releases the database.
func (b *BacktestState) Close() error {
	if b.db != nil {
		return b.db.Close()
	}

	return nil
}

func scanOrder(scan func(dest ...any) error) (types.Order, error) {
	var (
		order        types.Order
		limitPrice   sql.NullFloat64
		stopPrice    sql.NullFloat64
		avgFillPrice sql.NullFloat64
	)

	err := scan(
		&order.ID, &order.Symbol, &order.Side, &order.OrderType, &order.Quantity,
		&limitPrice, &stopPrice, &order.TimeInForce, &order.Status,
		&order.FilledQuantity, &order.RemainingQuantity, &avgFillPrice,
		&order.Reason.Reason, &order.Reason.Message, &order.StrategyName,
		&order.SubmittedAt,
	)
	if err != nil {
		return types.Order{}, err
	}

	order.LimitPrice = optionalFromNull(limitPrice)
	order.StopPrice = optionalFromNull(stopPrice)
	order.AvgFillPrice = optionalFromNull(avgFillPrice)

	return order, nil
}

func optionalFloat(v optional.Option[float64]) any {
	if v.IsSome() {
		return v.Unwrap()
	}

	return nil
}

func optionalFromNull(v sql.NullFloat64) optional.Option[float64] {
	if v.Valid {
		return optional.Some(v.Float64)
	}

	return optional.None[float64]()
}

func nullableFloat(v *float64) any {
	if v != nil {
		return *v
	}

	return nil
}

func nullableTime(v *time.Time) any {
	if v != nil {
		return *v
	}

	return nil
}

func floatPointer(v sql.NullFloat64) *float64 {
	if v.Valid {
		f := v.Float64
		return &f
	}

	return nil
}
