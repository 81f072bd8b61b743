package engine

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// conservationTolerance bounds the acceptable drift between the equity change
// and the booked P&L and costs, in account-currency units.
const conservationTolerance = 1e-8

// PortfolioLedger is the authoritative book for one run. It owns the
// portfolio, pairs fills into round-trip trade records, and appends equity
// curve points. Nothing else mutates the portfolio during a run.
type PortfolioLedger struct {
	portfolio    *types.Portfolio
	strategyName string

	// baseEquity is the equity at run start, including seeded positions.
	baseEquity float64
	peak       float64

	prevEquity      float64
	prevTotalPnl    float64
	prevCommissions float64

	started     bool
	hasSnapshot bool

	curve  []types.EquityCurvePoint
	open   map[string]*openTrade
	closed []types.TradeRecord
}

// openTrade accumulates one in-progress round trip.
type openTrade struct {
	record       types.TradeRecord
	exitQty      decimal.Decimal
	exitNotional decimal.Decimal
	realized     decimal.Decimal
}

// NewPortfolioLedger creates a ledger holding only cash.
func NewPortfolioLedger(initialCapital float64, strategyName string) (*PortfolioLedger, error) {
	if initialCapital <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidCapital, "initial capital must be positive, got %f", initialCapital)
	}

	return &PortfolioLedger{
		portfolio:    types.NewPortfolio(initialCapital),
		strategyName: strategyName,
		baseEquity:   initialCapital,
		peak:         initialCapital,
		prevEquity:   initialCapital,
		open:         make(map[string]*openTrade),
	}, nil
}

// SeedPosition installs a position at cost before the run starts. Cash is
// untouched and equity grows by the seeded value, so a run with zero orders
// still produces a mark-to-market equity curve.
func (l *PortfolioLedger) SeedPosition(symbol string, quantity float64, price float64, asOf time.Time) error {
	if l.started {
		return errors.New(errors.ErrCodeInvalidParameter, "cannot seed positions after the run has started")
	}

	if quantity == 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "seed quantity for %s cannot be zero", symbol)
	}

	if price <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "seed price for %s must be positive, got %f", symbol, price)
	}

	if _, exists := l.portfolio.GetPosition(symbol); exists {
		return errors.Newf(errors.ErrCodeInvalidParameter, "position for %s already seeded", symbol)
	}

	l.portfolio.SeedPosition(symbol, quantity, price, asOf)

	// The baseline moves so the seeded value never reads as profit
	l.baseEquity = l.portfolio.TotalEquity
	l.prevEquity = l.baseEquity
	l.peak = l.baseEquity

	side := types.SideBuy
	if quantity < 0 {
		side = types.SideSell
	}

	l.open[symbol] = &openTrade{
		record: types.TradeRecord{
			ID:           uuid.New().String(),
			Symbol:       symbol,
			EntryTime:    asOf,
			EntryPrice:   price,
			Quantity:     math.Abs(quantity),
			Side:         side,
			StrategyName: l.strategyName,
		},
	}

	return nil
}

// ApplyFill books a fill atomically: cash, position, commissions, and trade
// pairing. Returns the realized P&L booked by the fill and, when the fill
// returns a position to flat (or flips it), the completed round trip.
func (l *PortfolioLedger) ApplyFill(fill types.Fill) (float64, optional.Option[types.TradeRecord], error) {
	none := optional.None[types.TradeRecord]()

	if fill.Quantity <= 0 {
		return 0, none, errors.Newf(errors.ErrCodeInvalidParameter, "fill quantity must be positive, got %f", fill.Quantity)
	}

	if fill.Price <= 0 {
		return 0, none, errors.Newf(errors.ErrCodeInvalidParameter, "fill price must be positive, got %f", fill.Price)
	}

	l.started = true

	var priorQty, priorAvg float64

	if pos, ok := l.portfolio.GetPosition(fill.Symbol); ok {
		priorQty = pos.Quantity
		priorAvg = pos.AvgEntryPrice
	}

	realized := l.portfolio.ApplyFill(fill)

	var postQty float64

	if pos, ok := l.portfolio.GetPosition(fill.Symbol); ok {
		postQty = pos.Quantity
	}

	closed := l.pairFill(fill, priorQty, priorAvg, postQty, realized)

	return realized, closed, nil
}

// pairFill maintains round-trip trade records across fills. A round trip runs
// from flat to flat; adds fold into the open trade, reduces accumulate a
// volume-weighted exit, and a flip closes the trade and opens the remainder.
func (l *PortfolioLedger) pairFill(fill types.Fill, priorQty, priorAvg, postQty, realized float64) optional.Option[types.TradeRecord] {
	none := optional.None[types.TradeRecord]()

	signed := fill.Quantity
	if fill.Side == types.SideSell {
		signed = -signed
	}

	if priorQty == 0 {
		l.open[fill.Symbol] = &openTrade{
			record: types.TradeRecord{
				ID:           uuid.New().String(),
				Symbol:       fill.Symbol,
				EntryTime:    fill.ExecutedAt,
				EntryPrice:   fill.Price,
				Quantity:     fill.Quantity,
				Side:         fill.Side,
				Commission:   fill.Commission,
				StrategyName: l.strategyName,
			},
		}

		return none
	}

	trade := l.ensureOpenTrade(fill.Symbol, priorQty, priorAvg, fill.ExecutedAt)

	if (priorQty > 0) == (signed > 0) {
		// Adding: the entry price follows the position's average cost
		trade.record.Quantity = decimal.NewFromFloat(trade.record.Quantity).
			Add(decimal.NewFromFloat(fill.Quantity)).InexactFloat64()

		if pos, ok := l.portfolio.GetPosition(fill.Symbol); ok {
			trade.record.EntryPrice = pos.AvgEntryPrice
		}

		trade.record.Commission = decimal.NewFromFloat(trade.record.Commission).
			Add(decimal.NewFromFloat(fill.Commission)).InexactFloat64()

		return none
	}

	closedQty := math.Min(fill.Quantity, math.Abs(priorQty))
	trade.exitQty = trade.exitQty.Add(decimal.NewFromFloat(closedQty))
	trade.exitNotional = trade.exitNotional.Add(decimal.NewFromFloat(closedQty).Mul(decimal.NewFromFloat(fill.Price)))
	trade.realized = trade.realized.Add(decimal.NewFromFloat(realized))
	trade.record.Commission = decimal.NewFromFloat(trade.record.Commission).
		Add(decimal.NewFromFloat(fill.Commission)).InexactFloat64()

	flipped := postQty != 0 && (postQty > 0) == (signed > 0)
	if postQty != 0 && !flipped {
		// Partial reduce: the round trip stays open
		return none
	}

	record := trade.finish(fill.ExecutedAt)
	l.closed = append(l.closed, record)
	delete(l.open, fill.Symbol)

	if flipped {
		l.open[fill.Symbol] = &openTrade{
			record: types.TradeRecord{
				ID:           uuid.New().String(),
				Symbol:       fill.Symbol,
				EntryTime:    fill.ExecutedAt,
				EntryPrice:   fill.Price,
				Quantity:     math.Abs(postQty),
				Side:         fill.Side,
				StrategyName: l.strategyName,
			},
		}
	}

	return optional.Some(record)
}

// ensureOpenTrade returns the open trade for symbol. A seeded position opens
// its trade at seed time; this guards the pairing if a position ever exists
// without one.
func (l *PortfolioLedger) ensureOpenTrade(symbol string, priorQty, priorAvg float64, asOf time.Time) *openTrade {
	if trade, ok := l.open[symbol]; ok {
		return trade
	}

	side := types.SideBuy
	if priorQty < 0 {
		side = types.SideSell
	}

	trade := &openTrade{
		record: types.TradeRecord{
			ID:           uuid.New().String(),
			Symbol:       symbol,
			EntryTime:    asOf,
			EntryPrice:   priorAvg,
			Quantity:     math.Abs(priorQty),
			Side:         side,
			StrategyName: l.strategyName,
		},
	}
	l.open[symbol] = trade

	return trade
}

func (t *openTrade) finish(exitTime time.Time) types.TradeRecord {
	record := t.record

	exit := exitTime
	record.ExitTime = &exit

	if t.exitQty.IsPositive() {
		price := t.exitNotional.Div(t.exitQty).InexactFloat64()
		record.ExitPrice = &price
	}

	pnl := t.realized.InexactFloat64()
	record.Pnl = &pnl

	hours := exitTime.Sub(record.EntryTime).Hours()
	record.DurationHours = &hours

	return record
}

// Snapshot marks all open positions to the given prices and appends one
// equity curve point. The conservation invariant is verified on every call:
// the equity change since the prior snapshot must equal the booked P&L change
// minus the commission change.
func (l *PortfolioLedger) Snapshot(t time.Time, markPrices map[string]float64) (types.EquityCurvePoint, error) {
	l.started = true

	l.portfolio.UpdateMarketPrices(markPrices)

	equity := l.portfolio.TotalEquity

	delta := decimal.NewFromFloat(equity).Sub(decimal.NewFromFloat(l.prevEquity))
	expected := decimal.NewFromFloat(l.portfolio.TotalPnl).
		Sub(decimal.NewFromFloat(l.prevTotalPnl)).
		Sub(decimal.NewFromFloat(l.portfolio.TotalCommissions).
			Sub(decimal.NewFromFloat(l.prevCommissions)))

	if delta.Sub(expected).Abs().GreaterThan(decimal.NewFromFloat(conservationTolerance)) {
		return types.EquityCurvePoint{}, errors.Newf(errors.ErrCodeConservationViolated,
			"equity moved %s but booked P&L and costs explain %s at %s",
			delta.String(), expected.String(), t.Format(time.RFC3339))
	}

	var periodReturn *float64

	if l.hasSnapshot && l.prevEquity > 0 {
		r := decimal.NewFromFloat(equity).
			Sub(decimal.NewFromFloat(l.prevEquity)).
			Div(decimal.NewFromFloat(l.prevEquity)).InexactFloat64()
		periodReturn = &r
	}

	if equity > l.peak {
		l.peak = equity
	}

	drawdown := 0.0
	if l.peak > 0 {
		drawdown = decimal.NewFromFloat(l.peak).
			Sub(decimal.NewFromFloat(equity)).
			Div(decimal.NewFromFloat(l.peak)).InexactFloat64()
	}

	cumulative := 0.0
	if l.baseEquity != 0 {
		cumulative = decimal.NewFromFloat(equity).
			Sub(decimal.NewFromFloat(l.baseEquity)).
			Div(decimal.NewFromFloat(l.baseEquity)).InexactFloat64()
	}

	point := types.EquityCurvePoint{
		Timestamp:        t,
		PortfolioValue:   equity,
		Cash:             l.portfolio.Cash,
		PositionsValue:   l.portfolio.PositionsValue(),
		TotalPnl:         l.portfolio.TotalPnl,
		DailyReturn:      periodReturn,
		CumulativeReturn: cumulative,
		Drawdown:         drawdown,
	}

	l.curve = append(l.curve, point)
	l.prevEquity = equity
	l.prevTotalPnl = l.portfolio.TotalPnl
	l.prevCommissions = l.portfolio.TotalCommissions
	l.hasSnapshot = true

	return point, nil
}

// Curve returns the equity curve accumulated so far. The slice is append-only.
func (l *PortfolioLedger) Curve() []types.EquityCurvePoint {
	return l.curve
}

// ClosedTrades returns completed round trips in close order.
func (l *PortfolioLedger) ClosedTrades() []types.TradeRecord {
	return l.closed
}

// OpenTradeRecords returns the still-open round trips, sorted by symbol.
// Exit fields stay nil.
func (l *PortfolioLedger) OpenTradeRecords() []types.TradeRecord {
	records := make([]types.TradeRecord, 0, len(l.open))
	for _, trade := range l.open {
		records = append(records, trade.record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Symbol < records[j].Symbol
	})

	return records
}

// Cash implements the strategy portfolio view.
func (l *PortfolioLedger) Cash() float64 {
	return l.portfolio.Cash
}

// Equity implements the strategy portfolio view.
func (l *PortfolioLedger) Equity() float64 {
	return l.portfolio.TotalEquity
}

// InitialCapital implements the strategy portfolio view.
func (l *PortfolioLedger) InitialCapital() float64 {
	return l.portfolio.InitialCapital
}

// Position implements the strategy portfolio view.
func (l *PortfolioLedger) Position(symbol string) (types.Position, bool) {
	return l.portfolio.GetPosition(symbol)
}

// Positions implements the strategy portfolio view, sorted by symbol.
func (l *PortfolioLedger) Positions() []types.Position {
	positions := make([]types.Position, 0, len(l.portfolio.Positions))
	for _, pos := range l.portfolio.Positions {
		positions = append(positions, pos)
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})

	return positions
}

// TotalCommissions is the commission paid so far in this run.
func (l *PortfolioLedger) TotalCommissions() float64 {
	return l.portfolio.TotalCommissions
}
