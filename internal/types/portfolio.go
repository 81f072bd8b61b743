package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the cash and position book for one backtest run. Realized
// P&L accumulates on the portfolio so closing a position does not erase
// its history.
type Portfolio struct {
	InitialCapital   float64             `yaml:"initial_capital" json:"initial_capital"`
	Cash             float64             `yaml:"cash" json:"cash"`
	Positions        map[string]Position `yaml:"positions" json:"positions"`
	TotalEquity      float64             `yaml:"total_equity" json:"total_equity"`
	TotalPnl         float64             `yaml:"total_pnl" json:"total_pnl"`
	RealizedPnl      float64             `yaml:"realized_pnl" json:"realized_pnl"`
	UnrealizedPnl    float64             `yaml:"unrealized_pnl" json:"unrealized_pnl"`
	TotalCommissions float64             `yaml:"total_commissions" json:"total_commissions"`
}

// NewPortfolio creates a portfolio holding only cash.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{
		InitialCapital: initialCapital,
		Cash:           initialCapital,
		Positions:      make(map[string]Position),
		TotalEquity:    initialCapital,
	}
}

// ApplyFill books a fill: cash moves by the fill's net amount, the symbol's
// position absorbs the quantity, and realized P&L accumulates. Returns the
// realized P&L booked by this fill.
func (p *Portfolio) ApplyFill(fill Fill) float64 {
	p.Cash = decimal.NewFromFloat(p.Cash).Add(decimal.NewFromFloat(fill.NetAmount())).InexactFloat64()
	p.TotalCommissions = decimal.NewFromFloat(p.TotalCommissions).Add(decimal.NewFromFloat(fill.Commission)).InexactFloat64()

	pos, ok := p.Positions[fill.Symbol]
	if !ok {
		pos = NewPosition(fill.Symbol)
	}

	realized := pos.ApplyFill(fill)
	p.RealizedPnl = decimal.NewFromFloat(p.RealizedPnl).Add(decimal.NewFromFloat(realized)).InexactFloat64()

	if pos.IsFlat() {
		delete(p.Positions, fill.Symbol)
	} else {
		p.Positions[fill.Symbol] = pos
	}

	p.updateTotals()

	return realized
}

// SeedPosition installs a position at cost before a run starts. Cash is
// untouched; equity grows by the seeded value.
func (p *Portfolio) SeedPosition(symbol string, quantity float64, price float64, asOf time.Time) {
	p.Positions[symbol] = Position{
		Symbol:        symbol,
		Quantity:      quantity,
		AvgEntryPrice: price,
		MarketPrice:   price,
		LastUpdated:   asOf,
	}

	p.updateTotals()
}

// UpdateMarketPrices marks every open position present in prices and
// recomputes the portfolio totals.
func (p *Portfolio) UpdateMarketPrices(prices map[string]float64) {
	for symbol, price := range prices {
		pos, ok := p.Positions[symbol]
		if !ok {
			continue
		}

		pos.UpdateMarketPrice(price)
		p.Positions[symbol] = pos
	}

	p.updateTotals()
}

func (p *Portfolio) updateTotals() {
	unrealized := decimal.Zero
	value := decimal.Zero

	for _, pos := range p.Positions {
		unrealized = unrealized.Add(decimal.NewFromFloat(pos.UnrealizedPnl()))
		value = value.Add(decimal.NewFromFloat(pos.MarketValue()))
	}

	p.UnrealizedPnl = unrealized.InexactFloat64()
	p.TotalEquity = decimal.NewFromFloat(p.Cash).Add(value).InexactFloat64()
	p.TotalPnl = decimal.NewFromFloat(p.RealizedPnl).Add(unrealized).InexactFloat64()
}

// GetPosition returns the position for symbol and whether one is open.
func (p *Portfolio) GetPosition(symbol string) (Position, bool) {
	pos, ok := p.Positions[symbol]

	return pos, ok
}

// PositionsValue is the signed sum of all open position values; short
// positions subtract.
func (p *Portfolio) PositionsValue() float64 {
	value := decimal.Zero
	for _, pos := range p.Positions {
		value = value.Add(decimal.NewFromFloat(pos.MarketValue()))
	}

	return value.InexactFloat64()
}

// AvailableCash is the cash free to spend on new orders.
func (p *Portfolio) AvailableCash() float64 {
	return p.Cash
}

// TotalReturn is the fractional return on initial capital.
func (p *Portfolio) TotalReturn() float64 {
	if p.InitialCapital == 0 {
		return 0
	}

	return decimal.NewFromFloat(p.TotalEquity).
		Sub(decimal.NewFromFloat(p.InitialCapital)).
		Div(decimal.NewFromFloat(p.InitialCapital)).
		InexactFloat64()
}
