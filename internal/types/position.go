package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position tracks one symbol's holdings under the average-cost method.
// Only the portfolio ledger mutates positions, and only by applying fills.
type Position struct {
	Symbol        string    `yaml:"symbol" json:"symbol"`
	Quantity      float64   `yaml:"quantity" json:"quantity"`
	AvgEntryPrice float64   `yaml:"avg_entry_price" json:"avg_entry_price"`
	MarketPrice   float64   `yaml:"market_price" json:"market_price"`
	RealizedPnl   float64   `yaml:"realized_pnl" json:"realized_pnl"`
	LastUpdated   time.Time `yaml:"last_updated" json:"last_updated"`
}

// NewPosition creates an empty position for a symbol.
func NewPosition(symbol string) Position {
	return Position{Symbol: symbol}
}

func (p *Position) IsLong() bool {
	return p.Quantity > 0
}

func (p *Position) IsShort() bool {
	return p.Quantity < 0
}

func (p *Position) IsFlat() bool {
	return p.Quantity == 0
}

// ApplyFill mutates the position for one fill and returns the realized P&L
// booked by that fill. Same-direction fills recompute the weighted average
// entry price; reducing fills book realized P&L against the average cost. A
// fill crossing through zero closes the position at average cost and opens
// the remainder at the fill price, so cash and position books stay conserved.
func (p *Position) ApplyFill(fill Fill) float64 {
	signed := decimal.NewFromFloat(fill.Quantity)
	if fill.Side == SideSell {
		signed = signed.Neg()
	}

	qty := decimal.NewFromFloat(p.Quantity)
	avg := decimal.NewFromFloat(p.AvgEntryPrice)
	price := decimal.NewFromFloat(fill.Price)
	realized := decimal.Zero

	switch {
	case qty.IsZero():
		// Opening a new position.
		qty = signed
		avg = price
	case qty.Sign() == signed.Sign():
		// Adding to the position: weighted average entry.
		totalCost := qty.Abs().Mul(avg).Add(signed.Abs().Mul(price))
		totalQty := qty.Abs().Add(signed.Abs())
		avg = totalCost.Div(totalQty)
		qty = qty.Add(signed)
	default:
		// Reducing, closing, or flipping.
		closed := decimal.Min(signed.Abs(), qty.Abs())

		if qty.Sign() > 0 {
			realized = price.Sub(avg).Mul(closed)
		} else {
			realized = avg.Sub(price).Mul(closed)
		}

		qty = qty.Add(signed)

		switch {
		case qty.IsZero():
			avg = decimal.Zero
		case qty.Sign() == signed.Sign():
			// Flipped through zero: the remainder opened at the fill price.
			avg = price
		}
	}

	p.Quantity = qty.InexactFloat64()
	p.AvgEntryPrice = avg.InexactFloat64()
	p.RealizedPnl = decimal.NewFromFloat(p.RealizedPnl).Add(realized).InexactFloat64()
	p.LastUpdated = fill.ExecutedAt

	return realized.InexactFloat64()
}

// UpdateMarketPrice marks the position to the latest price.
func (p *Position) UpdateMarketPrice(price float64) {
	p.MarketPrice = price
}

// MarketValue is the signed quantity x mark price. Short positions carry
// negative value, so cash plus market value always equals equity.
func (p *Position) MarketValue() float64 {
	qty := decimal.NewFromFloat(p.Quantity)

	return qty.Mul(decimal.NewFromFloat(p.MarketPrice)).InexactFloat64()
}

// UnrealizedPnl is the mark-to-market gain on the open quantity.
func (p *Position) UnrealizedPnl() float64 {
	if p.Quantity == 0 {
		return 0
	}

	mark := decimal.NewFromFloat(p.MarketPrice)
	avg := decimal.NewFromFloat(p.AvgEntryPrice)
	qty := decimal.NewFromFloat(p.Quantity)

	if p.Quantity > 0 {
		return mark.Sub(avg).Mul(qty).InexactFloat64()
	}

	return avg.Sub(mark).Mul(qty.Abs()).InexactFloat64()
}

// TotalPnl is realized plus unrealized P&L for this position.
func (p *Position) TotalPnl() float64 {
	return p.RealizedPnl + p.UnrealizedPnl()
}
