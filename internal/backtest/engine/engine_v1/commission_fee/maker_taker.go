package commission_fee

import "github.com/lanternworks/lantern-backtest/internal/types"

// Default maker/taker rates: two basis points for resting orders, four for
// orders that cross the market.
const (
	DefaultMakerRate = 0.0002
	DefaultTakerRate = 0.0004
)

// MakerTakerCommissionFee charges a percentage of notional that depends on
// whether the fill added or removed liquidity. No minimum fee, so fractional
// quantities stay viable.
type MakerTakerCommissionFee struct {
	makerRate float64
	takerRate float64
}

func NewMakerTakerCommissionFee(makerRate float64, takerRate float64) CommissionFee {
	return &MakerTakerCommissionFee{
		makerRate: makerRate,
		takerRate: takerRate,
	}
}

func (c *MakerTakerCommissionFee) Calculate(quantity float64, price float64, liquidity types.Liquidity) float64 {
	rate := c.takerRate
	if liquidity == types.LiquidityMaker {
		rate = c.makerRate
	}

	return quantity * price * rate
}
