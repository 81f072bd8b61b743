package commission_fee

import "github.com/lanternworks/lantern-backtest/internal/types"

// Default standard model parameters: a tenth of a cent per share, five basis
// points of notional, floored at one dollar per fill.
const (
	DefaultPerShare   = 0.001
	DefaultPercentage = 0.0005
	DefaultMinimum    = 1.0
)

// StandardCommissionFee charges a per-share fee plus a percentage of notional,
// with a minimum fee per fill.
type StandardCommissionFee struct {
	perShare   float64
	percentage float64
	minimum    float64
}

func NewStandardCommissionFee(perShare float64, percentage float64, minimum float64) CommissionFee {
	return &StandardCommissionFee{
		perShare:   perShare,
		percentage: percentage,
		minimum:    minimum,
	}
}

func (c *StandardCommissionFee) Calculate(quantity float64, price float64, liquidity types.Liquidity) float64 {
	fee := c.perShare*quantity + c.percentage*quantity*price
	if fee < c.minimum {
		return c.minimum
	}

	return fee
}
