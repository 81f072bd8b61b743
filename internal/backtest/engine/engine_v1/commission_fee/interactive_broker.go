package commission_fee

import "github.com/lanternworks/lantern-backtest/internal/types"

// InteractiveBrokerCommissionFee models the IBKR fixed pricing tier for US
// equities: half a cent per share with a one dollar minimum per fill.
type InteractiveBrokerCommissionFee struct {
}

func NewInteractiveBrokerCommissionFee() CommissionFee {
	return &InteractiveBrokerCommissionFee{}
}

func (c *InteractiveBrokerCommissionFee) Calculate(quantity float64, price float64, liquidity types.Liquidity) float64 {
	fee := 0.005 * quantity
	if fee < 1.0 {
		return 1.0
	}

	return fee
}
