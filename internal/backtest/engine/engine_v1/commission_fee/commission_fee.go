package commission_fee

import "github.com/lanternworks/lantern-backtest/internal/types"

type CommissionFee interface {
	// Calculate the commission fee in USD for a fill of the given quantity at the
	// given price. Liquidity tells the model whether the fill added or removed
	// liquidity; models that do not differentiate ignore it.
	Calculate(quantity float64, price float64, liquidity types.Liquidity) float64
}

type Broker string

const (
	BrokerStandard          Broker = "standard"
	BrokerMakerTaker        Broker = "maker_taker"
	BrokerInteractiveBroker Broker = "interactive_broker"
	BrokerZero              Broker = "zero_commission"
)

var AllBrokers = []any{
	BrokerStandard,
	BrokerMakerTaker,
	BrokerInteractiveBroker,
	BrokerZero,
}

func GetCommissionFeeHandler(broker Broker) CommissionFee {
	switch broker {
	case BrokerStandard:
		return NewStandardCommissionFee(DefaultPerShare, DefaultPercentage, DefaultMinimum)
	case BrokerMakerTaker:
		return NewMakerTakerCommissionFee(DefaultMakerRate, DefaultTakerRate)
	case BrokerInteractiveBroker:
		return NewInteractiveBrokerCommissionFee()
	case BrokerZero:
		return NewZeroCommissionFee()
	default:
		return NewZeroCommissionFee()
	}
}
