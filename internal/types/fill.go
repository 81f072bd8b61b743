package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fill is one realized execution. Immutable once created; the ledger consumes
// each fill exactly once.
type Fill struct {
	ID           string    `yaml:"id" json:"id"`
	OrderID      string    `yaml:"order_id" json:"order_id"`
	Symbol       string    `yaml:"symbol" json:"symbol"`
	Side         Side      `yaml:"side" json:"side"`
	Quantity     float64   `yaml:"quantity" json:"quantity"`
	Price        float64   `yaml:"price" json:"price"`
	Commission   float64   `yaml:"commission" json:"commission"`
	Liquidity    Liquidity `yaml:"liquidity" json:"liquidity"`
	ExecutedAt   time.Time `yaml:"executed_at" json:"executed_at"`
	StrategyName string    `yaml:"strategy_name" json:"strategy_name"`
}

// NewFill creates a fill for the given order execution.
func NewFill(order Order, quantity, price, commission float64, liquidity Liquidity, executedAt time.Time) Fill {
	return Fill{
		ID:           uuid.New().String(),
		OrderID:      order.ID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		Quantity:     quantity,
		Price:        price,
		Commission:   commission,
		Liquidity:    liquidity,
		ExecutedAt:   executedAt,
		StrategyName: order.StrategyName,
	}
}

// GrossAmount is quantity x price before costs.
func (f Fill) GrossAmount() float64 {
	gross := decimal.NewFromFloat(f.Quantity).Mul(decimal.NewFromFloat(f.Price))

	return gross.InexactFloat64()
}

// NetAmount is the signed cash delta of this fill: buys pay gross plus
// commission, sells receive gross minus commission.
func (f Fill) NetAmount() float64 {
	gross := decimal.NewFromFloat(f.Quantity).Mul(decimal.NewFromFloat(f.Price))
	commission := decimal.NewFromFloat(f.Commission)

	if f.Side == SideBuy {
		return gross.Add(commission).Neg().InexactFloat64()
	}

	return gross.Sub(commission).InexactFloat64()
}
