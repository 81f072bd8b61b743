package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"github.com/moznion/go-optional"
)

type Side string

type OrderType string

type OrderStatus string

type TimeInForce string

type Liquidity string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusSubmitted       OrderStatus = "SUBMITTED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceDay TimeInForce = "DAY"
	TimeInForceIOC TimeInForce = "IOC"
)

const (
	// LiquidityMaker marks fills of resting limit orders.
	LiquidityMaker Liquidity = "MAKER"
	// LiquidityTaker marks fills that cross the market.
	LiquidityTaker Liquidity = "TAKER"
)

const (
	OrderReasonStrategy           string = "strategy"
	OrderReasonRebalance          string = "rebalance"
	OrderReasonStopLoss           string = "stop_loss"
	OrderReasonTakeProfit         string = "take_profit"
	OrderReasonInsufficientFunds  string = "insufficient_funds"
	OrderReasonInvalidQuantity    string = "invalid_quantity"
	OrderReasonInvalidPrice       string = "invalid_price"
	OrderReasonInvalidOrder       string = "invalid_order"
	OrderReasonMarketClosed       string = "market_closed"
	OrderReasonFractionalQuantity string = "fractional_quantity"
	OrderReasonExpired            string = "expired"
	OrderReasonImmediateOrCancel  string = "immediate_or_cancel"
	OrderReasonCancelled          string = "cancelled"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}

	return SideBuy
}

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == SideBuy {
		return 1
	}

	return -1
}

type Reason struct {
	Reason  string `yaml:"reason" json:"reason" validate:"required"`
	Message string `yaml:"message" json:"message"`
}

// OrderIntent is what a strategy asks for: the immutable request half of an
// order. The execution simulator owns the resulting Order until it resolves.
type OrderIntent struct {
	Symbol      string                   `yaml:"symbol" json:"symbol" validate:"required"`
	Side        Side                     `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	OrderType   OrderType                `yaml:"order_type" json:"order_type" validate:"required,oneof=MARKET LIMIT STOP STOP_LIMIT"`
	Quantity    float64                  `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	LimitPrice  optional.Option[float64] `yaml:"limit_price" json:"limit_price"`
	StopPrice   optional.Option[float64] `yaml:"stop_price" json:"stop_price"`
	TimeInForce TimeInForce              `yaml:"time_in_force" json:"time_in_force" validate:"omitempty,oneof=GTC DAY IOC"`
	Reason      Reason                   `yaml:"reason" json:"reason"`
}

// Validate checks field constraints and the order type/price combination.
func (oi *OrderIntent) Validate() error {
	validate := validator.New()
	if err := validate.Struct(oi); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order intent", err)
	}

	needsLimit := oi.OrderType == OrderTypeLimit || oi.OrderType == OrderTypeStopLimit
	needsStop := oi.OrderType == OrderTypeStop || oi.OrderType == OrderTypeStopLimit

	if needsLimit && oi.LimitPrice.IsNone() {
		return errors.Newf(errors.ErrCodeInvalidOrder, "%s order requires a limit price", oi.OrderType)
	}

	if needsStop && oi.StopPrice.IsNone() {
		return errors.Newf(errors.ErrCodeInvalidOrder, "%s order requires a stop price", oi.OrderType)
	}

	if oi.OrderType == OrderTypeMarket && (oi.LimitPrice.IsSome() || oi.StopPrice.IsSome()) {
		return errors.New(errors.ErrCodeInvalidOrder, "market order cannot carry limit or stop prices")
	}

	if oi.LimitPrice.IsSome() && oi.LimitPrice.Unwrap() <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "limit price must be positive")
	}

	if oi.StopPrice.IsSome() && oi.StopPrice.Unwrap() <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "stop price must be positive")
	}

	return nil
}

// Order is an intent accepted by the execution simulator, tracked through its
// lifecycle: PENDING -> SUBMITTED -> {PARTIALLY_FILLED, FILLED, CANCELLED,
// REJECTED, EXPIRED}.
type Order struct {
	OrderIntent `yaml:",inline" json:",inline"`

	ID                string                   `yaml:"id" json:"id"`
	StrategyName      string                   `yaml:"strategy_name" json:"strategy_name"`
	SubmittedAt       time.Time                `yaml:"submitted_at" json:"submitted_at"`
	Status            OrderStatus              `yaml:"status" json:"status"`
	FilledQuantity    float64                  `yaml:"filled_quantity" json:"filled_quantity"`
	RemainingQuantity float64                  `yaml:"remaining_quantity" json:"remaining_quantity"`
	AvgFillPrice      optional.Option[float64] `yaml:"avg_fill_price" json:"avg_fill_price"`
}

// NewOrder wraps an intent into a fresh Order owned by the simulator.
func NewOrder(intent OrderIntent, strategyName string, submittedAt time.Time) Order {
	if intent.TimeInForce == "" {
		intent.TimeInForce = TimeInForceGTC
	}

	return Order{
		OrderIntent:       intent,
		ID:                uuid.New().String(),
		StrategyName:      strategyName,
		SubmittedAt:       submittedAt,
		Status:            OrderStatusPending,
		FilledQuantity:    0,
		RemainingQuantity: intent.Quantity,
		AvgFillPrice:      optional.None[float64](),
	}
}

// IsActive reports whether the order can still fill.
func (o *Order) IsActive() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusSubmitted, OrderStatusPartiallyFilled:
		return true
	default:
		return false
	}
}

func (o *Order) IsBuy() bool {
	return o.Side == SideBuy
}

func (o *Order) IsSell() bool {
	return o.Side == SideSell
}

// Fill applies an execution of quantity at price, recomputing the weighted
// average fill price and the order status. Quantity beyond the remaining
// amount is ignored.
func (o *Order) Fill(quantity float64, price float64) {
	if quantity > o.RemainingQuantity {
		quantity = o.RemainingQuantity
	}

	totalFilled := o.FilledQuantity + quantity
	if o.AvgFillPrice.IsSome() && o.FilledQuantity > 0 {
		avg := o.AvgFillPrice.Unwrap()
		o.AvgFillPrice = optional.Some((avg*o.FilledQuantity + price*quantity) / totalFilled)
	} else {
		o.AvgFillPrice = optional.Some(price)
	}

	o.FilledQuantity = totalFilled
	o.RemainingQuantity = o.Quantity - totalFilled

	if o.RemainingQuantity == 0 {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
}

// Cancel marks an active order cancelled; terminal orders are left unchanged.
func (o *Order) Cancel() {
	if o.IsActive() {
		o.Status = OrderStatusCancelled
	}
}
