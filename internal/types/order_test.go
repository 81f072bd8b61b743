package types

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
)

func TestOrderIntentValidate(t *testing.T) {
	tests := []struct {
		name        string
		intent      OrderIntent
		shouldError bool
	}{
		{
			name: "valid market order",
			intent: OrderIntent{
				Symbol:    "AAPL",
				Side:      SideBuy,
				OrderType: OrderTypeMarket,
				Quantity:  100,
				Reason:    Reason{Reason: OrderReasonStrategy, Message: "test"},
			},
			shouldError: false,
		},
		{
			name: "valid limit order",
			intent: OrderIntent{
				Symbol:     "AAPL",
				Side:       SideSell,
				OrderType:  OrderTypeLimit,
				Quantity:   50,
				LimitPrice: optional.Some(105.0),
				Reason:     Reason{Reason: OrderReasonStrategy, Message: "test"},
			},
			shouldError: false,
		},
		{
			name: "valid stop order",
			intent: OrderIntent{
				Symbol:    "AAPL",
				Side:      SideSell,
				OrderType: OrderTypeStop,
				Quantity:  50,
				StopPrice: optional.Some(95.0),
				Reason:    Reason{Reason: OrderReasonStopLoss, Message: "test"},
			},
			shouldError: false,
		},
		{
			name: "valid stop limit order",
			intent: OrderIntent{
				Symbol:     "AAPL",
				Side:       SideSell,
				OrderType:  OrderTypeStopLimit,
				Quantity:   50,
				StopPrice:  optional.Some(95.0),
				LimitPrice: optional.Some(94.5),
				Reason:     Reason{Reason: OrderReasonStopLoss, Message: "test"},
			},
			shouldError: false,
		},
		{
			name: "invalid - empty symbol",
			intent: OrderIntent{
				Symbol:    "",
				Side:      SideBuy,
				OrderType: OrderTypeMarket,
				Quantity:  100,
			},
			shouldError: true,
		},
		{
			name: "invalid - unknown side",
			intent: OrderIntent{
				Symbol:    "AAPL",
				Side:      Side("HOLD"),
				OrderType: OrderTypeMarket,
				Quantity:  100,
			},
			shouldError: true,
		},
		{
			name: "invalid - zero quantity",
			intent: OrderIntent{
				Symbol:    "AAPL",
				Side:      SideBuy,
				OrderType: OrderTypeMarket,
				Quantity:  0,
			},
			shouldError: true,
		},
		{
			name: "invalid - negative quantity",
			intent: OrderIntent{
				Symbol:    "AAPL",
				Side:      SideBuy,
				OrderType: OrderTypeMarket,
				Quantity:  -10,
			},
			shouldError: true,
		},
		{
			name: "invalid - limit order without limit price",
			intent: OrderIntent{
				Symbol:    "AAPL",
				Side:      SideBuy,
				OrderType: OrderTypeLimit,
				Quantity:  100,
			},
			shouldError: true,
		},
		{
			name: "invalid - stop order without stop price",
			intent: OrderIntent{
				Symbol:    "AAPL",
				Side:      SideSell,
				OrderType: OrderTypeStop,
				Quantity:  100,
			},
			shouldError: true,
		},
		{
			name: "invalid - stop limit order missing limit price",
			intent: OrderIntent{
				Symbol:    "AAPL",
				Side:      SideSell,
				OrderType: OrderTypeStopLimit,
				Quantity:  100,
				StopPrice: optional.Some(95.0),
			},
			shouldError: true,
		},
		{
			name: "invalid - market order with limit price",
			intent: OrderIntent{
				Symbol:     "AAPL",
				Side:       SideBuy,
				OrderType:  OrderTypeMarket,
				Quantity:   100,
				LimitPrice: optional.Some(105.0),
			},
			shouldError: true,
		},
		{
			name: "invalid - non-positive limit price",
			intent: OrderIntent{
				Symbol:     "AAPL",
				Side:       SideBuy,
				OrderType:  OrderTypeLimit,
				Quantity:   100,
				LimitPrice: optional.Some(0.0),
			},
			shouldError: true,
		},
		{
			name: "invalid - unknown time in force",
			intent: OrderIntent{
				Symbol:      "AAPL",
				Side:        SideBuy,
				OrderType:   OrderTypeMarket,
				Quantity:    100,
				TimeInForce: TimeInForce("GTD"),
			},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if tt.shouldError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewOrderDefaults(t *testing.T) {
	submittedAt := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	order := NewOrder(OrderIntent{
		Symbol:    "AAPL",
		Side:      SideBuy,
		OrderType: OrderTypeMarket,
		Quantity:  100,
	}, "buy_and_hold", submittedAt)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "buy_and_hold", order.StrategyName)
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, TimeInForceGTC, order.TimeInForce)
	assert.Equal(t, 100.0, order.RemainingQuantity)
	assert.Equal(t, 0.0, order.FilledQuantity)
	assert.True(t, order.AvgFillPrice.IsNone())
	assert.True(t, order.IsActive())
	assert.True(t, order.IsBuy())
}

func TestOrderFillWeightedAverage(t *testing.T) {
	order := NewOrder(OrderIntent{
		Symbol:     "AAPL",
		Side:       SideBuy,
		OrderType:  OrderTypeLimit,
		Quantity:   100,
		LimitPrice: optional.Some(101.0),
	}, "test", time.Now())

	order.Fill(40, 100.0)
	assert.Equal(t, OrderStatusPartiallyFilled, order.Status)
	assert.Equal(t, 40.0, order.FilledQuantity)
	assert.Equal(t, 60.0, order.RemainingQuantity)
	assert.InDelta(t, 100.0, order.AvgFillPrice.Unwrap(), 1e-9)

	order.Fill(60, 101.0)
	assert.Equal(t, OrderStatusFilled, order.Status)
	assert.Equal(t, 100.0, order.FilledQuantity)
	assert.Equal(t, 0.0, order.RemainingQuantity)
	// (40*100 + 60*101) / 100
	assert.InDelta(t, 100.6, order.AvgFillPrice.Unwrap(), 1e-9)
	assert.False(t, order.IsActive())
}

func TestOrderFillClampsToRemaining(t *testing.T) {
	order := NewOrder(OrderIntent{
		Symbol:    "AAPL",
		Side:      SideSell,
		OrderType: OrderTypeMarket,
		Quantity:  10,
	}, "test", time.Now())

	order.Fill(25, 99.0)

	assert.Equal(t, OrderStatusFilled, order.Status)
	assert.Equal(t, 10.0, order.FilledQuantity)
	assert.Equal(t, 0.0, order.RemainingQuantity)
}

func TestOrderCancel(t *testing.T) {
	order := NewOrder(OrderIntent{
		Symbol:    "AAPL",
		Side:      SideBuy,
		OrderType: OrderTypeMarket,
		Quantity:  10,
	}, "test", time.Now())

	order.Cancel()
	assert.Equal(t, OrderStatusCancelled, order.Status)

	// Terminal orders stay terminal.
	order.Status = OrderStatusFilled
	order.Cancel()
	assert.Equal(t, OrderStatusFilled, order.Status)
}

func TestSideHelpers(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.Equal(t, 1.0, SideBuy.Sign())
	assert.Equal(t, -1.0, SideSell.Sign())
}

func TestFillNetAmount(t *testing.T) {
	order := NewOrder(OrderIntent{
		Symbol:    "AAPL",
		Side:      SideBuy,
		OrderType: OrderTypeMarket,
		Quantity:  100,
	}, "test", time.Now())

	buy := NewFill(order, 100, 50.0, 1.25, LiquidityTaker, time.Now())
	assert.InDelta(t, 5000.0, buy.GrossAmount(), 1e-9)
	assert.InDelta(t, -5001.25, buy.NetAmount(), 1e-9)

	order.Side = SideSell
	sell := NewFill(order, 100, 50.0, 1.25, LiquidityMaker, time.Now())
	assert.InDelta(t, 4998.75, sell.NetAmount(), 1e-9)
}
