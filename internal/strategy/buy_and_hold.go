package strategy

import (
	"fmt"

	"github.com/lanternworks/lantern-backtest/internal/log"
	"github.com/lanternworks/lantern-backtest/internal/types"
)

// BuyAndHoldParams configures the buy_and_hold strategy.
type BuyAndHoldParams struct {
	// Symbol is the ticker to hold.
	Symbol string `yaml:"symbol" validate:"required"`
	// InvestRatio is the fraction of cash invested on entry.
	InvestRatio float64 `yaml:"invest_ratio" validate:"gt=0,lte=1"`
}

func defaultBuyAndHoldParams() BuyAndHoldParams {
	return BuyAndHoldParams{InvestRatio: 0.95}
}

// BuyAndHold buys the configured symbol on its first bar and never trades
// again.
type BuyAndHold struct {
	params BuyAndHoldParams
	opened bool
}

func NewBuyAndHold() *BuyAndHold {
	return &BuyAndHold{params: defaultBuyAndHoldParams()}
}

func (s *BuyAndHold) Name() string {
	return "buy_and_hold"
}

func (s *BuyAndHold) Initialize(config string) error {
	params := defaultBuyAndHoldParams()
	if err := parseParams(s.Name(), config, &params); err != nil {
		return err
	}

	s.params = params
	s.opened = false

	return nil
}

func (s *BuyAndHold) OnEvent(event types.Event, ctx Context) ([]types.OrderIntent, error) {
	if s.opened {
		return nil, nil
	}

	bar, ok := event.Bar(s.params.Symbol)
	if !ok {
		return nil, nil
	}

	quantity := wholeUnits(ctx.Portfolio.Cash(), s.params.InvestRatio, bar.Close)
	if quantity <= 0 {
		return nil, nil
	}

	s.opened = true

	entry := log.LogEntry{
		Timestamp: ctx.Time,
		Symbol:    s.params.Symbol,
		Level:     types.LogLevelInfo,
		Message:   fmt.Sprintf("allocating %.0f units of %s", quantity, s.params.Symbol),
	}
	if err := ctx.Log.Log(entry); err != nil {
		return nil, err
	}

	return []types.OrderIntent{{
		Symbol:    s.params.Symbol,
		Side:      types.SideBuy,
		OrderType: types.OrderTypeMarket,
		Quantity:  quantity,
		Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: "initial allocation"},
	}}, nil
}
