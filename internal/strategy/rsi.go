package strategy

import (
	"fmt"

	"github.com/lanternworks/lantern-backtest/internal/log"
	"github.com/lanternworks/lantern-backtest/internal/types"
)

// RSIParams configures the rsi strategy.
type RSIParams struct {
	Symbol string `yaml:"symbol" validate:"required"`
	// Period is the RSI window in bars.
	Period int `yaml:"period" validate:"gt=0"`
	// Oversold and Overbought are the entry and exit levels.
	Oversold   float64 `yaml:"oversold" validate:"gt=0,ltfield=Overbought"`
	Overbought float64 `yaml:"overbought" validate:"gt=0,lte=100"`
	// InvestRatio is the target equity fraction held while oversold.
	InvestRatio float64 `yaml:"invest_ratio" validate:"gt=0,lte=1"`
}

func defaultRSIParams() RSIParams {
	return RSIParams{
		Period:      14,
		Oversold:    30,
		Overbought:  70,
		InvestRatio: 0.95,
	}
}

// RSI buys when the relative strength index drops below the oversold level
// and exits the long once it rises above the overbought level.
type RSI struct {
	params RSIParams
	buffer *MarketDataBuffer
}

func NewRSI() *RSI {
	s := &RSI{params: defaultRSIParams()}
	s.reset()

	return s
}

func (s *RSI) Name() string {
	return "rsi"
}

func (s *RSI) Initialize(config string) error {
	params := defaultRSIParams()
	if err := parseParams(s.Name(), config, &params); err != nil {
		return err
	}

	s.params = params
	s.reset()

	return nil
}

func (s *RSI) reset() {
	s.buffer = NewMarketDataBuffer(s.params.Period + 1)
}

func (s *RSI) OnEvent(event types.Event, ctx Context) ([]types.OrderIntent, error) {
	bar, ok := event.Bar(s.params.Symbol)
	if !ok {
		return nil, nil
	}

	s.buffer.Push(bar)

	rsi, ok := s.buffer.RSI(s.params.Symbol, s.params.Period)
	if !ok {
		return nil, nil
	}

	position, _ := ctx.Portfolio.Position(s.params.Symbol)

	switch {
	case rsi < s.params.Oversold:
		target := wholeUnits(ctx.Portfolio.Equity(), s.params.InvestRatio, bar.Close)

		quantity := target - position.Quantity
		if quantity < 1 {
			return nil, nil
		}

		if err := ctx.Log.Log(log.LogEntry{
			Timestamp: ctx.Time,
			Symbol:    s.params.Symbol,
			Level:     types.LogLevelInfo,
			Message:   fmt.Sprintf("RSI %.1f below %.0f, buying %.0f units", rsi, s.params.Oversold, quantity),
		}); err != nil {
			return nil, err
		}

		return []types.OrderIntent{{
			Symbol:    s.params.Symbol,
			Side:      types.SideBuy,
			OrderType: types.OrderTypeMarket,
			Quantity:  quantity,
			Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: "rsi oversold"},
		}}, nil

	case rsi > s.params.Overbought && position.Quantity > 0:
		if err := ctx.Log.Log(log.LogEntry{
			Timestamp: ctx.Time,
			Symbol:    s.params.Symbol,
			Level:     types.LogLevelInfo,
			Message:   fmt.Sprintf("RSI %.1f above %.0f, closing position", rsi, s.params.Overbought),
		}); err != nil {
			return nil, err
		}

		return []types.OrderIntent{{
			Symbol:    s.params.Symbol,
			Side:      types.SideSell,
			OrderType: types.OrderTypeMarket,
			Quantity:  position.Quantity,
			Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: "rsi overbought"},
		}}, nil
	}

	return nil, nil
}
