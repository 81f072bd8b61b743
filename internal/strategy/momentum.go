package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/lanternworks/lantern-backtest/internal/log"
	"github.com/lanternworks/lantern-backtest/internal/types"
)

// MomentumParams configures the momentum strategy.
type MomentumParams struct {
	Symbol string `yaml:"symbol" validate:"required"`
	// LookbackDays is the return window in bars.
	LookbackDays int `yaml:"lookback_days" validate:"gt=0"`
	// Threshold is the absolute momentum that triggers action, in percent.
	Threshold float64 `yaml:"threshold" validate:"gt=0"`
	// RebalanceDays is the minimum number of day-ends between rebalances.
	RebalanceDays int `yaml:"rebalance_days" validate:"gt=0"`
	// InvestRatio is the target fraction of equity held while momentum is
	// positive.
	InvestRatio float64 `yaml:"invest_ratio" validate:"gt=0,lte=1"`
}

func defaultMomentumParams() MomentumParams {
	return MomentumParams{
		LookbackDays:  10,
		Threshold:     5,
		RebalanceDays: 5,
		InvestRatio:   0.95,
	}
}

// Momentum holds the symbol while its lookback return exceeds the threshold
// and exits when it turns below the negative threshold. Positions are only
// adjusted every RebalanceDays day-ends.
type Momentum struct {
	params             MomentumParams
	buffer             *MarketDataBuffer
	daysSinceRebalance int
}

func NewMomentum() *Momentum {
	s := &Momentum{params: defaultMomentumParams()}
	s.reset()

	return s
}

func (s *Momentum) Name() string {
	return "momentum"
}

func (s *Momentum) Initialize(config string) error {
	params := defaultMomentumParams()
	if err := parseParams(s.Name(), config, &params); err != nil {
		return err
	}

	s.params = params
	s.reset()

	return nil
}

func (s *Momentum) reset() {
	s.buffer = NewMarketDataBuffer(s.params.LookbackDays + 1)
	s.daysSinceRebalance = 0
}

func (s *Momentum) OnEvent(event types.Event, ctx Context) ([]types.OrderIntent, error) {
	bar, ok := event.Bar(s.params.Symbol)
	if !ok {
		return nil, nil
	}

	s.buffer.Push(bar)

	if s.daysSinceRebalance < s.params.RebalanceDays {
		return nil, nil
	}

	momentum, ok := s.momentum()
	if !ok {
		return nil, nil
	}

	s.daysSinceRebalance = 0

	position, _ := ctx.Portfolio.Position(s.params.Symbol)

	switch {
	case momentum > s.params.Threshold:
		target := wholeUnits(ctx.Portfolio.Equity(), s.params.InvestRatio, bar.Close)

		diff := target - position.Quantity
		if math.Abs(diff) < 1 {
			return nil, nil
		}

		side := types.SideBuy
		if diff < 0 {
			side = types.SideSell
		}

		if err := ctx.Log.Log(log.LogEntry{
			Timestamp: ctx.Time,
			Symbol:    s.params.Symbol,
			Level:     types.LogLevelInfo,
			Message:   fmt.Sprintf("momentum %.2f%% above threshold, rebalancing to %.0f units", momentum, target),
		}); err != nil {
			return nil, err
		}

		return []types.OrderIntent{{
			Symbol:    s.params.Symbol,
			Side:      side,
			OrderType: types.OrderTypeMarket,
			Quantity:  math.Abs(diff),
			Reason:    types.Reason{Reason: types.OrderReasonRebalance, Message: "momentum rebalance"},
		}}, nil

	case momentum < -s.params.Threshold && position.Quantity > 0:
		if err := ctx.Log.Log(log.LogEntry{
			Timestamp: ctx.Time,
			Symbol:    s.params.Symbol,
			Level:     types.LogLevelInfo,
			Message:   fmt.Sprintf("momentum %.2f%% below threshold, closing position", momentum),
		}); err != nil {
			return nil, err
		}

		return []types.OrderIntent{{
			Symbol:    s.params.Symbol,
			Side:      types.SideSell,
			OrderType: types.OrderTypeMarket,
			Quantity:  position.Quantity,
			Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: "momentum exit"},
		}}, nil
	}

	return nil, nil
}

// OnDayEnd advances the rebalance clock.
func (s *Momentum) OnDayEnd(_ time.Time, _ Context) ([]types.OrderIntent, error) {
	s.daysSinceRebalance++

	return nil, nil
}

// momentum is the percentage return over the lookback window.
func (s *Momentum) momentum() (float64, bool) {
	closes := s.buffer.Closes(s.params.Symbol, s.params.LookbackDays+1)
	if len(closes) < s.params.LookbackDays+1 {
		return 0, false
	}

	past := closes[0]
	if past == 0 {
		return 0, false
	}

	return (closes[len(closes)-1] - past) / past * 100, true
}
