package strategy

import (
	"fmt"
	"math"

	"github.com/lanternworks/lantern-backtest/internal/log"
	"github.com/lanternworks/lantern-backtest/internal/types"
)

// MeanReversionParams configures the mean_reversion strategy.
type MeanReversionParams struct {
	Symbol string `yaml:"symbol" validate:"required"`
	// LookbackDays is the window for the rolling mean and deviation.
	LookbackDays int `yaml:"lookback_days" validate:"gt=1"`
	// EntryThreshold is the z-score below which the strategy scales in, in
	// standard deviations.
	EntryThreshold float64 `yaml:"entry_threshold" validate:"gt=0"`
	// ExitThreshold is the z-score above which longs scale out. Must sit
	// inside the entry band.
	ExitThreshold float64 `yaml:"exit_threshold" validate:"gte=0,ltfield=EntryThreshold"`
	// PositionRatio is the equity fraction traded per step.
	PositionRatio float64 `yaml:"position_ratio" validate:"gt=0,lte=1"`
	// MaxRatio caps the total equity fraction held.
	MaxRatio float64 `yaml:"max_ratio" validate:"gt=0,lte=1,gtefield=PositionRatio"`
}

func defaultMeanReversionParams() MeanReversionParams {
	return MeanReversionParams{
		LookbackDays:   20,
		EntryThreshold: 2,
		ExitThreshold:  1,
		PositionRatio:  0.25,
		MaxRatio:       0.95,
	}
}

// MeanReversion scales into a long position while price sits below the
// rolling mean by more than EntryThreshold deviations, and scales out once
// price recovers past the exit band. Long-only, step-wise in PositionRatio
// increments.
type MeanReversion struct {
	params MeanReversionParams
	buffer *MarketDataBuffer
}

func NewMeanReversion() *MeanReversion {
	s := &MeanReversion{params: defaultMeanReversionParams()}
	s.reset()

	return s
}

func (s *MeanReversion) Name() string {
	return "mean_reversion"
}

func (s *MeanReversion) Initialize(config string) error {
	params := defaultMeanReversionParams()
	if err := parseParams(s.Name(), config, &params); err != nil {
		return err
	}

	s.params = params
	s.reset()

	return nil
}

func (s *MeanReversion) reset() {
	s.buffer = NewMarketDataBuffer(s.params.LookbackDays + 1)
}

func (s *MeanReversion) OnEvent(event types.Event, ctx Context) ([]types.OrderIntent, error) {
	bar, ok := event.Bar(s.params.Symbol)
	if !ok {
		return nil, nil
	}

	s.buffer.Push(bar)

	z, ok := s.zScore()
	if !ok {
		return nil, nil
	}

	position, _ := ctx.Portfolio.Position(s.params.Symbol)
	step := wholeUnits(ctx.Portfolio.Equity(), s.params.PositionRatio, bar.Close)

	switch {
	case z < -s.params.EntryThreshold:
		maxQuantity := wholeUnits(ctx.Portfolio.Equity(), s.params.MaxRatio, bar.Close)

		room := maxQuantity - position.Quantity
		quantity := math.Min(step, room)

		// Never buy beyond what cash covers
		quantity = math.Min(quantity, math.Floor(ctx.Portfolio.Cash()/bar.Close))
		if quantity < 1 {
			return nil, nil
		}

		if err := ctx.Log.Log(log.LogEntry{
			Timestamp: ctx.Time,
			Symbol:    s.params.Symbol,
			Level:     types.LogLevelInfo,
			Message:   fmt.Sprintf("z-score %.2f below entry band, scaling in %.0f units", z, quantity),
		}); err != nil {
			return nil, err
		}

		return []types.OrderIntent{{
			Symbol:    s.params.Symbol,
			Side:      types.SideBuy,
			OrderType: types.OrderTypeMarket,
			Quantity:  quantity,
			Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: "mean reversion entry"},
		}}, nil

	case z > -s.params.ExitThreshold && position.Quantity > 0:
		quantity := math.Min(position.Quantity, step)
		if quantity < 1 {
			quantity = position.Quantity
		}

		if err := ctx.Log.Log(log.LogEntry{
			Timestamp: ctx.Time,
			Symbol:    s.params.Symbol,
			Level:     types.LogLevelInfo,
			Message:   fmt.Sprintf("z-score %.2f back inside band, scaling out %.0f units", z, quantity),
		}); err != nil {
			return nil, err
		}

		return []types.OrderIntent{{
			Symbol:    s.params.Symbol,
			Side:      types.SideSell,
			OrderType: types.OrderTypeMarket,
			Quantity:  quantity,
			Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: "mean reversion exit"},
		}}, nil
	}

	return nil, nil
}

// zScore is the current close's distance from the rolling mean in population
// standard deviations.
func (s *MeanReversion) zScore() (float64, bool) {
	mean, ok := s.buffer.SMA(s.params.Symbol, s.params.LookbackDays)
	if !ok {
		return 0, false
	}

	stdDev, ok := s.buffer.StdDev(s.params.Symbol, s.params.LookbackDays)
	if !ok || stdDev == 0 {
		return 0, false
	}

	last, ok := s.buffer.Last(s.params.Symbol)
	if !ok {
		return 0, false
	}

	return (last.Close - mean) / stdDev, true
}
