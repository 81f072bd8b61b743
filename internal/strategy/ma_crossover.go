package strategy

import (
	"fmt"

	"github.com/lanternworks/lantern-backtest/internal/log"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/moznion/go-optional"
)

// MACrossoverParams configures the ma_crossover strategy.
type MACrossoverParams struct {
	Symbol string `yaml:"symbol" validate:"required"`
	// ShortPeriod and LongPeriod are the SMA windows in bars.
	ShortPeriod int `yaml:"short_period" validate:"gt=0"`
	LongPeriod  int `yaml:"long_period" validate:"gt=0,gtfield=ShortPeriod"`
	// InvestRatio is the fraction of cash deployed on a golden cross.
	InvestRatio float64 `yaml:"invest_ratio" validate:"gt=0,lte=1"`
}

func defaultMACrossoverParams() MACrossoverParams {
	return MACrossoverParams{
		ShortPeriod: 10,
		LongPeriod:  20,
		InvestRatio: 0.95,
	}
}

// MACrossover goes long when the short SMA crosses above the long SMA and
// exits when it crosses back below. Long-only.
type MACrossover struct {
	params    MACrossoverParams
	buffer    *MarketDataBuffer
	prevShort float64
	prevLong  float64
	havePrev  bool
}

func NewMACrossover() *MACrossover {
	s := &MACrossover{params: defaultMACrossoverParams()}
	s.reset()

	return s
}

func (s *MACrossover) Name() string {
	return "ma_crossover"
}

func (s *MACrossover) Initialize(config string) error {
	params := defaultMACrossoverParams()
	if err := parseParams(s.Name(), config, &params); err != nil {
		return err
	}

	s.params = params
	s.reset()

	return nil
}

func (s *MACrossover) reset() {
	s.buffer = NewMarketDataBuffer(s.params.LongPeriod + 1)
	s.havePrev = false
}

func (s *MACrossover) OnEvent(event types.Event, ctx Context) ([]types.OrderIntent, error) {
	bar, ok := event.Bar(s.params.Symbol)
	if !ok {
		return nil, nil
	}

	s.buffer.Push(bar)

	short, _ := s.buffer.SMA(s.params.Symbol, s.params.ShortPeriod)
	long, okLong := s.buffer.SMA(s.params.Symbol, s.params.LongPeriod)
	if !okLong {
		return nil, nil
	}

	// The first complete window establishes the baseline, no trade yet
	if !s.havePrev {
		s.prevShort, s.prevLong, s.havePrev = short, long, true

		return nil, nil
	}

	golden := s.prevShort <= s.prevLong && short > long
	death := s.prevShort >= s.prevLong && short < long

	s.prevShort, s.prevLong = short, long

	position, _ := ctx.Portfolio.Position(s.params.Symbol)

	var intents []types.OrderIntent

	switch {
	case golden && position.Quantity <= 0:
		quantity := wholeUnits(ctx.Portfolio.Cash(), s.params.InvestRatio, bar.Close)
		if quantity <= 0 {
			return nil, nil
		}

		if err := s.signal(ctx, bar, types.SignalTypeEntryLong, "golden_cross",
			fmt.Sprintf("SMA%d crossed above SMA%d", s.params.ShortPeriod, s.params.LongPeriod)); err != nil {
			return nil, err
		}

		intents = append(intents, types.OrderIntent{
			Symbol:    s.params.Symbol,
			Side:      types.SideBuy,
			OrderType: types.OrderTypeMarket,
			Quantity:  quantity,
			Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: "golden cross"},
		})

	case death && position.Quantity > 0:
		if err := s.signal(ctx, bar, types.SignalTypeExitLong, "death_cross",
			fmt.Sprintf("SMA%d crossed below SMA%d", s.params.ShortPeriod, s.params.LongPeriod)); err != nil {
			return nil, err
		}

		intents = append(intents, types.OrderIntent{
			Symbol:    s.params.Symbol,
			Side:      types.SideSell,
			OrderType: types.OrderTypeMarket,
			Quantity:  position.Quantity,
			Reason:    types.Reason{Reason: types.OrderReasonStrategy, Message: "death cross"},
		})
	}

	return intents, nil
}

// signal records a crossover as a chart mark and a log entry.
func (s *MACrossover) signal(ctx Context, bar types.MarketData, signalType types.SignalType, name, message string) error {
	color := types.MarkColorGreen
	shape := types.MarkShapeTriangle

	if signalType == types.SignalTypeExitLong {
		color = types.MarkColorRed
		shape = types.MarkShapeCircle
	}

	mark := types.Mark{
		Symbol:   s.params.Symbol,
		Color:    color,
		Shape:    shape,
		Title:    name,
		Message:  message,
		Category: s.Name(),
		Signal: optional.Some(types.Signal{
			Time:   ctx.Time,
			Type:   signalType,
			Name:   name,
			Reason: message,
			Symbol: s.params.Symbol,
		}),
	}

	if err := ctx.Marker.Mark(bar, mark); err != nil {
		return err
	}

	return ctx.Log.Log(log.LogEntry{
		Timestamp: ctx.Time,
		Symbol:    s.params.Symbol,
		Level:     types.LogLevelInfo,
		Message:   message,
	})
}
