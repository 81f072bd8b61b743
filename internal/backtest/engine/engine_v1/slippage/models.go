package slippage

import (
	"math"

	"github.com/lanternworks/lantern-backtest/internal/types"
)

// NoSlippage fills at the reference price.
type NoSlippage struct{}

func NewNoSlippage() Slippage {
	return &NoSlippage{}
}

func (s *NoSlippage) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	return price
}

// FixedSlippage applies a constant number of basis points regardless of fill
// size.
type FixedSlippage struct {
	basisPoints float64
}

func NewFixedSlippage(basisPoints float64) Slippage {
	return &FixedSlippage{basisPoints: basisPoints}
}

func (s *FixedSlippage) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	return directional(price, side, s.basisPoints/10000.0)
}

// LinearSlippage scales the configured basis points by the fill's participation
// in the bar volume.
type LinearSlippage struct {
	basisPoints float64
}

func NewLinearSlippage(basisPoints float64) Slippage {
	return &LinearSlippage{basisPoints: basisPoints}
}

func (s *LinearSlippage) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	fraction := s.basisPoints / 10000.0 * participation(quantity, barVolume)

	return directional(price, side, fraction)
}

// SquareRootSlippage grows with the square root of participation, so small
// fills are cheap and the cost flattens as fills grow.
type SquareRootSlippage struct {
	factor float64
}

func NewSquareRootSlippage(factor float64) Slippage {
	return &SquareRootSlippage{factor: factor}
}

func (s *SquareRootSlippage) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	fraction := s.factor * math.Sqrt(participation(quantity, barVolume))

	return directional(price, side, fraction)
}

// VolumeWeightedSlippage interpolates between a minimum and maximum number of
// basis points as participation moves from zero to one.
type VolumeWeightedSlippage struct {
	minBps float64
	maxBps float64
}

func NewVolumeWeightedSlippage(minBps float64, maxBps float64) Slippage {
	return &VolumeWeightedSlippage{minBps: minBps, maxBps: maxBps}
}

func (s *VolumeWeightedSlippage) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	bps := s.minBps + (s.maxBps-s.minBps)*participation(quantity, barVolume)

	return directional(price, side, bps/10000.0)
}
