package slippage

import "github.com/lanternworks/lantern-backtest/internal/types"

type Slippage interface {
	// Adjust returns the execution price for a fill of the given quantity against
	// a bar with the given volume. The adjustment is always unfavorable to the
	// order side: buys pay more, sells receive less.
	Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64
}

// Func adapts a plain price-adjustment function into a Slippage model.
type Func func(price float64, side types.Side, quantity float64, barVolume float64) float64

func (f Func) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	return f(price, side, quantity, barVolume)
}

type Model string

const (
	ModelNone           Model = "none"
	ModelFixed          Model = "fixed"
	ModelLinear         Model = "linear"
	ModelSquareRoot     Model = "square_root"
	ModelVolumeWeighted Model = "volume_weighted"
)

var AllModels = []any{
	ModelNone,
	ModelFixed,
	ModelLinear,
	ModelSquareRoot,
	ModelVolumeWeighted,
}

// Config selects a slippage model and carries its parameters. Fields not used
// by the selected model are ignored.
type Config struct {
	Model       Model   `yaml:"model" json:"model" jsonschema:"title=Model,description=Slippage model applied to fill prices"`
	BasisPoints float64 `yaml:"basis_points" json:"basis_points" jsonschema:"title=Basis Points,description=Price adjustment in basis points (fixed and linear models),minimum=0"`
	Factor      float64 `yaml:"factor" json:"factor" jsonschema:"title=Factor,description=Price fraction at full participation (square_root model),minimum=0"`
	MinBps      float64 `yaml:"min_bps" json:"min_bps" jsonschema:"title=Min Bps,description=Basis points at zero participation (volume_weighted model),minimum=0"`
	MaxBps      float64 `yaml:"max_bps" json:"max_bps" jsonschema:"title=Max Bps,description=Basis points at full participation (volume_weighted model),minimum=0"`
}

// DefaultConfig returns the default slippage configuration: linear, five basis
// points at full participation.
func DefaultConfig() Config {
	return Config{
		Model:       ModelLinear,
		BasisPoints: 5,
	}
}

func GetSlippageHandler(config Config) Slippage {
	switch config.Model {
	case ModelNone:
		return NewNoSlippage()
	case ModelFixed:
		return NewFixedSlippage(config.BasisPoints)
	case ModelLinear:
		return NewLinearSlippage(config.BasisPoints)
	case ModelSquareRoot:
		return NewSquareRootSlippage(config.Factor)
	case ModelVolumeWeighted:
		return NewVolumeWeightedSlippage(config.MinBps, config.MaxBps)
	default:
		return NewNoSlippage()
	}
}

// participation is the fill's share of the bar volume, clamped to [0, 1].
// A bar with no volume counts as full participation.
func participation(quantity float64, barVolume float64) float64 {
	if barVolume <= 0 {
		return 1
	}

	p := quantity / barVolume
	if p > 1 {
		return 1
	}

	return p
}

// directional applies a fractional price adjustment against the order side.
func directional(price float64, side types.Side, fraction float64) float64 {
	if side == types.SideBuy {
		return price * (1 + fraction)
	}

	return price * (1 - fraction)
}
