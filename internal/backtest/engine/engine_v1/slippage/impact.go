package slippage

import (
	"math"

	"github.com/lanternworks/lantern-backtest/internal/types"
)

// MarketImpact models the price concession caused by the order itself, composed
// on top of a slippage model. It shares the Slippage adjustment contract.
type MarketImpact interface {
	Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64
}

type ImpactModel string

const (
	ImpactNone        ImpactModel = "none"
	ImpactLinear      ImpactModel = "linear"
	ImpactSquareRoot  ImpactModel = "square_root"
	ImpactLogarithmic ImpactModel = "logarithmic"
)

var AllImpactModels = []any{
	ImpactNone,
	ImpactLinear,
	ImpactSquareRoot,
	ImpactLogarithmic,
}

// ImpactConfig selects a market impact model and its factor.
type ImpactConfig struct {
	Model  ImpactModel `yaml:"model" json:"model" jsonschema:"title=Model,description=Market impact model composed on top of slippage"`
	Factor float64     `yaml:"factor" json:"factor" jsonschema:"title=Factor,description=Price fraction at full participation,minimum=0"`
}

// DefaultImpactConfig returns the default market impact configuration:
// square root with a factor of one basis point at full participation.
func DefaultImpactConfig() ImpactConfig {
	return ImpactConfig{
		Model:  ImpactSquareRoot,
		Factor: 0.0001,
	}
}

func GetMarketImpactHandler(config ImpactConfig) MarketImpact {
	switch config.Model {
	case ImpactNone:
		return &NoImpact{}
	case ImpactLinear:
		return &LinearImpact{factor: config.Factor}
	case ImpactSquareRoot:
		return &SquareRootImpact{factor: config.Factor}
	case ImpactLogarithmic:
		return &LogarithmicImpact{factor: config.Factor}
	default:
		return &NoImpact{}
	}
}

type NoImpact struct{}

func (i *NoImpact) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	return price
}

type LinearImpact struct {
	factor float64
}

func (i *LinearImpact) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	return directional(price, side, i.factor*participation(quantity, barVolume))
}

type SquareRootImpact struct {
	factor float64
}

func (i *SquareRootImpact) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	return directional(price, side, i.factor*math.Sqrt(participation(quantity, barVolume)))
}

type LogarithmicImpact struct {
	factor float64
}

func (i *LogarithmicImpact) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	return directional(price, side, i.factor*math.Log1p(participation(quantity, barVolume)))
}

// Composed applies a slippage model and then a market impact model, both
// against the order side.
type Composed struct {
	slippage Slippage
	impact   MarketImpact
}

func NewComposed(slippage Slippage, impact MarketImpact) Slippage {
	return &Composed{
		slippage: slippage,
		impact:   impact,
	}
}

func (c *Composed) Adjust(price float64, side types.Side, quantity float64, barVolume float64) float64 {
	adjusted := c.slippage.Adjust(price, side, quantity, barVolume)

	return c.impact.Adjust(adjusted, side, quantity, barVolume)
}
