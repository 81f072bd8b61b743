// Package strategy defines the interface backtested strategies implement and
// ships the built-in reference strategies. Strategies are in-process Go
// implementations: they receive event batches and return order intents, and
// they never touch the ledger or the execution queue directly.
package strategy

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lanternworks/lantern-backtest/internal/log"
	"github.com/lanternworks/lantern-backtest/internal/marker"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"gopkg.in/yaml.v3"
)

// PortfolioView is the read-only portfolio surface exposed to strategies.
// The ledger satisfies it; strategies can observe state but never mutate it.
type PortfolioView interface {
	Cash() float64
	Equity() float64
	InitialCapital() float64
	Position(symbol string) (types.Position, bool)
	Positions() []types.Position
}

// Context carries the surfaces a strategy may touch while handling an event.
// The engine always populates every field; strategies may use them without
// nil checks.
type Context struct {
	// Portfolio is the current ledger view.
	Portfolio PortfolioView
	// Marker records chart annotations against the run.
	Marker marker.Marker
	// Log feeds the run's strategy log store.
	Log log.Log
	// Time is the batch timestamp.
	Time time.Time
}

// Strategy turns market events into order intents.
type Strategy interface {
	// Name identifies the strategy in results and order records.
	Name() string
	// Initialize parses the YAML parameter string. An empty string selects
	// the strategy's defaults.
	Initialize(config string) error
	// OnEvent handles one event batch. Returned intents are submitted to the
	// execution simulator in order; a non-nil error aborts the run.
	OnEvent(event types.Event, ctx Context) ([]types.OrderIntent, error)
}

// DayEndHandler is implemented by strategies that act at day boundaries. The
// engine invokes OnDayEnd when the event date changes and once after the last
// batch.
type DayEndHandler interface {
	OnDayEnd(day time.Time, ctx Context) ([]types.OrderIntent, error)
}

// APIVersioner is implemented by strategies that pin the strategy API version
// they were written against. The engine rejects strategies whose declared
// version is incompatible with its own.
type APIVersioner interface {
	APIVersion() string
}

var registry = map[string]func() Strategy{
	"buy_and_hold":   func() Strategy { return NewBuyAndHold() },
	"ma_crossover":   func() Strategy { return NewMACrossover() },
	"momentum":       func() Strategy { return NewMomentum() },
	"mean_reversion": func() Strategy { return NewMeanReversion() },
	"rsi":            func() Strategy { return NewRSI() },
}

// New returns a fresh, uninitialized instance of a registered strategy.
func New(name string) (Strategy, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound,
			"unknown strategy %q, available: %s", name, strings.Join(Names(), ", "))
	}

	return factory(), nil
}

// Names lists the registered strategies in lexical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// parseParams unmarshals the YAML config over the params' defaults and
// validates the result. An empty config keeps the defaults.
func parseParams(name, config string, params any) error {
	if strings.TrimSpace(config) != "" {
		if err := yaml.Unmarshal([]byte(config), params); err != nil {
			return errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "failed to parse %s parameters", name)
		}
	}

	if err := validator.New().Struct(params); err != nil {
		return errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "invalid %s parameters", name)
	}

	return nil
}

// wholeUnits converts a cash fraction into whole units at the given price.
// Built-ins trade whole units so their intents stay valid for asset classes
// without fractional support.
func wholeUnits(cash, fraction, price float64) float64 {
	if price <= 0 {
		return 0
	}

	return math.Floor(cash * fraction / price)
}
