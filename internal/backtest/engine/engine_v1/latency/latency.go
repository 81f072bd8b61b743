package latency

import "time"

type Latency interface {
	// Delay returns the simulated routing and processing delay for an order sent
	// to the given exchange. A fill can never occur before submission plus this
	// delay.
	Delay(exchange string) time.Duration
}

type Model string

const (
	ModelNone   Model = "none"
	ModelFixed  Model = "fixed"
	ModelRandom Model = "random"
	ModelVenue  Model = "venue"
)

var AllModels = []any{
	ModelNone,
	ModelFixed,
	ModelRandom,
	ModelVenue,
}

// Config selects a latency model and carries its parameters. Milliseconds is
// the fixed delay and doubles as the fallback for venues missing from the map.
type Config struct {
	Model        Model            `yaml:"model" json:"model" jsonschema:"title=Model,description=Latency model applied between order submission and fill eligibility"`
	Milliseconds int64            `yaml:"milliseconds" json:"milliseconds" jsonschema:"title=Milliseconds,description=Delay for the fixed model and fallback for the venue model,minimum=0"`
	MinMs        int64            `yaml:"min_ms" json:"min_ms" jsonschema:"title=Min Ms,description=Lower bound for the random model,minimum=0"`
	MaxMs        int64            `yaml:"max_ms" json:"max_ms" jsonschema:"title=Max Ms,description=Upper bound for the random model,minimum=0"`
	Venues       map[string]int64 `yaml:"venues" json:"venues" jsonschema:"title=Venues,description=Per-exchange delay in milliseconds for the venue model"`
	Seed         int64            `yaml:"seed" json:"seed" jsonschema:"title=Seed,description=Seed for the random model so identical runs stay identical"`
}

// DefaultConfig returns the default latency configuration: a fixed 100ms delay.
func DefaultConfig() Config {
	return Config{
		Model:        ModelFixed,
		Milliseconds: 100,
	}
}

func GetLatencyHandler(config Config) Latency {
	switch config.Model {
	case ModelNone:
		return NewNoLatency()
	case ModelFixed:
		return NewFixedLatency(config.Milliseconds)
	case ModelRandom:
		return NewRandomLatency(config.MinMs, config.MaxMs, config.Seed)
	case ModelVenue:
		return NewVenueLatency(config.Venues, config.Milliseconds)
	default:
		return NewNoLatency()
	}
}
