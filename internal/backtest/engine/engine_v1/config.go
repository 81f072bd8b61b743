package engine

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1/latency"
	"github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1/slippage"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"github.com/moznion/go-optional"
)

// MarketHoursPolicy decides what happens to an order submitted outside the
// session window.
type MarketHoursPolicy string

const (
	// MarketHoursPolicyReject rejects out-of-session orders immediately.
	MarketHoursPolicyReject MarketHoursPolicy = "reject"
	// MarketHoursPolicyQueue holds out-of-session orders until the next open.
	MarketHoursPolicyQueue MarketHoursPolicy = "queue"
)

var AllMarketHoursPolicies = []any{
	MarketHoursPolicyReject,
	MarketHoursPolicyQueue,
}

// ExecutionSettings groups the friction models applied by the execution
// simulator. Empty model names mean no friction of that kind.
type ExecutionSettings struct {
	Slippage slippage.Config       `yaml:"slippage" json:"slippage" jsonschema:"title=Slippage,description=Slippage model applied to fill prices"`
	Impact   slippage.ImpactConfig `yaml:"impact" json:"impact" jsonschema:"title=Impact,description=Market impact model composed on top of slippage"`
	Latency  latency.Config        `yaml:"latency" json:"latency" jsonschema:"title=Latency,description=Delay between order submission and fill eligibility"`
}

// InitialPosition seeds one position at cost before the run starts. Cash is
// untouched; the seeded value is part of the starting equity baseline.
type InitialPosition struct {
	Symbol   string  `yaml:"symbol" json:"symbol" validate:"required" jsonschema:"title=Symbol,description=Ticker of the seeded position"`
	Quantity float64 `yaml:"quantity" json:"quantity" validate:"required" jsonschema:"title=Quantity,description=Seeded quantity; negative for a short position"`
	Price    float64 `yaml:"price" json:"price" validate:"gt=0" jsonschema:"title=Price,description=Cost basis of the seeded position,minimum=0"`
}

type BacktestEngineV1Config struct {
	InitialCapital      float64                    `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting capital for the backtest in USD,minimum=0"`
	Broker              commission_fee.Broker      `yaml:"broker" json:"broker" jsonschema:"title=Broker,description=The broker to use for commission calculations"`
	StartTime           optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start time for the backtest period"`
	EndTime             optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end time for the backtest period"`
	DecimalPrecision    int                        `yaml:"decimal_precision" json:"decimal_precision" jsonschema:"title=Decimal Precision,description=Number of decimal places for order quantities,minimum=0"`
	MarketDataCacheSize int                        `yaml:"market_data_cache_size" json:"market_data_cache_size" jsonschema:"title=Market Data Cache Size,description=Number of bars kept in the per-symbol history buffer,minimum=1"`
	Execution           ExecutionSettings          `yaml:"execution" json:"execution" jsonschema:"title=Execution,description=Slippage, impact and latency models"`
	MarketHours         types.MarketHours          `yaml:"market_hours" json:"market_hours" jsonschema:"title=Market Hours,description=Session window in UTC hours"`
	MarketHoursPolicy   MarketHoursPolicy          `yaml:"market_hours_policy" json:"market_hours_policy" jsonschema:"title=Market Hours Policy,description=Reject or queue orders submitted outside the session"`
	Symbols             []types.Symbol             `yaml:"symbols" json:"symbols" validate:"omitempty,dive" jsonschema:"title=Symbols,description=Tradable universe with exchange and asset class metadata"`
	InitialPositions    []InitialPosition          `yaml:"initial_positions" json:"initial_positions" validate:"omitempty,dive" jsonschema:"title=Initial Positions,description=Positions seeded before the first event"`
	Benchmark           optional.Option[string]    `yaml:"benchmark" json:"benchmark" jsonschema:"title=Benchmark,description=Symbol whose closes form the benchmark return series"`
	RiskFreeRate        float64                    `yaml:"risk_free_rate" json:"risk_free_rate" jsonschema:"title=Risk Free Rate,description=Annual risk-free rate used by Sharpe and Sortino,minimum=0"`
}

// UnmarshalYAML implements custom unmarshaling for BacktestEngineV1Config
func (c *BacktestEngineV1Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		InitialCapital      float64               `yaml:"initial_capital"`
		Broker              commission_fee.Broker `yaml:"broker"`
		StartTime           *time.Time            `yaml:"start_time"`
		EndTime             *time.Time            `yaml:"end_time"`
		DecimalPrecision    *int                  `yaml:"decimal_precision"`
		MarketDataCacheSize *int                  `yaml:"market_data_cache_size"`
		Execution           ExecutionSettings     `yaml:"execution"`
		MarketHours         *types.MarketHours    `yaml:"market_hours"`
		MarketHoursPolicy   MarketHoursPolicy     `yaml:"market_hours_policy"`
		Symbols             []types.Symbol        `yaml:"symbols"`
		InitialPositions    []InitialPosition     `yaml:"initial_positions"`
		Benchmark           *string               `yaml:"benchmark"`
		RiskFreeRate        *float64              `yaml:"risk_free_rate"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.InitialCapital = config.InitialCapital
	c.Broker = config.Broker

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	// Absent fields fall back to defaults; an explicit zero stays zero
	c.DecimalPrecision = 1
	if config.DecimalPrecision != nil {
		c.DecimalPrecision = *config.DecimalPrecision
	}

	c.MarketDataCacheSize = 1000
	if config.MarketDataCacheSize != nil {
		c.MarketDataCacheSize = *config.MarketDataCacheSize
	}

	c.Execution = config.Execution

	c.MarketHours = types.DefaultMarketHours()
	if config.MarketHours != nil {
		c.MarketHours = *config.MarketHours
	}

	c.MarketHoursPolicy = config.MarketHoursPolicy
	if c.MarketHoursPolicy == "" {
		c.MarketHoursPolicy = MarketHoursPolicyReject
	}

	c.Symbols = config.Symbols
	c.InitialPositions = config.InitialPositions

	if config.Benchmark != nil {
		c.Benchmark = optional.Some(*config.Benchmark)
	}

	c.RiskFreeRate = 0.02
	if config.RiskFreeRate != nil {
		c.RiskFreeRate = *config.RiskFreeRate
	}

	return nil
}

// Validate rejects configurations that cannot produce a run.
func (c *BacktestEngineV1Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest configuration", err)
	}

	if c.InitialCapital <= 0 {
		return errors.Newf(errors.ErrCodeInvalidCapital, "initial capital must be positive, got %f", c.InitialCapital)
	}

	switch c.MarketHoursPolicy {
	case MarketHoursPolicyReject, MarketHoursPolicyQueue:
	default:
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown market hours policy: %s", c.MarketHoursPolicy)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidTimeRange, "end time is before start time")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t.String() {
			case "optional.Option[time.Time]":
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			case "optional.Option[string]":
				return &jsonschema.Schema{
					Type: "string",
				}
			case "commission_fee.Broker":
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllBrokers,
				}
			case "slippage.Model":
				return &jsonschema.Schema{
					Type: "string",
					Enum: slippage.AllModels,
				}
			case "slippage.ImpactModel":
				return &jsonschema.Schema{
					Type: "string",
					Enum: slippage.AllImpactModels,
				}
			case "latency.Model":
				return &jsonschema.Schema{
					Type: "string",
					Enum: latency.AllModels,
				}
			case "engine.MarketHoursPolicy":
				return &jsonschema.Schema{
					Type: "string",
					Enum: AllMarketHoursPolicies,
				}
			case "types.AssetClass":
				return &jsonschema.Schema{
					Type: "string",
					Enum: types.AllAssetClasses,
				}
			}

			return nil
		},
	}

	// Generate schema from BacktestEngineV1Config struct
	schema := reflector.Reflect(c)

	// Set schema metadata
	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// TestConfig returns a frictionless configuration for tests: zero slippage,
// impact and latency, so fill prices are exactly the model reference prices.
func TestConfig(startTime time.Time, endTime time.Time, broker commission_fee.Broker) BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital:      10000,
		Broker:              broker,
		StartTime:           optional.Some(startTime),
		EndTime:             optional.Some(endTime),
		DecimalPrecision:    1,
		MarketDataCacheSize: 1000,
		MarketHours:         types.DefaultMarketHours(),
		MarketHoursPolicy:   MarketHoursPolicyReject,
		RiskFreeRate:        0.02,
	}
}

// EmptyConfig returns a BacktestEngineV1Config with default values
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital:      0,
		Broker:              commission_fee.BrokerInteractiveBroker,
		StartTime:           optional.None[time.Time](),
		EndTime:             optional.None[time.Time](),
		DecimalPrecision:    1,
		MarketDataCacheSize: 1000,
		MarketHours:         types.DefaultMarketHours(),
		MarketHoursPolicy:   MarketHoursPolicyReject,
		RiskFreeRate:        0.02,
	}
}
