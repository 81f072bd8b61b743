package datasource

import (
	"time"

	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/moznion/go-optional"
)

type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

// SQLResult represents a row of data from a SQL query
type SQLResult struct {
	Values map[string]interface{}
}

type DataSource interface {
	// Initialize loads market data from the given path. CSV and Parquet files
	// are supported, selected by extension.
	Initialize(path string) error
	// ReadAll reads all the data in chronological order and yields it to the
	// caller
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.MarketData, error) bool)
	// GetRange reads a range of data, optionally aggregated to the given
	// interval
	GetRange(start time.Time, end time.Time, interval optional.Option[Interval]) ([]types.MarketData, error)
	// ReadLastData reads the most recent bar for a specific symbol
	ReadLastData(symbol string) (types.MarketData, error)
	// GetAllSymbols returns the distinct symbols present in the data
	GetAllSymbols() ([]string, error)
	// ExecuteSQL executes a raw SQL query and returns the results as SQLResult
	ExecuteSQL(query string, params ...interface{}) ([]SQLResult, error)
	// Count returns the number of bars in the data source
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Close closes the data source and releases any resources
	Close() error
}
