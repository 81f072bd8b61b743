package datasource

import (
	"sort"
	"sync"
	"time"

	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"github.com/moznion/go-optional"
)

// InMemoryIndexedDataSource wraps a DataSource and serves reads from memory.
// It preloads all data once and indexes it by symbol, so feed construction
// and range queries avoid repeated SQL round trips during a run.
type InMemoryIndexedDataSource struct {
	underlying DataSource

	// Preloaded data indexed by symbol, in chronological order
	data map[string][]types.MarketData

	// All data combined in chronological order for ReadAll iteration
	allData []types.MarketData

	preloaded bool

	mu sync.RWMutex
}

// NewInMemoryIndexedDataSource creates a new InMemoryIndexedDataSource wrapping the given DataSource.
func NewInMemoryIndexedDataSource(underlying DataSource) *InMemoryIndexedDataSource {
	return &InMemoryIndexedDataSource{
		underlying: underlying,
		data:       make(map[string][]types.MarketData),
		allData:    nil,
		preloaded:  false,
		mu:         sync.RWMutex{},
	}
}

// Preload loads all data into memory for fast indexed access.
func (ds *InMemoryIndexedDataSource) Preload(start optional.Option[time.Time], end optional.Option[time.Time]) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	// Clear existing data
	ds.data = make(map[string][]types.MarketData)

	// Load all data from underlying source
	var allData []types.MarketData
	for marketData, err := range ds.underlying.ReadAll(start, end) {
		if err != nil {
			return errors.Wrap(errors.ErrCodeDataNotFound, "failed to preload data", err)
		}

		allData = append(allData, marketData)
	}

	// Sort by time, then symbol, so the order is reproducible across sources
	sort.Slice(allData, func(i, j int) bool {
		if allData[i].Time.Equal(allData[j].Time) {
			return allData[i].Symbol < allData[j].Symbol
		}

		return allData[i].Time.Before(allData[j].Time)
	})

	ds.allData = allData

	// Index data by symbol
	for _, md := range allData {
		ds.data[md.Symbol] = append(ds.data[md.Symbol], md)
	}

	ds.preloaded = true

	return nil
}

// IsPreloaded returns true if data has been preloaded into memory.
func (ds *InMemoryIndexedDataSource) IsPreloaded() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return ds.preloaded
}

// GetSymbolData returns the preloaded bars for a symbol in chronological order.
func (ds *InMemoryIndexedDataSource) GetSymbolData(symbol string) ([]types.MarketData, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if !ds.preloaded {
		return nil, errors.New(errors.ErrCodeDataNotFound, "data not preloaded, call Preload() first")
	}

	symbolData, ok := ds.data[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "no data found for symbol: %s", symbol)
	}

	// Return a copy to prevent modification of underlying data
	result := make([]types.MarketData, len(symbolData))
	copy(result, symbolData)

	return result, nil
}

// GetTotalBars returns the total number of bars loaded for a symbol.
func (ds *InMemoryIndexedDataSource) GetTotalBars(symbol string) int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if symbolData, ok := ds.data[symbol]; ok {
		return len(symbolData)
	}

	return 0
}

// ========================================
// DataSource interface implementation
// ========================================

// Initialize implements DataSource.
func (ds *InMemoryIndexedDataSource) Initialize(path string) error {
	return ds.underlying.Initialize(path)
}

// ReadAll implements DataSource.
// When preloaded, iterates over in-memory data without touching the underlying source.
func (ds *InMemoryIndexedDataSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.MarketData, error) bool) {
	return func(yield func(types.MarketData, error) bool) {
		ds.mu.RLock()
		preloaded := ds.preloaded
		allData := ds.allData
		ds.mu.RUnlock()

		if !preloaded {
			// Fall back to underlying datasource
			for md, err := range ds.underlying.ReadAll(start, end) {
				if !yield(md, err) {
					return
				}
			}

			return
		}

		for _, md := range allData {
			if start.IsSome() && md.Time.Before(start.Unwrap()) {
				continue
			}

			if end.IsSome() && md.Time.After(end.Unwrap()) {
				continue
			}

			if !yield(md, nil) {
				return
			}
		}
	}
}

// GetRange implements DataSource.
// Interval aggregation needs SQL, so bucketed queries go to the underlying source.
func (ds *InMemoryIndexedDataSource) GetRange(start time.Time, end time.Time, interval optional.Option[Interval]) ([]types.MarketData, error) {
	ds.mu.RLock()
	preloaded := ds.preloaded
	ds.mu.RUnlock()

	if preloaded && interval.IsNone() {
		ds.mu.RLock()
		defer ds.mu.RUnlock()

		var result []types.MarketData

		for _, md := range ds.allData {
			if !md.Time.Before(start) && !md.Time.After(end) {
				result = append(result, md)
			}
		}

		return result, nil
	}

	return ds.underlying.GetRange(start, end, interval)
}

// ReadLastData implements DataSource.
func (ds *InMemoryIndexedDataSource) ReadLastData(symbol string) (types.MarketData, error) {
	ds.mu.RLock()
	preloaded := ds.preloaded
	ds.mu.RUnlock()

	if preloaded {
		ds.mu.RLock()
		defer ds.mu.RUnlock()

		symbolData, ok := ds.data[symbol]
		if !ok || len(symbolData) == 0 {
			return types.MarketData{}, errors.Newf(errors.ErrCodeDataNotFound, "no data found for symbol: %s", symbol)
		}

		return symbolData[len(symbolData)-1], nil
	}

	return ds.underlying.ReadLastData(symbol)
}

// ExecuteSQL implements DataSource.
// SQL queries are passed to underlying datasource (cannot be served from memory).
func (ds *InMemoryIndexedDataSource) ExecuteSQL(query string, params ...interface{}) ([]SQLResult, error) {
	return ds.underlying.ExecuteSQL(query, params...)
}

// Count implements DataSource.
func (ds *InMemoryIndexedDataSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	ds.mu.RLock()
	preloaded := ds.preloaded
	ds.mu.RUnlock()

	if preloaded {
		ds.mu.RLock()
		defer ds.mu.RUnlock()

		if start.IsNone() && end.IsNone() {
			return len(ds.allData), nil
		}

		count := 0

		for _, md := range ds.allData {
			if start.IsSome() && md.Time.Before(start.Unwrap()) {
				continue
			}

			if end.IsSome() && md.Time.After(end.Unwrap()) {
				continue
			}

			count++
		}

		return count, nil
	}

	return ds.underlying.Count(start, end)
}

// GetAllSymbols implements DataSource.
func (ds *InMemoryIndexedDataSource) GetAllSymbols() ([]string, error) {
	ds.mu.RLock()
	preloaded := ds.preloaded
	ds.mu.RUnlock()

	if preloaded {
		ds.mu.RLock()
		defer ds.mu.RUnlock()

		symbols := make([]string, 0, len(ds.data))
		for symbol := range ds.data {
			symbols = append(symbols, symbol)
		}

		sort.Strings(symbols)

		return symbols, nil
	}

	return ds.underlying.GetAllSymbols()
}

// Close implements DataSource.
func (ds *InMemoryIndexedDataSource) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	// Clear preloaded data
	ds.data = nil
	ds.allData = nil
	ds.preloaded = false

	return ds.underlying.Close()
}
