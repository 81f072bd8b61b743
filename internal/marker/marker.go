package marker

import "github.com/lanternworks/lantern-backtest/internal/types"

// Marker records chart annotations produced by strategies during a run.
type Marker interface {
	// Mark pins an annotation to the bar that produced it
	Mark(marketData types.MarketData, mark types.Mark) error
	// GetMarks returns all recorded marks in chronological order
	GetMarks() ([]types.Mark, error)
}
