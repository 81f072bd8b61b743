package strategy

import (
	"math"

	"github.com/lanternworks/lantern-backtest/internal/types"
)

// MarketDataBuffer is a bounded per-symbol rolling window of bars. Strategies
// own their buffers and push every batch they see; the helpers compute over
// the most recent bars. Not safe for concurrent use.
type MarketDataBuffer struct {
	maxSize int
	bars    map[string][]types.MarketData
}

// NewMarketDataBuffer creates a buffer holding at most maxSize bars per
// symbol. Sizes below one are clamped to one.
func NewMarketDataBuffer(maxSize int) *MarketDataBuffer {
	if maxSize < 1 {
		maxSize = 1
	}

	return &MarketDataBuffer{
		maxSize: maxSize,
		bars:    make(map[string][]types.MarketData),
	}
}

// Push appends one bar, evicting the oldest once the window is full.
func (b *MarketDataBuffer) Push(bar types.MarketData) {
	window := append(b.bars[bar.Symbol], bar)
	if len(window) > b.maxSize {
		window = window[len(window)-b.maxSize:]
	}

	b.bars[bar.Symbol] = window
}

// PushEvent pushes every bar in the batch.
func (b *MarketDataBuffer) PushEvent(event types.Event) {
	for _, bar := range event.Bars {
		b.Push(bar)
	}
}

// Len returns the number of buffered bars for a symbol.
func (b *MarketDataBuffer) Len(symbol string) int {
	return len(b.bars[symbol])
}

// Last returns the most recent bar for a symbol.
func (b *MarketDataBuffer) Last(symbol string) (types.MarketData, bool) {
	window := b.bars[symbol]
	if len(window) == 0 {
		return types.MarketData{}, false
	}

	return window[len(window)-1], true
}

// Closes returns up to n most recent close prices, oldest first.
func (b *MarketDataBuffer) Closes(symbol string, n int) []float64 {
	window := b.bars[symbol]
	if n > len(window) {
		n = len(window)
	}

	closes := make([]float64, 0, n)
	for _, bar := range window[len(window)-n:] {
		closes = append(closes, bar.Close)
	}

	return closes
}

// SMA returns the simple moving average of the last period closes. Reports
// false until the window holds at least period bars.
func (b *MarketDataBuffer) SMA(symbol string, period int) (float64, bool) {
	if period < 1 || b.Len(symbol) < period {
		return 0, false
	}

	sum := 0.0
	for _, c := range b.Closes(symbol, period) {
		sum += c
	}

	return sum / float64(period), true
}

// StdDev returns the population standard deviation of the last period closes.
func (b *MarketDataBuffer) StdDev(symbol string, period int) (float64, bool) {
	if period < 1 || b.Len(symbol) < period {
		return 0, false
	}

	closes := b.Closes(symbol, period)

	mean := 0.0
	for _, c := range closes {
		mean += c
	}

	mean /= float64(period)

	variance := 0.0
	for _, c := range closes {
		variance += (c - mean) * (c - mean)
	}

	variance /= float64(period)

	return math.Sqrt(variance), true
}

// RSI returns the relative strength index over period using simple average
// gains and losses. Needs period+1 bars; all-gain windows read 100 and
// all-loss windows read 0.
func (b *MarketDataBuffer) RSI(symbol string, period int) (float64, bool) {
	if period < 1 || b.Len(symbol) < period+1 {
		return 0, false
	}

	closes := b.Closes(symbol, period+1)

	gains, losses := 0.0, 0.0

	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100, true
	}

	if avgGain == 0 {
		return 0, true
	}

	rs := avgGain / avgLoss

	return 100 - 100/(1+rs), true
}
