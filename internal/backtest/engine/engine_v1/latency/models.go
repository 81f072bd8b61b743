package latency

import (
	"math/rand"
	"time"
)

// NoLatency makes orders eligible in the batch they are submitted.
type NoLatency struct{}

func NewNoLatency() Latency {
	return &NoLatency{}
}

func (l *NoLatency) Delay(exchange string) time.Duration {
	return 0
}

// FixedLatency delays every order by the same amount.
type FixedLatency struct {
	delay time.Duration
}

func NewFixedLatency(milliseconds int64) Latency {
	return &FixedLatency{delay: time.Duration(milliseconds) * time.Millisecond}
}

func (l *FixedLatency) Delay(exchange string) time.Duration {
	return l.delay
}

// RandomLatency draws a uniform delay between min and max milliseconds from a
// seeded source, so two runs with the same seed see the same delays.
type RandomLatency struct {
	minMs int64
	maxMs int64
	rng   *rand.Rand
}

func NewRandomLatency(minMs int64, maxMs int64, seed int64) Latency {
	if maxMs < minMs {
		minMs, maxMs = maxMs, minMs
	}

	return &RandomLatency{
		minMs: minMs,
		maxMs: maxMs,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (l *RandomLatency) Delay(exchange string) time.Duration {
	span := l.maxMs - l.minMs
	if span == 0 {
		return time.Duration(l.minMs) * time.Millisecond
	}

	ms := l.minMs + l.rng.Int63n(span+1)

	return time.Duration(ms) * time.Millisecond
}

// VenueLatency looks the delay up per exchange, falling back to a default for
// venues missing from the map.
type VenueLatency struct {
	venues    map[string]int64
	defaultMs int64
}

func NewVenueLatency(venues map[string]int64, defaultMs int64) Latency {
	return &VenueLatency{
		venues:    venues,
		defaultMs: defaultMs,
	}
}

func (l *VenueLatency) Delay(exchange string) time.Duration {
	if ms, ok := l.venues[exchange]; ok {
		return time.Duration(ms) * time.Millisecond
	}

	return time.Duration(l.defaultMs) * time.Millisecond
}
