package types

import (
	"time"
)

// Resolution is the fixed bar interval of a data feed.
type Resolution string

const (
	ResolutionTick     Resolution = "tick"
	ResolutionSecond   Resolution = "1s"
	ResolutionMinute   Resolution = "1m"
	Resolution5Minute  Resolution = "5m"
	Resolution15Minute Resolution = "15m"
	ResolutionHour     Resolution = "1h"
	Resolution4Hour    Resolution = "4h"
	ResolutionDay      Resolution = "1d"
	ResolutionWeek     Resolution = "1w"
	ResolutionMonth    Resolution = "1M"
)

// AllResolutions lists every valid resolution value, used for config schema
// generation and validation.
var AllResolutions = []any{
	string(ResolutionTick),
	string(ResolutionSecond),
	string(ResolutionMinute),
	string(Resolution5Minute),
	string(Resolution15Minute),
	string(ResolutionHour),
	string(Resolution4Hour),
	string(ResolutionDay),
	string(ResolutionWeek),
	string(ResolutionMonth),
}

// Seconds returns the nominal length of one bar at this resolution.
// Tick data has no fixed interval and returns 0.
func (r Resolution) Seconds() int64 {
	switch r {
	case ResolutionTick:
		return 0
	case ResolutionSecond:
		return 1
	case ResolutionMinute:
		return 60
	case Resolution5Minute:
		return 300
	case Resolution15Minute:
		return 900
	case ResolutionHour:
		return 3600
	case Resolution4Hour:
		return 14400
	case ResolutionDay:
		return 86400
	case ResolutionWeek:
		return 604800
	case ResolutionMonth:
		return 2629746 // average month
	default:
		return 0
	}
}

// IsValid reports whether r is one of the known resolutions.
func (r Resolution) IsValid() bool {
	for _, v := range AllResolutions {
		if v == string(r) {
			return true
		}
	}

	return false
}

// MarketData is one OHLCV bar for a single symbol. The timestamp marks the
// bar's close in UTC; a bar is immutable once produced by the data feed.
type MarketData struct {
	Symbol string    `json:"symbol" csv:"symbol"`
	Time   time.Time `json:"time" csv:"time"`
	Open   float64   `json:"open" csv:"open"`
	High   float64   `json:"high" csv:"high"`
	Low    float64   `json:"low" csv:"low"`
	Close  float64   `json:"close" csv:"close"`
	Volume float64   `json:"volume" csv:"volume"`
}

// Mid returns the midpoint of the bar's high and low, used as the reference
// price for market order execution.
func (m MarketData) Mid() float64 {
	return (m.High + m.Low) / 2
}

// Event is one scheduler batch: every bar it carries shares the same
// timestamp. Bars are ordered by symbol ticker so that delivery order is
// deterministic.
type Event struct {
	Time time.Time
	Bars []MarketData
}

// Bar returns the bar for the given symbol ticker, if present in this batch.
func (e Event) Bar(symbol string) (MarketData, bool) {
	for _, b := range e.Bars {
		if b.Symbol == symbol {
			return b, true
		}
	}

	return MarketData{}, false
}

// MarketHours describes one session window in UTC. The zero value is not
// useful; use DefaultMarketHours for the standard US equity session.
type MarketHours struct {
	// OpenHour is the session open (UTC hour, inclusive).
	OpenHour int `yaml:"open_hour" json:"open_hour" validate:"gte=0,lt=24"`
	// CloseHour is the session close (UTC hour, exclusive).
	CloseHour int `yaml:"close_hour" json:"close_hour" validate:"gte=0,lte=24"`
	// WeekendTrading allows Saturday/Sunday sessions when true.
	WeekendTrading bool `yaml:"weekend_trading" json:"weekend_trading"`
}

// DefaultMarketHours returns the US equity session expressed in UTC,
// 9:30 AM-4:00 PM EST.
func DefaultMarketHours() MarketHours {
	return MarketHours{
		OpenHour:       14,
		CloseHour:      21,
		WeekendTrading: false,
	}
}

// IsOpen reports whether the market is open at t for the given asset class.
// Asset classes that trade 24/7 are always open.
func (h MarketHours) IsOpen(t time.Time, assetClass AssetClass) bool {
	if assetClass.Is24x7() {
		return true
	}

	t = t.UTC()
	if !h.WeekendTrading {
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}

	return t.Hour() >= h.OpenHour && t.Hour() < h.CloseHour
}

// NextOpen returns the first instant at or after t when the market is open
// for the given asset class.
func (h MarketHours) NextOpen(t time.Time, assetClass AssetClass) time.Time {
	if h.IsOpen(t, assetClass) {
		return t
	}

	t = t.UTC()

	next := time.Date(t.Year(), t.Month(), t.Day(), h.OpenHour, 0, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}

	if !h.WeekendTrading {
		for wd := next.Weekday(); wd == time.Saturday || wd == time.Sunday; wd = next.Weekday() {
			next = next.AddDate(0, 0, 1)
		}
	}

	return next
}
