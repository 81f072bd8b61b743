package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func (suite *MarketTestSuite) TestResolutionSeconds() {
	suite.Equal(int64(0), ResolutionTick.Seconds())
	suite.Equal(int64(1), ResolutionSecond.Seconds())
	suite.Equal(int64(60), ResolutionMinute.Seconds())
	suite.Equal(int64(300), Resolution5Minute.Seconds())
	suite.Equal(int64(900), Resolution15Minute.Seconds())
	suite.Equal(int64(3600), ResolutionHour.Seconds())
	suite.Equal(int64(14400), Resolution4Hour.Seconds())
	suite.Equal(int64(86400), ResolutionDay.Seconds())
	suite.Equal(int64(604800), ResolutionWeek.Seconds())
	suite.Equal(int64(2629746), ResolutionMonth.Seconds())
}

func (suite *MarketTestSuite) TestResolutionIsValid() {
	suite.True(ResolutionMinute.IsValid())
	suite.True(ResolutionMonth.IsValid())
	suite.False(Resolution("2h").IsValid())
	suite.False(Resolution("").IsValid())
}

func (suite *MarketTestSuite) TestMarketDataMid() {
	bar := MarketData{
		Symbol: "AAPL",
		Time:   time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
		Open:   150.0,
		High:   155.0,
		Low:    149.0,
		Close:  152.5,
		Volume: 1_000_000,
	}

	suite.Equal(152.0, bar.Mid())
}

func (suite *MarketTestSuite) TestEventBarLookup() {
	at := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	event := Event{
		Time: at,
		Bars: []MarketData{
			{Symbol: "AAPL", Time: at, Close: 185.0},
			{Symbol: "MSFT", Time: at, Close: 390.0},
		},
	}

	bar, ok := event.Bar("MSFT")
	suite.True(ok)
	suite.Equal(390.0, bar.Close)

	_, ok = event.Bar("TSLA")
	suite.False(ok)
}

func (suite *MarketTestSuite) TestMarketHoursIsOpen() {
	hours := DefaultMarketHours()

	// Tuesday 15:00 UTC is inside the default session.
	suite.True(hours.IsOpen(time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC), AssetClassEquity))
	// Tuesday 13:59 UTC is before the open.
	suite.False(hours.IsOpen(time.Date(2024, 1, 2, 13, 59, 0, 0, time.UTC), AssetClassEquity))
	// Tuesday 21:00 UTC is at the close, which is exclusive.
	suite.False(hours.IsOpen(time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC), AssetClassEquity))
	// Saturday is closed without weekend trading.
	suite.False(hours.IsOpen(time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC), AssetClassEquity))
	// Crypto is always open, even on a Saturday night.
	suite.True(hours.IsOpen(time.Date(2024, 1, 6, 3, 0, 0, 0, time.UTC), AssetClassCrypto))
}

func (suite *MarketTestSuite) TestMarketHoursNextOpen() {
	hours := DefaultMarketHours()

	// Already open: unchanged.
	open := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	suite.Equal(open, hours.NextOpen(open, AssetClassEquity))

	// Before the bell: same day at the open.
	early := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	suite.Equal(time.Date(2024, 1, 2, 14, 0, 0, 0, time.UTC), hours.NextOpen(early, AssetClassEquity))

	// After the close: next day at the open.
	late := time.Date(2024, 1, 2, 22, 0, 0, 0, time.UTC)
	suite.Equal(time.Date(2024, 1, 3, 14, 0, 0, 0, time.UTC), hours.NextOpen(late, AssetClassEquity))

	// Friday after the close rolls to Monday.
	friday := time.Date(2024, 1, 5, 22, 0, 0, 0, time.UTC)
	suite.Equal(time.Date(2024, 1, 8, 14, 0, 0, 0, time.UTC), hours.NextOpen(friday, AssetClassEquity))

	// 24/7 asset classes are always open.
	saturday := time.Date(2024, 1, 6, 3, 0, 0, 0, time.UTC)
	suite.Equal(saturday, hours.NextOpen(saturday, AssetClassCrypto))
}

func (suite *MarketTestSuite) TestWeekendTradingSession() {
	hours := MarketHours{OpenHour: 0, CloseHour: 24, WeekendTrading: true}

	suite.True(hours.IsOpen(time.Date(2024, 1, 6, 3, 0, 0, 0, time.UTC), AssetClassEquity))
}
