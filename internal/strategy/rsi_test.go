package strategy

import (
	"testing"

	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type RSITestSuite struct {
	suite.Suite
	harness  *strategyHarness
	strategy *RSI
}

func TestRSISuite(t *testing.T) {
	suite.Run(t, new(RSITestSuite))
}

func (suite *RSITestSuite) SetupTest() {
	suite.harness = newStrategyHarness(100_000)
	suite.strategy = NewRSI()
	suite.Require().NoError(suite.strategy.Initialize("symbol: AAPL\nperiod: 3"))
}

func (suite *RSITestSuite) feed(day int, close float64) []types.OrderIntent {
	intents, err := suite.strategy.OnEvent(strategyEvent(barTime(day), "AAPL", close), suite.harness.context(barTime(day)))
	suite.Require().NoError(err)

	return intents
}

func (suite *RSITestSuite) TestBuysWhenOversold() {
	for day, close := range []float64{100, 95, 90} {
		suite.Empty(suite.feed(day, close))
	}

	// Three straight losses: RSI 0, target 95% of equity at the last close
	intents := suite.feed(3, 85)
	suite.Require().Len(intents, 1)
	suite.Equal(types.SideBuy, intents[0].Side)
	suite.Equal(types.OrderTypeMarket, intents[0].OrderType)
	suite.Equal(1117.0, intents[0].Quantity)
	suite.Len(suite.harness.logs.entries, 1)
}

func (suite *RSITestSuite) TestTopsUpTowardTargetWhileOversold() {
	for day, close := range []float64{100, 95, 90} {
		suite.Empty(suite.feed(day, close))
	}
	suite.feed(3, 85)
	suite.harness.portfolio.hold("AAPL", 1117)

	// Deeper drop raises the unit target, so only the difference is bought
	intents := suite.feed(4, 80)
	suite.Require().Len(intents, 1)
	suite.Equal(types.SideBuy, intents[0].Side)
	suite.Equal(70.0, intents[0].Quantity)
}

func (suite *RSITestSuite) TestClosesPositionWhenOverbought() {
	suite.harness.portfolio.hold("AAPL", 500)

	for day, close := range []float64{100, 105, 110} {
		suite.Empty(suite.feed(day, close))
	}

	intents := suite.feed(3, 115)
	suite.Require().Len(intents, 1)
	suite.Equal(types.SideSell, intents[0].Side)
	suite.Equal(500.0, intents[0].Quantity)
}

func (suite *RSITestSuite) TestOverboughtWithoutPositionDoesNothing() {
	for day, close := range []float64{100, 102, 101} {
		suite.Empty(suite.feed(day, close))
	}

	// Gains 4, losses 1 over the window: RSI 80, nothing to sell
	suite.Empty(suite.feed(3, 103))
	suite.Empty(suite.harness.logs.entries)
}

func (suite *RSITestSuite) TestRejectsInvertedLevels() {
	err := NewRSI().Initialize("symbol: AAPL\noversold: 80\noverbought: 70")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyConfigError))
}
