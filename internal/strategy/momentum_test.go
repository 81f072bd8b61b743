package strategy

import (
	"testing"

	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/stretchr/testify/suite"
)

type MomentumTestSuite struct {
	suite.Suite
	harness  *strategyHarness
	strategy *Momentum
}

func TestMomentumSuite(t *testing.T) {
	suite.Run(t, new(MomentumTestSuite))
}

func (suite *MomentumTestSuite) SetupTest() {
	suite.harness = newStrategyHarness(100_000)
	suite.strategy = NewMomentum()
	suite.Require().NoError(suite.strategy.Initialize(
		"symbol: AAPL\nlookback_days: 3\nthreshold: 5\nrebalance_days: 1\ninvest_ratio: 0.9"))
}

func (suite *MomentumTestSuite) feed(day int, close float64) []types.OrderIntent {
	intents, err := suite.strategy.OnEvent(strategyEvent(barTime(day), "AAPL", close), suite.harness.context(barTime(day)))
	suite.Require().NoError(err)

	return intents
}

func (suite *MomentumTestSuite) dayEnd(day int) {
	intents, err := suite.strategy.OnDayEnd(barTime(day), suite.harness.context(barTime(day)))
	suite.Require().NoError(err)
	suite.Empty(intents)
}

func (suite *MomentumTestSuite) TestRebalancesTowardTargetAndExitsOnReversal() {
	for day, close := range []float64{100, 100, 100, 100} {
		suite.Empty(suite.feed(day, close))
		suite.dayEnd(day)
	}

	// 10% over the lookback, rebalance due: buy to 90% of equity
	intents := suite.feed(4, 110)
	suite.Require().Len(intents, 1)
	suite.Equal(types.SideBuy, intents[0].Side)
	suite.Equal(818.0, intents[0].Quantity)
	suite.Equal(types.OrderReasonRebalance, intents[0].Reason.Reason)

	suite.harness.portfolio.hold("AAPL", 818)
	suite.dayEnd(4)

	// Target shrinks as price rises, so the rebalance trims the position
	intents = suite.feed(5, 112)
	suite.Require().Len(intents, 1)
	suite.Equal(types.SideSell, intents[0].Side)
	suite.Equal(15.0, intents[0].Quantity)

	suite.harness.portfolio.hold("AAPL", 803)
	suite.dayEnd(5)

	// Momentum collapses below the negative threshold: close out entirely
	intents = suite.feed(6, 60)
	suite.Require().Len(intents, 1)
	suite.Equal(types.SideSell, intents[0].Side)
	suite.Equal(803.0, intents[0].Quantity)
}

func (suite *MomentumTestSuite) TestRebalanceClockGatesTrading() {
	// Strong momentum but no day-ends: the clock never reaches the gate
	for day, close := range []float64{100, 110, 120, 130, 140} {
		suite.Empty(suite.feed(day, close))
	}
}

func (suite *MomentumTestSuite) TestQuietMarketLeavesNoOrders() {
	for day, close := range []float64{100, 101, 100, 101, 100, 101} {
		suite.Empty(suite.feed(day, close))
		suite.dayEnd(day)
	}

	suite.Empty(suite.harness.logs.entries)
}
