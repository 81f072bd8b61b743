package strategy

import (
	"testing"

	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type BuyAndHoldTestSuite struct {
	suite.Suite
	harness  *strategyHarness
	strategy *BuyAndHold
}

func TestBuyAndHoldSuite(t *testing.T) {
	suite.Run(t, new(BuyAndHoldTestSuite))
}

func (suite *BuyAndHoldTestSuite) SetupTest() {
	suite.harness = newStrategyHarness(100_000)
	suite.strategy = NewBuyAndHold()
}

func (suite *BuyAndHoldTestSuite) TestInitializeRequiresSymbol() {
	err := suite.strategy.Initialize("")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyConfigError))
}

func (suite *BuyAndHoldTestSuite) TestBuysWholeUnitsOnFirstBar() {
	suite.Require().NoError(suite.strategy.Initialize("symbol: AAPL"))

	intents, err := suite.strategy.OnEvent(strategyEvent(barTime(0), "AAPL", 100), suite.harness.context(barTime(0)))
	suite.Require().NoError(err)
	suite.Require().Len(intents, 1)

	intent := intents[0]
	suite.Equal("AAPL", intent.Symbol)
	suite.Equal(types.SideBuy, intent.Side)
	suite.Equal(types.OrderTypeMarket, intent.OrderType)
	suite.Equal(950.0, intent.Quantity)

	suite.Len(suite.harness.logs.entries, 1)

	// Never trades again
	intents, err = suite.strategy.OnEvent(strategyEvent(barTime(1), "AAPL", 90), suite.harness.context(barTime(1)))
	suite.Require().NoError(err)
	suite.Empty(intents)
}

func (suite *BuyAndHoldTestSuite) TestWaitsForConfiguredSymbol() {
	suite.Require().NoError(suite.strategy.Initialize("symbol: AAPL"))

	intents, err := suite.strategy.OnEvent(strategyEvent(barTime(0), "MSFT", 100), suite.harness.context(barTime(0)))
	suite.Require().NoError(err)
	suite.Empty(intents)

	intents, err = suite.strategy.OnEvent(strategyEvent(barTime(1), "AAPL", 100), suite.harness.context(barTime(1)))
	suite.Require().NoError(err)
	suite.Len(intents, 1)
}

func (suite *BuyAndHoldTestSuite) TestInvestRatioOverride() {
	suite.Require().NoError(suite.strategy.Initialize("symbol: AAPL\ninvest_ratio: 0.5"))

	intents, err := suite.strategy.OnEvent(strategyEvent(barTime(0), "AAPL", 100), suite.harness.context(barTime(0)))
	suite.Require().NoError(err)
	suite.Require().Len(intents, 1)
	suite.Equal(500.0, intents[0].Quantity)
}

func (suite *BuyAndHoldTestSuite) TestSkipsWhenPriceExceedsBudget() {
	suite.Require().NoError(suite.strategy.Initialize("symbol: AAPL"))
	suite.harness.portfolio.cash = 50

	intents, err := suite.strategy.OnEvent(strategyEvent(barTime(0), "AAPL", 100), suite.harness.context(barTime(0)))
	suite.Require().NoError(err)
	suite.Empty(intents)

	// Still armed when cash is later sufficient
	suite.harness.portfolio.cash = 100_000

	intents, err = suite.strategy.OnEvent(strategyEvent(barTime(1), "AAPL", 100), suite.harness.context(barTime(1)))
	suite.Require().NoError(err)
	suite.Len(intents, 1)
}

func (suite *BuyAndHoldTestSuite) TestInvalidRatioRejected() {
	err := suite.strategy.Initialize("symbol: AAPL\ninvest_ratio: 1.5")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyConfigError))
}
