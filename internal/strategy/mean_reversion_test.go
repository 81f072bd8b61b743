package strategy

import (
	"testing"

	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type MeanReversionTestSuite struct {
	suite.Suite
	harness  *strategyHarness
	strategy *MeanReversion
}

func TestMeanReversionSuite(t *testing.T) {
	suite.Run(t, new(MeanReversionTestSuite))
}

func (suite *MeanReversionTestSuite) SetupTest() {
	suite.harness = newStrategyHarness(100_000)
	suite.strategy = NewMeanReversion()
	suite.Require().NoError(suite.strategy.Initialize(
		"symbol: AAPL\nlookback_days: 5\nentry_threshold: 1.5\nexit_threshold: 0.5\nposition_ratio: 0.25\nmax_ratio: 0.5"))
}

func (suite *MeanReversionTestSuite) feed(day int, close float64) []types.OrderIntent {
	intents, err := suite.strategy.OnEvent(strategyEvent(barTime(day), "AAPL", close), suite.harness.context(barTime(day)))
	suite.Require().NoError(err)

	return intents
}

// Four flat closes then a drop to 90 puts the z-score at exactly -2.0.
func (suite *MeanReversionTestSuite) primeDislocation() []types.OrderIntent {
	for day := 0; day < 4; day++ {
		suite.Empty(suite.feed(day, 100))
	}

	return suite.feed(4, 90)
}

func (suite *MeanReversionTestSuite) TestScalesInBelowEntryBand() {
	intents := suite.primeDislocation()

	suite.Require().Len(intents, 1)
	suite.Equal(types.SideBuy, intents[0].Side)
	suite.Equal(types.OrderTypeMarket, intents[0].OrderType)
	// One step: 25% of equity at the dislocated price
	suite.Equal(277.0, intents[0].Quantity)
	suite.Len(suite.harness.logs.entries, 1)
}

func (suite *MeanReversionTestSuite) TestScalesOutInsideBand() {
	suite.primeDislocation()
	suite.harness.portfolio.hold("AAPL", 277)

	// Recovery to the mean: z-score 0.5 sits above -exit_threshold
	intents := suite.feed(5, 100)
	suite.Require().Len(intents, 1)
	suite.Equal(types.SideSell, intents[0].Side)
	suite.Equal(250.0, intents[0].Quantity)

	// The remainder below one step goes out in full
	suite.harness.portfolio.hold("AAPL", 27)
	intents = suite.feed(6, 100)
	suite.Require().Len(intents, 1)
	suite.Equal(types.SideSell, intents[0].Side)
	suite.Equal(27.0, intents[0].Quantity)
}

func (suite *MeanReversionTestSuite) TestMaxRatioCapsExposure() {
	suite.harness.portfolio.hold("AAPL", 555)

	suite.Empty(suite.primeDislocation())
}

func (suite *MeanReversionTestSuite) TestBuysOnlyWhatCashCovers() {
	suite.harness.portfolio.cash = 5_000

	intents := suite.primeDislocation()
	suite.Require().Len(intents, 1)
	suite.Equal(55.0, intents[0].Quantity)
}

func (suite *MeanReversionTestSuite) TestSkipsWhenCashBuysNothing() {
	suite.harness.portfolio.cash = 50

	suite.Empty(suite.primeDislocation())
}

func (suite *MeanReversionTestSuite) TestFlatMarketProducesNoSignal() {
	for day := 0; day < 8; day++ {
		suite.Empty(suite.feed(day, 100))
	}
}

func (suite *MeanReversionTestSuite) TestRejectsExitBandOutsideEntryBand() {
	err := NewMeanReversion().Initialize("symbol: AAPL\nentry_threshold: 1\nexit_threshold: 2")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyConfigError))
}
