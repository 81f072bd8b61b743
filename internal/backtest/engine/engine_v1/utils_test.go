package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lanternworks/lantern-backtest/internal/strategy"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

// namedStrategy is a no-op strategy carrying only a name.
type namedStrategy struct {
	name string
}

func (m *namedStrategy) Name() string {
	return m.name
}

func (m *namedStrategy) Initialize(config string) error {
	return nil
}

func (m *namedStrategy) OnEvent(event types.Event, ctx strategy.Context) ([]types.OrderIntent, error) {
	return nil, nil
}

// UtilsTestSuite is a test suite for the result folder layout
type UtilsTestSuite struct {
	suite.Suite
}

// TestUtilsSuite runs the test suite
func TestUtilsSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

func (suite *UtilsTestSuite) TestResultFolderFor() {
	tests := []struct {
		name          string
		configName    string
		dataPath      string
		strategyName  string
		resultsFolder string
		startTime     optional.Option[time.Time]
		endTime       optional.Option[time.Time]
		expectedPath  string
	}{
		{
			name:          "Basic case without time range",
			configName:    "/path/to/config.json",
			dataPath:      "/path/to/data.csv",
			strategyName:  "TestStrategy",
			resultsFolder: "/results",
			startTime:     optional.None[time.Time](),
			endTime:       optional.None[time.Time](),
			expectedPath:  "/results/TestStrategy/config/data",
		},
		{
			name:          "Case with time range",
			configName:    "/path/to/config.json",
			dataPath:      "/path/to/data.csv",
			strategyName:  "TestStrategy",
			resultsFolder: "/results",
			startTime:     optional.Some(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
			endTime:       optional.Some(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)),
			expectedPath:  "/results/TestStrategy/config/20230101_20231231/data",
		},
		{
			name:          "Case with only start time",
			configName:    "/path/to/config.json",
			dataPath:      "/path/to/data.csv",
			strategyName:  "TestStrategy",
			resultsFolder: "/results",
			startTime:     optional.Some(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
			endTime:       optional.None[time.Time](),
			expectedPath:  "/results/TestStrategy/config/20230101_all/data",
		},
		{
			name:          "Case with only end time",
			configName:    "/path/to/config.json",
			dataPath:      "/path/to/data.csv",
			strategyName:  "TestStrategy",
			resultsFolder: "/results",
			startTime:     optional.None[time.Time](),
			endTime:       optional.Some(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)),
			expectedPath:  "/results/TestStrategy/config/all_20231231/data",
		},
		{
			name:          "Case with complex file names",
			configName:    "/path/to/my.config.json",
			dataPath:      "/path/to/trading.data.csv",
			strategyName:  "ComplexStrategy",
			resultsFolder: "/results",
			startTime:     optional.None[time.Time](),
			endTime:       optional.None[time.Time](),
			expectedPath:  "/results/ComplexStrategy/my.config/trading.data",
		},
		{
			name:          "Case without data path",
			configName:    "config_0",
			dataPath:      "",
			strategyName:  "TestStrategy",
			resultsFolder: "/results",
			startTime:     optional.None[time.Time](),
			endTime:       optional.None[time.Time](),
			expectedPath:  "/results/TestStrategy/config_0",
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			strat := &namedStrategy{name: tc.strategyName}

			engine := &BacktestEngineV1{
				config: BacktestEngineV1Config{
					StartTime: tc.startTime,
					EndTime:   tc.endTime,
				},
				resultsFolder: tc.resultsFolder,
			}

			resultPath := engine.resultFolderFor(tc.configName, tc.dataPath, strat)

			suite.Assert().Equal(filepath.Clean(tc.expectedPath), filepath.Clean(resultPath), "Result folder path mismatch")
		})
	}
}
