package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lanternworks/lantern-backtest/internal/strategy"
)

// resultFolderFor derives the artifact folder for one run:
// <results>/<strategy>/<config>[/<start_end>][/<data file>]. The time range
// segment appears only when the engine config bounds the period, and the data
// segment only when the run was driven by a data path.
func (b *BacktestEngineV1) resultFolderFor(configName string, dataPath string, strat strategy.Strategy) string {
	strategyFolder := filepath.Join(b.resultsFolder, strat.Name())
	configFolder := filepath.Join(strategyFolder, strings.TrimSuffix(filepath.Base(configName), filepath.Ext(configName)))

	folder := configFolder

	if b.config.StartTime.IsSome() || b.config.EndTime.IsSome() {
		startTimeStr := "all"
		endTimeStr := "all"

		if b.config.StartTime.IsSome() {
			startTimeStr = b.config.StartTime.Unwrap().Format("20060102")
		}

		if b.config.EndTime.IsSome() {
			endTimeStr = b.config.EndTime.Unwrap().Format("20060102")
		}

		folder = filepath.Join(configFolder, fmt.Sprintf("%s_%s", startTimeStr, endTimeStr))
	}

	if dataPath == "" {
		return folder
	}

	return filepath.Join(folder, strings.TrimSuffix(filepath.Base(dataPath), filepath.Ext(dataPath)))
}
