package tui

import "github.com/lanternworks/lantern-backtest/internal/types"

// eventMsg carries one engine event into the model.
type eventMsg types.BacktestEvent

// streamClosedMsg signals that the engine closed its event channel.
type streamClosedMsg struct{}
