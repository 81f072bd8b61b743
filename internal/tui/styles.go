package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/lanternworks/lantern-backtest/internal/types"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	// LabelStyle for readout labels.
	LabelStyle = lipgloss.NewStyle().Faint(true)

	runningStyle   = lipgloss.NewStyle().Bold(true)
	completedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	cancelledStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// StatusStyle picks the style for a run status.
func StatusStyle(status types.BacktestStatus) lipgloss.Style {
	switch status {
	case types.BacktestStatusCompleted:
		return completedStyle
	case types.BacktestStatusFailed:
		return failedStyle
	case types.BacktestStatusCancelled:
		return cancelledStyle
	default:
		return runningStyle
	}
}

// FormatSignedPercent renders a return fraction as a signed percentage.
func FormatSignedPercent(fraction float64) string {
	return fmt.Sprintf("%+.2f%%", fraction*100)
}

// FormatPnl renders a trade's profit with a direction indicator.
func FormatPnl(pnl float64) string {
	if pnl > 0 {
		return fmt.Sprintf("%+.2f ▲", pnl)
	}

	if pnl < 0 {
		return fmt.Sprintf("%+.2f ▼", pnl)
	}

	return "0.00"
}
