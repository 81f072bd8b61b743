package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/lanternworks/lantern-backtest/internal/types"
)

// NewTradesTable creates the table that lists the latest closed trades.
func NewTradesTable() table.Model {
	columns := []table.Column{
		{Title: "Closed", Width: 17},
		{Title: "Symbol", Width: 8},
		{Title: "Side", Width: 6},
		{Title: "Qty", Width: 10},
		{Title: "Entry", Width: 10},
		{Title: "Exit", Width: 10},
		{Title: "PnL", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(false),
		table.WithHeight(8),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = lipgloss.NewStyle()

	t.SetStyles(s)

	return t
}

// UpdateTradeRows replaces the table rows with the given trades, newest first.
func UpdateTradeRows(t table.Model, trades []types.TradeRecord) table.Model {
	rows := make([]table.Row, 0, len(trades))

	for _, trade := range trades {
		closedAt := ""
		if trade.ExitTime != nil {
			closedAt = trade.ExitTime.Format("01-02 15:04:05")
		}

		exitPrice := ""
		if trade.ExitPrice != nil {
			exitPrice = fmt.Sprintf("%.2f", *trade.ExitPrice)
		}

		pnl := ""
		if trade.Pnl != nil {
			pnl = FormatPnl(*trade.Pnl)
		}

		rows = append(rows, table.Row{
			closedAt,
			trade.Symbol,
			string(trade.Side),
			fmt.Sprintf("%.2f", trade.Quantity),
			fmt.Sprintf("%.2f", trade.EntryPrice),
			exitPrice,
			pnl,
		})
	}

	t.SetRows(rows)

	return t
}
