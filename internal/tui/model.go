// Package tui renders a live terminal view of a running backtest, fed by the
// engine's event channel.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lanternworks/lantern-backtest/internal/types"
)

// maxTradeRows caps how many recent closed trades the table keeps.
const maxTradeRows = 8

// Model is the Bubble Tea model for watching a backtest. It consumes the
// engine's event stream and quits when the stream closes or the user asks to
// stop, cancelling the run.
type Model struct {
	title  string
	events <-chan types.BacktestEvent
	cancel context.CancelFunc

	progressBar progress.Model
	tradesTable table.Model

	runID       string
	runsStarted int
	runsDone    int
	status      types.BacktestStatus
	progress    *types.ProgressUpdate
	equity      *types.EquityCurvePoint
	trades      []types.TradeRecord
	lastResult  *types.BacktestResult
	errMessage  string

	width  int
	height int
	done   bool
}

// NewModel creates a watch model. The cancel func stops the engine run when
// the user quits; pass nil when there is nothing to cancel.
func NewModel(title string, events <-chan types.BacktestEvent, cancel context.CancelFunc) Model {
	return Model{
		title:       title,
		events:      events,
		cancel:      cancel,
		progressBar: progress.New(progress.WithDefaultGradient()),
		tradesTable: NewTradesTable(),
		status:      types.BacktestStatusPending,
	}
}

// waitForEvent blocks on the engine's event channel as a command.
func waitForEvent(events <-chan types.BacktestEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}

		return eventMsg(event)
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}

			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if width := msg.Width - 4; width > 0 {
			m.progressBar.Width = width
		}

		return m, nil

	case eventMsg:
		m = m.apply(types.BacktestEvent(msg))

		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.done = true

		return m, tea.Quit
	}

	return m, nil
}

// apply folds one engine event into the model.
func (m Model) apply(event types.BacktestEvent) Model {
	switch event.Type {
	case types.BacktestEventStarted:
		m.runID = event.RunID
		m.runsStarted++
		m.status = types.BacktestStatusRunning
		m.progress = nil
		m.equity = nil
		m.trades = nil
		m.errMessage = ""
		m.tradesTable = UpdateTradeRows(m.tradesTable, nil)

	case types.BacktestEventProgress:
		m.progress = event.Progress

	case types.BacktestEventEquityUpdate:
		m.equity = event.Equity

	case types.BacktestEventTradeExecuted:
		if event.Trade != nil {
			m.trades = append([]types.TradeRecord{*event.Trade}, m.trades...)
			if len(m.trades) > maxTradeRows {
				m.trades = m.trades[:maxTradeRows]
			}

			m.tradesTable = UpdateTradeRows(m.tradesTable, m.trades)
		}

	case types.BacktestEventCompleted, types.BacktestEventFailed, types.BacktestEventCancelled:
		m.runsDone++
		m.lastResult = event.Result
		m.errMessage = event.Error

		switch event.Type {
		case types.BacktestEventCompleted:
			m.status = types.BacktestStatusCompleted
		case types.BacktestEventFailed:
			m.status = types.BacktestStatusFailed
		case types.BacktestEventCancelled:
			m.status = types.BacktestStatusCancelled
		}
	}

	return m
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("Backtest · " + m.title))
	s.WriteString("\n\n")

	s.WriteString(m.statusLine())
	s.WriteString("\n\n")

	if m.status == types.BacktestStatusPending {
		s.WriteString("Waiting for the first run to start...\n")
	} else {
		s.WriteString(m.progressLine())
		s.WriteString("\n\n")
		s.WriteString(m.readoutLine())
		s.WriteString("\n\n")

		if len(m.trades) > 0 {
			s.WriteString(TitleStyle.Render("Closed trades"))
			s.WriteString("\n")
			s.WriteString(m.tradesTable.View())
			s.WriteString("\n")
		}
	}

	if m.errMessage != "" {
		s.WriteString(ErrorStyle.Render("Error: " + m.errMessage))
		s.WriteString("\n")
	}

	s.WriteString("\n")

	if m.done {
		s.WriteString(HelpStyle.Render("All runs finished"))
	} else {
		s.WriteString(HelpStyle.Render("q: stop the backtest"))
	}

	s.WriteString("\n")

	return s.String()
}

func (m Model) statusLine() string {
	parts := []string{StatusStyle(m.status).Render(string(m.status))}

	if m.runsStarted > 0 {
		runLabel := fmt.Sprintf("run %d", m.runsStarted)
		if m.runID != "" {
			runLabel += " · " + shortRunID(m.runID)
		}

		parts = append(parts, runLabel)
	}

	if m.runsDone > 0 {
		parts = append(parts, fmt.Sprintf("%d finished", m.runsDone))
	}

	return strings.Join(parts, LabelStyle.Render("  |  "))
}

func (m Model) progressLine() string {
	completed := 0.0
	clock := ""

	if m.progress != nil {
		completed = m.progress.Completed
		clock = m.progress.CurrentTime.Format("2006-01-02 15:04:05")
	}

	line := m.progressBar.ViewAs(completed)
	if clock != "" {
		line += "\n" + LabelStyle.Render("simulation time ") + clock
	}

	return line
}

func (m Model) readoutLine() string {
	if m.equity == nil {
		return LabelStyle.Render("Waiting for the first equity sample...")
	}

	return strings.Join([]string{
		LabelStyle.Render("equity ") + fmt.Sprintf("%.2f", m.equity.PortfolioValue),
		LabelStyle.Render("cash ") + fmt.Sprintf("%.2f", m.equity.Cash),
		LabelStyle.Render("return ") + FormatSignedPercent(m.equity.CumulativeReturn),
		LabelStyle.Render("drawdown ") + fmt.Sprintf("%.2f%%", m.equity.Drawdown*100),
	}, "   ")
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}

	return runID
}
