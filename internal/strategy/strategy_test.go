package strategy

import (
	"sort"
	"testing"
	"time"

	"github.com/lanternworks/lantern-backtest/internal/log"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

var (
	_ Strategy      = (*BuyAndHold)(nil)
	_ Strategy      = (*MACrossover)(nil)
	_ Strategy      = (*Momentum)(nil)
	_ Strategy      = (*MeanReversion)(nil)
	_ Strategy      = (*RSI)(nil)
	_ DayEndHandler = (*Momentum)(nil)
)

// stubPortfolio is a hand-rolled PortfolioView for strategy tests.
type stubPortfolio struct {
	cash      float64
	equity    float64
	initial   float64
	positions map[string]types.Position
}

func newStubPortfolio(cash float64) *stubPortfolio {
	return &stubPortfolio{
		cash:      cash,
		equity:    cash,
		initial:   cash,
		positions: make(map[string]types.Position),
	}
}

func (p *stubPortfolio) Cash() float64           { return p.cash }
func (p *stubPortfolio) Equity() float64         { return p.equity }
func (p *stubPortfolio) InitialCapital() float64 { return p.initial }

func (p *stubPortfolio) Position(symbol string) (types.Position, bool) {
	pos, ok := p.positions[symbol]

	return pos, ok
}

func (p *stubPortfolio) Positions() []types.Position {
	out := make([]types.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })

	return out
}

func (p *stubPortfolio) hold(symbol string, quantity float64) {
	p.positions[symbol] = types.Position{Symbol: symbol, Quantity: quantity}
}

type stubLog struct {
	entries []log.LogEntry
}

func (l *stubLog) Log(entry log.LogEntry) error {
	l.entries = append(l.entries, entry)

	return nil
}

func (l *stubLog) GetLogs() ([]log.LogEntry, error) {
	return l.entries, nil
}

type stubMarker struct {
	marks []types.Mark
}

func (m *stubMarker) Mark(_ types.MarketData, mark types.Mark) error {
	m.marks = append(m.marks, mark)

	return nil
}

func (m *stubMarker) GetMarks() ([]types.Mark, error) {
	return m.marks, nil
}

// strategyHarness bundles the context surfaces a strategy sees during a run.
type strategyHarness struct {
	portfolio *stubPortfolio
	logs      *stubLog
	marks     *stubMarker
}

func newStrategyHarness(cash float64) *strategyHarness {
	return &strategyHarness{
		portfolio: newStubPortfolio(cash),
		logs:      &stubLog{},
		marks:     &stubMarker{},
	}
}

func (h *strategyHarness) context(t time.Time) Context {
	return Context{
		Portfolio: h.portfolio,
		Marker:    h.marks,
		Log:       h.logs,
		Time:      t,
	}
}

func strategyBar(symbol string, t time.Time, close float64) types.MarketData {
	return types.MarketData{
		Symbol: symbol,
		Time:   t,
		Open:   close,
		High:   close * 1.01,
		Low:    close * 0.99,
		Close:  close,
		Volume: 1000,
	}
}

func strategyEvent(t time.Time, symbol string, close float64) types.Event {
	return types.Event{Time: t, Bars: []types.MarketData{strategyBar(symbol, t, close)}}
}

// barTime spaces test bars one day apart.
func barTime(i int) time.Time {
	return time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

type RegistryTestSuite struct {
	suite.Suite
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (suite *RegistryTestSuite) TestNewReturnsRegisteredStrategies() {
	for _, name := range Names() {
		suite.Run(name, func() {
			s, err := New(name)
			suite.Require().NoError(err)
			suite.Equal(name, s.Name())
		})
	}
}

func (suite *RegistryTestSuite) TestNewReturnsFreshInstances() {
	first, err := New("buy_and_hold")
	suite.Require().NoError(err)

	second, err := New("buy_and_hold")
	suite.Require().NoError(err)

	suite.NotSame(first, second)
}

func (suite *RegistryTestSuite) TestNewRejectsUnknownName() {
	_, err := New("does_not_exist")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyNotFound))
	suite.Contains(err.Error(), "buy_and_hold")
}

func (suite *RegistryTestSuite) TestNamesAreSorted() {
	names := Names()
	suite.Equal([]string{"buy_and_hold", "ma_crossover", "mean_reversion", "momentum", "rsi"}, names)
	suite.True(sort.StringsAreSorted(names))
}
