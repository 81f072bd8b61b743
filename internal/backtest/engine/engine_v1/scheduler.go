package engine

import (
	"container/heap"
	"time"

	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/pkg/errors"
)

// SchedulerState tracks the scheduler lifecycle. Feeds are registered while
// uninitialized, Initialize freezes them, and batches advance the state until
// every feed is drained.
type SchedulerState int

const (
	SchedulerUninitialized SchedulerState = iota
	SchedulerInitialized
	SchedulerRunning
	SchedulerComplete
)

// SchedulerStats is a point-in-time snapshot of scheduler progress.
type SchedulerStats struct {
	TotalSymbols    int
	TotalEvents     int
	ProcessedEvents int
	TimeSpanDays    int64
	Progress        float64
	IsComplete      bool
}

// feedCursor walks one symbol's bars in order. The heap is keyed by the head
// bar's time, then symbol, which is what makes batch contents deterministic.
type feedCursor struct {
	symbol string
	bars   []types.MarketData
	next   int
}

func (c *feedCursor) head() types.MarketData {
	return c.bars[c.next]
}

func (c *feedCursor) drained() bool {
	return c.next >= len(c.bars)
}

type schedulerHeap []*feedCursor

func (h schedulerHeap) Len() int { return len(h) }

func (h schedulerHeap) Less(i, j int) bool {
	ti, tj := h[i].head().Time, h[j].head().Time
	if ti.Equal(tj) {
		return h[i].symbol < h[j].symbol
	}

	return ti.Before(tj)
}

func (h schedulerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *schedulerHeap) Push(x any) {
	*h = append(*h, x.(*feedCursor))
}

func (h *schedulerHeap) Pop() any {
	old := *h
	n := len(old)
	cursor := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return cursor
}

// Scheduler merges per-symbol bar feeds into one chronological event stream.
// Bars sharing a timestamp are revealed together in a single batch, ordered by
// symbol, and no bar is revealed before its nominal time.
type Scheduler struct {
	feeds           map[string][]types.MarketData
	heap            schedulerHeap
	state           SchedulerState
	startTime       time.Time
	endTime         time.Time
	currentTime     time.Time
	totalEvents     int
	processedEvents int
}

// NewScheduler creates an empty scheduler. Feeds must be added before
// Initialize.
func NewScheduler() *Scheduler {
	return &Scheduler{
		feeds: make(map[string][]types.MarketData),
		state: SchedulerUninitialized,
	}
}

// AddFeed registers one symbol's bars. Bars must be strictly increasing in
// time; each symbol may only be registered once, and only before Initialize.
func (s *Scheduler) AddFeed(symbol string, bars []types.MarketData) error {
	if s.state != SchedulerUninitialized {
		return errors.Newf(errors.ErrCodeSchedulerAlreadyInitialized, "cannot add feed for %s after initialization", symbol)
	}

	if len(bars) == 0 {
		return errors.Newf(errors.ErrCodeNoDataFound, "feed for %s has no bars", symbol)
	}

	if _, exists := s.feeds[symbol]; exists {
		return errors.Newf(errors.ErrCodeInvalidParameter, "feed for %s is already registered", symbol)
	}

	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return errors.Newf(errors.ErrCodeFeedNotSorted,
				"feed for %s is not strictly increasing at index %d (%s followed by %s)",
				symbol, i, bars[i-1].Time.Format(time.RFC3339Nano), bars[i].Time.Format(time.RFC3339Nano))
		}
	}

	s.feeds[symbol] = bars

	return nil
}

// Initialize freezes the registered feeds and positions the clock one
// nanosecond before the earliest bar, so the first batch is strictly in the
// future of the current time.
func (s *Scheduler) Initialize() error {
	if s.state != SchedulerUninitialized {
		return errors.New(errors.ErrCodeSchedulerAlreadyInitialized, "scheduler is already initialized")
	}

	if len(s.feeds) == 0 {
		return errors.New(errors.ErrCodeSchedulerNoFeeds, "no feeds registered")
	}

	s.rebuild()
	s.state = SchedulerInitialized

	return nil
}

func (s *Scheduler) rebuild() {
	s.heap = make(schedulerHeap, 0, len(s.feeds))
	s.totalEvents = 0

	first := time.Time{}
	last := time.Time{}

	for symbol, bars := range s.feeds {
		s.heap = append(s.heap, &feedCursor{symbol: symbol, bars: bars})
		s.totalEvents += len(bars)

		if first.IsZero() || bars[0].Time.Before(first) {
			first = bars[0].Time
		}

		if tail := bars[len(bars)-1].Time; tail.After(last) {
			last = tail
		}
	}

	heap.Init(&s.heap)

	s.startTime = first
	s.endTime = last
	s.currentTime = first.Add(-time.Nanosecond)
	s.processedEvents = 0
}

// NextBatch returns the next batch of bars sharing the minimal pending
// timestamp. It returns false exactly once, when the feeds are drained; calling
// again after that is a state error, as is calling before Initialize.
func (s *Scheduler) NextBatch() (types.Event, bool, error) {
	switch s.state {
	case SchedulerUninitialized:
		return types.Event{}, false, errors.New(errors.ErrCodeSchedulerNotInitialized, "scheduler is not initialized")
	case SchedulerComplete:
		return types.Event{}, false, errors.New(errors.ErrCodeSchedulerComplete, "scheduler is complete")
	}

	s.state = SchedulerRunning

	if s.heap.Len() == 0 {
		s.state = SchedulerComplete
		s.currentTime = s.endTime

		return types.Event{}, false, nil
	}

	batchTime := s.heap[0].head().Time
	event := types.Event{Time: batchTime}

	// Feeds are strictly increasing, so an advanced cursor can never re-enter
	// this batch; equal-time heads pop in symbol order.
	for s.heap.Len() > 0 && s.heap[0].head().Time.Equal(batchTime) {
		cursor := s.heap[0]
		event.Bars = append(event.Bars, cursor.head())
		cursor.next++
		s.processedEvents++

		if cursor.drained() {
			heap.Pop(&s.heap)
		} else {
			heap.Fix(&s.heap, 0)
		}
	}

	s.currentTime = batchTime

	return event, true, nil
}

// IsComplete reports whether every bar has been revealed.
func (s *Scheduler) IsComplete() bool {
	if s.state == SchedulerComplete {
		return true
	}

	return s.state == SchedulerRunning && s.heap.Len() == 0
}

// Progress returns the fraction of bars revealed so far, in [0, 1].
func (s *Scheduler) Progress() float64 {
	if s.totalEvents == 0 {
		return 0
	}

	return float64(s.processedEvents) / float64(s.totalEvents)
}

// CurrentTime returns the time of the last revealed batch. Before the first
// batch it sits one nanosecond before the earliest bar.
func (s *Scheduler) CurrentTime() time.Time {
	return s.currentTime
}

// StartTime returns the earliest bar time across all feeds.
func (s *Scheduler) StartTime() time.Time {
	return s.startTime
}

// EndTime returns the latest bar time across all feeds.
func (s *Scheduler) EndTime() time.Time {
	return s.endTime
}

// Reset rewinds the scheduler to one nanosecond before the earliest bar so the
// same feeds can be replayed.
func (s *Scheduler) Reset() error {
	if s.state == SchedulerUninitialized {
		return errors.New(errors.ErrCodeSchedulerNotInitialized, "scheduler is not initialized")
	}

	s.rebuild()
	s.state = SchedulerInitialized

	return nil
}

// Stats returns a snapshot of scheduler progress.
func (s *Scheduler) Stats() SchedulerStats {
	spanDays := int64(0)
	if s.state != SchedulerUninitialized {
		spanDays = int64(s.endTime.Sub(s.startTime).Hours() / 24)
	}

	return SchedulerStats{
		TotalSymbols:    len(s.feeds),
		TotalEvents:     s.totalEvents,
		ProcessedEvents: s.processedEvents,
		TimeSpanDays:    spanDays,
		Progress:        s.Progress(),
		IsComplete:      s.IsComplete(),
	}
}
