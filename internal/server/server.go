// Package server hosts backtest runs over HTTP: a small REST surface for run
// results and a WebSocket stream of live run events.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/lanternworks/lantern-backtest/internal/logger"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"go.uber.org/zap"
)

// subscriberBuffer caps one client's in-flight events. Past this depth the
// oldest event is dropped instead of blocking the ingest loop.
const subscriberBuffer = 64

// Config holds the server's dependencies.
type Config struct {
	// ResultsFolder is scanned for result.yaml files so finished runs stay
	// listable after the engine that produced them is gone. Empty disables
	// the scan.
	ResultsFolder string
	Logger        *logger.Logger
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID           string               `json:"id"`
	Status       types.BacktestStatus `json:"status"`
	StrategyName string               `json:"strategy_name,omitempty"`
	Progress     float64              `json:"progress"`
	FinalEquity  *float64             `json:"final_equity,omitempty"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// runState tracks one run observed on an engine's event stream.
type runState struct {
	summary     RunSummary
	terminal    *types.BacktestEvent
	result      *types.BacktestResult
	subscribers map[chan types.BacktestEvent]struct{}
}

// Server serves run listings, results and live event streams.
type Server struct {
	mu sync.RWMutex

	log           *logger.Logger
	resultsFolder string

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	runs      map[string]*runState
	firstSeen map[string]int
	seen      int
}

// NewServer creates a server. Call Watch to attach an engine's event stream
// and Start to begin listening.
func NewServer(config Config) *Server {
	return &Server{
		mu:            sync.RWMutex{},
		log:           config.Logger,
		resultsFolder: config.ResultsFolder,
		httpServer:    nil,
		listener:      nil,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		runs:      make(map[string]*runState),
		firstSeen: make(map[string]int),
		seen:      0,
	}
}

// Watch consumes an engine's event stream until the engine closes it. Every
// event updates the run registry and fans out to that run's subscribers.
func (s *Server) Watch(events <-chan types.BacktestEvent) {
	go func() {
		for event := range events {
			s.ingest(event)
		}
	}()
}

// Start begins serving on the given address. ":0" picks a free port; use
// Address to discover it.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc("/api/runs", s.handleListRuns).Methods("GET")
	router.HandleFunc("/api/runs/{id}", s.handleGetRun).Methods("GET")
	router.HandleFunc("/api/runs/{id}/events", s.handleRunEvents).Methods("GET")

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			s.log.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	s.log.Info("Server listening", zap.String("address", s.Address()))

	return nil
}

// Stop shuts the server down, ending every open event stream.
func (s *Server) Stop() error {
	s.mu.Lock()
	for _, run := range s.runs {
		for ch := range run.subscribers {
			delete(run.subscribers, ch)
			close(ch)
		}
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Address returns the address the server is listening on.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the base URL for the server.
func (s *Server) BaseURL() string {
	return "http://" + s.Address()
}

// WebSocketURL returns the WebSocket URL for the server.
func (s *Server) WebSocketURL() string {
	return "ws://" + s.Address()
}

// ingest folds one event into the run registry and fans it out. A terminal
// event closes every subscriber of the run.
func (s *Server) ingest(event types.BacktestEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[event.RunID]
	if !ok {
		run = &runState{
			summary: RunSummary{
				ID:           event.RunID,
				Status:       types.BacktestStatusPending,
				StrategyName: "",
				Progress:     0,
				FinalEquity:  nil,
				UpdatedAt:    event.Time,
			},
			terminal:    nil,
			result:      nil,
			subscribers: make(map[chan types.BacktestEvent]struct{}),
		}
		s.runs[event.RunID] = run
		s.firstSeen[event.RunID] = s.seen
		s.seen++
	}

	run.summary.UpdatedAt = event.Time

	switch event.Type {
	case types.BacktestEventStarted:
		run.summary.Status = types.BacktestStatusRunning
	case types.BacktestEventProgress:
		run.summary.Status = types.BacktestStatusRunning
		if event.Progress != nil {
			run.summary.Progress = event.Progress.Completed
		}
	case types.BacktestEventCompleted, types.BacktestEventFailed, types.BacktestEventCancelled:
		terminal := event
		run.terminal = &terminal
		run.result = event.Result

		if event.Result != nil {
			run.summary.Status = event.Result.Status
			run.summary.StrategyName = event.Result.StrategyName
			finalEquity := event.Result.FinalEquity
			run.summary.FinalEquity = &finalEquity
		}

		if event.Type == types.BacktestEventCompleted {
			run.summary.Progress = 1
		}
	}

	for ch := range run.subscribers {
		offer(ch, event)
	}

	if run.terminal != nil {
		for ch := range run.subscribers {
			delete(run.subscribers, ch)
			close(ch)
		}
	}
}

// offer enqueues without blocking, dropping the oldest buffered event when
// the subscriber is full.
func offer(ch chan types.BacktestEvent, event types.BacktestEvent) {
	for {
		select {
		case ch <- event:
			return
		default:
		}

		select {
		case <-ch:
		default:
		}
	}
}

// handleListRuns serves GET /api/runs: every run observed live, merged with
// finished results found in the results folder.
func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()

	summaries := make([]RunSummary, 0, len(s.runs))
	orderIndex := make(map[string]int, len(s.runs))
	seen := s.seen

	for id, run := range s.runs {
		summaries = append(summaries, run.summary)
		orderIndex[id] = s.firstSeen[id]
	}

	s.mu.RUnlock()

	known := make(map[string]bool, len(summaries))
	for _, summary := range summaries {
		known[summary.ID] = true
	}

	for _, result := range s.diskResults() {
		if known[result.ID] {
			continue
		}

		finalEquity := result.FinalEquity
		summaries = append(summaries, RunSummary{
			ID:           result.ID,
			Status:       result.Status,
			StrategyName: result.StrategyName,
			Progress:     diskProgress(result.Status),
			FinalEquity:  &finalEquity,
			UpdatedAt:    result.Timestamp,
		})
		orderIndex[result.ID] = seen + len(orderIndex)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return orderIndex[summaries[i].ID] < orderIndex[summaries[j].ID]
	})

	writeJSON(w, http.StatusOK, summaries)
}

// handleGetRun serves GET /api/runs/{id}: the full result, available once the
// run reached a terminal status.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	if result, ok := s.lookupResult(runID); ok {
		writeJSON(w, http.StatusOK, result)
		return
	}

	s.mu.RLock()
	_, live := s.runs[runID]
	s.mu.RUnlock()

	if live {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("run %s has no result yet", runID))
		return
	}

	writeJSONError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
}

// handleRunEvents serves GET /api/runs/{id}/events over WebSocket. A live run
// streams until its terminal event; a finished run replays the terminal event
// and closes.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	replay, stream, cancel, found := s.openStream(runID)
	if !found {
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		return
	}

	defer conn.Close()
	defer cancel()

	for _, event := range replay {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}

	if stream == nil {
		s.writeStreamEnd(conn)
		return
	}

	// notice the client going away while we wait for run events
	disconnected := make(chan struct{})

	go func() {
		defer close(disconnected)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-stream:
			if !ok {
				s.writeStreamEnd(conn)
				return
			}

			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-disconnected:
			return
		}
	}
}

// openStream resolves a run into a replay slice and, for live runs, a
// subscription. The cancel func releases the subscription and is safe to call
// after the ingest loop already closed it.
func (s *Server) openStream(runID string) (replay []types.BacktestEvent, stream chan types.BacktestEvent, cancel func(), found bool) {
	s.mu.Lock()

	run, ok := s.runs[runID]
	if ok && run.terminal != nil {
		terminal := *run.terminal
		s.mu.Unlock()

		return []types.BacktestEvent{terminal}, nil, func() {}, true
	}

	if ok {
		ch := make(chan types.BacktestEvent, subscriberBuffer)
		run.subscribers[ch] = struct{}{}
		s.mu.Unlock()

		cancel = func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			if _, still := run.subscribers[ch]; still {
				delete(run.subscribers, ch)
				close(ch)
			}
		}

		return nil, ch, cancel, true
	}

	s.mu.Unlock()

	// not observed live; a finished result on disk still replays its outcome
	if result, ok := s.lookupResult(runID); ok {
		terminal := types.BacktestEvent{
			Type:   terminalEventType(result.Status),
			RunID:  result.ID,
			Time:   result.Timestamp,
			Result: &result,
		}

		return []types.BacktestEvent{terminal}, nil, func() {}, true
	}

	return nil, nil, nil, false
}

// lookupResult finds a run's result in memory first, then in the results
// folder.
func (s *Server) lookupResult(runID string) (types.BacktestResult, bool) {
	s.mu.RLock()
	run, ok := s.runs[runID]

	if ok && run.result != nil {
		result := *run.result
		s.mu.RUnlock()

		return result, true
	}

	s.mu.RUnlock()

	for _, result := range s.diskResults() {
		if result.ID == runID {
			return result, true
		}
	}

	return types.BacktestResult{}, false
}

// diskResults loads every result.yaml under the results folder. Unreadable
// files are skipped; a half-written result should not take the listing down.
func (s *Server) diskResults() []types.BacktestResult {
	if s.resultsFolder == "" {
		return nil
	}

	var results []types.BacktestResult

	walkErr := filepath.WalkDir(s.resultsFolder, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() || entry.Name() != "result.yaml" {
			return nil
		}

		result, readErr := types.ReadBacktestResult(path)
		if readErr != nil {
			s.log.Error("Skipping unreadable result",
				zap.String("path", path),
				zap.Error(readErr),
			)

			return nil
		}

		results = append(results, result)

		return nil
	})
	if walkErr != nil {
		s.log.Error("Results folder scan failed",
			zap.String("folder", s.resultsFolder),
			zap.Error(walkErr),
		)
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].Timestamp.Before(results[j].Timestamp)
		}

		return results[i].ID < results[j].ID
	})

	return results
}

// writeStreamEnd sends a normal-closure control frame after the last event.
func (s *Server) writeStreamEnd(conn *websocket.Conn) {
	deadline := time.Now().Add(time.Second)
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")

	if err := conn.WriteControl(websocket.CloseMessage, message, deadline); err != nil {
		s.log.Debug("Failed to send close frame", zap.Error(err))
	}
}

func terminalEventType(status types.BacktestStatus) types.BacktestEventType {
	switch status {
	case types.BacktestStatusCancelled:
		return types.BacktestEventCancelled
	case types.BacktestStatusFailed:
		return types.BacktestEventFailed
	default:
		return types.BacktestEventCompleted
	}
}

func diskProgress(status types.BacktestStatus) float64 {
	if status == types.BacktestStatusCompleted {
		return 1
	}

	return 0
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
