// Package monitor periodically writes the run status file.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// StatusFileName is written inside Dependencies.Dir.
const StatusFileName = "status.json"

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	State              func() *core.SimulationState
	EngineRunning      func() bool
	HistoryLen         func() int
	LastRecommendation func() string
	SessionID          string
	Dir                string
	Interval           time.Duration
	Logger             *slog.Logger
}

// Status is the document written to the status file.
type Status struct {
	Time               time.Time    `json:"time"`
	SessionID          string       `json:"sessionId"`
	Running            bool         `json:"running"`
	Tick               uint64       `json:"tick"`
	Metrics            core.Metrics `json:"metrics"`
	HistoryLength      int          `json:"historyLength"`
	LastRecommendation string       `json:"lastRecommendation,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Path returns the status file location.
func (s *Service) Path() string {
	return filepath.Join(s.deps.Dir, StatusFileName)
}

// GetStatus collects the current status from the dependencies.
func (s *Service) GetStatus() Status {
	st := Status{
		Time:      time.Now(),
		SessionID: s.deps.SessionID,
	}
	if s.deps.State != nil {
		if state := s.deps.State(); state != nil {
			st.Tick = state.Tick
			st.Metrics = state.Metrics
		}
	}
	if s.deps.EngineRunning != nil {
		st.Running = s.deps.EngineRunning()
	}
	if s.deps.HistoryLen != nil {
		st.HistoryLength = s.deps.HistoryLen()
	}
	if s.deps.LastRecommendation != nil {
		st.LastRecommendation = s.deps.LastRecommendation()
	}
	return st
}

// WriteStatus writes the current status, replacing the file atomically.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		return fmt.Errorf("replacing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if err := os.MkdirAll(s.deps.Dir, 0755); err != nil {
		return fmt.Errorf("creating status dir: %w", err)
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})

	go s.run(s.stopChan, s.doneChan)
	return nil
}

func (s *Service) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "path", s.Path(), "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.WriteStatus(); err != nil {
				logger.Error("Error writing status file", "error", err)
			}
		}
	}
}

// Stop stops the status monitor and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()

	<-done
}
