package advisory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

const (
	DefaultPollInterval = 15 * time.Second

	// FallbackRecommendation replaces an empty model answer.
	FallbackRecommendation = "Optimize sensor array."
)

// StateFunc returns the latest snapshot.
type StateFunc func() *core.SimulationState

// Advisor periodically turns the latest snapshot into a recommendation.
type Advisor struct {
	client   Client
	state    StateFunc
	interval time.Duration
	logger   *slog.Logger

	mu             sync.RWMutex
	recommendation string
	updatedAt      time.Time
}

// NewAdvisor creates an Advisor. A non-positive interval uses
// DefaultPollInterval.
func NewAdvisor(client Client, state StateFunc, interval time.Duration, logger *slog.Logger) *Advisor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{
		client:   client,
		state:    state,
		interval: interval,
		logger:   logger,
	}
}

// Recommendation returns the latest recommendation, or "" if none yet.
func (a *Advisor) Recommendation() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.recommendation
}

// UpdatedAt returns when the recommendation last changed.
func (a *Advisor) UpdatedAt() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.updatedAt
}

// Run polls until ctx is cancelled.
func (a *Advisor) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Poll(ctx)
		}
	}
}

// Poll asks for a tactical recommendation when the latest snapshot has any
// collision warnings. It reports whether the recommendation was updated.
func (a *Advisor) Poll(ctx context.Context) bool {
	if !a.client.Available() {
		return false
	}
	s := a.state()
	if s == nil || s.Metrics.CollisionWarnings == 0 {
		return false
	}

	text, err := a.client.Generate(ctx, TacticalPrompt(SummaryFromState(s)))
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.logger.Warn("Advisory request failed", "error", err)
		}
		return false
	}
	if text == "" {
		text = FallbackRecommendation
	}

	a.mu.Lock()
	a.recommendation = text
	a.updatedAt = time.Now()
	a.mu.Unlock()

	a.logger.Info("Advisory updated", "tick", s.Tick, "warnings", s.Metrics.CollisionWarnings, "recommendation", text)
	return true
}

// Explain asks for an analysis of the user agent's current localization error.
func (a *Advisor) Explain(ctx context.Context) (string, error) {
	if !a.client.Available() {
		return "", ErrUnavailable
	}
	s := a.state()
	if s == nil {
		return "", errors.New("no simulation state")
	}
	return a.client.Generate(ctx, ErrorAnalysisPrompt(SummaryFromState(s)))
}
