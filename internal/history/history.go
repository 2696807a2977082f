// Package history keeps a rolling window of headline metrics for charts.
package history

import (
	"time"

	"github.com/mohamedbenhasan1/VRUGuard/internal/queue"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// DefaultCapacity is the number of samples retained.
const DefaultCapacity = 50

// Sample is one point of the rolling chart.
type Sample struct {
	Time  time.Time `json:"time"`
	Error float64   `json:"error"`
	Risk  int       `json:"risk"` // collision warnings in the snapshot
}

// History is a bounded FIFO of samples. It is safe for concurrent use.
type History struct {
	samples *queue.Queue[Sample]
}

// New returns a History holding at most capacity samples.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{samples: queue.NewBounded[Sample](capacity)}
}

// Record appends a sample taken from s. It matches engine.Listener.
func (h *History) Record(s *core.SimulationState) {
	h.samples.Push(Sample{
		Time:  s.Timestamp,
		Error: s.Metrics.AvgError,
		Risk:  s.Metrics.CollisionWarnings,
	})
}

// Samples returns a copy of the retained samples, oldest first.
func (h *History) Samples() []Sample {
	return h.samples.Snapshot()
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	return h.samples.Len()
}

// Reset drops every retained sample.
func (h *History) Reset() {
	h.samples.Clear()
}
