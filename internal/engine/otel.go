package engine

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/mohamedbenhasan1/VRUGuard/internal/engine"

type instruments struct {
	ticks          metric.Int64Counter
	tickDuration   metric.Float64Histogram
	listenerPanics metric.Int64Counter
}

// newInstruments uses the global OTel meter (no-op if not configured).
func newInstruments() (instruments, error) {
	m := otel.Meter(instrumentationName)

	var inst instruments
	var err error

	inst.ticks, err = m.Int64Counter(
		"engine.ticks",
		metric.WithDescription("Total simulation ticks completed"),
	)
	if err != nil {
		return inst, fmt.Errorf("creating tick counter: %w", err)
	}

	inst.tickDuration, err = m.Float64Histogram(
		"engine.tick.duration",
		metric.WithDescription("Time spent computing and publishing one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return inst, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	inst.listenerPanics, err = m.Int64Counter(
		"engine.listener.panics",
		metric.WithDescription("Listener callbacks that panicked and were recovered"),
	)
	if err != nil {
		return inst, fmt.Errorf("creating listener panic counter: %w", err)
	}

	return inst, nil
}
