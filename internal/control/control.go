// Package control turns textual operator commands into engine mutations.
// Arguments are validated here; the engine only ever sees well-formed input.
package control

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mohamedbenhasan1/VRUGuard/internal/dispatcher"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// Command names accepted by the dispatcher.
const (
	CmdStart        = ":START:"
	CmdStop         = ":STOP:"
	CmdSetVelocity  = ":SET:VELOCITY:"
	CmdSetType      = ":SET:TYPE:"
	CmdToggleSensor = ":TOGGLE:SENSOR:"
	CmdAdvise       = ":ADVISE:"
)

// ErrInvalidArgs is returned when a command's arguments cannot be applied.
var ErrInvalidArgs = errors.New("invalid command arguments")

// Engine is the subset of the simulation engine driven by commands.
type Engine interface {
	Start()
	Stop()
	SetVelocity(vx, vy float64)
	SetAgentType(t core.AgentType)
	ToggleSensor(sensorID string)
}

// Explainer produces an on-demand analysis of the current fusion state.
type Explainer interface {
	Explain(ctx context.Context) (string, error)
}

// Handlers binds command handlers to an engine.
type Handlers struct {
	engine        Engine
	explainer     Explainer
	adviseTimeout time.Duration
}

// New returns Handlers for eng. explainer may be nil, in which case
// :ADVISE: is not registered.
func New(eng Engine, explainer Explainer) *Handlers {
	return &Handlers{
		engine:        eng,
		explainer:     explainer,
		adviseTimeout: 30 * time.Second,
	}
}

// Register installs every command on d.
func (h *Handlers) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdStart, h.handleStart, dispatcher.Logged())
	d.Register(CmdStop, h.handleStop, dispatcher.Logged())
	d.Register(CmdSetVelocity, h.handleSetVelocity, dispatcher.Logged())
	d.Register(CmdSetType, h.handleSetType, dispatcher.Logged())
	d.Register(CmdToggleSensor, h.handleToggleSensor, dispatcher.Logged())
	if h.explainer != nil {
		d.Register(CmdAdvise, h.handleAdvise, dispatcher.Logged())
	}
}

func (h *Handlers) handleStart(e dispatcher.Event) (any, error) {
	h.engine.Start()
	return "running", nil
}

func (h *Handlers) handleStop(e dispatcher.Event) (any, error) {
	h.engine.Stop()
	return "stopped", nil
}

func (h *Handlers) handleSetVelocity(e dispatcher.Event) (any, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("%w: %s expects 2 args, got %d", ErrInvalidArgs, e.Command, len(e.Args))
	}
	vx, err := parseFinite(e.Args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: vx: %v", ErrInvalidArgs, err)
	}
	vy, err := parseFinite(e.Args[1])
	if err != nil {
		return nil, fmt.Errorf("%w: vy: %v", ErrInvalidArgs, err)
	}
	h.engine.SetVelocity(vx, vy)
	return nil, nil
}

func (h *Handlers) handleSetType(e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("%w: %s expects 1 arg, got %d", ErrInvalidArgs, e.Command, len(e.Args))
	}
	t, err := core.ParseAgentType(e.Args[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	h.engine.SetAgentType(t)
	return t, nil
}

func (h *Handlers) handleToggleSensor(e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 || strings.TrimSpace(e.Args[0]) == "" {
		return nil, fmt.Errorf("%w: %s expects a sensor id", ErrInvalidArgs, e.Command)
	}
	h.engine.ToggleSensor(strings.TrimSpace(e.Args[0]))
	return nil, nil
}

func (h *Handlers) handleAdvise(e dispatcher.Event) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.adviseTimeout)
	defer cancel()
	return h.explainer.Explain(ctx)
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
