// Package engine owns the simulation roster and advances it on a fixed tick.
// Every tick produces one immutable core.SimulationState that is handed to
// all registered listeners before the next tick starts.
package engine

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mohamedbenhasan1/VRUGuard/internal/fusion"
	"github.com/mohamedbenhasan1/VRUGuard/internal/geo"
	"github.com/mohamedbenhasan1/VRUGuard/internal/risk"
	"github.com/mohamedbenhasan1/VRUGuard/internal/zone"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// Listener receives every published snapshot. It must not modify it.
type Listener func(*core.SimulationState)

// Option configures an Engine.
type Option func(*options)

type options struct {
	sessionID string
	roster    []core.Agent
	src    rand.Source
	logger *slog.Logger
	clock  func() time.Time
}

// WithRoster replaces the generated roster. The slice is copied.
func WithRoster(agents []core.Agent) Option {
	return func(o *options) {
		o.roster = make([]core.Agent, len(agents))
		for i, a := range agents {
			o.roster[i] = a.Clone()
		}
	}
}

// WithSessionID sets the session id; a random UUID is used otherwise.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

// WithRand seeds roster generation and fusion jitter.
func WithRand(src rand.Source) Option {
	return func(o *options) { o.src = src }
}

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the snapshot timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

type subscription struct {
	id uint64
	fn Listener
}

// Engine is the single owner of simulation state.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	clock     func() time.Time
	sessionID string
	inst      instruments

	estimator  *fusion.Estimator
	aggregator *zone.Aggregator

	// tickMu serializes whole ticks, including listener delivery.
	tickMu sync.Mutex

	// mu guards the live roster and the published state.
	mu          sync.Mutex
	roster      []core.Agent
	userIdx     int
	state       *core.SimulationState
	tick        uint64
	userWeights []float64

	subMu     sync.Mutex
	subs      []subscription
	nextSubID uint64

	// lastTick and running are readable without any engine lock, so log
	// handlers may query them while the engine itself is logging.
	lastTick atomic.Uint64
	running  atomic.Bool
	loops    atomic.Int32

	lifeMu sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds an Engine in the STOPPED state with its initial snapshot.
func New(cfg Config, opts ...Option) (*Engine, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	cfg = cfg.withDefaults()

	if o.src == nil {
		o.src = rand.NewSource(time.Now().UnixNano())
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.sessionID == "" {
		o.sessionID = uuid.NewString()
	}
	rng := rand.New(o.src)

	roster := o.roster
	if roster == nil {
		roster = generateRoster(cfg, rng)
	}
	userIdx, err := validateRoster(roster)
	if err != nil {
		return nil, err
	}

	inst, err := newInstruments()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		logger:     o.logger,
		clock:      o.clock,
		sessionID:  o.sessionID,
		inst:       inst,
		estimator:  fusion.NewEstimator(rand.NewSource(rng.Int63())),
		aggregator: zone.NewAggregator(cfg.Origin, cfg.CellSize),
		roster:     roster,
		userIdx:    userIdx,
	}
	e.state = e.initialState()

	e.logger.Info("Simulation engine created",
		"session", e.sessionID,
		"agents", len(roster),
		"userAgent", roster[userIdx].ID,
		"tickInterval", cfg.TickInterval,
	)
	return e, nil
}

func (e *Engine) initialState() *core.SimulationState {
	user := &e.roster[e.userIdx]
	metrics := core.Metrics{
		TotalAgents: len(e.roster),
		AvgError:    user.LocalizationError,
	}
	agents := make([]core.Agent, len(e.roster))
	for i := range e.roster {
		agents[i] = e.roster[i].Clone()
		if agents[i].RiskLevel != core.Safe {
			metrics.CollisionWarnings++
		}
	}
	return &core.SimulationState{
		Timestamp: e.clock(),
		Agents:    agents,
		Zones:     e.aggregator.Compute(e.roster),
		Metrics:   metrics,
	}
}

// SessionID identifies this engine instance in logs and streams.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// CurrentState returns the latest published snapshot, or the initial one.
func (e *Engine) CurrentState() *core.SimulationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// UserWeights returns the fusion weights computed for the user agent on the
// last tick. They are informational only.
func (e *Engine) UserWeights() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]float64, len(e.userWeights))
	copy(out, e.userWeights)
	return out
}

// Tick advances the simulation by one interval and publishes the result.
func (e *Engine) Tick() {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()

	e.mu.Lock()
	next := e.step()
	e.state = next
	e.mu.Unlock()
	e.lastTick.Store(next.Tick)

	e.publish(next)

	ctx := context.Background()
	e.inst.ticks.Add(ctx, 1)
	e.inst.tickDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
}

// step computes the next snapshot from the live roster. Caller holds e.mu.
func (e *Engine) step() *core.SimulationState {
	cur := e.roster
	next := make([]core.Agent, len(cur))
	dt := e.cfg.TickInterval.Seconds()
	metrics := core.Metrics{TotalAgents: len(cur)}

	for i := range cur {
		agent := cur[i].Clone()

		nextPos := agent.Position
		if i != e.userIdx || !agent.Stationary() {
			nextPos = geo.Displace(agent.Position, agent.Velocity.X*dt, agent.Velocity.Y*dt)
			if geo.Distance(nextPos, e.cfg.Origin) > e.cfg.ContainmentRadius {
				nextPos = e.cfg.Origin
			}
		}

		nearby := risk.Neighbors(i, cur, risk.SearchRadius)
		sources := agent.ActiveSensors()
		if len(nearby) > 0 {
			sources = append(sources, cooperativeSensor)
		}
		est := e.estimator.Estimate(sources)

		neighborPositions := make([]core.Coordinate, len(nearby))
		for j, idx := range nearby {
			neighborPositions[j] = cur[idx].Position
		}
		level := risk.Classify(nextPos, neighborPositions)

		agent.Position = nextPos
		agent.RiskLevel = level
		agent.LocalizationError = est.Error
		next[i] = agent

		if i == e.userIdx {
			metrics.AvgError = est.Error
			metrics.AdvancedFusionActive = est.Eligible
			e.userWeights = est.Weights
		}
		if level != core.Safe {
			metrics.CollisionWarnings++
		}
	}

	e.roster = next
	e.tick++

	published := make([]core.Agent, len(next))
	for i := range next {
		published[i] = next[i].Clone()
	}

	return &core.SimulationState{
		Tick:      e.tick,
		Timestamp: e.clock(),
		Agents:    published,
		Zones:     e.aggregator.Compute(next),
		Metrics:   metrics,
	}
}

// Subscribe registers fn for every future snapshot. The returned function
// removes it; calling it more than once is harmless.
func (e *Engine) Subscribe(fn Listener) (unsubscribe func()) {
	e.subMu.Lock()
	e.nextSubID++
	id := e.nextSubID
	e.subs = append(e.subs, subscription{id: id, fn: fn})
	e.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			defer e.subMu.Unlock()
			for i, s := range e.subs {
				if s.id == id {
					e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (e *Engine) publish(state *core.SimulationState) {
	e.subMu.Lock()
	subs := make([]subscription, len(e.subs))
	copy(subs, e.subs)
	e.subMu.Unlock()

	for _, s := range subs {
		e.notify(s, state)
	}
}

func (e *Engine) notify(s subscription, state *core.SimulationState) {
	defer func() {
		if r := recover(); r != nil {
			e.inst.listenerPanics.Add(context.Background(), 1)
			e.logger.Error("Snapshot listener panicked", "subscription", s.id, "tick", state.Tick, "panic", r)
		}
	}()
	s.fn(state)
}

// Start begins ticking. Calling Start on a running engine does nothing.
func (e *Engine) Start() {
	e.lifeMu.Lock()
	if e.running.Load() {
		e.lifeMu.Unlock()
		return
	}
	e.running.Store(true)
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.loops.Add(1)
	go e.loop(e.stopCh, e.doneCh)
	e.lifeMu.Unlock()

	e.logger.Info("Simulation started", "session", e.sessionID)
}

// Stop halts ticking and waits for an in-flight tick to finish.
// Calling Stop on a stopped engine does nothing. Stop must not be called
// from inside a Listener.
func (e *Engine) Stop() {
	e.lifeMu.Lock()
	if !e.running.Load() {
		e.lifeMu.Unlock()
		return
	}
	e.running.Store(false)
	close(e.stopCh)
	done := e.doneCh
	e.lifeMu.Unlock()

	<-done
	e.logger.Info("Simulation stopped", "session", e.sessionID)
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// LastTick returns the tick number of the latest published snapshot.
func (e *Engine) LastTick() uint64 {
	return e.lastTick.Load()
}

func (e *Engine) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer e.loops.Add(-1)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			e.Tick()
		}
	}
}

// SetVelocity sets the user agent's velocity in m/s and points its heading
// along it. Non-finite values are ignored.
func (e *Engine) SetVelocity(vx, vy float64) {
	if math.IsNaN(vx) || math.IsNaN(vy) || math.IsInf(vx, 0) || math.IsInf(vy, 0) {
		e.logger.Warn("Ignoring non-finite velocity", "vx", vx, "vy", vy)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	user := e.userAgent()
	if user == nil {
		return
	}
	user.Velocity = core.Velocity{X: vx, Y: vy}
	if vx != 0 || vy != 0 {
		user.Heading = math.Atan2(vy, vx) * 180 / math.Pi
	}
}

// SetAgentType changes the user agent's category.
func (e *Engine) SetAgentType(t core.AgentType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if user := e.userAgent(); user != nil {
		user.Type = t
	}
}

// ToggleSensor flips the active flag of one of the user agent's sensors.
// Unknown ids are ignored.
func (e *Engine) ToggleSensor(sensorID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	user := e.userAgent()
	if user == nil {
		return
	}
	for i := range user.Sensors {
		if user.Sensors[i].ID == sensorID {
			user.Sensors[i].Active = !user.Sensors[i].Active
			return
		}
	}
}

// userAgent returns the live user agent. Caller holds e.mu.
func (e *Engine) userAgent() *core.Agent {
	if e.userIdx < 0 || e.userIdx >= len(e.roster) {
		return nil
	}
	return &e.roster[e.userIdx]
}

// UserAgent returns a copy of the live user agent, including mutations not
// yet published by a tick.
func (e *Engine) UserAgent() (core.Agent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	user := e.userAgent()
	if user == nil {
		return core.Agent{}, false
	}
	return user.Clone(), true
}
