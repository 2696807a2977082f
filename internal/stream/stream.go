// Package stream publishes simulation snapshots to an external renderer over
// WebSocket and routes the renderer's control commands back to a dispatcher.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mohamedbenhasan1/VRUGuard/internal/dispatcher"
	"github.com/mohamedbenhasan1/VRUGuard/internal/geo"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/streaming"
)

// Config holds WebSocket publisher configuration.
type Config struct {
	URL    string
	Secret string
}

// Dispatcher executes inbound commands.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Publisher streams snapshots to a renderer.
type Publisher struct {
	conn       *connection
	cfg        Config
	dispatcher Dispatcher
	logger     *slog.Logger
	sessionID  string
	started    atomic.Bool
	published  atomic.Uint64
	dropped    atomic.Uint64
}

// New creates a Publisher. d may be nil, in which case inbound commands are
// answered with an error.
func New(cfg Config, d Dispatcher, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		conn:       newConnection(logger),
		cfg:        cfg,
		dispatcher: d,
		logger:     logger,
	}
	p.conn.onCommand = p.handleCommand
	return p
}

// Start connects and announces the session, waiting for the renderer's ack.
func (p *Publisher) Start(session streaming.StartSessionPayload) error {
	if err := p.conn.dial(p.cfg.URL, p.cfg.Secret); err != nil {
		return err
	}

	data, err := marshalEnvelope(streaming.TypeStartSession, session)
	if err != nil {
		return err
	}

	p.conn.mu.Lock()
	p.conn.cachedStartMsg = data
	p.conn.mu.Unlock()

	if err := p.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	p.sessionID = session.SessionID
	p.started.Store(true)
	p.logger.Info("Stream session started", "session", session.SessionID, "url", p.cfg.URL)
	return nil
}

// Publish sends one snapshot. It never blocks; frames are dropped when the
// send buffer is full. It matches engine.Listener.
func (p *Publisher) Publish(s *core.SimulationState) {
	if !p.started.Load() {
		return
	}
	data, err := marshalEnvelope(streaming.TypeSnapshot, p.snapshotPayload(s))
	if err != nil {
		p.logger.Error("Failed to encode snapshot", "tick", s.Tick, "error", err)
		return
	}
	if p.conn.send(data) {
		p.published.Add(1)
	} else {
		p.dropped.Add(1)
	}
}

// Stats returns the number of snapshots queued and dropped so far.
func (p *Publisher) Stats() (published, dropped uint64) {
	return p.published.Load(), p.dropped.Load()
}

// Close ends the session and disconnects.
func (p *Publisher) Close() error {
	if p.started.Swap(false) {
		data, err := marshalEnvelope(streaming.TypeEndSession, nil)
		if err == nil {
			if err := p.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout); err != nil {
				p.logger.Warn("End session not acknowledged", "error", err)
			}
		}
		p.conn.mu.Lock()
		p.conn.cachedStartMsg = nil
		p.conn.mu.Unlock()
	}
	return p.conn.close()
}

func (p *Publisher) snapshotPayload(s *core.SimulationState) streaming.SnapshotPayload {
	agents := make([]streaming.AgentView, len(s.Agents))
	for i, a := range s.Agents {
		x, y := geo.ToWebMercator(a.Position)
		agents[i] = streaming.AgentView{Agent: a, X: x, Y: y}
	}
	zones := make([]streaming.ZoneView, len(s.Zones))
	for i, z := range s.Zones {
		wkt, err := geo.ZoneWKT(z.Bounds)
		if err != nil {
			p.logger.Debug("Skipping zone geometry", "zone", z.ID, "error", err)
		}
		zones[i] = streaming.ZoneView{Zone: z, WKT: wkt}
	}
	return streaming.SnapshotPayload{
		SessionID: p.sessionID,
		Tick:      s.Tick,
		Timestamp: s.Timestamp,
		Agents:    agents,
		Zones:     zones,
		Metrics:   s.Metrics,
	}
}

func (p *Publisher) handleCommand(cmd streaming.CommandPayload) {
	res := streaming.CommandResultPayload{ID: cmd.ID}

	if p.dispatcher == nil {
		res.Error = "commands are not accepted"
	} else {
		out, err := p.dispatcher.Dispatch(dispatcher.Event{
			Command:   cmd.Command,
			Args:      cmd.Args,
			Timestamp: time.Now(),
		})
		if err != nil {
			res.Error = err.Error()
		} else {
			res.OK = true
			res.Result = out
		}
	}

	data, err := marshalEnvelope(streaming.TypeCommandResult, res)
	if err != nil {
		p.logger.Error("Failed to encode command result", "command", cmd.Command, "error", err)
		return
	}
	p.conn.send(data)
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env := streaming.Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
