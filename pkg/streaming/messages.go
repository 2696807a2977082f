// Package streaming defines the wire format exchanged with a renderer over
// WebSocket. Every frame is a JSON Envelope.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession  = "start_session"
	TypeEndSession    = "end_session"
	TypeSnapshot      = "snapshot"
	TypeCommand       = "command"
	TypeCommandResult = "command_result"
	TypeAck           = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload announces a simulation session.
type StartSessionPayload struct {
	SessionID      string          `json:"sessionId"`
	Origin         core.Coordinate `json:"origin"`
	TickIntervalMs int64           `json:"tickIntervalMs"`
	CellSize       float64         `json:"cellSize"`
	StartedAt      time.Time       `json:"startedAt"`
}

// AgentView is an agent with its projected map position.
type AgentView struct {
	core.Agent
	X float64 `json:"x"` // EPSG:3857 meters
	Y float64 `json:"y"`
}

// ZoneView is a zone with its boundary as WKT.
type ZoneView struct {
	core.Zone
	WKT string `json:"wkt,omitempty"`
}

// SnapshotPayload is one published simulation state.
type SnapshotPayload struct {
	SessionID string       `json:"sessionId"`
	Tick      uint64       `json:"tick"`
	Timestamp time.Time    `json:"timestamp"`
	Agents    []AgentView  `json:"vrus"`
	Zones     []ZoneView   `json:"zones"`
	Metrics   core.Metrics `json:"metrics"`
}

// CommandPayload is an operator command sent by the renderer.
type CommandPayload struct {
	ID      string   `json:"id"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// CommandResultPayload answers a CommandPayload with the same ID.
type CommandResultPayload struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
