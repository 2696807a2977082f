// pkg/core/state.go
package core

import "time"

// Zone is one cell of the aggregation grid.
// Bounds are ordered SW, SE, NE, NW.
type Zone struct {
	ID        string        `json:"id"`
	Center    Coordinate    `json:"center"`
	Bounds    [4]Coordinate `json:"bounds"`
	Density   int           `json:"density"`
	RiskLevel RiskLevel     `json:"riskLevel"`
}

// Metrics are the aggregate values published with every snapshot.
type Metrics struct {
	TotalAgents int `json:"totalVRUs"`
	// AvgError carries the user-controlled agent's localization error, not a
	// fleet average. Dashboards are built around that single-agent value.
	AvgError             float64 `json:"avgError"`
	AdvancedFusionActive bool    `json:"quantumFusionActive"`
	CollisionWarnings    int     `json:"collisionWarnings"`
}

// SimulationState is one immutable snapshot of the simulation.
// Consumers must treat it as read-only.
type SimulationState struct {
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
	Agents    []Agent   `json:"vrus"`
	Zones     []Zone    `json:"zones"`
	Metrics   Metrics   `json:"metrics"`
}

// UserAgent returns the user-controlled agent, if any.
func (s *SimulationState) UserAgent() (Agent, bool) {
	for _, a := range s.Agents {
		if a.IsUserControlled {
			return a, true
		}
	}
	return Agent{}, false
}

// Clone returns a deep copy of the snapshot.
func (s *SimulationState) Clone() *SimulationState {
	out := *s
	out.Agents = make([]Agent, len(s.Agents))
	for i, a := range s.Agents {
		out.Agents[i] = a.Clone()
	}
	out.Zones = make([]Zone, len(s.Zones))
	copy(out.Zones, s.Zones)
	return &out
}
