// pkg/core/agent.go
package core

// SensorSource is one positioning input owned by an Agent.
type SensorSource struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Category SensorCategory `json:"type"`
	Accuracy float64        `json:"accuracy"` // meters
	Active   bool           `json:"active"`
}

// Agent is a simulated road user tracked by the engine.
type Agent struct {
	ID                string         `json:"id"`
	Type              AgentType      `json:"type"`
	Position          Coordinate     `json:"position"`
	Velocity          Velocity       `json:"velocity"`
	Heading           float64        `json:"heading"` // degrees
	Sensors           []SensorSource `json:"sensors"`
	RiskLevel         RiskLevel      `json:"riskLevel"`
	LocalizationError float64        `json:"localizationError"` // meters
	IsUserControlled  bool           `json:"isUserControlled"`
}

// ActiveSensors returns the active sensors in roster order.
func (a *Agent) ActiveSensors() []SensorSource {
	active := make([]SensorSource, 0, len(a.Sensors))
	for _, s := range a.Sensors {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}

// Stationary reports whether the agent has zero velocity.
func (a *Agent) Stationary() bool {
	return a.Velocity.X == 0 && a.Velocity.Y == 0
}

// Clone returns a deep copy; the sensor slice is not shared.
func (a Agent) Clone() Agent {
	if a.Sensors != nil {
		sensors := make([]SensorSource, len(a.Sensors))
		copy(sensors, a.Sensors)
		a.Sensors = sensors
	}
	return a
}
