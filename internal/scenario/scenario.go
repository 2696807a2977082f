// Package scenario reads YAML files describing a simulation's starting
// roster: the random population mix plus explicitly placed agents.
package scenario

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mohamedbenhasan1/VRUGuard/internal/engine"
	"github.com/mohamedbenhasan1/VRUGuard/internal/geo"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid scenario")

// Scenario is the file format.
type Scenario struct {
	Name       string                   `yaml:"name"`
	Origin     *core.Coordinate         `yaml:"origin"`
	Population []engine.PopulationEntry `yaml:"population"`
	Agents     []AgentSpec              `yaml:"agents"`
	User       *UserSpec                `yaml:"user"`
}

// AgentSpec places one agent relative to the origin.
type AgentSpec struct {
	ID      string         `yaml:"id"`
	Type    core.AgentType `yaml:"type"`
	East    float64        `yaml:"east"`  // meters from origin
	North   float64        `yaml:"north"` // meters from origin
	Speed   *float64       `yaml:"speed"` // m/s; defaults by type
	Heading float64        `yaml:"heading"`
	Sensors []SensorSpec   `yaml:"sensors"`
}

// SensorSpec describes one sensor of a placed agent.
type SensorSpec struct {
	ID       string              `yaml:"id"`
	Name     string              `yaml:"name"`
	Category core.SensorCategory `yaml:"type"`
	Accuracy float64             `yaml:"accuracy"`
	Active   bool                `yaml:"active"`
}

// UserSpec overrides the user-controlled agent.
type UserSpec struct {
	Type          core.AgentType `yaml:"type"`
	East          float64        `yaml:"east"`
	North         float64        `yaml:"north"`
	ActiveSensors []string       `yaml:"activeSensors"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks types, counts, ids and coordinates.
func (s *Scenario) Validate() error {
	if s.Origin != nil && !geo.ValidCoordinate(*s.Origin) {
		return fmt.Errorf("%w: origin: %v", ErrInvalid, geo.ErrInvalidCoordinates)
	}
	for i, p := range s.Population {
		t, err := core.ParseAgentType(string(p.Type))
		if err != nil {
			return fmt.Errorf("%w: population[%d]: %v", ErrInvalid, i, err)
		}
		s.Population[i].Type = t
		if p.Count < 0 {
			return fmt.Errorf("%w: population[%d]: negative count", ErrInvalid, i)
		}
	}

	ids := map[string]struct{}{engine.UserAgentID: {}}
	for i := range s.Agents {
		a := &s.Agents[i]
		if a.ID == "" {
			return fmt.Errorf("%w: agents[%d]: missing id", ErrInvalid, i)
		}
		if _, dup := ids[a.ID]; dup {
			return fmt.Errorf("%w: duplicate agent id %q", ErrInvalid, a.ID)
		}
		ids[a.ID] = struct{}{}

		t, err := core.ParseAgentType(string(a.Type))
		if err != nil {
			return fmt.Errorf("%w: agent %s: %v", ErrInvalid, a.ID, err)
		}
		a.Type = t

		if !finite(a.East, a.North, a.Heading) || (a.Speed != nil && !finite(*a.Speed)) {
			return fmt.Errorf("%w: agent %s: non-finite value", ErrInvalid, a.ID)
		}
		sensorIDs := map[string]struct{}{}
		for _, sn := range a.Sensors {
			if _, dup := sensorIDs[sn.ID]; dup || sn.ID == "" {
				return fmt.Errorf("%w: agent %s: %v %q", ErrInvalid, a.ID, engine.ErrDuplicateSensor, sn.ID)
			}
			sensorIDs[sn.ID] = struct{}{}
		}
	}

	if s.User != nil {
		if s.User.Type != "" {
			t, err := core.ParseAgentType(string(s.User.Type))
			if err != nil {
				return fmt.Errorf("%w: user: %v", ErrInvalid, err)
			}
			s.User.Type = t
		}
		if !finite(s.User.East, s.User.North) {
			return fmt.Errorf("%w: user: non-finite position", ErrInvalid)
		}
	}
	return nil
}

// Apply merges the scenario into cfg: origin and population mix.
func (s *Scenario) Apply(cfg engine.Config) engine.Config {
	if s.Origin != nil {
		cfg.Origin = *s.Origin
	}
	if s.Population != nil {
		cfg.Population = s.Population
	}
	return cfg
}

// Roster builds the full starting roster for cfg, drawing random agents for
// the population mix from rng. It returns nil when the scenario places no
// agents and leaves the user untouched, so the engine generates its own.
func (s *Scenario) Roster(cfg engine.Config, rng *rand.Rand) []core.Agent {
	if len(s.Agents) == 0 && s.User == nil {
		return nil
	}
	cfg = s.Apply(cfg)

	var roster []core.Agent
	n := 0
	for _, p := range cfg.Population {
		for i := 0; i < p.Count; i++ {
			roster = append(roster, engine.RandomAgent(fmt.Sprintf("vru-%d", n), p.Type, cfg, rng))
			n++
		}
	}

	for _, a := range s.Agents {
		roster = append(roster, a.agent(cfg.Origin))
	}

	user := engine.NewUserAgent(cfg.Origin)
	if s.User != nil {
		user.Position = geo.Displace(cfg.Origin, s.User.East, s.User.North)
		if s.User.Type != "" {
			user.Type = s.User.Type
		}
		if s.User.ActiveSensors != nil {
			active := make(map[string]bool, len(s.User.ActiveSensors))
			for _, id := range s.User.ActiveSensors {
				active[id] = true
			}
			for i := range user.Sensors {
				user.Sensors[i].Active = active[user.Sensors[i].ID]
			}
		}
	}
	return append(roster, user)
}

func (a AgentSpec) agent(origin core.Coordinate) core.Agent {
	speed := engine.SpeedFor(a.Type)
	if a.Speed != nil {
		speed = *a.Speed
	}
	rad := a.Heading * math.Pi / 180

	sensors := make([]core.SensorSource, len(a.Sensors))
	for i, sn := range a.Sensors {
		sensors[i] = core.SensorSource{
			ID:       sn.ID,
			Name:     sn.Name,
			Category: sn.Category,
			Accuracy: sn.Accuracy,
			Active:   sn.Active,
		}
	}

	return core.Agent{
		ID:                a.ID,
		Type:              a.Type,
		Position:          geo.Displace(origin, a.East, a.North),
		Velocity:          core.Velocity{X: math.Cos(rad) * speed, Y: math.Sin(rad) * speed},
		Heading:           a.Heading,
		Sensors:           sensors,
		RiskLevel:         core.Safe,
		LocalizationError: 5.0,
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
