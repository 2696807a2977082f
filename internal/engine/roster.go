package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/mohamedbenhasan1/VRUGuard/internal/geo"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// UserAgentID is the id given to the generated user-controlled agent.
const UserAgentID = "user-agent"

var (
	ErrNoUserAgent        = errors.New("roster has no user-controlled agent")
	ErrMultipleUserAgents = errors.New("roster has more than one user-controlled agent")
	ErrDuplicateSensor    = errors.New("duplicate sensor id")
)

// cooperativeSensor is synthesized for one tick when another agent is close.
var cooperativeSensor = core.SensorSource{
	ID:       "v2x-virtual",
	Name:     "Coop V2X",
	Category: core.VehicleToEverything,
	Accuracy: 0.5,
	Active:   true,
}

// DefaultUserSensors is the fixed loadout of the user-controlled agent.
func DefaultUserSensors() []core.SensorSource {
	return []core.SensorSource{
		{ID: "s1", Name: "GPS L1 (Standard)", Category: core.GNSS, Accuracy: 5.0, Active: true},
		{ID: "s2", Name: "GPS L5 (Precision)", Category: core.GNSS, Accuracy: 2.5, Active: true},
		{ID: "s3", Name: "Galileo E1/E5", Category: core.GNSS, Accuracy: 2.0, Active: true},
		{ID: "s4", Name: "GLONASS", Category: core.GNSS, Accuracy: 4.0},
		{ID: "s5", Name: "Velodyne LiDAR", Category: core.LIDAR, Accuracy: 0.1},
		{ID: "s6", Name: "Stereo Camera (Front)", Category: core.Camera, Accuracy: 1.5},
		{ID: "s7", Name: "Wide Cam (Rear)", Category: core.Camera, Accuracy: 2.0},
		{ID: "s8", Name: "Radar (Long Range)", Category: core.Radar, Accuracy: 0.8},
		{ID: "s9", Name: "UWB Anchor", Category: core.UltraWideband, Accuracy: 0.2},
		{ID: "s10", Name: "5G V2X Sidelink", Category: core.VehicleToEverything, Accuracy: 0.5},
	}
}

// NewUserAgent returns the stationary user-controlled agent at pos.
func NewUserAgent(pos core.Coordinate) core.Agent {
	return core.Agent{
		ID:                UserAgentID,
		Type:              core.Pedestrian,
		Position:          pos,
		Sensors:           DefaultUserSensors(),
		RiskLevel:         core.Safe,
		LocalizationError: 1.0,
		IsUserControlled:  true,
	}
}

// SpeedFor returns the cruising speed in m/s for an agent type.
func SpeedFor(t core.AgentType) float64 {
	switch t {
	case core.Vehicle, core.Motorcycle:
		return 12
	case core.Cyclist:
		return 6
	default:
		return 1.5
	}
}

func randomSensors(rng *rand.Rand) []core.SensorSource {
	sensors := []core.SensorSource{
		{ID: "gps-1", Name: "GPS L1", Category: core.GNSS, Accuracy: 5.0, Active: true},
	}
	if rng.Float64() > 0.5 {
		sensors = append(sensors, core.SensorSource{ID: "cam-1", Name: "Camera", Category: core.Camera, Accuracy: 2.0, Active: true})
	}
	return sensors
}

// RandomAgent places an agent of type t at a random point inside the spawn
// square, moving at its cruising speed in a random direction.
func RandomAgent(id string, t core.AgentType, cfg Config, rng *rand.Rand) core.Agent {
	angle := rng.Float64() * 2 * math.Pi
	speed := SpeedFor(t)
	return core.Agent{
		ID:   id,
		Type: t,
		Position: geo.Displace(cfg.Origin,
			(rng.Float64()-0.5)*cfg.SpawnSpread,
			(rng.Float64()-0.5)*cfg.SpawnSpread,
		),
		Velocity:          core.Velocity{X: math.Cos(angle) * speed, Y: math.Sin(angle) * speed},
		Heading:           angle * 180 / math.Pi,
		Sensors:           randomSensors(rng),
		RiskLevel:         core.Safe,
		LocalizationError: 5.0,
	}
}

// generateRoster spawns the configured population plus the user agent last.
func generateRoster(cfg Config, rng *rand.Rand) []core.Agent {
	var agents []core.Agent
	id := 0
	for _, p := range cfg.Population {
		for i := 0; i < p.Count; i++ {
			agents = append(agents, RandomAgent(fmt.Sprintf("vru-%d", id), p.Type, cfg, rng))
			id++
		}
	}
	return append(agents, NewUserAgent(cfg.Origin))
}

// validateRoster enforces the roster invariants and returns the user agent index.
func validateRoster(agents []core.Agent) (int, error) {
	userIdx := -1
	for i := range agents {
		a := &agents[i]
		if !geo.ValidCoordinate(a.Position) {
			return -1, fmt.Errorf("agent %s: %w", a.ID, geo.ErrInvalidCoordinates)
		}
		seen := make(map[string]struct{}, len(a.Sensors))
		for _, s := range a.Sensors {
			if _, dup := seen[s.ID]; dup {
				return -1, fmt.Errorf("agent %s sensor %s: %w", a.ID, s.ID, ErrDuplicateSensor)
			}
			seen[s.ID] = struct{}{}
		}
		if a.RiskLevel == "" {
			a.RiskLevel = core.Safe
		}
		if !a.IsUserControlled {
			continue
		}
		if userIdx >= 0 {
			return -1, ErrMultipleUserAgents
		}
		userIdx = i
	}
	if userIdx < 0 {
		return -1, ErrNoUserAgent
	}
	return userIdx, nil
}
