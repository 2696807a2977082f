package scenario

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedbenhasan1/VRUGuard/internal/engine"
	"github.com/mohamedbenhasan1/VRUGuard/internal/geo"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

func TestLoad(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "crossing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "crossing", s.Name)
	require.NotNil(t, s.Origin)
	assert.InDelta(t, 37.7749, s.Origin.Lat, 1e-9)
	require.Len(t, s.Population, 2)
	assert.Equal(t, core.Pedestrian, s.Population[0].Type, "types are normalized")
	require.Len(t, s.Agents, 2)
	assert.Equal(t, core.Vehicle, s.Agents[0].Type)
	assert.Len(t, s.Agents[0].Sensors, 2)
	require.NotNil(t, s.User)
	assert.Equal(t, core.Cyclist, s.User.Type)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "agents: [\n"},
		{"unknown population type", "population:\n  - type: TANK\n    count: 1\n"},
		{"negative count", "population:\n  - type: CYCLIST\n    count: -1\n"},
		{"missing id", "agents:\n  - type: CYCLIST\n"},
		{"duplicate id", "agents:\n  - id: a\n    type: CYCLIST\n  - id: a\n    type: SCOOTER\n"},
		{"reserved user id", "agents:\n  - id: user-agent\n    type: CYCLIST\n"},
		{"duplicate sensor", "agents:\n  - id: a\n    type: CYCLIST\n    sensors:\n      - id: x\n      - id: x\n"},
		{"bad origin", "origin:\n  lat: 95\n  lng: 0\n"},
		{"bad user type", "user:\n  type: BUS\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestApply(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "crossing.yaml"))
	require.NoError(t, err)

	cfg := s.Apply(engine.DefaultConfig())
	assert.Equal(t, *s.Origin, cfg.Origin)
	assert.Equal(t, s.Population, cfg.Population)

	empty := &Scenario{}
	assert.Equal(t, engine.DefaultConfig(), empty.Apply(engine.DefaultConfig()))
}

func TestRoster(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "crossing.yaml"))
	require.NoError(t, err)

	cfg := engine.DefaultConfig()
	roster := s.Roster(cfg, rand.New(rand.NewSource(1)))

	// 3 random + 2 placed + user
	require.Len(t, roster, 6)

	car := roster[3]
	assert.Equal(t, "car-1", car.ID)
	assert.InDelta(t, 30, geo.Distance(cfg.Origin, car.Position), 0.1)
	assert.Less(t, car.Position.Lng, cfg.Origin.Lng, "placed west of origin")
	assert.InDelta(t, engine.SpeedFor(core.Vehicle), car.Velocity.X, 1e-9)
	assert.InDelta(t, 0, car.Velocity.Y, 1e-9)

	walker := roster[4]
	assert.True(t, walker.Stationary(), "explicit zero speed")

	user := roster[5]
	assert.True(t, user.IsUserControlled)
	assert.Equal(t, core.Cyclist, user.Type)
	var active []string
	for _, sn := range user.ActiveSensors() {
		active = append(active, sn.ID)
	}
	assert.Equal(t, []string{"s1", "s5"}, active)

	e, err := engine.New(cfg, engine.WithRoster(roster))
	require.NoError(t, err)
	assert.Equal(t, 6, e.CurrentState().Metrics.TotalAgents)
}

func TestRoster_NothingPlaced(t *testing.T) {
	s := &Scenario{Population: []engine.PopulationEntry{{Type: core.Cyclist, Count: 2}}}
	assert.Nil(t, s.Roster(engine.DefaultConfig(), rand.New(rand.NewSource(1))))
}
