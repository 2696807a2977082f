package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

func testState(tick uint64) *core.SimulationState {
	return &core.SimulationState{
		Tick:      tick,
		Timestamp: time.Unix(1700000000, 0),
		Agents: []core.Agent{
			{
				ID:                "vru-0",
				Type:              core.Cyclist,
				Position:          core.Coordinate{Lat: 37.77, Lng: -122.41},
				RiskLevel:         core.Warning,
				LocalizationError: 3.5,
				Sensors:           []core.SensorSource{{ID: "gps-1", Active: true}},
			},
			{ID: "user-agent", Type: core.Pedestrian, RiskLevel: core.Safe, IsUserControlled: true},
		},
		Zones: []core.Zone{
			{ID: "zone-0-0", Density: 2, RiskLevel: core.Safe},
		},
		Metrics: core.Metrics{TotalAgents: 2, AvgError: 1.2, AdvancedFusionActive: true, CollisionWarnings: 1},
	}
}

func lineOf(p *influxdb2_write.Point) string {
	return influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
}

func TestFleetPoint(t *testing.T) {
	line := lineOf(FleetPoint(testState(10)))

	assert.True(t, strings.HasPrefix(line, "fleet"))
	assert.Contains(t, line, "avg_error=1.2")
	assert.Contains(t, line, "advanced_fusion=true")
	assert.Contains(t, line, "collision_warnings=1i")
	assert.Contains(t, line, "total_agents=2i")
}

func TestAgentPoints(t *testing.T) {
	points := AgentPoints(testState(10))
	require.Len(t, points, 2)

	line := lineOf(points[0])
	assert.True(t, strings.HasPrefix(line, "agent,"))
	assert.Contains(t, line, "id=vru-0")
	assert.Contains(t, line, "risk=WARNING")
	assert.Contains(t, line, "type=CYCLIST")
	assert.Contains(t, line, "error=3.5")
	assert.Contains(t, line, "active_sensors=1i")
}

func TestZonePoints(t *testing.T) {
	points := ZonePoints(testState(10))
	require.Len(t, points, 1)
	assert.Contains(t, lineOf(points[0]), "density=2i")
}

func TestConnectDisabled(t *testing.T) {
	m := NewManager(Config{}, zerolog.Nop(), filepath.Join(t.TempDir(), "backup.gz"))
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestWritePointWithoutConnection(t *testing.T) {
	m := NewManager(Config{}, zerolog.Nop(), "")
	assert.Error(t, m.WritePoint(BucketTelemetry, FleetPoint(testState(1))))
}

func TestUnreachableServerUsesBackupFile(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(Config{
		Enabled:     true,
		Protocol:    "http",
		Host:        "127.0.0.1",
		Port:        "1",
		SampleEvery: 5,
	}, zerolog.Nop(), backup)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	m.Record(testState(3)) // not sampled
	m.Record(testState(5))
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())

	// one fleet, two agents, one zone
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "fleet"))
	assert.Contains(t, lines[0], "tick=5u")
	assert.True(t, strings.HasPrefix(lines[3], "zone"))
}
