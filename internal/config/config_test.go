package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"simulation": { "tickInterval": "50ms", "seed": 7 },
		"influx": { "enabled": true, "host": "10.0.0.1" },
		"stream": { "enabled": true, "url": "ws://renderer:9000/ws" }
	}`)

	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", GetString("logLevel"))
	assert.Equal(t, filepath.Join(dir, FileName), ConfigFileUsed())

	sim := GetSimulationConfig()
	assert.Equal(t, 50*time.Millisecond, sim.TickInterval)
	assert.Equal(t, int64(7), sim.Seed)
	assert.Equal(t, 500.0, sim.ContainmentRadius, "unset keys keep defaults")

	influx := GetInfluxConfig()
	assert.True(t, influx.Enabled)
	assert.Equal(t, "10.0.0.1", influx.Host)
	assert.Equal(t, "8086", influx.Port)

	stream := GetStreamConfig()
	assert.True(t, stream.Enabled)
	assert.Equal(t, "ws://renderer:9000/ws", stream.URL)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", GetString("logLevel"))
	assert.Equal(t, "./vruguardlogs", GetString("logsDir"))

	assert.Equal(t, SimulationConfig{
		OriginLat:         37.7749,
		OriginLng:         -122.4194,
		TickInterval:      100 * time.Millisecond,
		ContainmentRadius: 500,
		CellSize:          150,
		SpawnSpread:       400,
		AutoStart:         true,
	}, GetSimulationConfig())

	assert.False(t, GetStreamConfig().Enabled)

	influx := GetInfluxConfig()
	assert.False(t, influx.Enabled)
	assert.Equal(t, 10, influx.SampleEvery)
	assert.Equal(t, 90, influx.RetentionDays)
	assert.Equal(t, "vruguard", influx.Org)

	assert.Equal(t, GraylogConfig{Enabled: false, Address: "localhost:12201"}, GetGraylogConfig())

	otel := GetOTelConfig()
	assert.False(t, otel.Enabled)
	assert.Equal(t, "vruguard", otel.ServiceName)
	assert.Equal(t, 5*time.Second, otel.BatchTimeout)
	assert.True(t, otel.Insecure)

	adv := GetAdvisoryConfig()
	assert.True(t, adv.Enabled)
	assert.Equal(t, 15*time.Second, adv.PollInterval)
	assert.Equal(t, 30*time.Second, adv.Timeout)
	assert.Equal(t, "gemini-3-flash-preview", adv.Model)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(t.TempDir()))
	assert.Equal(t, "info", GetString("logLevel"))
	assert.Empty(t, ConfigFileUsed())
}

func TestLoad_InvalidJSON(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(writeConfig(t, `{ not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("intKey", 42)
	viper.Set("boolKey", true)

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("intKey"))
	assert.True(t, GetBool("boolKey"))
}
