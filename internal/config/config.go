// Package config loads settings from vruguard.cfg.json through viper and
// exposes typed views for each component.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "vruguard.cfg.json"

// SimulationConfig holds engine parameters.
type SimulationConfig struct {
	OriginLat         float64       `json:"originLat" mapstructure:"originLat"`
	OriginLng         float64       `json:"originLng" mapstructure:"originLng"`
	TickInterval      time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	ContainmentRadius float64       `json:"containmentRadius" mapstructure:"containmentRadius"`
	CellSize          float64       `json:"cellSize" mapstructure:"cellSize"`
	SpawnSpread       float64       `json:"spawnSpread" mapstructure:"spawnSpread"`
	Seed              int64         `json:"seed" mapstructure:"seed"`
	ScenarioFile      string        `json:"scenarioFile" mapstructure:"scenarioFile"`
	AutoStart         bool          `json:"autoStart" mapstructure:"autoStart"`
}

// StreamConfig holds renderer WebSocket settings.
type StreamConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// InfluxConfig holds telemetry exporter settings.
type InfluxConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	Protocol      string `json:"protocol" mapstructure:"protocol"`
	Host          string `json:"host" mapstructure:"host"`
	Port          string `json:"port" mapstructure:"port"`
	Token         string `json:"token" mapstructure:"token"`
	Org           string `json:"org" mapstructure:"org"`
	SampleEvery   int    `json:"sampleEvery" mapstructure:"sampleEvery"`
	RetentionDays int    `json:"retentionDays" mapstructure:"retentionDays"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// AdvisoryConfig holds generative advisor settings.
type AdvisoryConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	APIKey       string        `json:"apiKey" mapstructure:"apiKey"`
	BaseURL      string        `json:"baseUrl" mapstructure:"baseUrl"`
	Model        string        `json:"model" mapstructure:"model"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	PollInterval time.Duration `json:"pollInterval" mapstructure:"pollInterval"`
}

// GraylogConfig holds GELF sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// SetDefaults registers every known key with its default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./vruguardlogs")

	viper.SetDefault("simulation.originLat", 37.7749)
	viper.SetDefault("simulation.originLng", -122.4194)
	viper.SetDefault("simulation.tickInterval", "100ms")
	viper.SetDefault("simulation.containmentRadius", 500.0)
	viper.SetDefault("simulation.cellSize", 150.0)
	viper.SetDefault("simulation.spawnSpread", 400.0)
	viper.SetDefault("simulation.seed", 0)
	viper.SetDefault("simulation.scenarioFile", "")
	viper.SetDefault("simulation.autoStart", true)

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "ws://localhost:5000/ws/vru")
	viper.SetDefault("stream.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "vruguard")
	viper.SetDefault("influx.sampleEvery", 10)
	viper.SetDefault("influx.retentionDays", 90)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "vruguard")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("advisory.enabled", true)
	viper.SetDefault("advisory.apiKey", "")
	viper.SetDefault("advisory.baseUrl", "")
	viper.SetDefault("advisory.model", "gemini-3-flash-preview")
	viper.SetDefault("advisory.timeout", "30s")
	viper.SetDefault("advisory.pollInterval", "15s")
}

// Load reads configuration from the JSON file in configDir and sets default
// values. A missing file is not an error; defaults apply.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// ConfigFileUsed returns the path of the loaded file, or "".
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimulationConfig returns the simulation section.
func GetSimulationConfig() SimulationConfig {
	return SimulationConfig{
		OriginLat:         viper.GetFloat64("simulation.originLat"),
		OriginLng:         viper.GetFloat64("simulation.originLng"),
		TickInterval:      viper.GetDuration("simulation.tickInterval"),
		ContainmentRadius: viper.GetFloat64("simulation.containmentRadius"),
		CellSize:          viper.GetFloat64("simulation.cellSize"),
		SpawnSpread:       viper.GetFloat64("simulation.spawnSpread"),
		Seed:              viper.GetInt64("simulation.seed"),
		ScenarioFile:      viper.GetString("simulation.scenarioFile"),
		AutoStart:         viper.GetBool("simulation.autoStart"),
	}
}

// GetStreamConfig returns the stream section.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled: viper.GetBool("stream.enabled"),
		URL:     viper.GetString("stream.url"),
		Secret:  viper.GetString("stream.secret"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:       viper.GetBool("influx.enabled"),
		Protocol:      viper.GetString("influx.protocol"),
		Host:          viper.GetString("influx.host"),
		Port:          viper.GetString("influx.port"),
		Token:         viper.GetString("influx.token"),
		Org:           viper.GetString("influx.org"),
		SampleEvery:   viper.GetInt("influx.sampleEvery"),
		RetentionDays: viper.GetInt("influx.retentionDays"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetAdvisoryConfig returns the advisory section.
func GetAdvisoryConfig() AdvisoryConfig {
	return AdvisoryConfig{
		Enabled:      viper.GetBool("advisory.enabled"),
		APIKey:       viper.GetString("advisory.apiKey"),
		BaseURL:      viper.GetString("advisory.baseUrl"),
		Model:        viper.GetString("advisory.model"),
		Timeout:      viper.GetDuration("advisory.timeout"),
		PollInterval: viper.GetDuration("advisory.pollInterval"),
	}
}

// GetGraylogConfig returns the graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
