// Package influx exports sampled simulation telemetry to InfluxDB. When the
// server cannot be reached, points are written as gzip'd line protocol to a
// local backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

const (
	BucketTelemetry = "vru_telemetry"
	BucketZones     = "vru_zones"
)

// DefaultBucketNames are the buckets created and written by the exporter.
var DefaultBucketNames = []string{BucketTelemetry, BucketZones}

// ErrDisabled is returned by Connect when the exporter is turned off.
var ErrDisabled = errors.New("influx exporter disabled")

// Config holds connection settings.
type Config struct {
	Enabled       bool
	Protocol      string
	Host          string
	Port          string
	Token         string
	Org           string
	SampleEvery   int
	RetentionDays int
}

// Manager handles InfluxDB connections and writes.
type Manager struct {
	cfg Config

	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	backupFile   *os.File
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	mu sync.Mutex
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg Config, log zerolog.Logger, backupPath string) *Manager {
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = 10
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	return &Manager{
		cfg:         cfg,
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: DefaultBucketNames,
		Logger:      log,
		BackupPath:  backupPath,
	}
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer a ping.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to reach InfluxDB, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.BackupWriter = gzip.NewWriter(file)
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBuckets(ctx); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBuckets(ctx context.Context) error {
	orgName := m.cfg.Org

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return fmt.Errorf("creating organization %s: %w", orgName, err)
		}
	}

	for _, bucket := range m.BucketNames {
		if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: int64(60 * 60 * 24 * m.cfg.RetentionDays),
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return fmt.Errorf("creating bucket %s: %w", bucket, err)
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	for _, bucket := range m.BucketNames {
		m.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
		m.Writers[bucket] = m.Client.WriteAPI(m.cfg.Org, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Record writes telemetry for every SampleEvery-th tick. It matches
// engine.Listener.
func (m *Manager) Record(s *core.SimulationState) {
	if s.Tick%uint64(m.cfg.SampleEvery) != 0 {
		return
	}
	if err := m.WritePoint(BucketTelemetry, FleetPoint(s)); err != nil {
		m.Logger.Error().Err(err).Uint64("tick", s.Tick).Msg("Failed to write fleet point")
		return
	}
	for _, p := range AgentPoints(s) {
		if err := m.WritePoint(BucketTelemetry, p); err != nil {
			m.Logger.Error().Err(err).Uint64("tick", s.Tick).Msg("Failed to write agent point")
			return
		}
	}
	for _, p := range ZonePoints(s) {
		if err := m.WritePoint(BucketZones, p); err != nil {
			m.Logger.Error().Err(err).Uint64("tick", s.Tick).Msg("Failed to write zone point")
			return
		}
	}
}

// Flush pushes pending points to the server or the backup file.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.Writers {
		w.Flush()
	}
	if m.BackupWriter != nil {
		if err := m.BackupWriter.Flush(); err != nil {
			m.Logger.Error().Err(err).Msg("Failed to flush backup writer")
		}
	}
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
		m.Client = nil
	}
	m.Writers = make(map[string]influxdb2_api.WriteAPI)
	m.IsValid = false

	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// FleetPoint summarizes the snapshot's headline metrics.
func FleetPoint(s *core.SimulationState) *influxdb2_write.Point {
	return influxdb2.NewPoint("fleet",
		nil,
		map[string]interface{}{
			"tick":               s.Tick,
			"total_agents":       s.Metrics.TotalAgents,
			"avg_error":          s.Metrics.AvgError,
			"advanced_fusion":    s.Metrics.AdvancedFusionActive,
			"collision_warnings": s.Metrics.CollisionWarnings,
		},
		s.Timestamp,
	)
}

// AgentPoints returns one point per agent.
func AgentPoints(s *core.SimulationState) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(s.Agents))
	for _, a := range s.Agents {
		points = append(points, influxdb2.NewPoint("agent",
			map[string]string{
				"id":   a.ID,
				"type": string(a.Type),
				"risk": string(a.RiskLevel),
			},
			map[string]interface{}{
				"error":          a.LocalizationError,
				"lat":            a.Position.Lat,
				"lng":            a.Position.Lng,
				"active_sensors": len(a.ActiveSensors()),
			},
			s.Timestamp,
		))
	}
	return points
}

// ZonePoints returns one point per zone.
func ZonePoints(s *core.SimulationState) []*influxdb2_write.Point {
	points := make([]*influxdb2_write.Point, 0, len(s.Zones))
	for _, z := range s.Zones {
		points = append(points, influxdb2.NewPoint("zone",
			map[string]string{
				"id":   z.ID,
				"risk": string(z.RiskLevel),
			},
			map[string]interface{}{
				"density": z.Density,
			},
			s.Timestamp,
		))
	}
	return points
}
