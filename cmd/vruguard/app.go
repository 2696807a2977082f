package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/mohamedbenhasan1/VRUGuard/internal/advisory"
	"github.com/mohamedbenhasan1/VRUGuard/internal/config"
	"github.com/mohamedbenhasan1/VRUGuard/internal/control"
	"github.com/mohamedbenhasan1/VRUGuard/internal/dispatcher"
	"github.com/mohamedbenhasan1/VRUGuard/internal/engine"
	"github.com/mohamedbenhasan1/VRUGuard/internal/history"
	"github.com/mohamedbenhasan1/VRUGuard/internal/influx"
	"github.com/mohamedbenhasan1/VRUGuard/internal/logging"
	"github.com/mohamedbenhasan1/VRUGuard/internal/monitor"
	intOtel "github.com/mohamedbenhasan1/VRUGuard/internal/otel"
	"github.com/mohamedbenhasan1/VRUGuard/internal/scenario"
	"github.com/mohamedbenhasan1/VRUGuard/internal/stream"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/streaming"
)

const shutdownTimeout = 5 * time.Second

type appOptions struct {
	ConfigDir string
	LogLevel  string
}

// app owns every long-lived component of a run.
type app struct {
	startedAt time.Time
	sessionID string
	logsDir   string
	logPath   string
	autoStart bool

	slogManager *logging.SlogManager
	logger      *slog.Logger
	logFile     *os.File
	otel        *intOtel.Provider

	engine     *engine.Engine
	history    *history.History
	dispatcher *dispatcher.Dispatcher
	advisor    *advisory.Advisor
	influx     *influx.Manager
	stream     *stream.Publisher
	monitor    *monitor.Service

	unsubscribe []func()
}

func newApp(opts appOptions) (*app, error) {
	a := &app{
		startedAt:   time.Now(),
		sessionID:   uuid.NewString(),
		slogManager: logging.NewSlogManager(),
	}

	// Bootstrap logging to stdout until the log file exists.
	a.slogManager.Setup(nil, "info", nil)
	a.logger = a.slogManager.Logger()

	if err := config.Load(opts.ConfigDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else if used := config.ConfigFileUsed(); used != "" {
		a.logger.Info("Loaded config", "path", used)
	}
	if opts.LogLevel != "" {
		viper.Set("logLevel", opts.LogLevel)
	}

	if err := a.setupLogging(); err != nil {
		a.close()
		return nil, err
	}

	if err := a.setupEngine(); err != nil {
		a.close()
		return nil, err
	}

	if err := a.setupAdapters(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) setupLogging() error {
	a.logsDir = config.GetString("logsDir")
	if err := os.MkdirAll(a.logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	a.logPath = logging.LogFilePath(a.logsDir, a.startedAt, a.sessionID)
	if _, err := os.Stat(a.logPath); err == nil {
		os.Rename(a.logPath, a.logPath+".old")
	}
	file, err := os.OpenFile(a.logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	a.logFile = file

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		a.otel, err = intOtel.New(intOtel.FromSettings(otelCfg, file))
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	var setupOpts []logging.SetupOption
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			a.logger.Error("Failed to connect Graylog writer", "address", gl.Address, "error", err)
		} else {
			setupOpts = append(setupOpts, logging.WithGraylog(w))
		}
	}
	setupOpts = append(setupOpts, logging.WithSession(a.sessionFields))

	var otelLogProvider *sdklog.LoggerProvider
	if a.otel != nil {
		otelLogProvider = a.otel.LoggerProvider()
	}
	a.slogManager.Setup(file, config.GetString("logLevel"), otelLogProvider, setupOpts...)
	a.logger = a.slogManager.Logger()
	a.logger.Info("Logging to file", "path", a.logPath, "version", version)
	return nil
}

// sessionFields feeds the log handler. It only uses lock-free engine
// accessors, since the engine logs from inside its own critical sections.
func (a *app) sessionFields() (logging.SessionFields, bool) {
	if a.engine == nil {
		return logging.SessionFields{}, false
	}
	return logging.SessionFields{
		SessionID: a.sessionID,
		Running:   a.engine.Running(),
		Tick:      a.engine.LastTick(),
	}, true
}

// zerologger returns a zerolog.Logger writing JSON to the run's log file.
func (a *app) zerologger(component string) zerolog.Logger {
	var w io.Writer = os.Stdout
	if a.logFile != nil {
		w = a.logFile
	}
	level, err := zerolog.ParseLevel(config.GetString("logLevel"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
}

func (a *app) setupEngine() error {
	sim := config.GetSimulationConfig()
	a.autoStart = sim.AutoStart

	cfg := engine.DefaultConfig()
	cfg.Origin = core.Coordinate{Lat: sim.OriginLat, Lng: sim.OriginLng}
	cfg.TickInterval = sim.TickInterval
	cfg.ContainmentRadius = sim.ContainmentRadius
	cfg.CellSize = sim.CellSize
	cfg.SpawnSpread = sim.SpawnSpread

	seed := sim.Seed
	if seed == 0 {
		seed = a.startedAt.UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	opts := []engine.Option{
		engine.WithLogger(a.logger.With("component", "engine")),
		engine.WithSessionID(a.sessionID),
		engine.WithRand(rand.NewSource(rng.Int63())),
	}

	if sim.ScenarioFile != "" {
		s, err := scenario.Load(sim.ScenarioFile)
		if err != nil {
			return fmt.Errorf("loading scenario: %w", err)
		}
		cfg = s.Apply(cfg)
		if roster := s.Roster(cfg, rng); roster != nil {
			opts = append(opts, engine.WithRoster(roster))
		}
		a.logger.Info("Loaded scenario", "name", s.Name, "path", sim.ScenarioFile)
	}

	eng, err := engine.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	a.engine = eng

	a.history = history.New(history.DefaultCapacity)
	a.unsubscribe = append(a.unsubscribe, eng.Subscribe(a.history.Record))
	return nil
}

func (a *app) setupAdapters() error {
	d, err := dispatcher.New(logging.NewCommandLogger(a.zerologger("dispatcher"), a.sessionID))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	a.dispatcher = d

	var explainer control.Explainer
	if adv := config.GetAdvisoryConfig(); adv.Enabled {
		client := advisory.NewGeminiClient(advisory.ClientConfig{
			APIKey:  adv.APIKey,
			BaseURL: adv.BaseURL,
			Model:   adv.Model,
			Timeout: adv.Timeout,
		})
		if !client.Available() {
			a.logger.Warn("Advisory enabled but no API key configured; recommendations are off")
		}
		a.advisor = advisory.NewAdvisor(client, a.engine.CurrentState, adv.PollInterval, a.logger.With("component", "advisory"))
		explainer = a.advisor
	}

	control.New(a.engine, explainer).Register(d)
	a.registerLifecycleHandlers(d)

	if ic := config.GetInfluxConfig(); ic.Enabled {
		backupPath := logging.RunFile(a.logsDir, a.startedAt, a.sessionID, ".lp.gz")
		m := influx.NewManager(influx.Config{
			Enabled:       ic.Enabled,
			Protocol:      ic.Protocol,
			Host:          ic.Host,
			Port:          ic.Port,
			Token:         ic.Token,
			Org:           ic.Org,
			SampleEvery:   ic.SampleEvery,
			RetentionDays: ic.RetentionDays,
		}, a.zerologger("influx"), backupPath)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := m.Connect(ctx)
		cancel()
		if err != nil {
			a.logger.Error("Telemetry exporter unavailable", "error", err)
			m.Close()
		} else {
			a.influx = m
			a.unsubscribe = append(a.unsubscribe, a.engine.Subscribe(m.Record))
		}
	}

	if sc := config.GetStreamConfig(); sc.Enabled {
		p := stream.New(stream.Config{URL: sc.URL, Secret: sc.Secret}, d, a.logger.With("component", "stream"))
		cfg := a.engine.Config()
		err := p.Start(streaming.StartSessionPayload{
			SessionID:      a.engine.SessionID(),
			Origin:         cfg.Origin,
			TickIntervalMs: cfg.TickInterval.Milliseconds(),
			CellSize:       cfg.CellSize,
			StartedAt:      a.startedAt,
		})
		if err != nil {
			a.logger.Error("Renderer stream unavailable", "url", sc.URL, "error", err)
			p.Close()
		} else {
			a.stream = p
			a.unsubscribe = append(a.unsubscribe, a.engine.Subscribe(p.Publish))
		}
	}

	deps := monitor.Dependencies{
		State:         a.engine.CurrentState,
		EngineRunning: a.engine.Running,
		HistoryLen:    a.history.Len,
		SessionID:     a.engine.SessionID(),
		Dir:           a.logsDir,
		Interval:      time.Second,
		Logger:        a.logger.With("component", "monitor"),
	}
	if a.advisor != nil {
		deps.LastRecommendation = a.advisor.Recommendation
	}
	a.monitor = monitor.NewService(deps)
	if err := a.monitor.Start(); err != nil {
		return fmt.Errorf("starting status monitor: %w", err)
	}
	return nil
}

// registerLifecycleHandlers adds read-only queries next to the control commands.
func (a *app) registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return []string{version, buildDate}, nil
	})

	d.Register(":GETDIR:LOG:", func(e dispatcher.Event) (any, error) {
		return a.logPath, nil
	})

	d.Register(":STATUS:", func(e dispatcher.Event) (any, error) {
		return a.monitor.GetStatus(), nil
	})

	d.Register(":HISTORY:", func(e dispatcher.Event) (any, error) {
		return a.history.Samples(), nil
	})

	d.Register(":HISTORY:CLEAR:", func(e dispatcher.Event) (any, error) {
		a.history.Reset()
		return "ok", nil
	}, dispatcher.Logged())

	d.Register(":WEIGHTS:", func(e dispatcher.Event) (any, error) {
		return a.engine.UserWeights(), nil
	})

	d.Register(":RECOMMENDATION:", func(e dispatcher.Event) (any, error) {
		if a.advisor == nil {
			return nil, advisory.ErrUnavailable
		}
		return map[string]any{
			"text":      a.advisor.Recommendation(),
			"updatedAt": a.advisor.UpdatedAt(),
		}, nil
	})

	// Flush pushes buffered logs and telemetry out in the background. One
	// pending flush is enough; extra requests are rejected until it runs.
	d.Register(":FLUSH:", func(e dispatcher.Event) (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.slogManager.Flush(ctx); err != nil {
			a.logger.Warn("Failed to flush OTel logs", "error", err)
			return nil, err
		}
		if a.influx != nil {
			a.influx.Flush()
		}
		return "ok", nil
	}, dispatcher.Buffered(1), dispatcher.Logged())
}

// run starts ticking and blocks until ctx is done, then shuts down.
func (a *app) run(ctx context.Context) error {
	if a.advisor != nil {
		go a.advisor.Run(ctx)
	}
	if a.autoStart {
		a.engine.Start()
	}
	a.logger.Info("VRUGuard running", "session", a.engine.SessionID(), "autoStart", a.autoStart)

	<-ctx.Done()
	a.logger.Info("Shutting down", "reason", context.Cause(ctx))
	return a.close()
}

// close stops components in reverse start order. Safe on a partly built app.
func (a *app) close() error {
	var errs []error

	if a.engine != nil {
		a.engine.Stop()
	}
	for i := len(a.unsubscribe) - 1; i >= 0; i-- {
		a.unsubscribe[i]()
	}
	a.unsubscribe = nil

	if a.monitor != nil {
		a.monitor.Stop()
		if err := a.monitor.WriteStatus(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.stream != nil {
		published, dropped := a.stream.Stats()
		a.logger.Info("Closing renderer stream", "published", published, "dropped", dropped)
		if err := a.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing stream: %w", err))
		}
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing telemetry exporter: %w", err))
		}
	}

	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.otel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if a.logger != nil {
		a.logger.Info("Shutdown complete")
	}
	if err := a.slogManager.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, err)
		}
		a.logFile = nil
	}
	return errors.Join(errs...)
}
