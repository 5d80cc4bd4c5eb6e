// Package app wires clamp's components together and provides the shared
// entry point for the CLI and the service wrapper.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/clamp-sh/clamp/internal/archive"
	"github.com/clamp-sh/clamp/internal/config"
	ctxengine "github.com/clamp-sh/clamp/internal/context"
	"github.com/clamp-sh/clamp/internal/cron"
	"github.com/clamp-sh/clamp/internal/gateway"
	"github.com/clamp-sh/clamp/internal/observe"
	"github.com/clamp-sh/clamp/internal/session"
	sqlitearchive "github.com/clamp-sh/clamp/modules/archive/sqlite"
	"github.com/clamp-sh/clamp/modules/estimator/tiktoken"
)

// BuildInfo carries version details injected at build time via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// App is a fully wired clamp instance. Build it with New, then Start it.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Manager   *session.Manager
	Gateway   *gateway.Gateway
	Scheduler *cron.Scheduler
	Store     archive.Store
	Metrics   *gateway.Metrics

	db            *sql.DB
	traceShutdown func(context.Context) error
}

// New builds the full component graph from a validated configuration.
// Nothing is started; call Start afterwards.
func New(ctx context.Context, cfg *config.Config, info BuildInfo) (*App, error) {
	logger := observe.NewLogger(cfg.Log.Level, cfg.Log.Format)

	traceShutdown := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		shutdown, err := observe.SetupTracing(ctx, observe.TracingOptions{
			Endpoint:       cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
			SampleRatio:    cfg.Tracing.SampleRatio,
			ServiceName:    "clamp",
			ServiceVersion: info.Version,
		})
		if err != nil {
			return nil, fmt.Errorf("app: tracing setup: %w", err)
		}
		traceShutdown = shutdown
	}

	estimator, err := buildEstimator(cfg.Estimator)
	if err != nil {
		return nil, err
	}

	store, db, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	// The live-session gauge reads through a closure because the manager
	// itself depends on the metrics recorder.
	var manager *session.Manager
	metrics := gateway.NewMetrics(func() int {
		if manager == nil {
			return 0
		}
		return manager.Len()
	})
	events := gateway.NewEventHub(logger)

	manager = session.NewManager(session.ManagerOptions{
		Estimator:      estimator,
		Engine:         cfg.Engine.ToEngine(),
		Store:          store,
		Recorder:       session.Recorders{metrics, events},
		DefaultToolTTL: cfg.Engine.ToolResultTTL.Std(),
		Logger:         logger,
	})

	gw := gateway.New(cfg.Gateway.ToGateway(), manager, store, metrics, events, logger)

	scheduler := cron.NewScheduler(logger)
	jobs := []cron.Job{
		&cron.CompactionSweepJob{
			Manager:      manager,
			Logger:       logger,
			ScheduleExpr: cfg.Cron.SweepSchedule,
		},
		&cron.SessionReaperJob{
			Manager:      manager,
			MaxIdle:      cfg.Cron.MaxSessionIdle.Std(),
			Logger:       logger,
			ScheduleExpr: cfg.Cron.ReaperSchedule,
		},
		&cron.ArchiveRetentionJob{
			Store:        store,
			Retention:    cfg.Archive.Retention.Std(),
			Logger:       logger,
			ScheduleExpr: cfg.Cron.RetentionSchedule,
		},
	}
	for _, j := range jobs {
		if err := scheduler.RegisterJob(j); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Manager:       manager,
		Gateway:       gw,
		Scheduler:     scheduler,
		Store:         store,
		Metrics:       metrics,
		db:            db,
		traceShutdown: traceShutdown,
	}, nil
}

// Start launches the gateway listener and the maintenance scheduler.
func (a *App) Start() error {
	if err := a.Gateway.Start(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := a.Scheduler.Start(); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Gateway.Stop(stopCtx)
		return fmt.Errorf("app: %w", err)
	}
	a.Logger.Info("app: started",
		"bind", a.Config.Gateway.Bind,
		"archive", a.Config.Archive.Backend,
		"estimator", a.Config.Estimator.Kind)
	return nil
}

// Stop shuts everything down in reverse start order. Errors are logged,
// not returned, so a failing component cannot block the others.
func (a *App) Stop(ctx context.Context) {
	if err := a.Scheduler.Stop(ctx); err != nil {
		a.Logger.Error("app: scheduler stop", "error", err)
	}
	if err := a.Gateway.Stop(ctx); err != nil {
		a.Logger.Error("app: gateway stop", "error", err)
	}
	if err := a.traceShutdown(ctx); err != nil {
		a.Logger.Error("app: tracer shutdown", "error", err)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("app: archive close", "error", err)
		}
	}
	a.Logger.Info("app: shutdown complete")
}

func buildEstimator(cfg config.EstimatorConfig) (ctxengine.TokenEstimator, error) {
	switch cfg.Kind {
	case "", "chars":
		return ctxengine.NewCharEstimator(cfg.CharsPerToken), nil
	case "tiktoken":
		est, err := tiktoken.New(cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("app: tiktoken estimator: %w", err)
		}
		return est, nil
	default:
		return nil, fmt.Errorf("app: unknown estimator kind %q", cfg.Kind)
	}
}

func buildStore(cfg *config.Config) (archive.Store, *sql.DB, error) {
	switch cfg.Archive.Backend {
	case "memory":
		return archive.NewMemoryStore(), nil, nil
	case "", "sqlite":
		path := cfg.Archive.Path
		if path == "" {
			path = filepath.Join(cfg.DataDir, "archive.db")
		}
		store, db, err := sqlitearchive.Open(sqlitearchive.Config{
			Path:        path,
			BusyTimeout: cfg.Archive.BusyTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("app: archive store: %w", err)
		}
		return store, db, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown archive backend %q", cfg.Archive.Backend)
	}
}
