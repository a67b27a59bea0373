package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/phrazzld/slidegen/internal/api"
	"github.com/phrazzld/slidegen/internal/api/middleware"
	"github.com/phrazzld/slidegen/internal/cancel"
	"github.com/phrazzld/slidegen/internal/config"
	"github.com/phrazzld/slidegen/internal/events"
	"github.com/phrazzld/slidegen/internal/generation"
	"github.com/phrazzld/slidegen/internal/llm"
	"github.com/phrazzld/slidegen/internal/metrics"
	"github.com/phrazzld/slidegen/internal/platform/memory"
	"github.com/phrazzld/slidegen/internal/platform/postgres"
	"github.com/phrazzld/slidegen/internal/providers"
	"github.com/phrazzld/slidegen/internal/redact"
	"github.com/phrazzld/slidegen/internal/service"
	"github.com/phrazzld/slidegen/internal/service/auth"
	"github.com/phrazzld/slidegen/internal/store"
	"github.com/phrazzld/slidegen/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil when jobs live in memory.
	db        *sql.DB
	jobStore  store.JobStore
	taskStore task.TaskStore

	signal     *cancel.Signal
	recorder   *metrics.Recorder
	emitter    *events.InMemoryEventEmitter
	taskRunner *task.TaskRunner
	jobService service.JobService

	handler     http.Handler
	stopWatcher context.CancelFunc
	cleanupOnce sync.Once
}

// newApplication wires every component and starts the task runner.
// Callers must call cleanup when done.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		recorder: metrics.NewRecorder(),
	}

	if err := app.openStores(ctx); err != nil {
		return nil, err
	}
	if err := app.start(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// start wires everything above the stores, recovers unfinished jobs and
// starts the task runner.
func (app *application) start(ctx context.Context) error {
	cfg, logger := app.config, app.logger

	app.signal = cancel.New(cfg.LLM.CancelMarker)
	// A marker left by a previous process must not cancel recovered jobs.
	if err := app.signal.Clear(); err != nil {
		logger.Warn("failed to clear stale cancel marker", "error", err)
	}
	watchCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	app.stopWatcher = stop
	if err := app.signal.Watch(watchCtx, logger); err != nil {
		// The marker is still polled on every check.
		logger.Warn("cancel marker watcher unavailable", "error", err)
	}

	registry := providers.NewRegistry()
	resolver := providers.NewResolver(cfg.LLM, logger.With("component", "provider_resolver"))
	engine := llm.NewEngine(llm.Options{
		MaxCycles: cfg.LLM.RetryCycles,
		Delay: llm.DelayPolicy{
			MinRemote: cfg.LLM.MinRetryDelayRemote,
			MinLocal:  cfg.LLM.MinRetryDelayLocal,
		},
		CyclePause:   cfg.LLM.CyclePause,
		PollInterval: cfg.LLM.PollInterval,
		Observer:     app.recorder,
		Logger:       logger.With("component", "llm_engine"),
	})
	gen, err := generation.NewGenerator(generation.Config{
		Registry:           registry,
		Resolver:           resolver,
		Engine:             engine,
		DefaultProvider:    cfg.LLM.DefaultProvider,
		DefaultTemperature: cfg.LLM.DefaultTemperature,
		OllamaProbe:        resolver.OllamaProbe(),
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}
	logger.Info("LLM generator initialized",
		"default_provider", cfg.LLM.DefaultProvider,
		"retry_cycles", engine.MaxCycles())

	creds := service.NewCredentials()
	executor, err := service.NewJobExecutor(gen, creds, logger)
	if err != nil {
		return fmt.Errorf("failed to create job executor: %w", err)
	}

	app.emitter = events.NewInMemoryEventEmitter(logger)

	taskFactory, err := task.NewGenerationTaskFactory(app.jobStore, executor, app.signal, app.emitter, logger)
	if err != nil {
		return fmt.Errorf("failed to create task factory: %w", err)
	}

	app.taskRunner = task.NewTaskRunner(app.taskStore, task.TaskRunnerConfig{
		QueueSize:    cfg.Task.QueueSize,
		WorkerCount:  cfg.Task.WorkerCount,
		StuckTaskAge: time.Duration(cfg.Task.StuckTaskAgeMinutes) * time.Minute,
	}, logger)
	app.taskRunner.SetRehydrator(taskFactory)
	app.taskRunner.SetErrorHandler(func(t task.Task, err error) {
		logger.Warn("task finished with error", "task_id", t.ID(), "error", redact.Error(err))
	})

	app.emitter.RegisterHandler(events.JobRequested,
		task.NewJobRequestHandler(taskFactory, app.taskRunner, logger))
	app.emitter.RegisterHandler(events.JobFinished, app.recorder)

	if err := app.taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}
	app.taskRunner.WatchSignal(app.signal, cfg.LLM.PollInterval)

	app.jobService, err = service.NewJobService(app.jobStore, app.taskRunner, app.emitter, app.signal, creds, logger)
	if err != nil {
		return fmt.Errorf("failed to create job service: %w", err)
	}

	app.handler, err = app.setupRouter(registry, resolver)
	return err
}

// openStores selects PostgreSQL when a database URL is configured and the
// in-memory stores otherwise.
func (app *application) openStores(ctx context.Context) error {
	if app.config.Database.URL == "" {
		app.logger.Info("no database configured, jobs are kept in memory")
		app.jobStore = memory.NewJobStore(app.logger)
		app.taskStore = memory.NewTaskStore()
		return nil
	}

	db, err := postgres.Open(ctx, app.config.Database.URL, app.logger)
	if err != nil {
		return err
	}
	if err := postgres.Migrate(ctx, db, "up", app.config.Database.MigrationsTable, app.logger); err != nil {
		_ = db.Close()
		return err
	}

	app.db = db
	app.jobStore = postgres.NewPostgresJobStore(db, app.logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, app.logger)
	return nil
}

// setupRouter builds the HTTP handler.
func (app *application) setupRouter(registry *llm.Registry, resolver *providers.Resolver) (http.Handler, error) {
	cfg := app.config
	rc := api.RouterConfig{
		Jobs:          api.NewJobHandler(app.jobService, cfg.Server.MaxUploadMB, app.logger),
		Signal:        api.NewSignalHandler(app.signal, app.logger),
		Providers:     api.NewProviderHandler(providers.NewCatalog(registry, resolver), app.logger),
		SubmitLimiter: middleware.NewRateLimiter(cfg.Server.SubmitRate, cfg.Server.SubmitBurst),
		Metrics:       app.recorder.Handler(),
		Health:        app.health,
		Logger:        app.logger,
	}

	if cfg.Auth.Enabled() {
		jwtService, err := auth.NewJWTService(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		rc.Auth = middleware.NewAuthMiddleware(jwtService)
		app.logger.Info("JWT authentication enabled",
			"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)
	} else {
		app.logger.Warn("JWT authentication disabled, /api is open")
	}

	return api.NewRouter(rc), nil
}

// health pings the database when one is configured.
func (app *application) health(ctx context.Context) error {
	if app.db == nil {
		return nil
	}
	if err := app.db.PingContext(ctx); err != nil {
		return errors.Join(errors.New("database unreachable"), err)
	}
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.handler); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. It is safe
// to call more than once.
func (app *application) cleanup() {
	app.cleanupOnce.Do(func() {
		if app.taskRunner != nil {
			app.taskRunner.Stop()
		}
		if app.stopWatcher != nil {
			app.stopWatcher()
		}
		if app.db != nil {
			if err := app.db.Close(); err != nil {
				app.logger.Error("Error closing database connection", "error", err)
			}
		}
		app.logger.Info("Application shutdown completed")
	})
}
