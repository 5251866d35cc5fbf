package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"autoclock/internal/browser"
	"autoclock/internal/cache"
	"autoclock/internal/config"
	"autoclock/internal/db"
	"autoclock/internal/engine"
	"autoclock/internal/events"
	"autoclock/internal/executor"
	"autoclock/internal/page"
	"autoclock/internal/probe"
	"autoclock/internal/settings"
)

// app holds everything a command may need. Fields are filled lazily:
// storage by openStorage, the engine by openEngine.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	database *db.DB
	rdb      *redis.Client
	store    settings.Store
	repo     *settings.Repository
	bus      *events.EventBus

	chrome *browser.Chrome
	engine *engine.Engine
	runner *engine.Runner
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create data dirs: %w", err)
	}
	return &app{cfg: cfg, logger: logger, bus: events.NewEventBus()}, nil
}

// openStorage opens the journal database and the settings store and seeds defaults.
func (a *app) openStorage(ctx context.Context) error {
	database, err := db.NewDB(a.cfg.Database.Path, a.logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	a.database = database
	a.store = database

	if a.cfg.Storage == "redis" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Address,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		rs := cache.NewRedisStore(a.rdb, a.cfg.Redis.Key)
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.store = rs
	}

	a.repo = settings.NewRepository(a.store, a.logger)
	return a.repo.EnsureDefaults(ctx)
}

// openEngine connects to the browser and wires the clock pipeline.
func (a *app) openEngine(ctx context.Context) error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}

	chrome, err := browser.NewChrome(ctx, browser.ChromeConfig{
		RemoteURL:       a.cfg.Browser.RemoteURL,
		ExecPath:        a.cfg.Browser.ExecPath,
		UserDataDir:     a.cfg.Browser.UserDataDir,
		Headless:        a.cfg.Browser.Headless,
		NavigateTimeout: a.cfg.NavigateTimeout(),
	}, a.logger)
	if err != nil {
		return err
	}
	a.chrome = chrome

	orch, err := browser.NewOrchestrator(chrome, browser.Config{
		DashboardURL:   a.cfg.Portal.DashboardURL,
		TabPattern:     a.cfg.Portal.TabPattern,
		ExistingSettle: a.cfg.ExistingSettle(),
		NewTabSettle:   a.cfg.NewTabSettle(),
	}, a.logger)
	if err != nil {
		return err
	}

	matcher := page.DefaultMatcher()
	exec := executor.New(matcher, executor.Config{
		MaxAttempts:    a.cfg.Executor.MaxAttempts,
		RetryDelays:    a.cfg.RetryDelays(),
		ElementTimeout: a.cfg.ElementTimeout(),
		PollInterval:   a.cfg.PollInterval(),
		ConfirmSettle:  a.cfg.ConfirmSettle(),
		ConfirmTimeout: a.cfg.ConfirmTimeout(),
	}, a.logger)

	a.engine = engine.New(a.repo, orch, probe.New(matcher), exec, a.logger,
		engine.WithJournal(a.database),
		engine.WithPublisher(a.bus),
		engine.WithLocation(loc),
	)
	a.runner = engine.NewRunner(a.engine, a.repo, engine.RunnerConfig{
		Spec:         a.cfg.Scheduler.Spec,
		CycleTimeout: a.cfg.CycleTimeout(),
	}, a.logger)
	return nil
}

func (a *app) Close() {
	if a.runner != nil {
		a.runner.Stop()
	}
	if a.chrome != nil {
		a.chrome.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.database != nil {
		_ = a.database.Close()
	}
}

// setup is the common prologue of commands that touch the portal.
func setup(ctx context.Context, flags *globalFlags, withEngine bool) (*app, error) {
	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if withEngine {
		if err := a.openEngine(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}
