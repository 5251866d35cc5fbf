package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"autoclock/internal/events"
	"autoclock/internal/model"
	"autoclock/internal/settings"
)

type RunnerConfig struct {
	// Spec is the robfig/cron schedule of ticks.
	Spec         string
	CycleTimeout time.Duration
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{Spec: "@every 1m", CycleTimeout: 5 * time.Minute}
}

// Runner owns the periodic timer and is the single entry point for every
// control surface. Changing settings tears the timer down and recreates it.
type Runner struct {
	engine *Engine
	repo   *settings.Repository
	cfg    RunnerConfig
	bus    Publisher
	logger zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
	base context.Context
	wg   sync.WaitGroup
}

func NewRunner(engine *Engine, repo *settings.Repository, cfg RunnerConfig, logger zerolog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Spec == "" {
		cfg.Spec = def.Spec
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = def.CycleTimeout
	}
	return &Runner{
		engine: engine,
		repo:   repo,
		cfg:    cfg,
		bus:    engine.bus,
		logger: logger.With().Str("component", "runner").Logger(),
		base:   context.Background(),
	}
}

// Start arms the timer according to the stored schedule. Cycles started by
// the runner are bound to ctx.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	r.base = ctx
	r.mu.Unlock()
	return r.Reschedule(ctx)
}

// Stop clears the timer and waits for in-flight cycles started by the runner.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	r.wg.Wait()
	r.logger.Info().Msg("Runner stopped")
}

// Reschedule clears the timer and recreates it if the schedule is enabled.
// The schedule is read under the timer lock so the last writer wins.
func (r *Runner) Reschedule(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sched, err := r.repo.LoadSchedule(ctx)
	if err != nil {
		return err
	}

	if r.cron != nil {
		r.cron.Stop()
		r.cron = nil
	}

	if !sched.Enabled {
		r.logger.Info().Msg("Schedule disabled, timer cleared")
		return nil
	}

	cl := cronLogger{logger: r.logger}
	c := cron.New(
		cron.WithLocation(r.engine.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(r.cfg.Spec, r.tick); err != nil {
		return fmt.Errorf("schedule %q: %w", r.cfg.Spec, err)
	}
	c.Start()
	r.cron = c

	r.logger.Info().Str("spec", r.cfg.Spec).Str("schedule", sched.Summary()).Msg("Timer armed")
	return nil
}

// Scheduled reports whether the timer is armed.
func (r *Runner) Scheduled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cron != nil
}

func (r *Runner) tick() {
	ctx, cancel := r.cycleContext()
	defer cancel()
	_, _ = r.engine.RunCycle(ctx, TriggerTick)
}

// CheckNow runs a cycle immediately, as a test run if test is set.
func (r *Runner) CheckNow(_ context.Context, test bool) (Report, error) {
	trigger := TriggerCheck
	if test {
		trigger = TriggerTest
	}
	ctx, cancel := r.cycleContext()
	defer cancel()
	return r.engine.RunCycle(ctx, trigger)
}

// Clock performs a manual action.
func (r *Runner) Clock(_ context.Context, action model.Action) (Report, error) {
	ctx, cancel := r.cycleContext()
	defer cancel()
	return r.engine.Manual(ctx, action)
}

// UpdateSchedule applies a partial update and returns the saved schedule.
func (r *Runner) UpdateSchedule(ctx context.Context, upd settings.ScheduleUpdate) (model.Schedule, error) {
	current, err := r.repo.LoadSchedule(ctx)
	if err != nil {
		return model.Schedule{}, err
	}
	next, err := upd.Apply(current)
	if err != nil {
		return current, err
	}
	if err := r.SaveSchedule(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}

// SaveSchedule stores s wholesale, re-arms the timer and runs a cycle.
func (r *Runner) SaveSchedule(ctx context.Context, s model.Schedule) error {
	if err := r.repo.SaveSchedule(ctx, s); err != nil {
		return err
	}
	return r.settingsChanged(ctx, s)
}

func (r *Runner) SetEnabled(ctx context.Context, enabled bool) error {
	if err := r.repo.SetEnabled(ctx, enabled); err != nil {
		return err
	}
	s, err := r.repo.LoadSchedule(ctx)
	if err != nil {
		return err
	}
	return r.settingsChanged(ctx, s)
}

func (r *Runner) Status(ctx context.Context) (Status, error) {
	st, err := r.engine.Status(ctx)
	if err != nil {
		return st, err
	}
	st.Scheduled = r.Scheduled()
	return st, nil
}

func (r *Runner) CurrentState(ctx context.Context) (model.ClockState, error) {
	return r.engine.CurrentState(ctx)
}

func (r *Runner) settingsChanged(ctx context.Context, s model.Schedule) error {
	r.logger.Info().Str("schedule", s.Summary()).Msg("Settings updated")
	if r.bus != nil {
		if err := r.bus.PublishJSON(events.ScheduleChanged, settings.ViewOf(s)); err != nil {
			r.logger.Warn().Err(err).Msg("Schedule subscribers failed")
		}
	}
	if err := r.Reschedule(ctx); err != nil {
		return err
	}
	r.runAsync(TriggerSettings)
	return nil
}

func (r *Runner) runAsync(trigger Trigger) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := r.cycleContext()
		defer cancel()
		if _, err := r.engine.RunCycle(ctx, trigger); errors.Is(err, ErrBusy) {
			r.logger.Debug().Str("trigger", string(trigger)).Msg("Cycle skipped, engine busy")
		}
	}()
}

func (r *Runner) cycleContext() (context.Context, context.CancelFunc) {
	r.mu.Lock()
	base := r.base
	r.mu.Unlock()
	return context.WithTimeout(base, r.cfg.CycleTimeout)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
