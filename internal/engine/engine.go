// Package engine decides when to clock in or out and drives the portal to do it.
//
// A cycle runs load → gate → boundaries → tab → probe → reconcile → dedupe →
// execute → persist. Only one cycle runs at a time; triggers arriving while
// one is in flight are dropped with ErrBusy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"autoclock/internal/events"
	"autoclock/internal/executor"
	"autoclock/internal/metrics"
	"autoclock/internal/model"
	"autoclock/internal/page"
	"autoclock/internal/settings"
)

// ErrBusy is returned when a trigger arrives while a cycle is running.
var ErrBusy = errors.New("another cycle is running")

// TabProvider hands out the portal tab, opening one when Ready finds none.
type TabProvider interface {
	Ready(ctx context.Context) (page.Document, error)
	Existing(ctx context.Context) (page.Document, error)
}

// StateProber reads the clock state off a page.
type StateProber interface {
	Detect(ctx context.Context, doc page.Document) (model.ClockState, error)
}

// ActionPerformer clicks through a clock action.
type ActionPerformer interface {
	Perform(ctx context.Context, doc page.Document, action model.Action) (executor.Result, error)
}

type Journal interface {
	AppendEvent(ctx context.Context, ev *model.ClockEvent) error
}

type Publisher interface {
	PublishJSON(eventType string, payload any) error
}

type Option func(*Engine)

func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.bus = p }
}

func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs clock cycles, at most one at a time.
type Engine struct {
	repo    *settings.Repository
	tabs    TabProvider
	prober  StateProber
	exec    ActionPerformer
	journal Journal
	bus     Publisher
	loc     *time.Location
	now     func() time.Time
	logger  zerolog.Logger

	busy atomic.Bool

	mu   sync.Mutex
	last *Report
}

// New builds an engine in the local timezone with a wall clock unless options
// say otherwise.
func New(repo *settings.Repository, tabs TabProvider, prober StateProber, exec ActionPerformer, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		tabs:   tabs,
		prober: prober,
		exec:   exec,
		loc:    time.Local,
		now:    time.Now,
		logger: logger.With().Str("component", "engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location is the time zone schedules are evaluated in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Running reports whether a cycle is in flight.
func (e *Engine) Running() bool {
	return e.busy.Load()
}

// LastReport returns the report of the last finished cycle, if any.
func (e *Engine) LastReport() *Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil
	}
	r := *e.last
	return &r
}

// RunCycle evaluates the schedule once and acts if a boundary is due. A test
// trigger skips the schedule gates and toggles from the last recorded action.
func (e *Engine) RunCycle(ctx context.Context, trigger Trigger) (Report, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return e.busyReport(trigger), ErrBusy
	}
	defer e.busy.Store(false)

	rep, ctx := e.begin(ctx, trigger)
	err := e.cycle(ctx, &rep)
	e.finish(ctx, &rep, err)
	return rep, err
}

// Manual performs action now, bypassing schedule and probe. On success the
// history is updated as if the engine had done it.
func (e *Engine) Manual(ctx context.Context, action model.Action) (Report, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return e.busyReport(TriggerManual), ErrBusy
	}
	defer e.busy.Store(false)

	rep, ctx := e.begin(ctx, TriggerManual)
	rep.Action = action
	err := e.manual(ctx, &rep)
	e.finish(ctx, &rep, err)
	return rep, err
}

// CurrentState probes the open portal tab without acting.
func (e *Engine) CurrentState(ctx context.Context) (model.ClockState, error) {
	doc, err := e.tabs.Existing(ctx)
	if err != nil {
		return model.StateUnknown, err
	}
	state, err := e.prober.Detect(ctx, doc)
	metrics.IncProbe(string(state))
	return state, err
}

func (e *Engine) cycle(ctx context.Context, rep *Report) error {
	l := zerolog.Ctx(ctx)

	sched, err := e.repo.LoadSchedule(ctx)
	if err != nil {
		rep.Outcome = OutcomeFailed
		return err
	}
	hist, err := e.repo.LoadHistory(ctx)
	if err != nil {
		rep.Outcome = OutcomeFailed
		return err
	}

	now := e.now().In(e.loc)
	today := now.Format(model.DateLayout)

	var nearIn, nearOut bool
	if rep.Trigger == TriggerTest {
		// A test run flips the last recorded action; with no history it clocks in.
		nearOut = hist.LastActionType.Opposite() == model.ActionOut
		nearIn = !nearOut
	} else {
		if !sched.Enabled {
			rep.Outcome = OutcomeDisabled
			return nil
		}
		if !sched.ActiveOn(now.Weekday()) {
			rep.Outcome = OutcomeInactiveDay
			return nil
		}

		in, out := Boundaries(sched)
		tod := model.TimeOfDayOf(now)
		nearIn = in.Near(tod) && !hist.RecordedOn(model.ActionIn, today)
		nearOut = out.Near(tod) && !hist.RecordedOn(model.ActionOut, today)
		if !nearIn && !nearOut {
			rep.Outcome = OutcomeNotNear
			return nil
		}
	}

	l.Debug().Bool("near_in", nearIn).Bool("near_out", nearOut).Msg("Boundary due, probing portal")

	doc, tabErr := e.tabs.Ready(ctx)
	state := model.StateError
	if tabErr != nil {
		l.Warn().Err(tabErr).Msg("Portal tab not ready")
	} else {
		state, err = e.prober.Detect(ctx, doc)
		if err != nil {
			l.Warn().Err(err).Msg("Probe failed")
			state = model.StateError
		}
	}
	rep.Probe = state
	metrics.IncProbe(string(state))

	action := Reconcile(state, nearIn, nearOut, hist.LastActionType)
	rep.Action = action
	if action == model.ActionNone {
		rep.Outcome = OutcomeNoop
		return nil
	}

	if rep.Trigger != TriggerTest {
		fresh, err := e.repo.LoadHistory(ctx)
		if err != nil {
			rep.Outcome = OutcomeFailed
			return err
		}
		if fresh.RecordedOn(action, today) {
			rep.Outcome = OutcomeSuppressed
			return nil
		}
	}

	if tabErr != nil {
		rep.Outcome = OutcomeFailed
		return fmt.Errorf("portal tab: %w", tabErr)
	}

	return e.execute(ctx, rep, doc, today)
}

func (e *Engine) manual(ctx context.Context, rep *Report) error {
	if rep.Action != model.ActionIn && rep.Action != model.ActionOut {
		rep.Outcome = OutcomeFailed
		return fmt.Errorf("unknown action %q", rep.Action)
	}

	doc, err := e.tabs.Ready(ctx)
	if err != nil {
		rep.Outcome = OutcomeFailed
		return fmt.Errorf("portal tab: %w", err)
	}

	today := e.now().In(e.loc).Format(model.DateLayout)
	return e.execute(ctx, rep, doc, today)
}

func (e *Engine) execute(ctx context.Context, rep *Report, doc page.Document, today string) error {
	res, err := e.exec.Perform(ctx, doc, rep.Action)
	rep.Attempts = res.Attempts
	if err != nil {
		rep.Outcome = OutcomeFailed
		metrics.IncAction(string(rep.Action), "failed")
		return err
	}

	metrics.IncAction(string(rep.Action), "ok")
	metrics.SetLastAction(string(rep.Action), e.now())
	rep.Outcome = clockedOutcome(rep.Action)

	if err := e.repo.RecordAction(ctx, rep.Action, today, res.State); err != nil {
		return fmt.Errorf("record %s: %w", rep.Action, err)
	}
	return nil
}

func (e *Engine) begin(ctx context.Context, trigger Trigger) (Report, context.Context) {
	rep := Report{
		CycleID:   uuid.NewString(),
		Trigger:   trigger,
		StartedAt: e.now(),
	}
	l := e.logger.With().Str("cycle_id", rep.CycleID).Str("trigger", string(trigger)).Logger()
	return rep, l.WithContext(ctx)
}

func (e *Engine) finish(ctx context.Context, rep *Report, err error) {
	rep.FinishedAt = e.now()
	if err != nil {
		rep.Err = err
		rep.Error = err.Error()
	}

	metrics.IncCycle(string(rep.Outcome))
	if rep.Outcome.touchedBrowser() {
		metrics.ObserveCycle(rep.Duration())
	}

	l := zerolog.Ctx(ctx)
	switch {
	case err != nil:
		l.Error().Err(err).Str("outcome", string(rep.Outcome)).Str("action", string(rep.Action)).
			Int("attempts", rep.Attempts).Msg("Cycle failed")
	case rep.Outcome.touchedBrowser():
		l.Info().Str("outcome", string(rep.Outcome)).Str("action", string(rep.Action)).
			Str("probe", string(rep.Probe)).Dur("took", rep.Duration()).Msg("Cycle finished")
	default:
		l.Debug().Str("outcome", string(rep.Outcome)).Msg("Cycle finished")
	}

	if e.journal != nil && (rep.Outcome.touchedBrowser() || rep.Trigger != TriggerTick) {
		ev := &model.ClockEvent{
			CycleID:    rep.CycleID,
			Trigger:    string(rep.Trigger),
			Action:     rep.Action,
			Outcome:    string(rep.Outcome),
			ProbeState: string(rep.Probe),
			Error:      rep.Error,
			CreatedAt:  rep.FinishedAt,
		}
		if jerr := e.journal.AppendEvent(context.WithoutCancel(ctx), ev); jerr != nil {
			l.Warn().Err(jerr).Msg("Failed to append journal event")
		}
	}

	e.mu.Lock()
	last := *rep
	e.last = &last
	e.mu.Unlock()

	if e.bus != nil {
		if perr := e.bus.PublishJSON(events.CycleCompleted, rep); perr != nil {
			l.Warn().Err(perr).Msg("Cycle subscribers failed")
		}
	}
}

func (e *Engine) busyReport(trigger Trigger) Report {
	now := e.now()
	metrics.IncCycle(string(OutcomeBusy))
	e.logger.Info().Str("trigger", string(trigger)).Msg("Cycle already running, trigger dropped")
	return Report{
		Trigger:    trigger,
		Outcome:    OutcomeBusy,
		Err:        ErrBusy,
		Error:      ErrBusy.Error(),
		StartedAt:  now,
		FinishedAt: now,
	}
}
