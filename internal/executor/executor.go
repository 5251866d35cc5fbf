package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"autoclock/internal/metrics"
	"autoclock/internal/model"
	"autoclock/internal/page"
	"autoclock/internal/probe"
)

// ErrElementNotFound is returned when no matching control appeared within
// the element timeout. It is not retried.
var ErrElementNotFound = errors.New("clock control not found")

// Confirmation tells how a clock-out was confirmed.
const (
	ConfirmDialog  = "dialog"
	ConfirmReclick = "reclick"
)

// Config bounds how long and how often a click is tried.
type Config struct {
	MaxAttempts int
	// RetryDelays[i] is the wait after attempt i+1 failed. Missing entries
	// double the previous delay.
	RetryDelays    []time.Duration
	ElementTimeout time.Duration
	PollInterval   time.Duration
	ConfirmSettle  time.Duration
	ConfirmTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		RetryDelays:    []time.Duration{2 * time.Second, 4 * time.Second},
		ElementTimeout: 15 * time.Second,
		PollInterval:   500 * time.Millisecond,
		ConfirmSettle:  time.Second,
		ConfirmTimeout: 5 * time.Second,
	}
}

// Result describes a click that changed the clock state.
type Result struct {
	Action       model.Action     `json:"action"`
	Attempts     int              `json:"attempts"`
	Confirmation string           `json:"confirmation,omitempty"`
	State        model.ClockState `json:"state"`
}

type Option func(*Executor)

// WithSleep replaces the wait used between polls and retries.
func WithSleep(fn page.SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

// Executor finds and clicks clock controls.
type Executor struct {
	matcher *page.Matcher
	prober  *probe.Prober
	cfg     Config
	sleep   page.SleepFunc
	logger  zerolog.Logger
}

// New falls back to DefaultConfig for unset retry fields and to the default
// matcher when matcher is nil.
func New(matcher *page.Matcher, cfg Config, logger zerolog.Logger, opts ...Option) *Executor {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if len(cfg.RetryDelays) == 0 {
		cfg.RetryDelays = def.RetryDelays
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if matcher == nil {
		matcher = page.DefaultMatcher()
	}

	e := &Executor{
		matcher: matcher,
		prober:  probe.New(matcher),
		cfg:     cfg,
		sleep:   page.Sleep,
		logger:  logger.With().Str("component", "executor").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Perform clicks the control for action on doc. Channel failures retry the
// whole attempt with growing delays; a missing control ends it at once.
func (e *Executor) Perform(ctx context.Context, doc page.Document, action model.Action) (Result, error) {
	res := Result{Action: action}
	if action != model.ActionIn && action != model.ActionOut {
		return res, fmt.Errorf("perform: unknown action %q", action)
	}

	l := e.logger.With().Str("action", string(action)).Logger()

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt

		confirmation, err := e.attempt(ctx, doc, action)
		if err == nil {
			metrics.IncClickAttempt(string(action), "ok")
			res.Confirmation = confirmation
			res.State = e.observe(ctx, doc, action)
			l.Info().Int("attempt", attempt).Str("confirmation", confirmation).
				Str("state", string(res.State)).Msg("Clock control clicked")
			return res, nil
		}

		lastErr = err
		if errors.Is(err, ErrElementNotFound) {
			metrics.IncClickAttempt(string(action), "not_found")
			return res, err
		}
		metrics.IncClickAttempt(string(action), "error")
		if !errors.Is(err, page.ErrChannel) {
			return res, err
		}
		if attempt == e.cfg.MaxAttempts {
			break
		}

		delay := e.retryDelay(attempt)
		l.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("Click attempt failed, retrying")
		if err := e.sleep(ctx, delay); err != nil {
			return res, err
		}
	}

	return res, fmt.Errorf("%s failed after %d attempts: %w", action.Verb(), res.Attempts, lastErr)
}

func (e *Executor) attempt(ctx context.Context, doc page.Document, action model.Action) (string, error) {
	var before []page.Element
	target, err := e.waitFor(ctx, doc, e.cfg.ElementTimeout, func(els []page.Element) (page.Element, bool) {
		candidates := e.matcher.Candidates(els, action)
		if len(candidates) == 0 {
			return page.Element{}, false
		}
		before = els
		return candidates[0], true
	})
	if err != nil {
		return "", fmt.Errorf("find %s control: %w", action, err)
	}

	if err := e.click(ctx, doc, target); err != nil {
		return "", err
	}
	if action != model.ActionOut {
		return "", nil
	}

	if err := e.sleep(ctx, e.cfg.ConfirmSettle); err != nil {
		return "", err
	}

	seen := presentBefore(before)
	confirm, err := e.waitFor(ctx, doc, e.cfg.ConfirmTimeout, func(els []page.Element) (page.Element, bool) {
		return e.pickConfirmation(els, seen)
	})
	switch {
	case err == nil:
		if err := e.click(ctx, doc, confirm); err != nil {
			return "", err
		}
		return ConfirmDialog, nil
	case errors.Is(err, ErrElementNotFound):
		if err := e.click(ctx, doc, target); err != nil {
			return "", err
		}
		return ConfirmReclick, nil
	default:
		return "", fmt.Errorf("find confirmation: %w", err)
	}
}

type elementKey struct {
	index int
	label string
}

func presentBefore(els []page.Element) map[elementKey]bool {
	seen := make(map[elementKey]bool, len(els))
	for _, el := range els {
		seen[elementKey{el.Index, page.Normalize(el.Label)}] = true
	}
	return seen
}

// pickConfirmation only considers controls that appeared after the primary
// click. A confirm label wins over a repeated clock-out label.
func (e *Executor) pickConfirmation(els []page.Element, seen map[elementKey]bool) (page.Element, bool) {
	var repeated *page.Element
	for i, el := range els {
		if seen[elementKey{el.Index, page.Normalize(el.Label)}] {
			continue
		}
		if e.matcher.IsConfirm(el.Label) {
			return el, true
		}
		if repeated == nil && e.matcher.Match(el.Label, model.ActionOut) != page.MatchNone {
			repeated = &els[i]
		}
	}
	if repeated != nil {
		return *repeated, true
	}
	return page.Element{}, false
}

// waitFor polls doc until pick accepts an element or timeout elapses.
func (e *Executor) waitFor(
	ctx context.Context,
	doc page.Document,
	timeout time.Duration,
	pick func([]page.Element) (page.Element, bool),
) (page.Element, error) {
	polls := int(timeout/e.cfg.PollInterval) + 1

	for i := 0; i < polls; i++ {
		els, err := doc.Elements(ctx)
		if err != nil {
			return page.Element{}, channelErr(ctx, err)
		}
		if el, ok := pick(els); ok {
			return el, nil
		}
		if i < polls-1 {
			if err := e.sleep(ctx, e.cfg.PollInterval); err != nil {
				return page.Element{}, err
			}
		}
	}
	return page.Element{}, ErrElementNotFound
}

func (e *Executor) click(ctx context.Context, doc page.Document, el page.Element) error {
	if err := doc.Click(ctx, el); err != nil {
		return fmt.Errorf("click %q: %w", el.Label, channelErr(ctx, err))
	}
	return nil
}

func (e *Executor) observe(ctx context.Context, doc page.Document, action model.Action) model.ClockState {
	state, err := e.prober.Detect(ctx, doc)
	if err != nil || !state.Definite() {
		return action.ResultingState()
	}
	return state
}

func (e *Executor) retryDelay(attempt int) time.Duration {
	delays := e.cfg.RetryDelays
	if attempt <= len(delays) {
		return delays[attempt-1]
	}
	d := delays[len(delays)-1]
	for i := len(delays); i < attempt; i++ {
		d *= 2
	}
	return d
}

// channelErr classifies a document error. Context errors pass through.
func channelErr(ctx context.Context, err error) error {
	if errors.Is(err, page.ErrChannel) || ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %v", page.ErrChannel, err)
}
