// Package browser delivers a settled portal tab to the engine.
package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"autoclock/internal/page"
)

// ErrNoTab is returned by Existing when no open tab matches the portal pattern.
var ErrNoTab = errors.New("no portal tab open")

// Target is an open page of the browser.
type Target struct {
	ID    string
	URL   string
	Title string
}

// AttachOptions controls what Attach does to a tab before handing it out.
type AttachOptions struct {
	Activate    bool
	NavigateURL string
}

// Browser is the host browser the orchestrator drives.
type Browser interface {
	Targets(ctx context.Context) ([]Target, error)
	Attach(ctx context.Context, id string, opts AttachOptions) (page.Document, error)
	Open(ctx context.Context, url string) (page.Document, error)
}

// Config holds the portal location and the settle delays after attaching.
type Config struct {
	DashboardURL   string
	TabPattern     string
	ExistingSettle time.Duration
	NewTabSettle   time.Duration
}

func DefaultConfig() Config {
	return Config{
		DashboardURL:   "https://newstreet.keka.com/#/home/dashboard",
		TabPattern:     "https://newstreet.keka.com/*",
		ExistingSettle: 5 * time.Second,
		NewTabSettle:   10 * time.Second,
	}
}

type Option func(*Orchestrator)

func WithSleep(fn page.SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// Orchestrator finds, focuses or opens the portal tab.
type Orchestrator struct {
	browser Browser
	cfg     Config
	pattern *regexp.Regexp
	sleep   page.SleepFunc
	logger  zerolog.Logger
}

func NewOrchestrator(b Browser, cfg Config, logger zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg.DashboardURL == "" {
		return nil, errors.New("dashboard url is required")
	}
	pattern, err := CompilePattern(cfg.TabPattern)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		browser: b,
		cfg:     cfg,
		pattern: pattern,
		sleep:   page.Sleep,
		logger:  logger.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// CompilePattern turns a match pattern like "https://host/*" into an anchored
// regular expression where "*" matches any run of characters.
func CompilePattern(p string) (*regexp.Regexp, error) {
	if p == "" {
		return nil, errors.New("tab pattern is required")
	}
	quoted := strings.ReplaceAll(regexp.QuoteMeta(p), `\*`, `.*`)
	re, err := regexp.Compile("^" + quoted + "$")
	if err != nil {
		return nil, fmt.Errorf("compile tab pattern %q: %w", p, err)
	}
	return re, nil
}

// Ready returns a settled portal document. An existing tab is focused and
// sent to the dashboard; otherwise a new tab is opened. Failures are not retried.
func (o *Orchestrator) Ready(ctx context.Context) (page.Document, error) {
	t, err := o.find(ctx)
	if err != nil {
		return nil, err
	}

	if t != nil {
		o.logger.Debug().Str("target", t.ID).Str("url", t.URL).Msg("Reusing portal tab")
		doc, err := o.browser.Attach(ctx, t.ID, AttachOptions{Activate: true, NavigateURL: o.cfg.DashboardURL})
		if err != nil {
			return nil, fmt.Errorf("attach tab %s: %w", t.ID, err)
		}
		if err := o.sleep(ctx, o.cfg.ExistingSettle); err != nil {
			return nil, err
		}
		return doc, nil
	}

	o.logger.Info().Str("url", o.cfg.DashboardURL).Msg("Opening portal tab")
	doc, err := o.browser.Open(ctx, o.cfg.DashboardURL)
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if err := o.sleep(ctx, o.cfg.NewTabSettle); err != nil {
		return nil, err
	}
	return doc, nil
}

// Existing returns the open portal tab as is, without focusing or navigating.
func (o *Orchestrator) Existing(ctx context.Context) (page.Document, error) {
	t, err := o.find(ctx)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoTab
	}
	doc, err := o.browser.Attach(ctx, t.ID, AttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach tab %s: %w", t.ID, err)
	}
	return doc, nil
}

func (o *Orchestrator) find(ctx context.Context) (*Target, error) {
	targets, err := o.browser.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	for i := range targets {
		if o.pattern.MatchString(targets[i].URL) {
			return &targets[i], nil
		}
	}
	return nil, nil
}
