package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"autoclock/internal/page"
)

type ChromeConfig struct {
	// RemoteURL attaches to a running browser (ws://... or http://host:9222).
	// When empty a browser is launched.
	RemoteURL       string
	ExecPath        string
	UserDataDir     string
	Headless        bool
	NavigateTimeout time.Duration
}

// Chrome is a Browser backed by the DevTools protocol.
type Chrome struct {
	cfg    ChromeConfig
	logger zerolog.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu   sync.Mutex
	tabs map[target.ID]*Tab
}

// NewChrome connects to or launches the browser. The browser lives until ctx
// is done or Close is called.
func NewChrome(ctx context.Context, cfg ChromeConfig, logger zerolog.Logger) (*Chrome, error) {
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = 30 * time.Second
	}
	l := logger.With().Str("component", "chrome").Logger()

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts, chromedp.Flag("headless", cfg.Headless))
		if cfg.UserDataDir != "" {
			opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
		}
		if cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) { l.Debug().Msgf(format, args...) }),
		chromedp.WithErrorf(func(format string, args ...any) { l.Warn().Msgf(format, args...) }),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Chrome{
		cfg:           cfg,
		logger:        l,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          make(map[target.ID]*Tab),
	}, nil
}

func (c *Chrome) Targets(ctx context.Context) ([]Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := chromedp.Targets(c.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: list targets: %v", page.ErrChannel, err)
	}

	var out []Target
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		out = append(out, Target{ID: string(info.TargetID), URL: info.URL, Title: info.Title})
	}
	return out, nil
}

// Attach binds to an existing tab. A tab that fails to activate or navigate is
// dropped so the next attach starts from a fresh session.
func (c *Chrome) Attach(ctx context.Context, id string, opts AttachOptions) (page.Document, error) {
	tab := c.tab(target.ID(id))

	if opts.Activate {
		err := tab.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return target.ActivateTarget(tab.id).Do(cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
		}))
		if err != nil {
			c.forget(tab.id)
			return nil, fmt.Errorf("activate: %w", err)
		}
	}

	if opts.NavigateURL != "" {
		// Assigning location keeps hash routes from waiting on a load event that never fires.
		expr, _ := json.Marshal(opts.NavigateURL)
		var ok bool
		err := tab.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.location.href = %s, true", expr), &ok))
		if err != nil {
			c.forget(tab.id)
			return nil, fmt.Errorf("navigate: %w", err)
		}
	}

	return tab, nil
}

func (c *Chrome) Open(ctx context.Context, url string) (page.Document, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: create tab: %v", page.ErrChannel, err)
	}

	tab := &Tab{ctx: tabCtx, cancel: cancel, id: chromedp.FromContext(tabCtx).Target.TargetID}

	navCtx, navCancel := context.WithTimeout(ctx, c.cfg.NavigateTimeout)
	defer navCancel()
	if err := tab.run(navCtx, chromedp.Navigate(url)); err != nil {
		cancel()
		return nil, fmt.Errorf("navigate: %w", err)
	}

	c.mu.Lock()
	c.tabs[tab.id] = tab
	c.mu.Unlock()
	return tab, nil
}

func (c *Chrome) Close() {
	c.mu.Lock()
	for id, tab := range c.tabs {
		tab.cancel()
		delete(c.tabs, id)
	}
	c.mu.Unlock()

	c.browserCancel()
	c.allocCancel()
}

func (c *Chrome) tab(id target.ID) *Tab {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tab, ok := c.tabs[id]; ok && tab.ctx.Err() == nil {
		return tab
	}
	ctx, cancel := chromedp.NewContext(c.browserCtx, chromedp.WithTargetID(id))
	tab := &Tab{ctx: ctx, cancel: cancel, id: id}
	c.tabs[id] = tab
	return tab
}

func (c *Chrome) forget(id target.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tab, ok := c.tabs[id]; ok {
		tab.cancel()
		delete(c.tabs, id)
	}
}

// Tab is a live page. It implements page.Document.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	id     target.ID
}

// run executes actions on the tab, aborting when either ctx or the tab ends.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		runCtx, dcancel = context.WithDeadline(runCtx, deadline)
		defer dcancel()
	}

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", page.ErrChannel, err)
	}
	return nil
}

func (t *Tab) Elements(ctx context.Context) ([]page.Element, error) {
	var raw string
	if err := t.run(ctx, chromedp.Evaluate(scanScript, &raw)); err != nil {
		return nil, err
	}

	var els []page.Element
	if err := json.Unmarshal([]byte(raw), &els); err != nil {
		return nil, fmt.Errorf("%w: decode controls: %v", page.ErrChannel, err)
	}
	return els, nil
}

func (t *Tab) Click(ctx context.Context, el page.Element) error {
	label, _ := json.Marshal(el.Label)
	var status string
	if err := t.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickScript, el.Index, label), &status)); err != nil {
		return err
	}
	if status != "ok" {
		return fmt.Errorf("%w: control %d %q is %s", page.ErrChannel, el.Index, el.Label, status)
	}
	return nil
}

const collectJS = `
const __visible = el => {
  const s = window.getComputedStyle(el);
  if (s.display === 'none' || s.visibility === 'hidden') return false;
  const r = el.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
};
const __label = el => [el.innerText, el.value, el.getAttribute('aria-label'), el.getAttribute('title')]
  .map(v => (v || '').replace(/\s+/g, ' ').trim())
  .find(v => v) || '';
const __collect = () => Array.from(document.querySelectorAll(
  'button, a, input[type="button"], input[type="submit"], [role="button"]'
)).filter(__visible);
`

var scanScript = `(() => {` + collectJS + `
  return JSON.stringify(__collect().map((el, i) => ({
    index: i,
    tag: el.tagName.toLowerCase(),
    label: __label(el),
    classes: Array.from(el.classList),
  })));
})()`

var clickScript = `(() => {` + collectJS + `
  const el = __collect()[%d];
  if (!el) return 'missing';
  if (__label(el) !== %s) return 'stale';
  el.click();
  return 'ok';
})()`
