//go:build chrome

package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclock/internal/page"
)

// Run with: go test -tags chrome ./internal/browser/
// AUTOCLOCK_CHROME_REMOTE attaches to a running browser instead of launching one.

const dashboardHTML = `<!doctype html>
<html><body>
  <button class="btn btn-primary" onclick="this.innerText='Clock-out'">Clock-in</button>
  <a href="#" style="display:none">Hidden</a>
  <div role="button" aria-label="Requests" style="display:inline-block;width:20px;height:20px"></div>
  <input type="submit" value="Save">
</body></html>`

func newTestChrome(t *testing.T) (*Chrome, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, dashboardHTML)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c, err := NewChrome(ctx, ChromeConfig{
		RemoteURL:       os.Getenv("AUTOCLOCK_CHROME_REMOTE"),
		ExecPath:        os.Getenv("AUTOCLOCK_CHROME_PATH"),
		Headless:        true,
		NavigateTimeout: 20 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, srv.URL
}

func TestChromeScansVisibleControls(t *testing.T) {
	c, url := newTestChrome(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc, err := c.Open(ctx, url)
	require.NoError(t, err)

	els, err := doc.Elements(ctx)
	require.NoError(t, err)
	require.Len(t, els, 3)
	assert.Equal(t, page.Element{Index: 0, Tag: "button", Label: "Clock-in", Classes: []string{"btn", "btn-primary"}}, els[0])
	assert.Equal(t, "Requests", els[1].Label)
	assert.Equal(t, "div", els[1].Tag)
	assert.Equal(t, "Save", els[2].Label)
	assert.Equal(t, "input", els[2].Tag)

	targets, err := c.Targets(ctx)
	require.NoError(t, err)
	var found bool
	for _, tg := range targets {
		if tg.URL == url+"/" || tg.URL == url {
			found = true
		}
	}
	assert.True(t, found, "opened tab listed in %v", targets)
}

func TestChromeClickRejectsStaleLabel(t *testing.T) {
	c, url := newTestChrome(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc, err := c.Open(ctx, url)
	require.NoError(t, err)
	els, err := doc.Elements(ctx)
	require.NoError(t, err)
	clockIn := els[0]

	require.NoError(t, doc.Click(ctx, clockIn))

	els, err = doc.Elements(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Clock-out", els[0].Label)

	// The scan is out of date: same index, different label.
	err = doc.Click(ctx, clockIn)
	require.Error(t, err)
	assert.ErrorIs(t, err, page.ErrChannel)
	assert.Contains(t, err.Error(), "stale")

	err = doc.Click(ctx, page.Element{Index: 42, Label: "Clock-out"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestChromeAttachNavigatesExistingTab(t *testing.T) {
	c, url := newTestChrome(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opened, err := c.Open(ctx, "about:blank")
	require.NoError(t, err)
	tab, ok := opened.(*Tab)
	require.True(t, ok)

	doc, err := c.Attach(ctx, string(tab.id), AttachOptions{Activate: true, NavigateURL: url})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		els, err := doc.Elements(ctx)
		return err == nil && len(els) == 3
	}, 10*time.Second, 200*time.Millisecond)
}
