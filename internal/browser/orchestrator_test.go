package browser

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"autoclock/internal/page"
)

type mockBrowser struct {
	mock.Mock
}

func (m *mockBrowser) Targets(ctx context.Context) ([]Target, error) {
	args := m.Called(ctx)
	targets, _ := args.Get(0).([]Target)
	return targets, args.Error(1)
}

func (m *mockBrowser) Attach(ctx context.Context, id string, opts AttachOptions) (page.Document, error) {
	args := m.Called(ctx, id, opts)
	doc, _ := args.Get(0).(page.Document)
	return doc, args.Error(1)
}

func (m *mockBrowser) Open(ctx context.Context, url string) (page.Document, error) {
	args := m.Called(ctx, url)
	doc, _ := args.Get(0).(page.Document)
	return doc, args.Error(1)
}

func newTestOrchestrator(t *testing.T, b Browser) (*Orchestrator, *[]time.Duration) {
	t.Helper()
	var waits []time.Duration
	o, err := NewOrchestrator(b, DefaultConfig(), zerolog.New(io.Discard), WithSleep(func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}))
	require.NoError(t, err)
	return o, &waits
}

func TestReadyReusesExistingTab(t *testing.T) {
	doc, _ := page.ParseSnapshotString(`<button>Clock in</button>`)
	b := &mockBrowser{}
	b.On("Targets", mock.Anything).Return([]Target{
		{ID: "A", URL: "https://example.com/"},
		{ID: "B", URL: "https://newstreet.keka.com/#/me/attendance/logs"},
	}, nil)
	b.On("Attach", mock.Anything, "B", AttachOptions{
		Activate:    true,
		NavigateURL: "https://newstreet.keka.com/#/home/dashboard",
	}).Return(doc, nil)

	o, waits := newTestOrchestrator(t, b)
	got, err := o.Ready(context.Background())
	require.NoError(t, err)
	assert.Same(t, doc, got)
	assert.Equal(t, []time.Duration{5 * time.Second}, *waits)
	b.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestReadyOpensNewTab(t *testing.T) {
	doc, _ := page.ParseSnapshotString(`<button>Clock in</button>`)
	b := &mockBrowser{}
	b.On("Targets", mock.Anything).Return([]Target{{ID: "A", URL: "https://newstreet.keka.com.evil.io/"}}, nil)
	b.On("Open", mock.Anything, "https://newstreet.keka.com/#/home/dashboard").Return(doc, nil)

	o, waits := newTestOrchestrator(t, b)
	got, err := o.Ready(context.Background())
	require.NoError(t, err)
	assert.Same(t, doc, got)
	assert.Equal(t, []time.Duration{10 * time.Second}, *waits)
}

func TestReadyDoesNotRetry(t *testing.T) {
	b := &mockBrowser{}
	b.On("Targets", mock.Anything).Return(nil, nil)
	b.On("Open", mock.Anything, mock.Anything).Return(nil, errors.New("browser gone")).Once()

	o, waits := newTestOrchestrator(t, b)
	_, err := o.Ready(context.Background())
	assert.ErrorContains(t, err, "browser gone")
	assert.Empty(t, *waits)
	b.AssertNumberOfCalls(t, "Open", 1)
}

func TestReadyTargetsError(t *testing.T) {
	b := &mockBrowser{}
	b.On("Targets", mock.Anything).Return(nil, errors.New("devtools unreachable"))

	o, _ := newTestOrchestrator(t, b)
	_, err := o.Ready(context.Background())
	assert.ErrorContains(t, err, "list tabs")
}

func TestExisting(t *testing.T) {
	b := &mockBrowser{}
	b.On("Targets", mock.Anything).Return([]Target{}, nil).Once()

	o, _ := newTestOrchestrator(t, b)
	_, err := o.Existing(context.Background())
	assert.ErrorIs(t, err, ErrNoTab)

	doc, _ := page.ParseSnapshotString(`<button>Clock out</button>`)
	b.On("Targets", mock.Anything).Return([]Target{{ID: "T", URL: "https://newstreet.keka.com/#/home/dashboard"}}, nil)
	b.On("Attach", mock.Anything, "T", AttachOptions{}).Return(doc, nil)

	got, err := o.Existing(context.Background())
	require.NoError(t, err)
	assert.Same(t, doc, got)
}

func TestCompilePattern(t *testing.T) {
	re, err := CompilePattern("https://newstreet.keka.com/*")
	require.NoError(t, err)
	assert.True(t, re.MatchString("https://newstreet.keka.com/"))
	assert.True(t, re.MatchString("https://newstreet.keka.com/#/home/dashboard"))
	assert.False(t, re.MatchString("http://newstreet.keka.com/"))
	assert.False(t, re.MatchString("https://newstreetXkeka.com/"))

	_, err = CompilePattern("")
	assert.Error(t, err)
}
