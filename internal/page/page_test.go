package page

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclock/internal/model"
)

const dashboardHTML = `<!doctype html>
<html><body>
  <nav><a href="#/home">Home</a><a href="#/me" title="Profile"></a></nav>
  <div class="attendance">
    <button class="btn btn-x-sm mx-4 btn-white">
      <span>Web</span>
      <span>Clock-in</span>
    </button>
    <button class="btn btn-danger btn-x-sm" style="display: none">Clock Out</button>
    <div hidden><button>Clock out</button></div>
    <input type="submit" value="Request  Regularization">
    <input type="hidden" value="clock out">
    <div role="button" aria-label="Settings"></div>
  </div>
</body></html>`

func TestParseSnapshotCollectsVisibleControls(t *testing.T) {
	snap, err := ParseSnapshotString(dashboardHTML)
	require.NoError(t, err)

	els, err := snap.Elements(context.Background())
	require.NoError(t, err)

	labels := make([]string, 0, len(els))
	for _, el := range els {
		labels = append(labels, el.Label)
	}
	assert.Equal(t, []string{"Home", "Profile", "Web Clock-in", "Request Regularization", "Settings"}, labels)
	assert.Equal(t, "button", els[2].Tag)
	assert.True(t, els[2].HasClass("btn-white"))
	assert.Equal(t, 2, els[2].Index)
}

func TestSnapshotClick(t *testing.T) {
	snap, err := ParseSnapshotString(`<button>Clock in</button>`)
	require.NoError(t, err)

	els, _ := snap.Elements(context.Background())
	require.Len(t, els, 1)
	require.NoError(t, snap.Click(context.Background(), els[0]))
	assert.Equal(t, els, snap.Clicked())

	err = snap.Click(context.Background(), Element{Index: 0, Label: "Clock out"})
	assert.ErrorIs(t, err, ErrChannel)
	err = snap.Click(context.Background(), Element{Index: 5})
	assert.ErrorIs(t, err, ErrChannel)
}

func TestMatcherMatch(t *testing.T) {
	m := DefaultMatcher()

	tests := []struct {
		label  string
		action model.Action
		want   MatchKind
	}{
		{"Clock In", model.ActionIn, MatchExact},
		{"  WEB clock-in ", model.ActionIn, MatchExact},
		{"clockin", model.ActionIn, MatchExact},
		{"Clock\u00a0In", model.ActionIn, MatchExact},
		{"Clock in (remote)", model.ActionIn, MatchPartial},
		{"Clock Out", model.ActionIn, MatchNone},
		{"Clock inbox", model.ActionIn, MatchNone},
		{"Web Clock-out", model.ActionOut, MatchExact},
		{"Yes, clock out", model.ActionOut, MatchPartial},
		{"Checkout", model.ActionOut, MatchNone},
		{"", model.ActionOut, MatchNone},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.label, tt.action))
		})
	}
}

func TestMatcherIsConfirm(t *testing.T) {
	m := DefaultMatcher()
	for _, label := range []string{"Yes", "OK", "Confirm", "continue", "Proceed anyway", "Yes, clock me out"} {
		assert.True(t, m.IsConfirm(label), label)
	}
	for _, label := range []string{"Cancel", "No", "Okay-ish?", "Clock out"} {
		assert.False(t, m.IsConfirm(label), label)
	}
}

func TestMatcherCandidatesOrdering(t *testing.T) {
	m := DefaultMatcher()
	els := []Element{
		{Index: 0, Label: "Clock out now"},
		{Index: 1, Label: "Clock out"},
		{Index: 2, Label: "Clock out", Classes: []string{"btn", "btn-danger"}},
		{Index: 3, Label: "Clock in"},
		{Index: 4, Label: "Clock-out later", Classes: []string{"btn-danger"}},
	}

	got := m.Candidates(els, model.ActionOut)
	idx := make([]int, 0, len(got))
	for _, el := range got {
		idx = append(idx, el.Index)
	}
	assert.Equal(t, []int{2, 1, 4, 0}, idx)

	assert.Equal(t, MatchExact, m.Best(els, model.ActionIn))
	assert.Empty(t, m.Candidates(els[:1], model.ActionIn))
}
