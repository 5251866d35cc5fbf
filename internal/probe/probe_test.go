package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclock/internal/model"
	"autoclock/internal/page"
)

func labels(ls ...string) []page.Element {
	els := make([]page.Element, len(ls))
	for i, l := range ls {
		els[i] = page.Element{Index: i, Tag: "button", Label: l}
	}
	return els
}

func TestClassify(t *testing.T) {
	p := New(nil)

	tests := []struct {
		name string
		els  []page.Element
		want model.ClockState
	}{
		{"only in", labels("Home", "Web Clock-In"), model.StateOut},
		{"only out", labels("Clock Out"), model.StateIn},
		{"partial in only", labels("Clock in (remote)"), model.StateOut},
		{"neither", labels("Home", "Leave"), model.StateUnknown},
		{"empty", nil, model.StateUnknown},
		{"both exact", labels("Clock in", "Clock out"), model.StateUnknown},
		{"both partial", labels("Clock in here", "Clock out here"), model.StateUnknown},
		{"exact in partial out", labels("Clock in", "Forgot to clock out?"), model.StateOut},
		{"exact out partial in", labels("Clock-out", "Last clock in 09:31"), model.StateIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Classify(tt.els))
		})
	}
}

func TestInversionInvariant(t *testing.T) {
	p := New(page.DefaultMatcher())
	for _, l := range []string{"clock in", "Clock-In", "clockin", "Web Clock In"} {
		assert.Equal(t, model.StateOut, p.Classify(labels(l)), l)
	}
	for _, l := range []string{"clock out", "Clock-Out", "clockout", "Web Clock Out"} {
		assert.Equal(t, model.StateIn, p.Classify(labels(l)), l)
	}
}

type brokenDoc struct{}

func (brokenDoc) Elements(context.Context) ([]page.Element, error) {
	return nil, errors.New("target closed")
}

func (brokenDoc) Click(context.Context, page.Element) error { return nil }

func TestDetect(t *testing.T) {
	p := New(nil)

	snap, err := page.ParseSnapshotString(`<button class="btn btn-danger">Clock out</button>`)
	require.NoError(t, err)
	state, err := p.Detect(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, model.StateIn, state)

	state, err = p.Detect(context.Background(), brokenDoc{})
	assert.Error(t, err)
	assert.Equal(t, model.StateError, state)
}

func TestExplain(t *testing.T) {
	r := New(nil).Explain(labels("Clock in", "Clock out now"))
	assert.Equal(t, model.StateOut, r.State)
	assert.Equal(t, "exact", r.InMatch)
	assert.Equal(t, "partial", r.OutMatch)
	require.Len(t, r.InControls, 1)
	require.Len(t, r.OutControls, 1)
	assert.Equal(t, 1, r.OutControls[0].Index)
}
