package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(cycles.WithLabelValues("noop"))
	IncCycle("noop")
	assert.Equal(t, before+1, testutil.ToFloat64(cycles.WithLabelValues("noop")))

	IncClickAttempt("in", "ok")
	assert.GreaterOrEqual(t, testutil.ToFloat64(clickAttempts.WithLabelValues("in", "ok")), 1.0)

	at := time.Unix(1715765460, 0)
	SetLastAction("in", at)
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(lastAction.WithLabelValues("in")))
}
