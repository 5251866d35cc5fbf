package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "autoclock"

var (
	once sync.Once

	cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Count of engine cycles by outcome.",
		},
		[]string{"outcome"},
	)

	actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Count of clock actions by action and status.",
		},
		[]string{"action", "status"},
	)

	probeResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_results_total",
			Help:      "Count of page probes by detected state.",
		},
		[]string{"state"},
	)

	clickAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_attempts_total",
			Help:      "Count of click attempts by action and result.",
		},
		[]string{"action", "result"},
	)

	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of engine cycles that touched the browser.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 300},
		},
	)

	lastAction = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_action_timestamp_seconds",
			Help:      "Unix time of the last successful action.",
		},
		[]string{"action"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(cycles, actions, probeResults, clickAttempts, cycleDuration, lastAction)
	})
}

func IncCycle(outcome string) {
	cycles.WithLabelValues(outcome).Inc()
}

func IncAction(action, status string) {
	actions.WithLabelValues(action, status).Inc()
}

func IncProbe(state string) {
	probeResults.WithLabelValues(state).Inc()
}

func IncClickAttempt(action, result string) {
	clickAttempts.WithLabelValues(action, result).Inc()
}

func ObserveCycle(d time.Duration) {
	cycleDuration.Observe(d.Seconds())
}

func SetLastAction(action string, at time.Time) {
	lastAction.WithLabelValues(action).Set(float64(at.Unix()))
}
