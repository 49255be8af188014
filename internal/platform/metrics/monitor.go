package metrics

import "github.com/prometheus/client_golang/prometheus"

// Monitor holds the source monitor's metrics. A nil *Monitor is valid and
// records nothing.
type Monitor struct {
	*Metrics
	live          prometheus.Gauge
	nclients      prometheus.Gauge
	fetchFailures prometheus.Counter
	transitions   *prometheus.CounterVec
}

// NewMonitor creates and registers the monitor metrics.
func NewMonitor() *Monitor {
	base := New()

	live := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "live",
		Help:      "1 when the monitor last decided the live source is active, 0 for autodj",
	})
	nclients := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "nclients",
		Help:      "Client count reported for the monitored application on the last poll",
	})
	fetchFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "stat_fetch_failures_total",
		Help:      "Statistics fetches that failed and were treated as zero clients",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "mode_transitions_total",
		Help:      "Mode file writes, by the mode written",
	}, []string{"mode"})

	base.registry.MustRegister(live, nclients, fetchFailures, transitions)

	return &Monitor{
		Metrics:       base,
		live:          live,
		nclients:      nclients,
		fetchFailures: fetchFailures,
		transitions:   transitions,
	}
}

// ObservePoll records the outcome of one statistics poll.
func (m *Monitor) ObservePoll(nclients int, live bool) {
	if m == nil {
		return
	}
	m.nclients.Set(float64(nclients))
	m.live.Set(boolToFloat(live))
}

// IncFetchFailures increments the failed-fetch counter.
func (m *Monitor) IncFetchFailures() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

// IncTransitions counts a mode file write.
func (m *Monitor) IncTransitions(mode string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(mode).Inc()
}
