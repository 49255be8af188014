package metrics

import "github.com/prometheus/client_golang/prometheus"

// Relay holds the playlist relay's metrics. A nil *Relay is valid and
// records nothing.
type Relay struct {
	*Metrics
	iterations      prometheus.Counter
	skipped         prometheus.Counter
	emitted         prometheus.Counter
	placements      *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	deleted         prometheus.Counter
	discontinuities prometheus.Counter
	sequence        prometheus.Gauge
	live            prometheus.Gauge
}

// NewRelay creates and registers the relay metrics.
func NewRelay() *Relay {
	base := New()

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "relay", Name: name, Help: help,
		})
	}

	r := &Relay{
		Metrics:         base,
		iterations:      counter("iterations_total", "Relay iterations that rendered a playlist"),
		skipped:         counter("skipped_iterations_total", "Relay iterations skipped because the upstream playlist had no segments"),
		emitted:         counter("segments_emitted_total", "Segments assigned an output sequence number and listed"),
		deleted:         counter("segments_deleted_total", "Output segments removed by retention cleanup"),
		discontinuities: counter("discontinuities_total", "Discontinuity markers emitted on source switches"),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "relay", Name: "segment_placements_total",
			Help: "Output segments placed, by the strategy that succeeded",
		}, []string{"strategy"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "relay", Name: "segments_dropped_total",
			Help: "Upstream segments omitted from the playlist, by reason",
		}, []string{"reason"}),
		sequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "relay", Name: "sequence",
			Help: "Next output sequence number to be assigned",
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "relay", Name: "live",
			Help: "1 when the relay is following the live source, 0 for autodj",
		}),
	}

	base.registry.MustRegister(
		r.iterations, r.skipped, r.emitted, r.deleted, r.discontinuities,
		r.placements, r.dropped, r.sequence, r.live,
	)
	return r
}

// ObserveIteration records a completed render.
func (m *Relay) ObserveIteration(sequence int64, live, discontinuity bool) {
	if m == nil {
		return
	}
	m.iterations.Inc()
	m.sequence.Set(float64(sequence))
	m.live.Set(boolToFloat(live))
	if discontinuity {
		m.discontinuities.Inc()
	}
}

// IncSkipped counts an iteration that found no upstream segments.
func (m *Relay) IncSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

// IncPlaced counts a placed segment under the strategy that succeeded.
func (m *Relay) IncPlaced(strategy string) {
	if m == nil {
		return
	}
	m.emitted.Inc()
	m.placements.WithLabelValues(strategy).Inc()
}

// IncDropped counts an omitted segment ("missing", "not_regular" or "place_failed").
func (m *Relay) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// AddDeleted counts segments removed by cleanup.
func (m *Relay) AddDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deleted.Add(float64(n))
}
