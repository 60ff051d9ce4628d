package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spectrum_watch"

// Metrics holds the stream engine collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	messages    *prometheus.CounterVec // frames by shape
	malformed   prometheus.Counter     // frames matching no shape
	sweeps      prometheus.Counter     // sweeps begun
	evicted     prometheus.Counter     // sweeps evicted from history
	renders     *prometheus.CounterVec // renders by kind (throttled, final)
	suppressed  prometheus.Counter     // data notifications without a render
	runs        *prometheus.CounterVec // finished runs by outcome
	state       *prometheus.GaugeVec   // 1 for the current session state
	sweepPoints prometheus.Gauge       // points in the active sweep
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Stream frames received, by shape",
			},
			[]string{"kind"},
		),
		malformed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "malformed_messages_total",
				Help:      "Stream frames that could not be decoded",
			},
		),
		sweeps: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Sweeps begun",
			},
		),
		evicted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_evicted_total",
				Help:      "Sweeps evicted from the history at capacity",
			},
		),
		renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Frames rendered, by kind",
			},
			[]string{"kind"},
		),
		suppressed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_suppressed_total",
				Help:      "Data notifications that did not render due to throttling",
			},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished stream runs, by outcome",
			},
			[]string{"outcome"},
		),
		state: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_state",
				Help:      "Current stream session state",
			},
			[]string{"state"},
		),
		sweepPoints: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sweep_points",
				Help:      "Points in the active sweep",
			},
		),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) MessageReceived(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

func (m *Metrics) MessageMalformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) SweepBegun(evicted bool) {
	if m == nil {
		return
	}
	m.sweeps.Inc()
	if evicted {
		m.evicted.Inc()
	}
}

func (m *Metrics) SweepPoints(n int) {
	if m == nil {
		return
	}
	m.sweepPoints.Set(float64(n))
}

func (m *Metrics) Rendered(final bool) {
	if m == nil {
		return
	}
	kind := "throttled"
	if final {
		kind = "final"
	}
	m.renders.WithLabelValues(kind).Inc()
}

func (m *Metrics) RenderSuppressed() {
	if m == nil {
		return
	}
	m.suppressed.Inc()
}

func (m *Metrics) RunEnded(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// SessionState sets the gauge of current to 1 and every other listed state to 0.
func (m *Metrics) SessionState(current string, all ...string) {
	if m == nil {
		return
	}
	for _, s := range all {
		m.state.WithLabelValues(s).Set(0)
	}
	m.state.WithLabelValues(current).Set(1)
}

// RunsCounter returns the counter of runs that ended with outcome.
func (m *Metrics) RunsCounter(outcome string) prometheus.Counter {
	return m.runs.WithLabelValues(outcome)
}

// RendersCounter returns the counter of final or throttled renders.
func (m *Metrics) RendersCounter(final bool) prometheus.Counter {
	if final {
		return m.renders.WithLabelValues("final")
	}
	return m.renders.WithLabelValues("throttled")
}
