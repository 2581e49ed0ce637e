package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ingest results.
const (
	IngestUpdated  = "updated"
	IngestCase     = "case_created"
	IngestRejected = "rejected"
	IngestFailed   = "failed"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ingestTotal      *prometheus.CounterVec
	casesCreated     *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	eventSubscribers prometheus.Gauge
	visionFailures   prometheus.Counter
	pushSent         *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krl_ingest_total",
			Help: "Detection payloads processed by result.",
		}, []string{"result"}),
		casesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krl_cases_created_total",
			Help: "Cases created by source.",
		}, []string{"source"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krl_case_transitions_total",
			Help: "Case lifecycle transitions by target status.",
		}, []string{"status"}),
		eventSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "krl_event_subscribers",
			Help: "Connected case event stream clients.",
		}),
		visionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krl_vision_failures_total",
			Help: "Scene description calls that fell back to the fixed text.",
		}),
		pushSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krl_push_notifications_total",
			Help: "Web push deliveries by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.ingestTotal,
		m.casesCreated,
		m.transitions,
		m.eventSubscribers,
		m.visionFailures,
		m.pushSent,
	)
	return m
}

func (m *Metrics) Ingest(result string) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) CaseCreated(source string) {
	if m == nil {
		return
	}
	m.casesCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) VisionFailure() {
	if m == nil {
		return
	}
	m.visionFailures.Inc()
}

// SubscriberConnected increments the stream gauge and returns the matching
// decrement.
func (m *Metrics) SubscriberConnected() func() {
	if m == nil {
		return func() {}
	}
	m.eventSubscribers.Inc()
	return m.eventSubscribers.Dec
}

func (m *Metrics) Push(outcome string) {
	if m == nil {
		return
	}
	m.pushSent.WithLabelValues(outcome).Inc()
}
