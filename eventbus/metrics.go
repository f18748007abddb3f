package eventbus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for one Bus. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	published       *prometheus.CounterVec
	delivered       *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	panics          *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
}

// NewMetrics creates the bus collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xrcore",
			Subsystem: "eventbus",
			Name:      "published_total",
			Help:      "Total number of events published",
		}, []string{"topic"}),

		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xrcore",
			Subsystem: "eventbus",
			Name:      "delivered_total",
			Help:      "Total number of subscriber callbacks completed",
		}, []string{"topic"}),

		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xrcore",
			Subsystem: "eventbus",
			Name:      "dropped_total",
			Help:      "Total number of events not delivered to a subscriber",
		}, []string{"topic"}),

		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xrcore",
			Subsystem: "eventbus",
			Name:      "handler_panics_total",
			Help:      "Total number of subscriber callbacks that panicked",
		}, []string{"topic"}),

		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "xrcore",
			Subsystem: "eventbus",
			Name:      "handler_duration_seconds",
			Help:      "Subscriber callback duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"topic"}),
	}

	if reg != nil {
		reg.MustRegister(m.published, m.delivered, m.dropped, m.panics, m.handlerDuration)
	}
	return m
}

func (m *Metrics) recordPublished(topic string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(topic).Inc()
}

func (m *Metrics) recordDelivered(topic string, d time.Duration) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(topic).Inc()
	m.handlerDuration.WithLabelValues(topic).Observe(d.Seconds())
}

func (m *Metrics) recordDropped(topic string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.dropped.WithLabelValues(topic).Add(float64(n))
}

func (m *Metrics) recordPanic(topic string) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(topic).Inc()
}
