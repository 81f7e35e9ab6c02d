package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ridepush"

// Metrics holds the delivery layer collectors. A nil *Metrics records nothing.
type Metrics struct {
	activeConnections prometheus.Gauge
	admissions        *prometheus.CounterVec
	evictions         prometheus.Counter
	framesReceived    *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Connections currently admitted into the registry.",
		}),
		admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Connections admitted, by endpoint.",
		}, []string{"endpoint"}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Connections evicted from the registry.",
		}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames, by kind.",
		}, []string{"kind"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound send attempts made by the dispatcher, by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) ConnectionAdmitted(endpoint string) {
	if m == nil {
		return
	}

	m.activeConnections.Inc()
	m.admissions.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) ConnectionEvicted() {
	if m == nil {
		return
	}

	m.activeConnections.Dec()
	m.evictions.Inc()
}

func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}

	m.framesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) DeliveryAttempted(success bool) {
	if m == nil {
		return
	}

	result := "delivered"
	if !success {
		result = "failed"
	}

	m.deliveries.WithLabelValues(result).Inc()
}
