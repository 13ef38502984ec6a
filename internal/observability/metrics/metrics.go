package metrics

import "github.com/prometheus/client_golang/prometheus"

// IngestMetrics exposes counters/histograms for the webhook ingestion flow.
type IngestMetrics struct {
	inboundTotal  *prometheus.CounterVec
	duplicates    prometheus.Counter
	leadsCreated  *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec
}

func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "ingest",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound webhook deliveries",
		}, []string{"event_type", "outcome"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "ingest",
			Name:      "duplicate_total",
			Help:      "Deliveries short-circuited by external message ID",
		}),
		leadsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "ingest",
			Name:      "leads_created_total",
			Help:      "Leads created on demand by the resolver",
		}, []string{"channel"}),
		ingestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crm",
			Subsystem: "ingest",
			Name:      "latency_seconds",
			Help:      "Latency of full webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.duplicates, m.leadsCreated, m.ingestLatency)
	return m
}

func (m *IngestMetrics) ObserveInbound(eventType, outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *IngestMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *IngestMetrics) ObserveLeadCreated(channel string) {
	if m == nil {
		return
	}
	m.leadsCreated.WithLabelValues(channel).Inc()
}

func (m *IngestMetrics) ObserveLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.ingestLatency.WithLabelValues(eventType).Observe(seconds)
}
