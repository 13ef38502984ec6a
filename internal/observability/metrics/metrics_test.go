package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestIngestMetricsObserve(t *testing.T) {
	m := NewIngestMetrics(prometheus.NewRegistry())
	m.ObserveInbound("message", "accepted")
	m.ObserveDuplicate()
	m.ObserveLeadCreated("whatsapp")
	m.ObserveLatency("message", 0.25)
}

func TestIngestMetricsNilSafe(t *testing.T) {
	var m *IngestMetrics
	m.ObserveInbound("message", "accepted")
	m.ObserveDuplicate()
	m.ObserveLeadCreated("instagram")
	m.ObserveLatency("message", 0.1)
}
