package server

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the server's Prometheus collectors.
//
// Each server instance owns its registry so tests can spin up multiple
// servers without duplicate registration panics.
type metrics struct {
	registry       *prometheus.Registry
	ingestTotal    *prometheus.CounterVec
	ingestReadings prometheus.Counter
	snapshotTotal  *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lotboard_ingest_requests_total",
			Help: "Ingest requests by outcome (ok, rejected, error).",
		}, []string{"outcome"}),
		ingestReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotboard_ingest_readings_total",
			Help: "Sensor readings accepted for upsert.",
		}),
		snapshotTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lotboard_snapshot_requests_total",
			Help: "Snapshot requests by outcome (ok, error).",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(m.ingestTotal, m.ingestReadings, m.snapshotTotal)
	return m
}
