package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ReportLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketpulse",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of report endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ReportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by report endpoint",
		},
		[]string{"endpoint"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Subsystem: "api",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result",
		},
		[]string{"endpoint", "result"},
	)

	LazySnapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Subsystem: "api",
			Name:      "lazy_snapshots_total",
			Help:      "Snapshots built on read because the report had none",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ReportLatency, ReportErrors, CacheLookups, LazySnapshots)
	})
}
