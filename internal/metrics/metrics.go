// Package metrics holds the Prometheus collectors the server records into.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "receipt_keeper"

// Metrics is the set of application collectors.
type Metrics struct {
	AuthOps         *prometheus.CounterVec
	Scans           *prometheus.CounterVec
	ReceiptsSaved   prometheus.Counter
	ReceiptsDeleted prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors, plus the Go and process collectors, on reg.
func New(reg prometheus.Registerer) *Metrics {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	return &Metrics{
		AuthOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Account operations by operation and result.",
		}, []string{"op", "result"}),
		Scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_scans_total",
			Help:      "Receipt scans by result.",
		}, []string{"result"}),
		ReceiptsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_saved_total",
			Help:      "Receipts saved.",
		}),
		ReceiptsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_deleted_total",
			Help:      "Receipts deleted.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// Result labels an outcome: "ok", or the given label when err is non-nil.
func Result(err error, label string) string {
	if err == nil {
		return "ok"
	}
	return label
}
