package batch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the batch driver's instrumentation, registered against a
// private registry so a single process can run more than one batch
// without label collisions. A one-shot CLI has nowhere to scrape these
// from, so cmd/batchvm does not start an HTTP exporter for them; they
// exist for embedders that run batches inside a longer-lived service and
// want to wire Registry() into their own promhttp handler.
type Metrics struct {
	registry  *prometheus.Registry
	instances *prometheus.CounterVec
	gasUsed   prometheus.Histogram
}

// NewMetrics builds a fresh, independently-registered Metrics set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		instances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchvm",
			Name:      "instances_total",
			Help:      "Instances executed, labeled by final error_code.",
		}, []string{"error_code"}),
		gasUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "batchvm",
			Name:      "instance_gas_used",
			Help:      "Gas consumed per instance.",
			Buckets:   prometheus.ExponentialBuckets(21000, 4, 10),
		}),
	}
	reg.MustRegister(m.instances, m.gasUsed)
	return m
}

// Registry returns the private prometheus.Registry these metrics are
// registered against, for embedding into a caller's own exporter.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observe(o *Outcome) {
	errCode := "aborted"
	if o.Result != nil {
		errCode = o.Result.Outcome.ErrCode.String()
		m.gasUsed.Observe(float64(o.Result.Outcome.GasUsed))
	}
	m.instances.WithLabelValues(errCode).Inc()
}
