// Package metrics exports sampler metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	pc, err := metrics.NewPrometheusCollector(reg)
//	m, err := dpmm.NewGaussian(2, dpmm.WithMetricsCollector(pc))
package metrics

import (
	"time"

	"github.com/hupe1980/dpmm"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dpmm"

// PrometheusCollector implements dpmm.MetricsCollector.
type PrometheusCollector struct {
	sweepLatency      *prometheus.HistogramVec
	clusters          prometheus.Gauge
	splits            prometheus.Counter
	merges            prometheus.Counter
	checkpointLatency *prometheus.HistogramVec
}

var _ dpmm.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the sampler metrics and registers them
// with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusCollector{
		sweepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of Gibbs sweeps",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "Number of clusters after the last sweep, including the outlier component",
		}),
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_total",
			Help:      "Total accepted split proposals",
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Total accepted merge proposals",
		}),
		checkpointLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkpoint_duration_seconds",
			Help:      "Duration of checkpoint saves",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{p.sweepLatency, p.clusters, p.splits, p.merges, p.checkpointLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordSweep implements dpmm.MetricsCollector.
func (p *PrometheusCollector) RecordSweep(d time.Duration, nClusters int, err error) {
	p.sweepLatency.WithLabelValues(status(err)).Observe(d.Seconds())
	if err == nil {
		p.clusters.Set(float64(nClusters))
	}
}

// RecordSplits implements dpmm.MetricsCollector.
func (p *PrometheusCollector) RecordSplits(accepted int) {
	p.splits.Add(float64(accepted))
}

// RecordMerges implements dpmm.MetricsCollector.
func (p *PrometheusCollector) RecordMerges(accepted int) {
	p.merges.Add(float64(accepted))
}

// RecordCheckpoint implements dpmm.MetricsCollector.
func (p *PrometheusCollector) RecordCheckpoint(d time.Duration, err error) {
	p.checkpointLatency.WithLabelValues(status(err)).Observe(d.Seconds())
}
