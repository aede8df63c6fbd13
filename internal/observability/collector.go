package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"organcore/internal/cache"
	"organcore/internal/core"
)

// Namespace prefixes every metric name.
const Namespace = "organcore"

// Collector holds the prometheus metrics for one process. It satisfies both
// cache.Observer and core.MetricsRecorder.
type Collector struct {
	registry *prometheus.Registry

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec

	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

var (
	_ cache.Observer       = (*Collector)(nil)
	_ core.MetricsRecorder = (*Collector)(nil)
)

// NewCollector creates a collector on its own registry, so several can live
// in one test binary.
func NewCollector() *Collector {
	tierCounter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      name,
			Help:      help,
		}, []string{"tier"})
	}
	c := &Collector{
		registry:       prometheus.NewRegistry(),
		cacheHits:      tierCounter("cache_hits_total", "Identity cache hits."),
		cacheMisses:    tierCounter("cache_misses_total", "Identity cache misses."),
		cacheEvictions: tierCounter("cache_evictions_total", "Identity cache evictions."),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Registry operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Registry operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	c.registry.MustRegister(c.cacheHits, c.cacheMisses, c.cacheEvictions, c.operations, c.durations)
	return c
}

func (c *Collector) Hit(t cache.Tier)   { c.cacheHits.WithLabelValues(string(t)).Inc() }
func (c *Collector) Miss(t cache.Tier)  { c.cacheMisses.WithLabelValues(string(t)).Inc() }
func (c *Collector) Evict(t cache.Tier) { c.cacheEvictions.WithLabelValues(string(t)).Inc() }

// Observe records one core operation.
func (c *Collector) Observe(_ context.Context, operation string, success bool, d time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	c.operations.WithLabelValues(operation, status).Inc()
	c.durations.WithLabelValues(operation).Observe(d.Seconds())
}

// Registry exposes the private registry, e.g. for promhttp.HandlerFor.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Gather returns the current metric families.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) { return c.registry.Gather() }
