// Package metrics exposes conversion and process metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modelswap"

// Collector owns its own registry so that several instances (one per test
// router) never collide on registration.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	conversionsTotal    *prometheus.CounterVec
	conversionDuration  *prometheus.HistogramVec
	rejectedFilesTotal  *prometheus.CounterVec
	residentMemory      prometheus.Gauge
	rateLimitedTotal    *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	c.conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversion attempts by source format, target format and outcome",
		},
		[]string{"source", "target", "outcome"},
	)
	c.conversionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Time spent staging, converting and publishing one file",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"target"},
	)
	c.rejectedFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_files_total",
			Help:      "Files rejected at intake, by reason",
		},
		[]string{"reason"},
	)
	c.residentMemory = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_resident_memory_bytes",
		Help:      "Resident memory sampled after the last conversion request",
	})
	c.rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	c.registry.MustRegister(
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.conversionsTotal,
		c.conversionDuration,
		c.rejectedFilesTotal,
		c.residentMemory,
		c.rateLimitedTotal,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (c *Collector) RecordConversion(source, target, outcome string, duration time.Duration) {
	c.conversionsTotal.WithLabelValues(source, target, outcome).Inc()
	c.conversionDuration.WithLabelValues(target).Observe(duration.Seconds())
}

func (c *Collector) RecordRejection(reason string) {
	c.rejectedFilesTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) SetResidentMemory(bytes uint64) {
	c.residentMemory.Set(float64(bytes))
}

func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimitedTotal.WithLabelValues(scope).Inc()
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
