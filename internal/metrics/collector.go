package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and exposes transfer metrics.
type Collector struct {
	registry        *prometheus.Registry
	itemsTotal      *prometheus.CounterVec
	bytesTotal      prometheus.Counter
	inflightWorkers prometheus.Gauge
	duration        prometheus.Histogram
}

// New creates a new metrics collector
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidfetch_items_total",
				Help: "Total number of items processed by outcome",
			},
			[]string{"outcome"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vidfetch_bytes_total",
				Help: "Total bytes downloaded",
			},
		),
		inflightWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vidfetch_inflight_workers",
				Help: "Number of workers currently transferring",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vidfetch_item_duration_seconds",
				Help:    "Time taken to transfer an item",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	c.registry.MustRegister(c.itemsTotal)
	c.registry.MustRegister(c.bytesTotal)
	c.registry.MustRegister(c.inflightWorkers)
	c.registry.MustRegister(c.duration)

	return c
}

// IncResult increments the item counter for one outcome.
func (c *Collector) IncResult(outcome string) {
	c.itemsTotal.WithLabelValues(outcome).Inc()
}

// AddBytes adds to total bytes downloaded
func (c *Collector) AddBytes(bytes int64) {
	c.bytesTotal.Add(float64(bytes))
}

// IncInflight marks one more worker as busy.
func (c *Collector) IncInflight() {
	c.inflightWorkers.Inc()
}

// DecInflight marks one worker as idle.
func (c *Collector) DecInflight() {
	c.inflightWorkers.Dec()
}

// ObserveDuration observes transfer duration
func (c *Collector) ObserveDuration(duration time.Duration) {
	c.duration.Observe(duration.Seconds())
}

// StartServer starts the metrics HTTP server
func (c *Collector) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
