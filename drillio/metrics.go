package drillio

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects batch counters for a node exporter textfile. Each
// process registers its own series, labelled with its part.
type Metrics struct {
	registry  *prometheus.Registry
	polygons  *prometheus.CounterVec
	duration  prometheus.Histogram
	chunkSize prometheus.Gauge
}

func NewMetrics(part int) *Metrics {
	labels := prometheus.Labels{"part": strconv.Itoa(part)}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polygons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "wbdrill_polygons_total",
			Help:        "Polygons processed, by outcome",
			ConstLabels: labels,
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "wbdrill_drill_seconds",
			Help:        "Wall time spent drilling one polygon, retries included",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		chunkSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "wbdrill_chunk_size",
			Help:        "Polygons assigned to this process",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(m.polygons, m.duration, m.chunkSize)
	return m
}

func (m *Metrics) Observe(status string, elapsed time.Duration) {
	m.polygons.WithLabelValues(status).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetChunkSize(n int) {
	m.chunkSize.Set(float64(n))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
