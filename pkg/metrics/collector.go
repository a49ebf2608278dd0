// Package metrics exposes a pipeline's already-public operational counters
// through the prometheus.Collector interface. It owns no registry and
// starts no server — registering the Collector into a scrape endpoint is
// the caller's job, the same division of labor lux_metrics.go leaves to
// StartServer, just without this package assuming that responsibility
// itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/mdfeed/pkg/pipeline"
)

// Collector adapts a *pipeline.Pipeline's Stats() into Prometheus metrics.
// It is safe to Register into any prometheus.Registerer; Collect is called
// on every scrape and simply re-reads Stats(), which never blocks.
type Collector struct {
	pipeline *pipeline.Pipeline

	totalPackets *prometheus.Desc
	decodeErrors *prometheus.Desc
	bookUpdates  *prometheus.Desc
	coldDrops    *prometheus.Desc
	ringDepth    *prometheus.Desc
}

// New constructs a Collector for p. namespace prefixes every metric name,
// matching lux_metrics.go's NewLXMetrics(namespace) convention.
func New(namespace string, p *pipeline.Pipeline) *Collector {
	return &Collector{
		pipeline: p,
		totalPackets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "packets_published_total"),
			"Total packets accepted by publish_raw.", nil, nil,
		),
		decodeErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "decode_errors_total"),
			"Total packets the decoder could not parse.", nil, nil,
		),
		bookUpdates: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "book_updates_total"),
			"Total messages applied to an order book.", nil, nil,
		),
		coldDrops: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "cold_path_drops_total"),
			"Total snapshots dropped because the cold-path ring was full.", nil, nil,
		),
		ringDepth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "ring_depth"),
			"Available-to-read depth of a pipeline ring.", []string{"ring"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalPackets
	ch <- c.decodeErrors
	ch <- c.bookUpdates
	ch <- c.coldDrops
	ch <- c.ringDepth
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pipeline.Stats()

	ch <- prometheus.MustNewConstMetric(c.totalPackets, prometheus.CounterValue, float64(stats.TotalPackets))
	ch <- prometheus.MustNewConstMetric(c.decodeErrors, prometheus.CounterValue, float64(stats.DecodeErrors))
	ch <- prometheus.MustNewConstMetric(c.bookUpdates, prometheus.CounterValue, float64(stats.BookUpdates))
	ch <- prometheus.MustNewConstMetric(c.coldDrops, prometheus.CounterValue, float64(stats.ColdDrops))

	ch <- prometheus.MustNewConstMetric(c.ringDepth, prometheus.GaugeValue, float64(stats.RB0ToRead), "raw")
	ch <- prometheus.MustNewConstMetric(c.ringDepth, prometheus.GaugeValue, float64(stats.RB1ToRead), "decoded")
	ch <- prometheus.MustNewConstMetric(c.ringDepth, prometheus.GaugeValue, float64(stats.RB2ToRead), "snapshot")
}
