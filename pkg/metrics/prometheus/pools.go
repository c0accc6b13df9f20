package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nntpvault/nntpvault/pkg/metrics"
	"github.com/nntpvault/nntpvault/pkg/registry"
)

// poolStatsCollector exports per-provider connection pool counters. Stats
// are read from the live pools at scrape time, so there is nothing to
// record on the hot path.
type poolStatsCollector struct {
	registry *registry.Registry

	open   *prometheus.Desc
	idle   *prometheus.Desc
	inUse  *prometheus.Desc
	dials  *prometheus.Desc
	closes *prometheus.Desc
	waits  *prometheus.Desc
}

// RegisterPoolStatsCollector registers a collector exporting provider
// pool counters from the given registry.
//
// Does nothing if metrics are not enabled (InitRegistry not called).
func RegisterPoolStatsCollector(reg *registry.Registry) {
	if !metrics.IsEnabled() || reg == nil {
		return
	}

	metrics.GetRegistry().MustRegister(&poolStatsCollector{
		registry: reg,
		open: prometheus.NewDesc(
			"nntpvault_provider_connections_open",
			"Open NNTP connections by provider",
			[]string{"provider"}, nil,
		),
		idle: prometheus.NewDesc(
			"nntpvault_provider_connections_idle",
			"Idle NNTP connections by provider",
			[]string{"provider"}, nil,
		),
		inUse: prometheus.NewDesc(
			"nntpvault_provider_connections_in_use",
			"NNTP connections currently checked out by provider",
			[]string{"provider"}, nil,
		),
		dials: prometheus.NewDesc(
			"nntpvault_provider_dials_total",
			"Total NNTP sessions dialed by provider",
			[]string{"provider"}, nil,
		),
		closes: prometheus.NewDesc(
			"nntpvault_provider_closes_total",
			"Total NNTP sessions closed by provider",
			[]string{"provider"}, nil,
		),
		waits: prometheus.NewDesc(
			"nntpvault_provider_acquire_waits_total",
			"Total acquisitions that had to wait for a connection by provider",
			[]string{"provider"}, nil,
		),
	})
}

// Describe implements prometheus.Collector.
func (c *poolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.open
	ch <- c.idle
	ch <- c.inUse
	ch <- c.dials
	ch <- c.closes
	ch <- c.waits
}

// Collect implements prometheus.Collector.
func (c *poolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.registry.ListProviders() {
		p, err := c.registry.GetProvider(name)
		if err != nil {
			continue
		}
		stats := p.Stats()

		ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(stats.Open), name)
		ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stats.Idle), name)
		ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(stats.InUse), name)
		ch <- prometheus.MustNewConstMetric(c.dials, prometheus.CounterValue, float64(stats.Dials), name)
		ch <- prometheus.MustNewConstMetric(c.closes, prometheus.CounterValue, float64(stats.Closes), name)
		ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(stats.Waits), name)
	}
}
