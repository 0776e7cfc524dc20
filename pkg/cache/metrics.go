package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports Manager statistics as Prometheus metrics.
// Values are read from Stats on every scrape.
type Collector struct {
	m *Manager

	keys            *prometheus.Desc
	memory          *prometheus.Desc
	hits            *prometheus.Desc
	misses          *prometheus.Desc
	hitRate         *prometheus.Desc
	expired         *prometheus.Desc
	invalidated     *prometheus.Desc
	refreshes       *prometheus.Desc
	refreshFailures *prometheus.Desc
	tags            *prometheus.Desc
}

// NewCollector creates a collector for m. Metric names are prefixed with
// namespace, e.g. "storefront_cache_hits_total".
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(cache.NewCollector(m, "storefront"))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
func NewCollector(m *Manager, namespace string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, nil, nil)
	}

	return &Collector{
		m:               m,
		keys:            desc("keys", "Number of entries currently stored."),
		memory:          desc("memory_bytes", "Approximate memory held by stored entries."),
		hits:            desc("hits_total", "Lookups answered from the cache."),
		misses:          desc("misses_total", "Lookups that found no live entry."),
		hitRate:         desc("hit_ratio", "Hits divided by all lookups since the last clear."),
		expired:         desc("expired_total", "Entries removed after their TTL elapsed."),
		invalidated:     desc("invalidated_total", "Entries removed by tag invalidation."),
		refreshes:       desc("refreshes_total", "Background refreshes that replaced an entry."),
		refreshFailures: desc("refresh_failures_total", "Background refreshes that failed."),
		tags:            desc("tags", "Number of tags with at least one entry."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.memory
	ch <- c.hits
	ch <- c.misses
	ch <- c.hitRate
	ch <- c.expired
	ch <- c.invalidated
	ch <- c.refreshes
	ch <- c.refreshFailures
	ch <- c.tags
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Stats()

	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(s.TotalKeys))
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(s.MemoryUsage))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, s.HitRate)
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(s.Expired))
	ch <- prometheus.MustNewConstMetric(c.invalidated, prometheus.CounterValue, float64(s.Invalidated))
	ch <- prometheus.MustNewConstMetric(c.refreshes, prometheus.CounterValue, float64(s.Refreshes))
	ch <- prometheus.MustNewConstMetric(c.refreshFailures, prometheus.CounterValue, float64(s.RefreshFailures))
	ch <- prometheus.MustNewConstMetric(c.tags, prometheus.GaugeValue, float64(len(s.Tags)))
}

var _ prometheus.Collector = (*Collector)(nil)
