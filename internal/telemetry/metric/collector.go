package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/stashkv/internal/keycache"
)

// StatsSource is anything that reports key-cache statistics.
type StatsSource interface {
	Stats() keycache.Stats
}

// Collector exports key-cache statistics at scrape time.
type Collector struct {
	src StatsSource

	hits        *prometheus.Desc
	misses      *prometheus.Desc
	shared      *prometheus.Desc
	derivations *prometheus.Desc
	evictions   *prometheus.Desc
	skipped     *prometheus.Desc
	size        *prometheus.Desc
}

// NewCollector creates a collector reading from src.
func NewCollector(src StatsSource) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "keycache", name), help, nil, nil)
	}
	return &Collector{
		src:         src,
		hits:        desc("hits_total", "Cipher lookups answered from the cache."),
		misses:      desc("misses_total", "Cipher lookups that missed the cache."),
		shared:      desc("shared_total", "Lookups that joined an in-flight derivation."),
		derivations: desc("derivations_total", "PBKDF2 key derivations performed."),
		evictions:   desc("evictions_total", "Ciphers evicted at capacity."),
		skipped:     desc("unencrypted_total", "Lookups that resolved to no credential."),
		size:        desc("entries", "Ciphers currently cached."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.shared
	ch <- c.derivations
	ch <- c.evictions
	ch <- c.skipped
	ch <- c.size
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(c.shared, prometheus.CounterValue, float64(st.Shared))
	ch <- prometheus.MustNewConstMetric(c.derivations, prometheus.CounterValue, float64(st.Derivations))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Evictions))
	ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(st.Skipped))
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(st.Size))
}

// RegisterKeyCache adds a key-cache collector to r.
func (r *Registry) RegisterKeyCache(src StatsSource) error {
	return r.registry.Register(NewCollector(src))
}
