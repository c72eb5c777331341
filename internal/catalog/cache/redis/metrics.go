package redis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// PoolStater is implemented by go-redis clients.
type PoolStater interface {
	PoolStats() *redis.PoolStats
}

// PoolStatsCollector exports the connection pool statistics of the catalog
// cache client.
type PoolStatsCollector struct {
	client PoolStater

	hits       *prometheus.Desc
	misses     *prometheus.Desc
	timeouts   *prometheus.Desc
	totalConns *prometheus.Desc
	idleConns  *prometheus.Desc
	staleConns *prometheus.Desc
}

// NewPoolStatsCollector creates a collector for client's pool.
func NewPoolStatsCollector(client PoolStater) *PoolStatsCollector {
	return &PoolStatsCollector{
		client: client,
		hits: prometheus.NewDesc(
			"storefront_catalog_cache_pool_hits_total",
			"Times a free connection was found in the pool",
			nil, nil,
		),
		misses: prometheus.NewDesc(
			"storefront_catalog_cache_pool_misses_total",
			"Times a free connection was not found in the pool",
			nil, nil,
		),
		timeouts: prometheus.NewDesc(
			"storefront_catalog_cache_pool_timeouts_total",
			"Times a wait for a connection timed out",
			nil, nil,
		),
		totalConns: prometheus.NewDesc(
			"storefront_catalog_cache_pool_total_connections",
			"Number of connections in the pool",
			nil, nil,
		),
		idleConns: prometheus.NewDesc(
			"storefront_catalog_cache_pool_idle_connections",
			"Number of idle connections in the pool",
			nil, nil,
		),
		staleConns: prometheus.NewDesc(
			"storefront_catalog_cache_pool_stale_connections_total",
			"Number of stale connections removed from the pool",
			nil, nil,
		),
	}
}

// Describe sends the descriptors of all metrics to the provided channel.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.staleConns
}

// Collect reads current pool statistics and sends them as Prometheus metrics.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.client.PoolStats()

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(stats.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stats.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stats.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.staleConns, prometheus.CounterValue, float64(stats.StaleConns))
}

// RegisterPoolMetrics registers a pool collector for client with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, client PoolStater) error {
	return reg.Register(NewPoolStatsCollector(client))
}
