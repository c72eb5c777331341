package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil)

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)

	var descs []string
	for d := range ch {
		descs = append(descs, d.String())
	}
	require.Len(t, descs, 6)
	assert.Contains(t, descs[0], "storefront_catalog_cache_pool_hits_total")
	assert.Contains(t, descs[3], "storefront_catalog_cache_pool_total_connections")
}

func TestRegisterPoolMetrics(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, client))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]float64, len(families))
	for _, f := range families {
		m := f.GetMetric()[0]
		if g := m.GetGauge(); g != nil {
			byName[f.GetName()] = g.GetValue()
		} else {
			byName[f.GetName()] = m.GetCounter().GetValue()
		}
	}
	assert.Len(t, byName, 6)
	assert.Equal(t, float64(1), byName["storefront_catalog_cache_pool_total_connections"])

	// A second collector for the same metrics is rejected.
	assert.Error(t, RegisterPoolMetrics(reg, client))
}
