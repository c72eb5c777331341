package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_loads_total",
			Help: "Catalog loads by source (cache, backend) and outcome",
		},
		[]string{"source", "outcome"},
	)

	catalogProducts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_catalog_products",
			Help: "Number of products currently held by the catalog store",
		},
	)
)
