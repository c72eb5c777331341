package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

const serviceName = "storefront"

// catalogMaxAge is how long the renderer may cache reads of a ready catalog, in seconds.
const catalogMaxAge = 60

// RouterConfig holds the transport settings of the view API.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all storefront view routes registered.
func NewRouter(
	session *storefront.Session,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger, session.ID()))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	h := NewStorefrontHandler(session, logger)

	r.Route("/api/v1/storefront", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		// Catalog reads of a ready catalog override this with a max-age.
		r.Use(middleware.NoStore)

		r.Get("/catalog", h.GetCatalog)
		r.Get("/catalog/products/{productId}", h.GetProduct)
		r.Post("/catalog/reload", h.ReloadCatalog)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddItem)
		r.Delete("/cart/items/{productId}", h.RemoveItem)
		r.Post("/cart/bundle", h.AddBundle)
		r.Post("/cart/bundle/frequently-bought-together", h.AddFrequentlyBoughtTogether)

		r.Get("/recommendations", h.GetRecommendations)
		r.Get("/recommendations/stats", h.GetRecommendationStats)
	})

	return r
}
