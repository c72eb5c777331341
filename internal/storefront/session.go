// Package storefront composes the catalog, cart and recommendation components
// into the single widget session the view API serves.
package storefront

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/recommendation"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// BundleOutcome is the result of adding several products at once.
type BundleOutcome struct {
	Added   []int           `json:"added"`
	Skipped []int           `json:"skipped"`
	Cart    domain.CartView `json:"cart"`
}

// Session is one shopper's storefront: the catalog, their cart and the
// recommendations that follow it.
type Session struct {
	id          string
	catalog     *catalog.Store
	cart        *cart.Store
	refresher   *recommendation.Refresher
	logger      *slog.Logger
	unsubscribe func()
}

// NewSession wires the refresher to cart changes.
func NewSession(catalog *catalog.Store, cart *cart.Store, refresher *recommendation.Refresher, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:          id,
		catalog:     catalog,
		cart:        cart,
		refresher:   refresher,
		logger:      logger.With(slog.String("session_id", id)),
		unsubscribe: cart.Subscribe(refresher.OnCartChange),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Start loads the catalog. A failed load is logged and leaves the catalog
// not loaded; the session stays usable and the load can be retried with
// ReloadCatalog.
func (s *Session) Start(ctx context.Context) {
	if err := s.catalog.Load(ctx); err != nil {
		s.logger.WarnContext(ctx, "initial catalog load failed",
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "storefront session started",
		slog.Int("products", s.catalog.Len()),
	)
}

// Close detaches the refresher from the cart.
func (s *Session) Close() {
	s.unsubscribe()
}

// Catalog returns the catalog filtered by category.
func (s *Session) Catalog(category string) domain.CatalogView {
	return s.catalog.View(category)
}

// Product returns a single catalog product.
func (s *Session) Product(id int) (domain.Product, error) {
	return s.catalog.FindByID(id)
}

// ReloadCatalog fetches the catalog from the backend, bypassing the cache.
// On failure the previous catalog is kept.
func (s *Session) ReloadCatalog(ctx context.Context) (domain.CatalogView, error) {
	if err := s.catalog.Reload(ctx); err != nil {
		return domain.CatalogView{}, err
	}
	return s.catalog.View(domain.AllCategories), nil
}

// Cart returns the current cart.
func (s *Session) Cart() domain.CartView {
	return s.cart.View()
}

// Recommendations returns the latest applied recommendation view.
func (s *Session) Recommendations() domain.RecommendationView {
	return s.refresher.Latest()
}

// AddToCart adds quantity units of productID.
func (s *Session) AddToCart(ctx context.Context, productID, quantity int) (domain.CartView, error) {
	c, err := s.cart.Add(ctx, productID, quantity)
	if err != nil {
		return domain.CartView{}, err
	}
	return c.View(), nil
}

// AddBundle adds one unit of each product id, skipping unknown ids.
func (s *Session) AddBundle(ctx context.Context, productIDs []int) (BundleOutcome, error) {
	res, err := s.cart.AddBundle(ctx, productIDs)
	if err != nil {
		return BundleOutcome{}, err
	}
	return BundleOutcome{
		Added:   res.Added,
		Skipped: res.Skipped,
		Cart:    res.Cart.View(),
	}, nil
}

// AddFrequentlyBoughtTogether adds the bundle of the latest recommendations.
func (s *Session) AddFrequentlyBoughtTogether(ctx context.Context) (BundleOutcome, error) {
	bundle := s.refresher.Latest().BundleOffer()
	if bundle.IsEmpty() {
		return BundleOutcome{}, apperrors.NotFound("bundle", "frequently-bought-together")
	}
	return s.AddBundle(ctx, bundle.ProductIDs())
}

// RemoveFromCart removes productID's line. Removing an absent product leaves
// the cart unchanged.
func (s *Session) RemoveFromCart(ctx context.Context, productID int) domain.CartView {
	c, _ := s.cart.Remove(ctx, productID)
	return c.View()
}

// RecommendationStats reports what happened to recommendation requests.
func (s *Session) RecommendationStats() recommendation.Stats {
	return s.refresher.Stats()
}
