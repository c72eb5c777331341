package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Source fetches the product list from the backend.
type Source interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// Cache stores the last fetched product list. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context) (products []domain.Product, ok bool, err error)
	Set(ctx context.Context, products []domain.Product) error
}

// Store holds the fetched catalog. It is safe for concurrent use.
type Store struct {
	source Source
	cache  Cache
	logger *slog.Logger
	group  singleflight.Group

	mu         sync.RWMutex
	loaded     bool
	products   []domain.Product
	index      map[int]int
	categories []string
}

// Option configures a Store.
type Option func(*Store)

// WithCache makes Load consult c before the backend and refresh it after
// every successful backend fetch.
func WithCache(c Cache) Option {
	return func(s *Store) { s.cache = c }
}

// NewStore creates an empty, not yet loaded catalog.
func NewStore(source Source, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		source:     source,
		logger:     logger,
		products:   []domain.Product{},
		index:      map[int]int{},
		categories: []string{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load populates the catalog, reading the cache first when one is configured.
// On failure the store keeps its previous contents and the error is a
// FetchError. Concurrent calls share one backend request.
func (s *Store) Load(ctx context.Context) error {
	_, err, _ := s.group.Do("load", func() (any, error) {
		if s.cache != nil {
			if products, ok := s.fromCache(ctx); ok {
				s.replace(ctx, products)
				catalogLoadsTotal.WithLabelValues("cache", "success").Inc()
				return nil, nil
			}
		}
		return nil, s.fetch(ctx)
	})
	return err
}

// Reload bypasses the cache and fetches the catalog from the backend.
func (s *Store) Reload(ctx context.Context) error {
	_, err, _ := s.group.Do("reload", func() (any, error) {
		return nil, s.fetch(ctx)
	})
	return err
}

func (s *Store) fetch(ctx context.Context) error {
	products, err := s.source.ListProducts(ctx)
	if err != nil {
		catalogLoadsTotal.WithLabelValues("backend", "failure").Inc()
		s.logger.WarnContext(ctx, "catalog load failed, keeping previous contents",
			slog.String("error", err.Error()),
			slog.Int("products_kept", s.Len()),
		)
		if !apperrors.IsFetch(err) {
			err = apperrors.Fetch("products", err)
		}
		return err
	}

	products = s.replace(ctx, products)
	catalogLoadsTotal.WithLabelValues("backend", "success").Inc()

	if s.cache != nil {
		if err := s.cache.Set(ctx, products); err != nil {
			s.logger.WarnContext(ctx, "failed to write catalog cache",
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (s *Store) fromCache(ctx context.Context) ([]domain.Product, bool) {
	products, ok, err := s.cache.Get(ctx)
	if err != nil {
		catalogLoadsTotal.WithLabelValues("cache", "failure").Inc()
		s.logger.WarnContext(ctx, "failed to read catalog cache",
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			s.logger.WarnContext(ctx, "discarding invalid cached catalog",
				slog.String("error", err.Error()),
			)
			return nil, false
		}
	}
	return products, true
}

// replace installs products, dropping duplicate ids (first occurrence wins),
// and returns the list actually stored.
func (s *Store) replace(ctx context.Context, products []domain.Product) []domain.Product {
	kept := make([]domain.Product, 0, len(products))
	index := make(map[int]int, len(products))
	categories := []string{}
	seenCategory := map[string]struct{}{}

	for _, p := range products {
		if _, dup := index[p.ID]; dup {
			s.logger.WarnContext(ctx, "duplicate product id in catalog, keeping first",
				slog.Int("product_id", p.ID),
				slog.String("name", p.Name),
			)
			continue
		}
		index[p.ID] = len(kept)
		kept = append(kept, p)
		if _, ok := seenCategory[p.Category]; !ok {
			seenCategory[p.Category] = struct{}{}
			categories = append(categories, p.Category)
		}
	}

	s.mu.Lock()
	s.products = kept
	s.index = index
	s.categories = categories
	s.loaded = true
	s.mu.Unlock()

	catalogProducts.Set(float64(len(kept)))
	s.logger.InfoContext(ctx, "catalog loaded",
		slog.Int("products", len(kept)),
		slog.Int("categories", len(categories)),
	)
	return kept
}

// FindByID returns the product with the given id, or a NotFound error.
func (s *Store) FindByID(id int) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Product{}, apperrors.NotFound("product", strconv.Itoa(id))
	}
	return s.products[i], nil
}

// Products returns a copy of the catalog in backend order.
func (s *Store) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Categories returns the distinct categories in first-seen order.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}

// Len returns the number of products held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

// Loaded reports whether any load has succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// ErrNotLoaded is reported by the readiness check before the first load.
var ErrNotLoaded = errors.New("catalog not loaded")

// Ready is a health checker that fails until the catalog has loaded once.
func (s *Store) Ready(context.Context) error {
	if !s.Loaded() {
		return ErrNotLoaded
	}
	return nil
}

// View returns the products in category. An empty category or "all" selects
// every product.
func (s *Store) View(category string) domain.CatalogView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := category == "" || category == domain.AllCategories
	if all {
		category = domain.AllCategories
	}

	view := domain.CatalogView{
		Category:   category,
		Categories: append([]string{}, s.categories...),
		Products:   []domain.Product{},
	}

	switch {
	case !s.loaded:
		view.State = domain.CatalogNotLoaded
	case len(s.products) == 0:
		view.State = domain.CatalogEmpty
	case all:
		view.State = domain.CatalogReady
		view.Products = append(view.Products, s.products...)
	default:
		for _, p := range s.products {
			if p.Category == category {
				view.Products = append(view.Products, p)
			}
		}
		view.State = domain.CatalogReady
		if len(view.Products) == 0 {
			view.State = domain.CatalogUnknownCategory
		}
	}
	return view
}
