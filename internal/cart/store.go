package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

var cartMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Effective cart mutations by kind",
	},
	[]string{"kind"},
)

// ProductLookup resolves product ids against the catalog.
type ProductLookup interface {
	FindByID(id int) (domain.Product, error)
}

// Observer receives every effective cart mutation. Observers run on the
// mutating goroutine after the store lock is released, so they may read the
// store but must not block. Concurrent mutations may deliver changes out of
// order; CartChange.Version orders them.
type Observer func(domain.CartChange)

// BundleResult reports which ids of a bundle were added and which were skipped
// because the catalog does not know them.
type BundleResult struct {
	Added   []int       `json:"added"`
	Skipped []int       `json:"skipped"`
	Cart    domain.Cart `json:"-"`
}

// Store is the in-memory cart of one widget session.
type Store struct {
	catalog ProductLookup
	logger  *slog.Logger

	mu   sync.RWMutex
	cart domain.Cart

	obsMu     sync.Mutex
	observers map[uint64]Observer
	nextObsID uint64
}

// NewStore creates an empty cart.
func NewStore(catalog ProductLookup, logger *slog.Logger) *Store {
	return &Store{
		catalog:   catalog,
		logger:    logger,
		cart:      domain.Cart{Lines: []domain.CartLine{}},
		observers: make(map[uint64]Observer),
	}
}

// Subscribe registers fn for cart changes and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

// Add puts quantity units of productID in the cart, merging with an existing
// line. quantity must be at least 1 and the product must be in the catalog;
// otherwise the cart is left unchanged.
func (s *Store) Add(ctx context.Context, productID, quantity int) (domain.Cart, error) {
	if quantity < 1 {
		return domain.Cart{}, apperrors.InvalidInput(fmt.Sprintf("quantity must be at least 1, got %d", quantity))
	}
	product, err := s.catalog.FindByID(productID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("add to cart: %w", err)
	}

	s.mu.Lock()
	s.addLocked(product, quantity)
	change := s.commitLocked(domain.CartChangeAdd)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "item added to cart",
		slog.Int("product_id", productID),
		slog.Int("quantity", quantity),
		slog.Uint64("cart_version", change.Version),
	)
	s.notify(change)
	return domain.Cart{Version: change.Version, Lines: copyLines(change.Lines)}, nil
}

// AddBundle adds one unit of each id in order. Ids unknown to the catalog are
// skipped. A single change is emitted for the whole batch when anything was
// added.
func (s *Store) AddBundle(ctx context.Context, productIDs []int) (BundleResult, error) {
	res := BundleResult{Added: []int{}, Skipped: []int{}}

	products := make([]domain.Product, 0, len(productIDs))
	for _, id := range productIDs {
		product, err := s.catalog.FindByID(id)
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				return BundleResult{}, fmt.Errorf("add bundle: %w", err)
			}
			res.Skipped = append(res.Skipped, id)
			continue
		}
		products = append(products, product)
		res.Added = append(res.Added, id)
	}

	if len(res.Skipped) > 0 {
		s.logger.InfoContext(ctx, "bundle ids not in catalog, skipped",
			slog.Any("product_ids", res.Skipped),
		)
	}

	s.mu.Lock()
	if len(products) == 0 {
		res.Cart = s.snapshotLocked()
		s.mu.Unlock()
		return res, nil
	}
	for _, product := range products {
		s.addLocked(product, 1)
	}
	change := s.commitLocked(domain.CartChangeBundle)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "bundle added to cart",
		slog.Int("added", len(res.Added)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Uint64("cart_version", change.Version),
	)
	s.notify(change)
	res.Cart = domain.Cart{Version: change.Version, Lines: copyLines(change.Lines)}
	return res, nil
}

// Remove deletes the line for productID. Removing an absent product is a
// no-op: removed is false and no change is emitted.
func (s *Store) Remove(ctx context.Context, productID int) (_ domain.Cart, removed bool) {
	s.mu.Lock()
	i := s.cart.FindLineIndex(productID)
	if i < 0 {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false
	}
	s.cart.Lines = append(s.cart.Lines[:i:i], s.cart.Lines[i+1:]...)
	change := s.commitLocked(domain.CartChangeRemove)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.Int("product_id", productID),
		slog.Uint64("cart_version", change.Version),
	)
	s.notify(change)
	return domain.Cart{Version: change.Version, Lines: copyLines(change.Lines)}, true
}

// Count returns the total number of units in the cart.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.ItemCount()
}

// Total returns Σ price × quantity rounded to two decimals.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.TotalAmount()
}

// Lines returns a copy of the cart lines in first-add order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyLines(s.cart.Lines)
}

// Snapshot returns a copy of the cart with its version.
func (s *Store) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// View returns the renderer view of the cart.
func (s *Store) View() domain.CartView {
	snap := s.Snapshot()
	return snap.View()
}

func (s *Store) addLocked(product domain.Product, quantity int) {
	if i := s.cart.FindLineIndex(product.ID); i >= 0 {
		s.cart.Lines[i].Quantity += quantity
		return
	}
	s.cart.Lines = append(s.cart.Lines, domain.CartLine{Product: product, Quantity: quantity})
}

// commitLocked bumps the version and builds the change to publish.
func (s *Store) commitLocked(kind domain.CartChangeKind) domain.CartChange {
	s.cart.Version++
	cartMutationsTotal.WithLabelValues(string(kind)).Inc()
	return domain.CartChange{
		Version: s.cart.Version,
		Kind:    kind,
		Lines:   copyLines(s.cart.Lines),
	}
}

func (s *Store) snapshotLocked() domain.Cart {
	return domain.Cart{Version: s.cart.Version, Lines: copyLines(s.cart.Lines)}
}

func (s *Store) notify(change domain.CartChange) {
	s.obsMu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range observers {
		fn(change)
	}
}

func copyLines(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}
