package recommendation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront/internal/domain"
)

// DefaultTimeout bounds a single recommendation request.
const DefaultTimeout = 5 * time.Second

var refreshOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_recommendation_refresh_total",
		Help: "Recommendation refreshes by outcome (applied, failed, stale, superseded, ignored)",
	},
	[]string{"outcome"},
)

// Fetcher fetches recommendations for a list of cart product names.
type Fetcher interface {
	Fetch(ctx context.Context, cartItems []string) (domain.RecommendationResult, error)
}

// Stats counts what happened to refresh requests.
type Stats struct {
	Issued     uint64 `json:"issued"`
	Applied    uint64 `json:"applied"`
	Failed     uint64 `json:"failed"`
	Stale      uint64 `json:"stale"`
	Superseded uint64 `json:"superseded"`
	Ignored    uint64 `json:"ignored"`
}

// Refresher keeps the recommendation view in step with the cart. Each cart
// change newer than the last one seen issues a request and cancels the one in
// flight; only the response for the most recently issued version is applied.
type Refresher struct {
	fetcher Fetcher
	logger  *slog.Logger
	timeout time.Duration

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	issued   uint64
	cancel   context.CancelFunc
	view     domain.RecommendationView
	stats    Stats
	closed   bool
	subs     map[uint64]func(domain.RecommendationView)
	nextSub  uint64
	publishM sync.Mutex
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRefresher creates a Refresher. Its initial view is unavailable with no
// error until the first refresh resolves.
func NewRefresher(fetcher Fetcher, logger *slog.Logger, opts ...Option) *Refresher {
	ctx, stop := context.WithCancel(context.Background())
	r := &Refresher{
		fetcher: fetcher,
		logger:  logger,
		timeout: DefaultTimeout,
		baseCtx: ctx,
		stop:    stop,
		view:    domain.UnavailableView(0, nil),
		subs:    make(map[uint64]func(domain.RecommendationView)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnCartChange is a cart observer: it refreshes recommendations for the
// changed cart.
func (r *Refresher) OnCartChange(change domain.CartChange) {
	r.Refresh(change.Version, change.ProductNames())
}

// Refresh issues a request for the cart at version. It returns false when the
// version is not newer than the last issued one or the Refresher is closed.
func (r *Refresher) Refresh(version uint64, cartItems []string) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	if version <= r.issued {
		r.stats.Ignored++
		r.mu.Unlock()
		refreshOutcomesTotal.WithLabelValues("ignored").Inc()
		return false
	}

	if r.cancel != nil {
		r.cancel()
		r.stats.Superseded++
		refreshOutcomesTotal.WithLabelValues("superseded").Inc()
	}
	ctx, cancel := context.WithTimeout(r.baseCtx, r.timeout)
	r.issued = version
	r.cancel = cancel
	r.stats.Issued++
	r.wg.Add(1)
	r.mu.Unlock()

	items := make([]string, len(cartItems))
	copy(items, cartItems)
	go r.run(ctx, cancel, version, items)
	return true
}

func (r *Refresher) run(ctx context.Context, cancel context.CancelFunc, version uint64, cartItems []string) {
	defer r.wg.Done()
	defer cancel()

	res, err := r.fetcher.Fetch(ctx, cartItems)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if version != r.issued {
		r.stats.Stale++
		latest := r.issued
		r.mu.Unlock()
		refreshOutcomesTotal.WithLabelValues("stale").Inc()
		r.logger.Debug("discarding stale recommendations",
			slog.Uint64("cart_version", version),
			slog.Uint64("latest_version", latest),
		)
		return
	}
	r.cancel = nil

	var view domain.RecommendationView
	if err != nil {
		view = domain.UnavailableView(version, errors.New("no recommendations available"))
		r.stats.Failed++
		refreshOutcomesTotal.WithLabelValues("failed").Inc()
		r.logger.Warn("recommendation fetch failed",
			slog.Uint64("cart_version", version),
			slog.String("error", err.Error()),
		)
	} else {
		view = domain.NewRecommendationView(version, res)
		r.stats.Applied++
		refreshOutcomesTotal.WithLabelValues("applied").Inc()
	}
	r.view = view
	subs := make([]func(domain.RecommendationView), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}

	// Hand over to the publish lock before releasing mu so subscribers see
	// views in the order they were applied.
	r.publishM.Lock()
	r.mu.Unlock()
	defer r.publishM.Unlock()

	for _, fn := range subs {
		fn(view)
	}
}

// Latest returns the most recently applied view.
func (r *Refresher) Latest() domain.RecommendationView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Stats returns request counters.
func (r *Refresher) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Subscribe registers fn for every applied view and returns a function that
// removes it. fn must not block.
func (r *Refresher) Subscribe(fn func(domain.RecommendationView)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Close cancels in-flight requests and waits for them to return. Later
// refreshes are ignored.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stop()
	r.wg.Wait()
}
