package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/recommendation"
	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeSource struct {
	mu       sync.Mutex
	products []domain.Product
	err      error
}

func (f *fakeSource) ListProducts(context.Context) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Product(nil), f.products...), nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeFetcher struct {
	res domain.RecommendationResult
}

func (f *fakeFetcher) Fetch(context.Context, []string) (domain.RecommendationResult, error) {
	return f.res, nil
}

func product(id int, name, category, price string) domain.Product {
	return domain.Product{ID: id, Name: name, Category: category, Price: decimal.RequireFromString(price)}
}

var testProducts = []domain.Product{
	product(1, "Laptop", "electronics", "999.99"),
	product(2, "Mouse", "electronics", "25.50"),
	product(3, "Coffee Maker", "home", "79.00"),
}

// ============================================================================
// Helpers
// ============================================================================

type testEnv struct {
	router  http.Handler
	session *storefront.Session
	source  *fakeSource
}

func setup(t *testing.T, start bool) *testEnv {
	t.Helper()
	return setupWith(t, testProducts, start)
}

func setupWith(t *testing.T, products []domain.Product, start bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	source := &fakeSource{products: products}
	catalogStore := catalog.NewStore(source, logger)
	refresher := recommendation.NewRefresher(&fakeFetcher{res: domain.RecommendationResult{
		Recommendations:          []domain.Product{testProducts[2]},
		FrequentlyBoughtTogether: []domain.Product{testProducts[0], testProducts[1]},
	}}, logger)
	session := storefront.NewSession(catalogStore, cart.NewStore(catalogStore, logger), refresher, logger)
	t.Cleanup(func() {
		session.Close()
		refresher.Close()
	})
	if start {
		session.Start(context.Background())
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("catalog", catalogStore.Ready)

	router := NewRouter(session, healthHandler, logger, RouterConfig{
		CORS: middleware.DefaultCORSConfig(),
	})
	return &testEnv{router: router, session: session, source: source}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if data != nil && env.Data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// ============================================================================
// Catalog
// ============================================================================

func TestGetCatalog(t *testing.T) {
	e := setup(t, true)

	rec := e.do(t, http.MethodGet, "/api/v1/storefront/catalog", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=60", rec.Header().Get("Cache-Control"))
	assert.Equal(t, e.session.ID(), rec.Header().Get(middleware.SessionIDHeader))

	var view domain.CatalogView
	decode(t, rec, &view)
	assert.Equal(t, domain.CatalogReady, view.State)
	assert.Equal(t, domain.AllCategories, view.Category)
	assert.Len(t, view.Products, 3)
	assert.True(t, view.Products[1].Price.Equal(decimal.RequireFromString("25.50")))
}

func TestGetCatalog_Category(t *testing.T) {
	e := setup(t, true)

	var view domain.CatalogView
	decode(t, e.do(t, http.MethodGet, "/api/v1/storefront/catalog?category=home", ""), &view)
	require.Len(t, view.Products, 1)
	assert.Equal(t, "Coffee Maker", view.Products[0].Name)

	decode(t, e.do(t, http.MethodGet, "/api/v1/storefront/catalog?category=toys", ""), &view)
	assert.Equal(t, domain.CatalogUnknownCategory, view.State)
	assert.Empty(t, view.Products)
}

func TestGetCatalog_NotLoaded(t *testing.T) {
	e := setup(t, false)

	var view domain.CatalogView
	rec := e.do(t, http.MethodGet, "/api/v1/storefront/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, domain.CatalogNotLoaded, view.State)
}

func TestGetCatalog_CacheControlFollowsState(t *testing.T) {
	tests := []struct {
		name      string
		start     bool
		products  []domain.Product
		query     string
		wantState domain.CatalogState
		wantCache string
	}{
		{name: "not loaded", start: false, products: testProducts, wantState: domain.CatalogNotLoaded, wantCache: "no-store"},
		{name: "empty", start: true, products: nil, wantState: domain.CatalogEmpty, wantCache: "no-store"},
		{name: "unknown category", start: true, products: testProducts, query: "?category=toys", wantState: domain.CatalogUnknownCategory, wantCache: "no-store"},
		{name: "ready", start: true, products: testProducts, wantState: domain.CatalogReady, wantCache: "private, max-age=60"},
		{name: "ready with category", start: true, products: testProducts, query: "?category=home", wantState: domain.CatalogReady, wantCache: "private, max-age=60"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setupWith(t, tt.products, tt.start)

			rec := e.do(t, http.MethodGet, "/api/v1/storefront/catalog"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var view domain.CatalogView
			decode(t, rec, &view)
			assert.Equal(t, tt.wantState, view.State)
			assert.Equal(t, tt.wantCache, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestGetProduct_CacheControl(t *testing.T) {
	e := setup(t, true)

	rec := e.do(t, http.MethodGet, "/api/v1/storefront/catalog/products/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=60", rec.Header().Get("Cache-Control"))

	rec = e.do(t, http.MethodGet, "/api/v1/storefront/catalog/products/42", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestGetProduct(t *testing.T) {
	e := setup(t, true)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{name: "found", path: "/api/v1/storefront/catalog/products/2", wantStatus: http.StatusOK},
		{name: "unknown id", path: "/api/v1/storefront/catalog/products/42", wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "not a number", path: "/api/v1/storefront/catalog/products/abc", wantStatus: http.StatusBadRequest, wantCode: "INVALID_PARAMETER"},
		{name: "zero", path: "/api/v1/storefront/catalog/products/0", wantStatus: http.StatusBadRequest, wantCode: "INVALID_PARAMETER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var p domain.Product
			env := decode(t, rec, &p)
			if tt.wantCode == "" {
				assert.Equal(t, "Mouse", p.Name)
				return
			}
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestReloadCatalog(t *testing.T) {
	e := setup(t, false)

	rec := e.do(t, http.MethodPost, "/api/v1/storefront/catalog/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var view domain.CatalogView
	decode(t, rec, &view)
	assert.Equal(t, domain.CatalogReady, view.State)
}

func TestReloadCatalog_FetchFailure(t *testing.T) {
	e := setup(t, true)
	e.source.fail(errors.New("connection refused"))

	rec := e.do(t, http.MethodPost, "/api/v1/storefront/catalog/reload", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	env := decode(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FETCH_FAILED", env.Error.Code)

	// The previous catalog is kept.
	var view domain.CatalogView
	decode(t, e.do(t, http.MethodGet, "/api/v1/storefront/catalog", ""), &view)
	assert.Len(t, view.Products, 3)
}

// ============================================================================
// Cart
// ============================================================================

func TestAddItem(t *testing.T) {
	e := setup(t, true)

	rec := e.do(t, http.MethodPost, "/api/v1/storefront/cart/items", `{"product_id":1,"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var view domain.CartView
	decode(t, rec, &view)
	assert.Equal(t, 2, view.Count)
	assert.Equal(t, "1999.98", view.Total.StringFixed(2))
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "Laptop", view.Lines[0].Product.Name)

	// Quantity defaults to 1.
	rec = e.do(t, http.MethodPost, "/api/v1/storefront/cart/items", `{"product_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, 3, view.Count)
	assert.Len(t, view.Lines, 1)
}

func TestAddItem_Errors(t *testing.T) {
	e := setup(t, true)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{name: "zero quantity", body: `{"product_id":1,"quantity":0}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR", wantField: "quantity"},
		{name: "missing product", body: `{"quantity":1}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR", wantField: "product_id"},
		{name: "unknown field", body: `{"product_id":1,"color":"red"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_INPUT"},
		{name: "malformed", body: `{"product_id":`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_INPUT"},
		{name: "unknown product", body: `{"product_id":42,"quantity":1}`, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/v1/storefront/cart/items", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			env := decode(t, rec, nil)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			if tt.wantField != "" {
				assert.Contains(t, env.Error.Fields, tt.wantField)
			}
		})
	}

	assert.Equal(t, 0, e.session.Cart().Count)
}

func TestAddItem_RejectsNonJSON(t *testing.T) {
	e := setup(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/storefront/cart/items", bytes.NewBufferString("product_id=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRemoveItem(t *testing.T) {
	e := setup(t, true)
	e.do(t, http.MethodPost, "/api/v1/storefront/cart/items", `{"product_id":1}`)
	e.do(t, http.MethodPost, "/api/v1/storefront/cart/items", `{"product_id":2}`)

	rec := e.do(t, http.MethodDelete, "/api/v1/storefront/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view domain.CartView
	decode(t, rec, &view)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Product.ID)

	// Removing an absent product leaves the cart as is.
	rec = e.do(t, http.MethodDelete, "/api/v1/storefront/cart/items/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Len(t, view.Lines, 1)
}

func TestGetCart_Empty(t *testing.T) {
	e := setup(t, true)

	rec := e.do(t, http.MethodGet, "/api/v1/storefront/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view domain.CartView
	decode(t, rec, &view)
	assert.Equal(t, 0, view.Count)
	assert.NotNil(t, view.Lines)
	assert.True(t, view.Total.IsZero())
}

func TestAddBundle(t *testing.T) {
	e := setup(t, true)

	rec := e.do(t, http.MethodPost, "/api/v1/storefront/cart/bundle", `{"product_ids":[1,99,3]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out storefront.BundleOutcome
	decode(t, rec, &out)
	assert.Equal(t, []int{1, 3}, out.Added)
	assert.Equal(t, []int{99}, out.Skipped)
	assert.Equal(t, 2, out.Cart.Count)
}

func TestAddBundle_SkipsNonPositiveAndUnknownIDs(t *testing.T) {
	e := setup(t, true)

	rec := e.do(t, http.MethodPost, "/api/v1/storefront/cart/bundle", `{"product_ids":[1,-5,99]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out storefront.BundleOutcome
	decode(t, rec, &out)
	assert.Equal(t, []int{1}, out.Added)
	assert.Equal(t, []int{-5, 99}, out.Skipped)
	assert.Equal(t, 1, out.Cart.Count)
}

func TestAddBundle_Validation(t *testing.T) {
	e := setup(t, true)

	rec := e.do(t, http.MethodPost, "/api/v1/storefront/cart/bundle", `{"product_ids":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

// ============================================================================
// Recommendations
// ============================================================================

func TestRecommendations_FollowCart(t *testing.T) {
	e := setup(t, true)

	var view domain.RecommendationView
	decode(t, e.do(t, http.MethodGet, "/api/v1/storefront/recommendations", ""), &view)
	assert.False(t, view.Available)

	e.do(t, http.MethodPost, "/api/v1/storefront/cart/items", `{"product_id":1}`)

	require.Eventually(t, func() bool {
		return e.session.Recommendations().CartVersion == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec := e.do(t, http.MethodGet, "/api/v1/storefront/recommendations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	decode(t, rec, &view)
	assert.True(t, view.Available)
	assert.Len(t, view.Recommendations, 1)
	assert.Len(t, view.Bundle, 2)
	assert.Equal(t, "1025.49", view.BundleTotal.StringFixed(2))

	var stats recommendation.Stats
	decode(t, e.do(t, http.MethodGet, "/api/v1/storefront/recommendations/stats", ""), &stats)
	assert.Equal(t, uint64(1), stats.Applied)
}

func TestAddFrequentlyBoughtTogether(t *testing.T) {
	e := setup(t, true)

	rec := e.do(t, http.MethodPost, "/api/v1/storefront/cart/bundle/frequently-bought-together", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	e.do(t, http.MethodPost, "/api/v1/storefront/cart/items", `{"product_id":3}`)
	require.Eventually(t, func() bool {
		return e.session.Recommendations().Available
	}, 2*time.Second, 5*time.Millisecond)

	rec = e.do(t, http.MethodPost, "/api/v1/storefront/cart/bundle/frequently-bought-together", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out storefront.BundleOutcome
	decode(t, rec, &out)
	assert.Equal(t, []int{1, 2}, out.Added)
	assert.Equal(t, 3, out.Cart.Count)
}

// ============================================================================
// Health
// ============================================================================

func TestHealthReady(t *testing.T) {
	e := setup(t, false)

	rec := e.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	e.session.Start(context.Background())

	rec = e.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := setup(t, true)
	e.do(t, http.MethodGet, "/api/v1/storefront/cart", "")

	rec := e.do(t, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
