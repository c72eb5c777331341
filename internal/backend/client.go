package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

const (
	productsPath        = "/products"
	recommendationsPath = "/recommendations"

	// maxResponseBody bounds how much of a backend payload is decoded.
	maxResponseBody = 8 << 20

	defaultSlowThreshold = 2 * time.Second
)

// CircuitOpenFallback replaces the breaker's open-state error with a
// ServiceUnavailable error carrying a retry hint.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("backend is temporarily unavailable, retry shortly")
}

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client talks to the product/recommendation backend. Every failure it returns
// is a FetchError (apperrors.IsFetch reports true); the underlying cause stays
// reachable through errors.Is / errors.As.
type Client struct {
	doer          HTTPDoer
	baseURL       string
	logger        *slog.Logger
	slowThreshold time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithSlowThreshold sets the duration above which a call is logged as slow.
// Zero disables slow-call logging.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Client) { c.slowThreshold = d }
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		doer:          doer,
		baseURL:       strings.TrimRight(baseURL, "/"),
		logger:        logger,
		slowThreshold: defaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListProducts fetches the full product list.
func (c *Client) ListProducts(ctx context.Context) (_ []domain.Product, err error) {
	ctx, end := c.traceCall(ctx, "ListProducts", http.MethodGet, productsPath)
	defer func() { end(err) }()

	req, err := c.newRequest(ctx, http.MethodGet, productsPath, nil)
	if err != nil {
		return nil, apperrors.Fetch("products", err)
	}

	var products []domain.Product
	if err := c.do(ctx, req, "products", &products); err != nil {
		return nil, err
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, apperrors.Fetch("products", fmt.Errorf("invalid payload: %w", err))
		}
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

type recommendationRequest struct {
	CartItems []string `json:"cart_items"`
}

// Recommend fetches recommendations for the given cart product names. An
// empty cart is sent as an empty list.
func (c *Client) Recommend(ctx context.Context, cartItems []string) (_ domain.RecommendationResult, err error) {
	ctx, end := c.traceCall(ctx, "Recommend", http.MethodPost, recommendationsPath)
	defer func() { end(err) }()

	if cartItems == nil {
		cartItems = []string{}
	}
	body, err := json.Marshal(recommendationRequest{CartItems: cartItems})
	if err != nil {
		return domain.RecommendationResult{}, apperrors.Fetch("recommendations", fmt.Errorf("marshal request: %w", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, recommendationsPath, body)
	if err != nil {
		return domain.RecommendationResult{}, apperrors.Fetch("recommendations", err)
	}

	var res domain.RecommendationResult
	if err := c.do(ctx, req, "recommendations", &res); err != nil {
		return domain.RecommendationResult{}, err
	}
	for _, list := range [][]domain.Product{res.Recommendations, res.FrequentlyBoughtTogether} {
		for _, p := range list {
			if err := p.Validate(); err != nil {
				return domain.RecommendationResult{}, apperrors.Fetch("recommendations", fmt.Errorf("invalid payload: %w", err))
			}
		}
	}
	return res, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

// do executes req and decodes a 200 JSON body into dst.
func (c *Client) do(ctx context.Context, req *http.Request, resource string, dst any) error {
	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return apperrors.Fetch(resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httpclient.ParseResponseError(resp, resource)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(dst); err != nil {
		return apperrors.Fetch(resource, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
