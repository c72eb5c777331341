package recommendation

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Backend is the recommendation endpoint of the product backend.
type Backend interface {
	Recommend(ctx context.Context, cartItems []string) (domain.RecommendationResult, error)
}

// Client fetches recommendations for a cart.
type Client struct {
	backend Backend
	logger  *slog.Logger
}

// NewClient creates a recommendation client.
func NewClient(backend Backend, logger *slog.Logger) *Client {
	return &Client{backend: backend, logger: logger}
}

// Fetch returns recommendations for the given cart product names. Failures
// are FetchErrors.
func (c *Client) Fetch(ctx context.Context, cartItems []string) (domain.RecommendationResult, error) {
	res, err := c.backend.Recommend(ctx, cartItems)
	if err != nil {
		if !apperrors.IsFetch(err) {
			err = apperrors.Fetch("recommendations", err)
		}
		return domain.RecommendationResult{}, err
	}

	c.logger.DebugContext(ctx, "recommendations fetched",
		slog.Int("cart_items", len(cartItems)),
		slog.Int("recommendations", len(res.Recommendations)),
		slog.Int("bundle", len(res.FrequentlyBoughtTogether)),
	)
	return res, nil
}
