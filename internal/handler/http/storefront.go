package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/validator"
)

// StorefrontHandler serves the session views to the renderer.
type StorefrontHandler struct {
	session *storefront.Session
	logger  *slog.Logger
}

// NewStorefrontHandler creates a new storefront HTTP handler.
func NewStorefrontHandler(session *storefront.Session, logger *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		session: session,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
// Quantity defaults to 1 when omitted.
type AddItemRequest struct {
	ProductID int  `json:"product_id" validate:"required,gt=0"`
	Quantity  *int `json:"quantity" validate:"omitempty,gte=1,lte=99"`
}

// AddBundleRequest is the JSON request body for adding several products at once.
// Ids the catalog does not know, including non-positive ones, are reported as
// skipped rather than rejected.
type AddBundleRequest struct {
	ProductIDs []int `json:"product_ids" validate:"required,min=1"`
}

// --- Handlers ---

// GetCatalog handles GET /api/v1/storefront/catalog?category=
func (h *StorefrontHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	view := h.session.Catalog(r.URL.Query().Get("category"))
	// Only a loaded catalog is stable until the next reload.
	if view.State == domain.CatalogReady {
		middleware.SetMaxAge(w, catalogMaxAge)
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// GetProduct handles GET /api/v1/storefront/catalog/products/{productId}
func (h *StorefrontHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseProductID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	product, err := h.session.Product(id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	middleware.SetMaxAge(w, catalogMaxAge)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// ReloadCatalog handles POST /api/v1/storefront/catalog/reload
func (h *StorefrontHandler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	view, err := h.session.ReloadCatalog(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// GetCart handles GET /api/v1/storefront/cart
func (h *StorefrontHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.session.Cart()})
}

// AddItem handles POST /api/v1/storefront/cart/items
func (h *StorefrontHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	view, err := h.session.AddToCart(r.Context(), req.ProductID, quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// RemoveItem handles DELETE /api/v1/storefront/cart/items/{productId}
func (h *StorefrontHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseProductID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	view := h.session.RemoveFromCart(r.Context(), id)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// AddBundle handles POST /api/v1/storefront/cart/bundle
func (h *StorefrontHandler) AddBundle(w http.ResponseWriter, r *http.Request) {
	var req AddBundleRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	out, err := h.session.AddBundle(r.Context(), req.ProductIDs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// AddFrequentlyBoughtTogether handles POST /api/v1/storefront/cart/bundle/frequently-bought-together
func (h *StorefrontHandler) AddFrequentlyBoughtTogether(w http.ResponseWriter, r *http.Request) {
	out, err := h.session.AddFrequentlyBoughtTogether(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// GetRecommendations handles GET /api/v1/storefront/recommendations
func (h *StorefrontHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.session.Recommendations()})
}

// GetRecommendationStats handles GET /api/v1/storefront/recommendations/stats
func (h *StorefrontHandler) GetRecommendationStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.session.RecommendationStats()})
}
