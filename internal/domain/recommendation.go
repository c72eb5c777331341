package domain

import "github.com/shopspring/decimal"

// RecommendationResult is the backend's answer for one cart state.
type RecommendationResult struct {
	Recommendations          []Product `json:"recommendations"`
	FrequentlyBoughtTogether []Product `json:"frequently_bought_together"`
}

// Bundle returns the frequently-bought-together products as one offer.
func (r RecommendationResult) Bundle() Bundle {
	return Bundle{Products: r.FrequentlyBoughtTogether}
}

// Bundle is a group of products offered as a single add-to-cart action.
type Bundle struct {
	Products []Product
}

// TotalPrice returns the sum of the bundle's prices. An empty bundle totals 0.
func (b Bundle) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, p := range b.Products {
		total = total.Add(p.Price)
	}
	return total
}

// ProductIDs returns the bundle's product ids in order.
func (b Bundle) ProductIDs() []int {
	return ProductIDs(b.Products)
}

// IsEmpty reports whether the bundle offers nothing.
func (b Bundle) IsEmpty() bool {
	return len(b.Products) == 0
}

// RecommendationView is what the renderer shows next to the cart. When the
// last fetch failed, Available is false, Error says why and both lists are
// empty.
type RecommendationView struct {
	CartVersion     uint64          `json:"cart_version"`
	Recommendations []Product       `json:"recommendations"`
	Bundle          []Product       `json:"bundle"`
	BundleTotal     decimal.Decimal `json:"bundle_total"`
	Available       bool            `json:"available"`
	Error           string          `json:"error,omitempty"`
}

// NewRecommendationView builds an available view from a backend result.
func NewRecommendationView(cartVersion uint64, res RecommendationResult) RecommendationView {
	bundle := res.Bundle()
	return RecommendationView{
		CartVersion:     cartVersion,
		Recommendations: nonNil(res.Recommendations),
		Bundle:          nonNil(bundle.Products),
		BundleTotal:     bundle.TotalPrice(),
		Available:       true,
	}
}

// UnavailableView is shown when recommendations could not be fetched.
func UnavailableView(cartVersion uint64, err error) RecommendationView {
	v := RecommendationView{
		CartVersion:     cartVersion,
		Recommendations: []Product{},
		Bundle:          []Product{},
		BundleTotal:     decimal.Zero,
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

// BundleOffer returns the view's bundle.
func (v RecommendationView) BundleOffer() Bundle {
	return Bundle{Products: v.Bundle}
}

func nonNil(p []Product) []Product {
	if p == nil {
		return []Product{}
	}
	return p
}
