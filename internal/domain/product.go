package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry as served by the backend. Products are immutable
// once fetched.
type Product struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
}

// Validate rejects products the stores cannot hold.
func (p Product) Validate() error {
	if p.Price.IsNegative() {
		return fmt.Errorf("product %d: negative price %s", p.ID, p.Price)
	}
	return nil
}

// ProductIDs returns the ids of products in order.
func ProductIDs(products []Product) []int {
	ids := make([]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}
