package domain

// CatalogState tells the renderer which catalog message to show.
type CatalogState string

const (
	// CatalogNotLoaded means no load has succeeded yet.
	CatalogNotLoaded CatalogState = "not_loaded"
	// CatalogEmpty means the backend returned zero products.
	CatalogEmpty CatalogState = "empty"
	// CatalogUnknownCategory means the filter names no known category.
	CatalogUnknownCategory CatalogState = "unknown_category"
	CatalogReady           CatalogState = "ready"
)

// AllCategories selects every product when used as a category filter.
const AllCategories = "all"

// CatalogView is a filtered listing of the catalog.
type CatalogView struct {
	State      CatalogState `json:"state"`
	Category   string       `json:"category"`
	Categories []string     `json:"categories"`
	Products   []Product    `json:"products"`
}
