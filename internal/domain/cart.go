package domain

import "github.com/shopspring/decimal"

// CartLine is one product in the cart with its quantity. A cart holds at most
// one line per product id and every quantity is at least 1.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// LineTotal returns price × quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a snapshot of the cart in first-add order. Version increases with
// every effective mutation.
type Cart struct {
	Version uint64     `json:"version"`
	Lines   []CartLine `json:"lines"`
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	var count int
	for _, l := range c.Lines {
		count += l.Quantity
	}
	return count
}

// TotalAmount returns Σ price × quantity rounded to two decimals.
func (c *Cart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.LineTotal())
	}
	return total.Round(2)
}

// FindLineIndex returns the index of the line for productID, or -1.
func (c *Cart) FindLineIndex(productID int) int {
	for i := range c.Lines {
		if c.Lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// ProductNames returns the product name of every line, in cart order. This is
// the payload the recommendation backend expects.
func (c *Cart) ProductNames() []string {
	return LineNames(c.Lines)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// LineNames returns the product name of each line.
func LineNames(lines []CartLine) []string {
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Product.Name
	}
	return names
}

// CartView is the cart as the renderer displays it.
type CartView struct {
	Version uint64          `json:"version"`
	Lines   []CartLine      `json:"lines"`
	Count   int             `json:"count"`
	Total   decimal.Decimal `json:"total"`
}

// View derives the renderer view of c.
func (c *Cart) View() CartView {
	lines := c.Lines
	if lines == nil {
		lines = []CartLine{}
	}
	return CartView{
		Version: c.Version,
		Lines:   lines,
		Count:   c.ItemCount(),
		Total:   c.TotalAmount(),
	}
}

// CartChangeKind names the mutation that produced a CartChange.
type CartChangeKind string

const (
	CartChangeAdd    CartChangeKind = "add"
	CartChangeBundle CartChangeKind = "bundle"
	CartChangeRemove CartChangeKind = "remove"
)

// CartChange is delivered to cart subscribers after every effective mutation.
type CartChange struct {
	Version uint64         `json:"version"`
	Kind    CartChangeKind `json:"kind"`
	Lines   []CartLine     `json:"lines"`
}

// ProductNames returns the names of the lines in the changed cart.
func (c CartChange) ProductNames() []string {
	return LineNames(c.Lines)
}
