// Package cartclient is the client side of the storefront cart: a
// CartRepository with a local (guest) and a remote (authenticated)
// implementation, the one-time guest merge run at login, and an optimistic
// mirror that predicts mutations and rolls them back on failure.
package cartclient

import (
	"strings"

	"github.com/shopspring/decimal"
)

// GuestItemPrefix marks line item ids minted locally for a guest cart.
// Such items were never committed to the server.
const GuestItemPrefix = "guest:"

// LineItem mirrors the server's cart line. JSON tags match the REST payload.
type LineItem struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	ProductName       string          `json:"product_name,omitempty"`
	Quantity          int64           `json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `json:"unit_price_snapshot"`
	LineTotal         decimal.Decimal `json:"line_total"`
}

// IsGuest reports whether the item only exists in a guest cart.
func (li LineItem) IsGuest() bool { return strings.HasPrefix(li.ID, GuestItemPrefix) }

type Cart struct {
	ID         string          `json:"id,omitempty"`
	Items      []LineItem      `json:"items"`
	TotalCount int64           `json:"total_count"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// NewItem is the intent to add a product. Remote carts ignore name and price
// (the server snapshots its own); guest carts store them verbatim.
type NewItem struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int64
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return &Cart{}
	}
	out := *c
	out.Items = append([]LineItem(nil), c.Items...)
	return &out
}

// Item returns the line item with id and its index, or nil and -1.
func (c *Cart) Item(id string) (*LineItem, int) {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i], i
		}
	}
	return nil, -1
}

// ItemByProduct returns the line item for productID and its index, or nil and -1.
func (c *Cart) ItemByProduct(productID string) (*LineItem, int) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i], i
		}
	}
	return nil, -1
}

// Recount recomputes line totals, TotalCount and Subtotal from the items.
func (c *Cart) Recount() {
	c.TotalCount = 0
	c.Subtotal = decimal.Zero
	for i := range c.Items {
		it := &c.Items[i]
		it.LineTotal = it.UnitPriceSnapshot.Mul(decimal.NewFromInt(it.Quantity))
		c.TotalCount += it.Quantity
		c.Subtotal = c.Subtotal.Add(it.LineTotal)
	}
}

func (c *Cart) removeAt(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}

// restore puts prev back, in place if its id is present, else at idx.
func (c *Cart) restore(prev LineItem, idx int) {
	if _, i := c.Item(prev.ID); i >= 0 {
		c.Items[i] = prev
		return
	}
	if idx < 0 || idx > len(c.Items) {
		idx = len(c.Items)
	}
	c.Items = append(c.Items, LineItem{})
	copy(c.Items[idx+1:], c.Items[idx:])
	c.Items[idx] = prev
}
