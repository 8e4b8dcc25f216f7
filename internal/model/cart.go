package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the server-side cart of an authenticated user (one per user).
// Guest carts never reach the server; see pkg/cartclient.
type Cart struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

// ItemByID returns the line item with the given id, or nil.
func (c *Cart) ItemByID(id uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i]
		}
	}
	return nil
}

// ItemByProduct returns the line item holding productID, or nil.
func (c *Cart) ItemByProduct(productID uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// Subtotal sums unit price snapshots times quantities.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// CartItem is one line of a user cart. Every unit in Quantity is backed by a
// ledger reservation. Quantity is always > 0: a line that would reach zero is deleted.
type CartItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CartID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product"`
	Quantity          int64           `gorm:"not null;check:chk_cart_items_quantity,quantity > 0"`
	UnitPriceSnapshot decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

// LineTotal is UnitPriceSnapshot × Quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPriceSnapshot.Mul(decimal.NewFromInt(i.Quantity))
}
