package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderPreparing OrderStatus = "PREPARING"
	OrderShipping  OrderStatus = "SHIPPING"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRefunded  OrderStatus = "REFUNDED"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderShipping,
		OrderDelivered, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// Order is created at checkout from a snapshot of the user's cart.
// Status is only ever changed by the order service.
type Order struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status        OrderStatus     `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ShippingFee   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CustomerEmail *string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Items   []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History []OrderStatusChange `gorm:"foreignKey:OrderID"`
}

// OrderItem is the immutable snapshot of a cart line at checkout.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity  int64           `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

// OrderStatusChange is the audit row written for every accepted transition.
type OrderStatusChange struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID   uuid.UUID   `gorm:"type:uuid;not null;index"`
	From      OrderStatus `gorm:"type:varchar(20);not null"`
	To        OrderStatus `gorm:"type:varchar(20);not null"`
	Note      string
	ChangedAt time.Time
}

// TableName overrides GORM's default pluralization.
func (OrderStatusChange) TableName() string { return "order_status_history" }
