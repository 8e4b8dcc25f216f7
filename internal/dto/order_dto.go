package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CheckoutRequest struct {
	// CustomerEmail is optional; when present, status changes are mailed to it.
	CustomerEmail *string `json:"customer_email" validate:"omitempty,email"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING CONFIRMED PREPARING SHIPPING DELIVERED CANCELLED REFUNDED"`
	Note   string `json:"note"   validate:"max=500"`
}

// OrderFilter is bound from query string of GET /v1/orders and /v1/admin/orders.
type OrderFilter struct {
	Status string `form:"status" validate:"omitempty,oneof=PENDING CONFIRMED PREPARING SHIPPING DELIVERED CANCELLED REFUNDED"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OrderItemResponse struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type OrderStatusChangeResponse struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Note      string `json:"note,omitempty"`
	ChangedAt string `json:"changed_at"`
}

type OrderResponse struct {
	ID          string                      `json:"id"`
	UserID      string                      `json:"user_id"`
	Status      string                      `json:"status"`
	Items       []OrderItemResponse         `json:"items"`
	Subtotal    decimal.Decimal             `json:"subtotal"`
	ShippingFee decimal.Decimal             `json:"shipping_fee"`
	Total       decimal.Decimal             `json:"total"`
	History     []OrderStatusChangeResponse `json:"history,omitempty"`
	CreatedAt   string                      `json:"created_at"`
}

type OrderListResponse struct {
	Data  []OrderResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}
