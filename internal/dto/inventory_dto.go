package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RestockRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int64  `json:"quantity"   validate:"required,min=1"`
	Note      string `json:"note"       validate:"max=255"`
}

// WriteOffRequest removes sold units from circulation (damaged on return).
type WriteOffRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid"`
	Quantity  int64   `json:"quantity"   validate:"required,min=1"`
	OrderID   *string `json:"order_id"   validate:"omitempty,uuid"`
	Note      string  `json:"note"       validate:"required,min=3,max=255"`
}

// InventoryLogFilter is bound from the query string of GET /v1/inventario/movimientos.
type InventoryLogFilter struct {
	ProductID string `form:"product_id" validate:"omitempty,uuid"`
	Action    string `form:"action"     validate:"omitempty,oneof=ADD RESERVE RELEASE SELL RETURN"`
	Page      int    `form:"page,default=1"    validate:"min=1"`
	Limit     int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type StockLevelResponse struct {
	ProductID string `json:"product_id"`
	Available int64  `json:"available"`
	Reserved  int64  `json:"reserved"`
	Sold      int64  `json:"sold"`
}

type InventoryLogEntryResponse struct {
	ID             string  `json:"id"`
	ProductID      string  `json:"product_id"`
	ProductName    string  `json:"product_name,omitempty"`
	Action         string  `json:"action"`
	Quantity       int64   `json:"quantity"`
	WriteOff       bool    `json:"write_off"`
	AvailableAfter int64   `json:"available_after"`
	ReservedAfter  int64   `json:"reserved_after"`
	SoldAfter      int64   `json:"sold_after"`
	ReferenceID    *string `json:"reference_id"`
	Note           string  `json:"note,omitempty"`
	OccurredAt     string  `json:"occurred_at"`
}

type InventoryLogListResponse struct {
	Data  []InventoryLogEntryResponse `json:"data"`
	Total int64                       `json:"total"`
	Page  int                         `json:"page"`
	Limit int                         `json:"limit"`
}

type LowStockAlertResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Available   int64  `json:"available"`
	Reserved    int64  `json:"reserved"`
	Threshold   int64  `json:"threshold"`
}
