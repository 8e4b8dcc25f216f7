package model

import (
	"time"

	"github.com/google/uuid"
)

// InventoryAction is the kind of ledger transition recorded in the log.
type InventoryAction string

const (
	ActionAdd     InventoryAction = "ADD"
	ActionReserve InventoryAction = "RESERVE"
	ActionRelease InventoryAction = "RELEASE"
	ActionSell    InventoryAction = "SELL"
	ActionReturn  InventoryAction = "RETURN"
)

// Valid reports whether a is one of the known ledger actions.
func (a InventoryAction) Valid() bool {
	switch a {
	case ActionAdd, ActionReserve, ActionRelease, ActionSell, ActionReturn:
		return true
	}
	return false
}

// InventoryLogEntry records one stock transition. Rows are append-only:
// they are written in the same transaction as the counter change and never
// updated or deleted afterwards.
type InventoryLogEntry struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	// Seq is assigned by the database on insert. Per product it follows the
	// order in which transitions committed, since they hold the counters' row lock.
	Seq       int64           `gorm:"autoIncrement;not null;uniqueIndex"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index:idx_inventory_log_product,priority:1"`
	Action    InventoryAction `gorm:"type:varchar(10);not null;index"`
	Quantity  int64           `gorm:"not null;check:chk_inventory_log_quantity,quantity > 0"`
	// WriteOff marks a RETURN that removes the units from circulation
	// instead of putting them back into available.
	WriteOff bool `gorm:"not null;default:false"`
	// Counter values right after the transition (for audits / reconciliation).
	AvailableAfter int64
	ReservedAfter  int64
	SoldAfter      int64
	ReferenceID    *uuid.UUID `gorm:"type:uuid"` // cart_id or order_id if applicable
	Note           string
	OccurredAt     time.Time `gorm:"not null;index:idx_inventory_log_product,priority:2"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

// TableName keeps the log table name singular.
func (InventoryLogEntry) TableName() string { return "inventory_log" }
