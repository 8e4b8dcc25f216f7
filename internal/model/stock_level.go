package model

import (
	"time"

	"github.com/google/uuid"
)

// StockLevel holds the authoritative counters for one product.
// Only the StockLedger writes this table. A row is created by the first mutation.
type StockLevel struct {
	ProductID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Available int64     `gorm:"not null;default:0;check:chk_stock_available,available >= 0"`
	Reserved  int64     `gorm:"not null;default:0;check:chk_stock_reserved,reserved >= 0"`
	Sold      int64     `gorm:"not null;default:0;check:chk_stock_sold,sold >= 0"`
	UpdatedAt time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

// Total is the number of units in circulation for the product.
func (s StockLevel) Total() int64 { return s.Available + s.Reserved + s.Sold }
