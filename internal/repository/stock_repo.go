package repository

import (
	"context"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryLogFilter defines filters for listing ledger entries.
type InventoryLogFilter struct {
	ProductID *uuid.UUID
	Action    model.InventoryAction
	Page      int
	Limit     int
}

// StockRepository is the data access contract of the StockLedger. Writes only
// exist in *Tx form: counters and log entries must be written inside the
// ledger's transaction. The log exposes no update or delete.
type StockRepository interface {
	// FindLevelForUpdateTx reads the counters and row-locks them until tx ends.
	// A missing row is inserted at zero first, so first writers on different
	// instances also queue on the lock. Returns gorm.ErrRecordNotFound only
	// when the product does not exist.
	FindLevelForUpdateTx(tx *gorm.DB, productID uuid.UUID) (*model.StockLevel, error)
	SaveLevelTx(tx *gorm.DB, s *model.StockLevel) error
	AppendEntryTx(tx *gorm.DB, e *model.InventoryLogEntry) error

	FindLevel(ctx context.Context, productID uuid.UUID) (*model.StockLevel, error)
	ListLow(ctx context.Context, threshold int64) ([]model.StockLevel, error)
	ListEntries(ctx context.Context, filter InventoryLogFilter) ([]model.InventoryLogEntry, int64, error)
	// EntriesForProduct returns the full history of one product in commit order.
	EntriesForProduct(ctx context.Context, productID uuid.UUID) ([]model.InventoryLogEntry, error)
	// TouchedSince lists products with at least one log entry after since.
	TouchedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)

	DB() *gorm.DB
}

type stockRepo struct{ db *gorm.DB }

func NewStockRepository(db *gorm.DB) StockRepository { return &stockRepo{db: db} }

func (r *stockRepo) DB() *gorm.DB { return r.db }

// insertZeroLevel creates the counters row if absent. Concurrent inserts
// collapse into one row; the loser waits on the winner's transaction.
const insertZeroLevel = `
INSERT INTO stock_levels (product_id, available, reserved, sold, updated_at)
SELECT ?, 0, 0, 0, now()
WHERE EXISTS (SELECT 1 FROM products WHERE id = ?)
ON CONFLICT (product_id) DO NOTHING`

func (r *stockRepo) FindLevelForUpdateTx(tx *gorm.DB, productID uuid.UUID) (*model.StockLevel, error) {
	if err := tx.Exec(insertZeroLevel, productID, productID).Error; err != nil {
		return nil, err
	}
	var s model.StockLevel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *stockRepo) SaveLevelTx(tx *gorm.DB, s *model.StockLevel) error {
	return tx.Save(s).Error
}

func (r *stockRepo) AppendEntryTx(tx *gorm.DB, e *model.InventoryLogEntry) error {
	return tx.Create(e).Error
}

func (r *stockRepo) FindLevel(ctx context.Context, productID uuid.UUID) (*model.StockLevel, error) {
	var s model.StockLevel
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *stockRepo) ListLow(ctx context.Context, threshold int64) ([]model.StockLevel, error) {
	var levels []model.StockLevel
	err := r.db.WithContext(ctx).Preload("Product").
		Where("available <= ?", threshold).
		Order("available ASC").
		Find(&levels).Error
	return levels, err
}

func (r *stockRepo) ListEntries(ctx context.Context, filter InventoryLogFilter) ([]model.InventoryLogEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.InventoryLogEntry{}).
		Preload("Product")
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	limit := filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := (page - 1) * limit

	var entries []model.InventoryLogEntry
	err := q.Order("occurred_at DESC, seq DESC").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, total, err
}

func (r *stockRepo) EntriesForProduct(ctx context.Context, productID uuid.UUID) ([]model.InventoryLogEntry, error) {
	var entries []model.InventoryLogEntry
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("seq ASC").
		Find(&entries).Error
	return entries, err
}

func (r *stockRepo) TouchedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.InventoryLogEntry{}).
		Distinct("product_id").
		Where("occurred_at > ?", since).
		Pluck("product_id", &ids).Error
	return ids, err
}
