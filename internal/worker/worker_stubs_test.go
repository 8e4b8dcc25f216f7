package worker

import (
	"context"
	"errors"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubStockRepo struct {
	levels  map[uuid.UUID]model.StockLevel
	entries []model.InventoryLogEntry
	failErr error
}

func newStubStockRepo() *stubStockRepo {
	return &stubStockRepo{levels: make(map[uuid.UUID]model.StockLevel)}
}

func (r *stubStockRepo) FindLevelForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.StockLevel, error) {
	return r.FindLevel(context.Background(), id)
}
func (r *stubStockRepo) SaveLevelTx(_ *gorm.DB, s *model.StockLevel) error {
	r.levels[s.ProductID] = *s
	return nil
}
func (r *stubStockRepo) AppendEntryTx(_ *gorm.DB, e *model.InventoryLogEntry) error {
	r.entries = append(r.entries, *e)
	return nil
}
func (r *stubStockRepo) FindLevel(_ context.Context, id uuid.UUID) (*model.StockLevel, error) {
	lvl, ok := r.levels[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &lvl, nil
}
func (r *stubStockRepo) ListLow(context.Context, int64) ([]model.StockLevel, error) { return nil, nil }
func (r *stubStockRepo) ListEntries(context.Context, repository.InventoryLogFilter) ([]model.InventoryLogEntry, int64, error) {
	return r.entries, int64(len(r.entries)), nil
}
func (r *stubStockRepo) EntriesForProduct(_ context.Context, id uuid.UUID) ([]model.InventoryLogEntry, error) {
	if r.failErr != nil {
		return nil, r.failErr
	}
	var out []model.InventoryLogEntry
	for _, e := range r.entries {
		if e.ProductID == id {
			out = append(out, e)
		}
	}
	return out, nil
}
func (r *stubStockRepo) TouchedSince(_ context.Context, since time.Time) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, e := range r.entries {
		if e.OccurredAt.After(since) && !seen[e.ProductID] {
			seen[e.ProductID] = true
			out = append(out, e.ProductID)
		}
	}
	return out, nil
}
func (r *stubStockRepo) DB() *gorm.DB { return nil }

var _ repository.StockRepository = (*stubStockRepo)(nil)

type stubOrderRepo struct {
	orders  map[uuid.UUID]model.Order
	findErr error
}

func (r *stubOrderRepo) CreateTx(_ *gorm.DB, o *model.Order) error {
	r.orders[o.ID] = *o
	return nil
}
func (r *stubOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}
func (r *stubOrderRepo) FindForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Order, error) {
	return r.FindByID(context.Background(), id)
}
func (r *stubOrderRepo) UpdateStatusTx(*gorm.DB, uuid.UUID, model.OrderStatus) error {
	return errors.New("not used")
}
func (r *stubOrderRepo) AppendHistoryTx(*gorm.DB, *model.OrderStatusChange) error {
	return errors.New("not used")
}
func (r *stubOrderRepo) List(context.Context, repository.OrderFilter) ([]model.Order, int64, error) {
	return nil, 0, nil
}
func (r *stubOrderRepo) DB() *gorm.DB { return nil }

var _ repository.OrderRepository = (*stubOrderRepo)(nil)
