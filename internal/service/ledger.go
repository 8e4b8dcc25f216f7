package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StockCacheKeyPrefix namespaces the cached availability snapshots in Redis.
const StockCacheKeyPrefix = "stock:"

// LedgerRef carries the optional context stored on a log entry.
type LedgerRef struct {
	ReferenceID *uuid.UUID
	Note        string
}

// StockLedger owns the per-product available/reserved/sold counters. Its
// mutators are the only code allowed to write them, and each one appends
// exactly one InventoryLogEntry in the same transaction as the counter change.
//
// Read-modify-write on one product is linearizable: an in-process mutex per
// product id serializes callers of this instance, and the counters row is
// read with SELECT ... FOR UPDATE so other instances wait on the database.
// Different products never share a lock.
type StockLedger struct {
	repo  repository.StockRepository
	rdb   *redis.Client
	locks *keyedMutex
	now   func() time.Time
}

func NewStockLedger(repo repository.StockRepository, rdb *redis.Client) *StockLedger {
	return &StockLedger{
		repo:  repo,
		rdb:   rdb,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// Exec locks every product in productIDs (ascending id order), runs fn in a
// single transaction and releases the locks after commit or rollback. Callers
// use the *Tx mutators inside fn to combine several ledger transitions with
// their own writes atomically.
func (l *StockLedger) Exec(ctx context.Context, productIDs []uuid.UUID, fn func(tx *gorm.DB) error) error {
	unlock := l.locks.lockAll(productIDs)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := runTx(ctx, l.repo.DB(), fn); err != nil {
		return err
	}
	l.invalidate(productIDs)
	return nil
}

// Reserve moves qty units from available to reserved.
func (l *StockLedger) Reserve(ctx context.Context, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.single(ctx, productID, func(tx *gorm.DB) (*model.StockLevel, error) {
		return l.ReserveTx(tx, productID, qty, ref)
	})
}

// Release moves qty units from reserved back to available.
func (l *StockLedger) Release(ctx context.Context, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.single(ctx, productID, func(tx *gorm.DB) (*model.StockLevel, error) {
		return l.ReleaseTx(tx, productID, qty, ref)
	})
}

// Sell converts qty reserved units into sold units.
func (l *StockLedger) Sell(ctx context.Context, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.single(ctx, productID, func(tx *gorm.DB) (*model.StockLevel, error) {
		return l.SellTx(tx, productID, qty, ref)
	})
}

// ReturnStock puts qty sold units back into available.
func (l *StockLedger) ReturnStock(ctx context.Context, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.single(ctx, productID, func(tx *gorm.DB) (*model.StockLevel, error) {
		return l.ReturnStockTx(tx, productID, qty, ref)
	})
}

// WriteOff removes qty sold units from circulation (damaged on return).
// It is logged as a RETURN flagged write_off.
func (l *StockLedger) WriteOff(ctx context.Context, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.single(ctx, productID, func(tx *gorm.DB) (*model.StockLevel, error) {
		return l.WriteOffTx(tx, productID, qty, ref)
	})
}

// Restock adds qty new units to available, creating the counters on first use.
func (l *StockLedger) Restock(ctx context.Context, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.single(ctx, productID, func(tx *gorm.DB) (*model.StockLevel, error) {
		return l.RestockTx(tx, productID, qty, ref)
	})
}

// Levels returns the current counters. A product that was never restocked
// reports all zeros.
func (l *StockLedger) Levels(ctx context.Context, productID uuid.UUID) (*model.StockLevel, error) {
	lvl, err := l.repo.FindLevel(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.StockLevel{ProductID: productID}, nil
	}
	return lvl, err
}

// ── Tx mutators ──────────────────────────────────────────────────────────────
// Callers must hold the product lock, i.e. run inside Exec.

func (l *StockLedger) ReserveTx(tx *gorm.DB, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.apply(tx, productID, model.ActionReserve, qty, ref, false, func(s *model.StockLevel) error {
		if s.Available < qty {
			return &InsufficientStockError{ProductID: productID, Available: s.Available, Requested: qty}
		}
		s.Available -= qty
		s.Reserved += qty
		return nil
	})
}

func (l *StockLedger) ReleaseTx(tx *gorm.DB, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.apply(tx, productID, model.ActionRelease, qty, ref, false, func(s *model.StockLevel) error {
		if s.Reserved < qty {
			return l.violation("release", productID, "reserved %d < %d", s.Reserved, qty)
		}
		s.Reserved -= qty
		s.Available += qty
		return nil
	})
}

func (l *StockLedger) SellTx(tx *gorm.DB, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.apply(tx, productID, model.ActionSell, qty, ref, false, func(s *model.StockLevel) error {
		if s.Reserved < qty {
			return l.violation("sell", productID, "reserved %d < %d", s.Reserved, qty)
		}
		s.Reserved -= qty
		s.Sold += qty
		return nil
	})
}

func (l *StockLedger) ReturnStockTx(tx *gorm.DB, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.apply(tx, productID, model.ActionReturn, qty, ref, false, func(s *model.StockLevel) error {
		if s.Sold < qty {
			return l.violation("returnStock", productID, "sold %d < %d", s.Sold, qty)
		}
		s.Sold -= qty
		s.Available += qty
		return nil
	})
}

func (l *StockLedger) WriteOffTx(tx *gorm.DB, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.apply(tx, productID, model.ActionReturn, qty, ref, true, func(s *model.StockLevel) error {
		if s.Sold < qty {
			return l.violation("writeOff", productID, "sold %d < %d", s.Sold, qty)
		}
		s.Sold -= qty
		return nil
	})
}

func (l *StockLedger) RestockTx(tx *gorm.DB, productID uuid.UUID, qty int64, ref LedgerRef) (*model.StockLevel, error) {
	return l.apply(tx, productID, model.ActionAdd, qty, ref, false, func(s *model.StockLevel) error {
		s.Available += qty
		return nil
	})
}

// ── internals ────────────────────────────────────────────────────────────────

func (l *StockLedger) single(ctx context.Context, productID uuid.UUID, fn func(tx *gorm.DB) (*model.StockLevel, error)) (*model.StockLevel, error) {
	var out *model.StockLevel
	err := l.Exec(ctx, []uuid.UUID{productID}, func(tx *gorm.DB) error {
		lvl, err := fn(tx)
		out = lvl
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// apply is the single write path: load counters under lock, run the
// transition, persist counters, append the log entry.
func (l *StockLedger) apply(
	tx *gorm.DB,
	productID uuid.UUID,
	action model.InventoryAction,
	qty int64,
	ref LedgerRef,
	writeOff bool,
	transition func(s *model.StockLevel) error,
) (*model.StockLevel, error) {
	if qty <= 0 {
		return nil, validationErr("quantity", "debe ser mayor a cero")
	}

	lvl, err := l.repo.FindLevelForUpdateTx(tx, productID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No counters yet (unknown product): every precondition sees zeros.
		lvl = &model.StockLevel{ProductID: productID}
	case err != nil:
		return nil, fmt.Errorf("ledger: load counters: %w", err)
	}

	if err := transition(lvl); err != nil {
		return nil, err
	}

	now := l.now()
	lvl.UpdatedAt = now
	if err := l.repo.SaveLevelTx(tx, lvl); err != nil {
		return nil, fmt.Errorf("ledger: save counters: %w", err)
	}

	entry := &model.InventoryLogEntry{
		ID:             uuid.New(),
		ProductID:      productID,
		Action:         action,
		Quantity:       qty,
		WriteOff:       writeOff,
		AvailableAfter: lvl.Available,
		ReservedAfter:  lvl.Reserved,
		SoldAfter:      lvl.Sold,
		ReferenceID:    ref.ReferenceID,
		Note:           ref.Note,
		OccurredAt:     now,
	}
	if err := l.repo.AppendEntryTx(tx, entry); err != nil {
		return nil, fmt.Errorf("ledger: append log entry: %w", err)
	}
	return lvl, nil
}

func (l *StockLedger) violation(op string, productID uuid.UUID, format string, args ...interface{}) error {
	err := &InvariantViolationError{Op: op, ProductID: productID, Detail: fmt.Sprintf(format, args...)}
	log.Error().Str("op", op).Str("product_id", productID.String()).Err(err).Msg("ledger invariant violation")
	return err
}

// invalidate drops cached availability snapshots (best effort).
func (l *StockLedger) invalidate(productIDs []uuid.UUID) {
	if l.rdb == nil || len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, StockCacheKeyPrefix+id.String())
	}
	if err := l.rdb.Del(context.Background(), keys...).Err(); err != nil {
		log.Warn().Err(err).Msg("ledger: stock cache invalidation failed")
	}
}
