package worker

// reconcile_cron.go
// Periodically replays the inventory log of recently touched products and
// compares the result with the stored counters. Divergence is logged at error
// level and never auto-corrected: the counters are only written by the ledger.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type ReconcileCronConfig struct {
	StockRepo repository.StockRepository
	Interval  time.Duration
}

// Counters is the replayed state of one product.
type Counters struct {
	Available int64
	Reserved  int64
	Sold      int64
}

// Divergence describes one product whose counters disagree with its log.
type Divergence struct {
	ProductID uuid.UUID
	Stored    Counters
	Replayed  Counters
	Detail    string
}

// StartReconcileCron launches the reconciliation goroutine. The first tick
// checks every product touched in the previous interval.
func StartReconcileCron(ctx context.Context, cfg ReconcileCronConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		since := time.Now().Add(-cfg.Interval)
		log.Info().Dur("interval", cfg.Interval).Msg("reconcile_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reconcile_cron: shutting down")
				return
			case tick := <-ticker.C:
				if _, err := Reconcile(ctx, cfg.StockRepo, since); err != nil {
					log.Error().Err(err).Msg("reconcile_cron: run failed")
					continue
				}
				since = tick
			}
		}
	}()
}

// Reconcile checks every product with log entries after since and returns
// the divergences it found.
func Reconcile(ctx context.Context, repo repository.StockRepository, since time.Time) ([]Divergence, error) {
	ids, err := repo.TouchedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("reconcile: touched products: %w", err)
	}

	var out []Divergence
	for _, id := range ids {
		d, err := reconcileProduct(ctx, repo, id)
		if err != nil {
			return out, err
		}
		if d == nil {
			continue
		}
		log.Error().
			Str("product_id", id.String()).
			Int64("stored_available", d.Stored.Available).
			Int64("stored_reserved", d.Stored.Reserved).
			Int64("stored_sold", d.Stored.Sold).
			Int64("replayed_available", d.Replayed.Available).
			Int64("replayed_reserved", d.Replayed.Reserved).
			Int64("replayed_sold", d.Replayed.Sold).
			Str("detail", d.Detail).
			Msg("reconcile_cron: counters diverge from inventory log")
		out = append(out, *d)
	}
	if len(ids) > 0 {
		log.Debug().Int("products", len(ids)).Int("divergent", len(out)).Msg("reconcile_cron: run complete")
	}
	return out, nil
}

func reconcileProduct(ctx context.Context, repo repository.StockRepository, productID uuid.UUID) (*Divergence, error) {
	entries, err := repo.EntriesForProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: entries for %s: %w", productID, err)
	}
	var stored Counters
	lvl, err := repo.FindLevel(ctx, productID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, fmt.Errorf("reconcile: level for %s: %w", productID, err)
	default:
		stored = Counters{Available: lvl.Available, Reserved: lvl.Reserved, Sold: lvl.Sold}
	}

	replayed, detail := ReplayLog(entries)
	if detail == "" && replayed != stored {
		detail = "final counters differ"
	}
	if detail == "" {
		return nil, nil
	}
	return &Divergence{ProductID: productID, Stored: stored, Replayed: replayed, Detail: detail}, nil
}

// ReplayLog folds entries (oldest first) into counters starting from zero.
// detail is non-empty when an entry's recorded snapshot disagrees with the
// replay or the replay goes negative.
func ReplayLog(entries []model.InventoryLogEntry) (Counters, string) {
	var c Counters
	for _, e := range entries {
		q := e.Quantity
		switch e.Action {
		case model.ActionAdd:
			c.Available += q
		case model.ActionReserve:
			c.Available -= q
			c.Reserved += q
		case model.ActionRelease:
			c.Reserved -= q
			c.Available += q
		case model.ActionSell:
			c.Reserved -= q
			c.Sold += q
		case model.ActionReturn:
			c.Sold -= q
			if !e.WriteOff {
				c.Available += q
			}
		default:
			return c, fmt.Sprintf("entry %s: unknown action %q", e.ID, e.Action)
		}
		if c.Available < 0 || c.Reserved < 0 || c.Sold < 0 {
			return c, fmt.Sprintf("entry %s: replay went negative", e.ID)
		}
		snap := Counters{Available: e.AvailableAfter, Reserved: e.ReservedAfter, Sold: e.SoldAfter}
		if snap != c {
			return c, fmt.Sprintf("entry %s: snapshot mismatch", e.ID)
		}
	}
	return c, ""
}
