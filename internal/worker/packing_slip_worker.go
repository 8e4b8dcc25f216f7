package worker

// packing_slip_worker.go
// Renders the packing slip PDF for orders entering PREPARING.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/infra"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PackingSlipJobPayload is the job envelope sent to QueuePackingSlip.
type PackingSlipJobPayload struct {
	OrderID string `json:"order_id"`
}

type PackingSlipWorker struct {
	orders      repository.OrderRepository
	storagePath string
}

func NewPackingSlipWorker(orders repository.OrderRepository, storagePath string) *PackingSlipWorker {
	return &PackingSlipWorker{orders: orders, storagePath: storagePath}
}

// Process loads the order and writes its PDF. Unknown orders are dropped.
func (w *PackingSlipWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload PackingSlipJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("packing_slip_worker: invalid payload")
		return nil
	}
	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		log.Error().Str("order_id", payload.OrderID).Msg("packing_slip_worker: invalid order_id")
		return nil
	}

	order, err := w.orders.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn().Str("order_id", payload.OrderID).Msg("packing_slip_worker: order not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("packing_slip_worker: load order: %w", err)
	}

	path, err := infra.GeneratePackingSlipPDF(order, w.storagePath)
	if err != nil {
		return err
	}
	log.Info().Str("order_id", payload.OrderID).Str("path", path).Msg("packing_slip_worker: generated")
	return nil
}
