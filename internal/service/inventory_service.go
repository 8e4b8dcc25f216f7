package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/dto"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// InventoryService is the operator surface over the StockLedger: restocks,
// write-offs, the movement log, low stock alerts and cached availability.
type InventoryService interface {
	Restock(ctx context.Context, req dto.RestockRequest) (*dto.StockLevelResponse, error)
	WriteOff(ctx context.Context, req dto.WriteOffRequest) (*dto.StockLevelResponse, error)
	ListLog(ctx context.Context, filter dto.InventoryLogFilter) (*dto.InventoryLogListResponse, error)
	Alerts(ctx context.Context) ([]dto.LowStockAlertResponse, error)
	Availability(ctx context.Context, productID uuid.UUID) (*dto.StockLevelResponse, error)
}

type inventoryService struct {
	ledger    *StockLedger
	stock     repository.StockRepository
	products  repository.ProductRepository
	rdb       *redis.Client
	threshold int64
	cacheTTL  time.Duration
}

func NewInventoryService(
	ledger *StockLedger,
	stock repository.StockRepository,
	products repository.ProductRepository,
	rdb *redis.Client,
	lowStockThreshold int64,
	cacheTTL time.Duration,
) InventoryService {
	return &inventoryService{
		ledger:    ledger,
		stock:     stock,
		products:  products,
		rdb:       rdb,
		threshold: lowStockThreshold,
		cacheTTL:  cacheTTL,
	}
}

func (s *inventoryService) Restock(ctx context.Context, req dto.RestockRequest) (*dto.StockLevelResponse, error) {
	productID, err := s.existingProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	lvl, err := s.ledger.Restock(ctx, productID, req.Quantity, LedgerRef{Note: req.Note})
	if err != nil {
		return nil, err
	}
	log.Info().Str("product_id", productID.String()).Int64("qty", req.Quantity).Msg("restock applied")
	return levelToResponse(lvl), nil
}

func (s *inventoryService) WriteOff(ctx context.Context, req dto.WriteOffRequest) (*dto.StockLevelResponse, error) {
	productID, err := s.existingProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	ref := LedgerRef{Note: req.Note}
	if req.OrderID != nil {
		orderID, err := uuid.Parse(*req.OrderID)
		if err != nil {
			return nil, validationErr("order_id", "uuid invalido")
		}
		ref.ReferenceID = &orderID
	}
	lvl, err := s.ledger.WriteOff(ctx, productID, req.Quantity, ref)
	if err != nil {
		return nil, err
	}
	log.Info().Str("product_id", productID.String()).Int64("qty", req.Quantity).Msg("write-off applied")
	return levelToResponse(lvl), nil
}

func (s *inventoryService) ListLog(ctx context.Context, filter dto.InventoryLogFilter) (*dto.InventoryLogListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	repoFilter := repository.InventoryLogFilter{
		Action: model.InventoryAction(filter.Action),
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if filter.ProductID != "" {
		id, err := uuid.Parse(filter.ProductID)
		if err != nil {
			return nil, validationErr("product_id", "uuid invalido")
		}
		repoFilter.ProductID = &id
	}

	entries, total, err := s.stock.ListEntries(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.InventoryLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, entryToResponse(e))
	}
	return &dto.InventoryLogListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Alerts lists products whose available units are at or below the threshold.
func (s *inventoryService) Alerts(ctx context.Context) ([]dto.LowStockAlertResponse, error) {
	levels, err := s.stock.ListLow(ctx, s.threshold)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LowStockAlertResponse, 0, len(levels))
	for _, l := range levels {
		alert := dto.LowStockAlertResponse{
			ProductID: l.ProductID.String(),
			Available: l.Available,
			Reserved:  l.Reserved,
			Threshold: s.threshold,
		}
		if l.Product != nil {
			alert.ProductName = l.Product.Name
		}
		out = append(out, alert)
	}
	return out, nil
}

// Availability serves the public stock read. Snapshots are cached in Redis
// for cacheTTL and dropped by the ledger after every committed change.
func (s *inventoryService) Availability(ctx context.Context, productID uuid.UUID) (*dto.StockLevelResponse, error) {
	key := StockCacheKeyPrefix + productID.String()
	if s.rdb != nil {
		if raw, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
			var cached dto.StockLevelResponse
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("stock cache read failed")
		}
	}

	if _, err := s.existingProduct(ctx, productID.String()); err != nil {
		return nil, err
	}
	lvl, err := s.ledger.Levels(ctx, productID)
	if err != nil {
		return nil, err
	}
	resp := levelToResponse(lvl)

	if s.rdb != nil && s.cacheTTL > 0 {
		if data, err := json.Marshal(resp); err == nil {
			if err := s.rdb.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("stock cache write failed")
			}
		}
	}
	return resp, nil
}

func (s *inventoryService) existingProduct(ctx context.Context, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, validationErr("product_id", "uuid invalido")
	}
	if _, err := s.products.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("producto %s: %w", id, ErrNotFound)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func levelToResponse(l *model.StockLevel) *dto.StockLevelResponse {
	return &dto.StockLevelResponse{
		ProductID: l.ProductID.String(),
		Available: l.Available,
		Reserved:  l.Reserved,
		Sold:      l.Sold,
	}
}

func entryToResponse(e model.InventoryLogEntry) dto.InventoryLogEntryResponse {
	r := dto.InventoryLogEntryResponse{
		ID:             e.ID.String(),
		ProductID:      e.ProductID.String(),
		Action:         string(e.Action),
		Quantity:       e.Quantity,
		WriteOff:       e.WriteOff,
		AvailableAfter: e.AvailableAfter,
		ReservedAfter:  e.ReservedAfter,
		SoldAfter:      e.SoldAfter,
		Note:           e.Note,
		OccurredAt:     e.OccurredAt.Format(time.RFC3339),
	}
	if e.Product != nil {
		r.ProductName = e.Product.Name
	}
	if e.ReferenceID != nil {
		ref := e.ReferenceID.String()
		r.ReferenceID = &ref
	}
	return r
}
