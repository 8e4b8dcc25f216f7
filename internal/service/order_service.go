package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storefront/internal/dto"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderService is the order fulfillment state machine: it creates orders
// from user carts and is the only component that changes an order's status.
type OrderService interface {
	Checkout(ctx context.Context, userID uuid.UUID, req dto.CheckoutRequest) (*dto.OrderResponse, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, req dto.UpdateOrderStatusRequest) (*dto.OrderResponse, error)
	Get(ctx context.Context, orderID uuid.UUID) (*dto.OrderResponse, error)
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*dto.OrderResponse, error)
	List(ctx context.Context, filter dto.OrderFilter) (*dto.OrderListResponse, error)
	ListForUser(ctx context.Context, userID uuid.UUID, filter dto.OrderFilter) (*dto.OrderListResponse, error)
}

// ShippingPolicy prices shipping at checkout: a flat fee, waived when the
// subtotal reaches FreeThreshold (a zero threshold never waives).
type ShippingPolicy struct {
	FlatFee       decimal.Decimal
	FreeThreshold decimal.Decimal
}

// Fee returns the shipping fee for subtotal.
func (p ShippingPolicy) Fee(subtotal decimal.Decimal) decimal.Decimal {
	if p.FreeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.FlatFee
}

type orderService struct {
	repo       repository.OrderRepository
	carts      repository.CartRepository
	ledger     *StockLedger
	shipping   ShippingPolicy
	dispatcher *worker.Dispatcher
}

func NewOrderService(
	repo repository.OrderRepository,
	carts repository.CartRepository,
	ledger *StockLedger,
	shipping ShippingPolicy,
	dispatcher *worker.Dispatcher,
) OrderService {
	return &orderService{
		repo:       repo,
		carts:      carts,
		ledger:     ledger,
		shipping:   shipping,
		dispatcher: dispatcher,
	}
}

// allowedTransitions is the complete status table. Forward moves advance one
// step at a time; CANCELLED is only reachable from PENDING and REFUNDED only
// from DELIVERED.
var allowedTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderPending:   {model.OrderConfirmed, model.OrderCancelled},
	model.OrderConfirmed: {model.OrderPreparing},
	model.OrderPreparing: {model.OrderShipping},
	model.OrderShipping:  {model.OrderDelivered},
	model.OrderDelivered: {model.OrderRefunded},
}

func canTransition(from, to model.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// returnsStock reports whether entering status puts the sold units back.
func returnsStock(status model.OrderStatus) bool {
	return status == model.OrderCancelled || status == model.OrderRefunded
}

// ── Checkout ──────────────────────────────────────────────────────────────────
// One transaction, with every product of the cart locked:
//   1. Re-read the cart lines
//   2. SELL each line (its reservation becomes a committed sale)
//   3. Create the order in PENDING with item snapshots and totals
//   4. Delete the cart lines (no release: the reservation was consumed)

func (s *orderService) Checkout(ctx context.Context, userID uuid.UUID, req dto.CheckoutRequest) (*dto.OrderResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}

	for attempt := 0; ; attempt++ {
		order, err := s.checkoutOnce(ctx, userID, req)
		if errors.Is(err, errCartChanged) && attempt < maxCartChangedRetries {
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Info().
			Str("order_id", order.ID.String()).
			Str("user_id", userID.String()).
			Str("total", order.Total.String()).
			Msg("order created")
		s.notify(ctx, order, "")
		return orderToResponse(order), nil
	}
}

func (s *orderService) checkoutOnce(ctx context.Context, userID uuid.UUID, req dto.CheckoutRequest) (*model.Order, error) {
	cart, err := s.carts.FindOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cargar carrito: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, validationErr("cart", "el carrito esta vacio")
	}
	productIDs := make([]uuid.UUID, 0, len(cart.Items))
	for _, it := range cart.Items {
		productIDs = append(productIDs, it.ProductID)
	}

	order := &model.Order{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        model.OrderPending,
		CustomerEmail: req.CustomerEmail,
	}

	err = s.ledger.Exec(ctx, productIDs, func(tx *gorm.DB) error {
		items, err := s.carts.FindItemsTx(tx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return validationErr("cart", "el carrito esta vacio")
		}
		if !coveredBy(items, productIDs) {
			return errCartChanged
		}
		sortByProduct(items)

		subtotal := decimal.Zero
		order.Items = make([]model.OrderItem, 0, len(items))
		ref := LedgerRef{ReferenceID: &order.ID, Note: "checkout"}
		for _, it := range items {
			if _, err := s.ledger.SellTx(tx, it.ProductID, it.Quantity, ref); err != nil {
				return err
			}
			line := it.LineTotal()
			subtotal = subtotal.Add(line)
			order.Items = append(order.Items, model.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPriceSnapshot,
				LineTotal: line,
			})
		}

		order.Subtotal = subtotal
		order.ShippingFee = s.shipping.Fee(subtotal)
		order.Total = subtotal.Add(order.ShippingFee)
		order.CreatedAt = time.Now()
		order.UpdatedAt = order.CreatedAt

		if err := s.repo.CreateTx(tx, order); err != nil {
			return err
		}
		return s.carts.DeleteItemsTx(tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ── UpdateStatus ──────────────────────────────────────────────────────────────
// Transitions outside allowedTransitions are rejected before any ledger call
// or order write. CANCELLED and REFUNDED return every line's units to available
// in the same transaction as the status change.

func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, req dto.UpdateOrderStatusRequest) (*dto.OrderResponse, error) {
	target := model.OrderStatus(req.Status)
	if !target.Valid() {
		return nil, validationErr("status", "estado desconocido")
	}

	current, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canTransition(current.Status, target) {
		return nil, &InvalidTransitionError{From: current.Status, To: target}
	}

	var productIDs []uuid.UUID
	if returnsStock(target) {
		for _, it := range current.Items {
			productIDs = append(productIDs, it.ProductID)
		}
	}

	var from model.OrderStatus
	err = s.ledger.Exec(ctx, productIDs, func(tx *gorm.DB) error {
		o, err := s.repo.FindForUpdateTx(tx, orderID)
		if err != nil {
			return err
		}
		// Re-check under the row lock: another admin may have moved it.
		if !canTransition(o.Status, target) {
			return &InvalidTransitionError{From: o.Status, To: target}
		}
		from = o.Status

		if returnsStock(target) {
			items := append([]model.OrderItem(nil), o.Items...)
			sort.Slice(items, func(i, j int) bool {
				return bytes.Compare(items[i].ProductID[:], items[j].ProductID[:]) < 0
			})
			ref := LedgerRef{ReferenceID: &o.ID, Note: fmt.Sprintf("order %s", target)}
			for _, it := range items {
				if _, err := s.ledger.ReturnStockTx(tx, it.ProductID, it.Quantity, ref); err != nil {
					return err
				}
			}
		}

		if err := s.repo.UpdateStatusTx(tx, orderID, target); err != nil {
			return err
		}
		return s.repo.AppendHistoryTx(tx, &model.OrderStatusChange{
			ID:        uuid.New(),
			OrderID:   orderID,
			From:      o.Status,
			To:        target,
			Note:      req.Note,
			ChangedAt: time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", orderID.String()).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("order status changed")

	updated, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, updated, from)
	if target == model.OrderPreparing && s.dispatcher != nil {
		if err := s.dispatcher.EnqueuePackingSlip(ctx, worker.PackingSlipJobPayload{OrderID: orderID.String()}); err != nil {
			log.Warn().Err(err).Str("order_id", orderID.String()).Msg("packing slip job not enqueued")
		}
	}
	return orderToResponse(updated), nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *orderService) Get(ctx context.Context, orderID uuid.UUID) (*dto.OrderResponse, error) {
	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return orderToResponse(o), nil
}

// GetForUser hides orders of other users behind NotFound.
func (s *orderService) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*dto.OrderResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("pedido %s: %w", orderID, ErrNotFound)
	}
	return orderToResponse(o), nil
}

func (s *orderService) List(ctx context.Context, filter dto.OrderFilter) (*dto.OrderListResponse, error) {
	return s.list(ctx, nil, filter)
}

func (s *orderService) ListForUser(ctx context.Context, userID uuid.UUID, filter dto.OrderFilter) (*dto.OrderListResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	return s.list(ctx, &userID, filter)
}

func (s *orderService) list(ctx context.Context, userID *uuid.UUID, filter dto.OrderFilter) (*dto.OrderListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	orders, total, err := s.repo.List(ctx, repository.OrderFilter{
		UserID: userID,
		Status: model.OrderStatus(filter.Status),
		Page:   filter.Page,
		Limit:  filter.Limit,
	})
	if err != nil {
		return nil, err
	}
	data := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		data = append(data, *orderToResponse(&orders[i]))
	}
	return &dto.OrderListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *orderService) find(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("pedido %s: %w", orderID, ErrNotFound)
	}
	return o, err
}

// notify enqueues the customer email for a new order (from == "") or a
// status change. Best effort: a queue failure never fails the transition.
func (s *orderService) notify(ctx context.Context, o *model.Order, from model.OrderStatus) {
	if s.dispatcher == nil || o.CustomerEmail == nil || *o.CustomerEmail == "" {
		return
	}
	subject := fmt.Sprintf("Pedido %s recibido", shortID(o.ID))
	body := fmt.Sprintf("Recibimos tu pedido por un total de %s.", o.Total.StringFixed(2))
	if from != "" {
		subject = fmt.Sprintf("Pedido %s: %s", shortID(o.ID), o.Status)
		body = fmt.Sprintf("Tu pedido paso de %s a %s.", from, o.Status)
	}
	payload := worker.EmailJobPayload{ToEmail: *o.CustomerEmail, Subject: subject, Body: body}
	if err := s.dispatcher.EnqueueEmail(ctx, payload); err != nil {
		log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("order email not enqueued")
	}
}

func shortID(id uuid.UUID) string { return id.String()[:8] }

func sortByProduct(items []model.CartItem) {
	sort.Slice(items, func(i, j int) bool {
		return bytes.Compare(items[i].ProductID[:], items[j].ProductID[:]) < 0
	})
}

func orderToResponse(o *model.Order) *dto.OrderResponse {
	resp := &dto.OrderResponse{
		ID:          o.ID.String(),
		UserID:      o.UserID.String(),
		Status:      string(o.Status),
		Items:       make([]dto.OrderItemResponse, 0, len(o.Items)),
		Subtotal:    o.Subtotal,
		ShippingFee: o.ShippingFee,
		Total:       o.Total,
		CreatedAt:   o.CreatedAt.Format(time.RFC3339),
	}
	for _, it := range o.Items {
		item := dto.OrderItemResponse{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		}
		if it.Product != nil {
			item.ProductName = it.Product.Name
		}
		resp.Items = append(resp.Items, item)
	}
	for _, h := range o.History {
		resp.History = append(resp.History, dto.OrderStatusChangeResponse{
			From:      string(h.From),
			To:        string(h.To),
			Note:      h.Note,
			ChangedAt: h.ChangedAt.Format(time.RFC3339),
		})
	}
	return resp
}
