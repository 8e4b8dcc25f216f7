package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/dto"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartService is the server side of a user cart. Every mutation goes through
// the ReservationCoordinator; the service itself never edits cart lines.
type CartService interface {
	Get(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error)
	AddItem(ctx context.Context, userID uuid.UUID, req dto.AddCartItemRequest) (*dto.CartResponse, error)
	SetQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int64) (*dto.CartResponse, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*dto.CartResponse, error)
	Clear(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error)
}

type cartService struct {
	repo        repository.CartRepository
	coordinator *ReservationCoordinator
}

func NewCartService(repo repository.CartRepository, coordinator *ReservationCoordinator) CartService {
	return &cartService{repo: repo, coordinator: coordinator}
}

// maxCartChangedRetries bounds how often a multi-line operation reloads the
// cart after a concurrent add on another product.
const maxCartChangedRetries = 3

func (s *cartService) Get(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cartToResponse(cart), nil
}

func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, req dto.AddCartItemRequest) (*dto.CartResponse, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, validationErr("product_id", "uuid invalido")
	}
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.coordinator.AddItem(ctx, cart, productID, req.Quantity); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

// SetQuantity applies the REST contract: a quantity <= 0 removes the line.
func (s *cartService) SetQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int64) (*dto.CartResponse, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.coordinator.SetQuantity(ctx, cart, itemID, quantity); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*dto.CartResponse, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.coordinator.RemoveItem(ctx, cart, itemID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	for attempt := 0; ; attempt++ {
		cart, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		err = s.coordinator.Clear(ctx, cart)
		if errors.Is(err, errCartChanged) && attempt < maxCartChangedRetries {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.Get(ctx, userID)
	}
}

func (s *cartService) load(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthorized
	}
	cart, err := s.repo.FindOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cargar carrito: %w", err)
	}
	return cart, nil
}

func cartToResponse(c *model.Cart) *dto.CartResponse {
	resp := &dto.CartResponse{
		ID:       c.ID.String(),
		UserID:   c.UserID.String(),
		Items:    make([]dto.CartItemResponse, 0, len(c.Items)),
		Subtotal: decimal.Zero,
	}
	for _, it := range c.Items {
		item := dto.CartItemResponse{
			ID:                it.ID.String(),
			ProductID:         it.ProductID.String(),
			Quantity:          it.Quantity,
			UnitPriceSnapshot: it.UnitPriceSnapshot,
			LineTotal:         it.LineTotal(),
		}
		if it.Product != nil {
			item.ProductName = it.Product.Name
		}
		resp.Items = append(resp.Items, item)
		resp.TotalCount += it.Quantity
		resp.Subtotal = resp.Subtotal.Add(item.LineTotal)
	}
	return resp
}
