package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReservationCoordinator turns cart intents into ledger transitions. The
// cart row is only written after the ledger call succeeded, and both writes
// share one transaction.
type ReservationCoordinator struct {
	ledger   *StockLedger
	carts    repository.CartRepository
	products repository.ProductRepository
}

func NewReservationCoordinator(ledger *StockLedger, carts repository.CartRepository, products repository.ProductRepository) *ReservationCoordinator {
	return &ReservationCoordinator{ledger: ledger, carts: carts, products: products}
}

// AddItem reserves qty units and merges them into the cart line for the
// product (creating it with the current price snapshot if needed). On
// InsufficientStock the cart is left untouched and the error is returned as is.
func (c *ReservationCoordinator) AddItem(ctx context.Context, cart *model.Cart, productID uuid.UUID, qty int64) (*model.CartItem, error) {
	if qty <= 0 {
		return nil, validationErr("quantity", "debe ser mayor a cero")
	}
	product, err := c.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("producto %s: %w", productID, ErrNotFound)
		}
		return nil, err
	}
	if !product.Active {
		return nil, fmt.Errorf("producto %s inactivo: %w", productID, ErrNotFound)
	}

	var result *model.CartItem
	err = c.ledger.Exec(ctx, []uuid.UUID{productID}, func(tx *gorm.DB) error {
		ref := LedgerRef{ReferenceID: &cart.ID, Note: "cart add"}
		if _, err := c.ledger.ReserveTx(tx, productID, qty, ref); err != nil {
			return err
		}

		existing, err := c.carts.FindItemByProductTx(tx, cart.ID, productID)
		switch {
		case err == nil:
			existing.Quantity += qty
			if err := c.carts.UpdateItemQuantityTx(tx, existing.ID, existing.Quantity); err != nil {
				return err
			}
			result = existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			item := &model.CartItem{
				ID:                uuid.New(),
				CartID:            cart.ID,
				ProductID:         productID,
				Quantity:          qty,
				UnitPriceSnapshot: product.Price,
			}
			if err := c.carts.CreateItemTx(tx, item); err != nil {
				return err
			}
			result = item
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetQuantity moves the line to newQty by reserving or releasing the
// difference. newQty == 0 releases everything and removes the line.
// It returns the updated line, or nil when the line was removed.
func (c *ReservationCoordinator) SetQuantity(ctx context.Context, cart *model.Cart, itemID uuid.UUID, newQty int64) (*model.CartItem, error) {
	if newQty < 0 {
		return nil, validationErr("quantity", "no puede ser negativa")
	}
	if newQty == 0 {
		return nil, c.RemoveItem(ctx, cart, itemID)
	}
	productID, err := c.productOf(cart, itemID)
	if err != nil {
		return nil, err
	}

	var result *model.CartItem
	err = c.ledger.Exec(ctx, []uuid.UUID{productID}, func(tx *gorm.DB) error {
		item, err := c.findItemTx(tx, cart.ID, itemID)
		if err != nil {
			return err
		}
		ref := LedgerRef{ReferenceID: &cart.ID, Note: "cart set quantity"}
		delta := newQty - item.Quantity
		switch {
		case delta > 0:
			if _, err := c.ledger.ReserveTx(tx, item.ProductID, delta, ref); err != nil {
				return err
			}
		case delta < 0:
			if _, err := c.ledger.ReleaseTx(tx, item.ProductID, -delta, ref); err != nil {
				return err
			}
		default:
			result = item
			return nil
		}
		if err := c.carts.UpdateItemQuantityTx(tx, item.ID, newQty); err != nil {
			return err
		}
		item.Quantity = newQty
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem releases the full quantity of the line, then deletes it.
func (c *ReservationCoordinator) RemoveItem(ctx context.Context, cart *model.Cart, itemID uuid.UUID) error {
	productID, err := c.productOf(cart, itemID)
	if err != nil {
		return err
	}
	return c.ledger.Exec(ctx, []uuid.UUID{productID}, func(tx *gorm.DB) error {
		item, err := c.findItemTx(tx, cart.ID, itemID)
		if err != nil {
			return err
		}
		ref := LedgerRef{ReferenceID: &cart.ID, Note: "cart remove"}
		if _, err := c.ledger.ReleaseTx(tx, item.ProductID, item.Quantity, ref); err != nil {
			return err
		}
		return c.carts.DeleteItemTx(tx, item.ID)
	})
}

// Clear releases every line's reservation and empties the cart.
func (c *ReservationCoordinator) Clear(ctx context.Context, cart *model.Cart) error {
	if len(cart.Items) == 0 {
		return nil
	}
	productIDs := make([]uuid.UUID, 0, len(cart.Items))
	for _, it := range cart.Items {
		productIDs = append(productIDs, it.ProductID)
	}

	return c.ledger.Exec(ctx, productIDs, func(tx *gorm.DB) error {
		items, err := c.carts.FindItemsTx(tx, cart.ID)
		if err != nil {
			return err
		}
		if !coveredBy(items, productIDs) {
			return errCartChanged
		}
		ref := LedgerRef{ReferenceID: &cart.ID, Note: "cart clear"}
		for _, it := range items {
			if _, err := c.ledger.ReleaseTx(tx, it.ProductID, it.Quantity, ref); err != nil {
				return err
			}
		}
		return c.carts.DeleteItemsTx(tx, cart.ID)
	})
}

// errCartChanged signals that a line for an unlocked product appeared
// between reading the cart and taking the product locks. Callers reload and retry.
var errCartChanged = errors.New("cart changed concurrently")

func coveredBy(items []model.CartItem, locked []uuid.UUID) bool {
	set := make(map[uuid.UUID]struct{}, len(locked))
	for _, id := range locked {
		set[id] = struct{}{}
	}
	for _, it := range items {
		if _, ok := set[it.ProductID]; !ok {
			return false
		}
	}
	return true
}

func (c *ReservationCoordinator) productOf(cart *model.Cart, itemID uuid.UUID) (uuid.UUID, error) {
	item := cart.ItemByID(itemID)
	if item == nil {
		return uuid.Nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return item.ProductID, nil
}

func (c *ReservationCoordinator) findItemTx(tx *gorm.DB, cartID, itemID uuid.UUID) (*model.CartItem, error) {
	item, err := c.carts.FindItemTx(tx, cartID, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return item, err
}
