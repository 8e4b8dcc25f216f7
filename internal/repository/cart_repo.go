package repository

import (
	"context"
	"errors"

	"storefront/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository persists user carts. Item writes only exist in *Tx form so
// that the reservation coordinator can pair them with the ledger change.
type CartRepository interface {
	// FindOrCreateByUser returns the user's cart with items (oldest first),
	// creating an empty cart on first use.
	FindOrCreateByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	FindByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error)

	// FindItemsTx re-reads the cart lines inside a transaction.
	FindItemsTx(tx *gorm.DB, cartID uuid.UUID) ([]model.CartItem, error)
	FindItemTx(tx *gorm.DB, cartID, itemID uuid.UUID) (*model.CartItem, error)
	FindItemByProductTx(tx *gorm.DB, cartID, productID uuid.UUID) (*model.CartItem, error)
	CreateItemTx(tx *gorm.DB, item *model.CartItem) error
	UpdateItemQuantityTx(tx *gorm.DB, itemID uuid.UUID, quantity int64) error
	DeleteItemTx(tx *gorm.DB, itemID uuid.UUID) error
	DeleteItemsTx(tx *gorm.DB, cartID uuid.UUID) error

	DB() *gorm.DB
}

type cartRepo struct{ db *gorm.DB }

func NewCartRepository(db *gorm.DB) CartRepository { return &cartRepo{db: db} }

func (r *cartRepo) DB() *gorm.DB { return r.db }

func (r *cartRepo) FindOrCreateByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	c, err := r.FindByUser(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	cart := &model.Cart{ID: uuid.New(), UserID: userID}
	// Two first requests for the same user may race; the unique index on
	// user_id makes the loser a no-op and both read back the same row.
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cart).Error; err != nil {
		return nil, err
	}
	return r.FindByUser(ctx, userID)
}

func (r *cartRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	var c model.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cartRepo) FindItemsTx(tx *gorm.DB, cartID uuid.UUID) ([]model.CartItem, error) {
	var items []model.CartItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *cartRepo) FindItemTx(tx *gorm.DB, cartID, itemID uuid.UUID) (*model.CartItem, error) {
	var it model.CartItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&it).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *cartRepo) FindItemByProductTx(tx *gorm.DB, cartID, productID uuid.UUID) (*model.CartItem, error) {
	var it model.CartItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&it).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *cartRepo) CreateItemTx(tx *gorm.DB, item *model.CartItem) error {
	return tx.Create(item).Error
}

func (r *cartRepo) UpdateItemQuantityTx(tx *gorm.DB, itemID uuid.UUID, quantity int64) error {
	return tx.Model(&model.CartItem{}).Where("id = ?", itemID).Update("quantity", quantity).Error
}

func (r *cartRepo) DeleteItemTx(tx *gorm.DB, itemID uuid.UUID) error {
	return tx.Delete(&model.CartItem{}, "id = ?", itemID).Error
}

func (r *cartRepo) DeleteItemsTx(tx *gorm.DB, cartID uuid.UUID) error {
	return tx.Delete(&model.CartItem{}, "cart_id = ?", cartID).Error
}
