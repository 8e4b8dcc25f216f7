package cartclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// LocalCartRepository is the guest cart: a plain list kept in memory and
// persisted to a JSON file so a restart does not lose it. It never talks to
// the server and reserves nothing; its contents are advisory until merged.
type LocalCartRepository struct {
	mu   sync.Mutex
	path string
	cart *Cart
}

// NewLocalCartRepository loads the cart stored at path, if any. An empty
// path keeps the cart in memory only.
func NewLocalCartRepository(path string) (*LocalCartRepository, error) {
	r := &LocalCartRepository{path: path, cart: &Cart{Items: []LineItem{}}}
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("cartclient: read guest cart: %w", err)
	}
	var stored Cart
	if err := json.Unmarshal(data, &stored); err != nil {
		// A corrupt blob is not worth failing the session over.
		return r, nil
	}
	if stored.Items == nil {
		stored.Items = []LineItem{}
	}
	stored.Recount()
	r.cart = &stored
	return r, nil
}

var _ CartRepository = (*LocalCartRepository)(nil)

func (r *LocalCartRepository) Get(_ context.Context) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.Clone(), nil
}

// AddItem merges qty into the product's line, or appends a new line with a
// synthetic guest id and the given price snapshot.
func (r *LocalCartRepository) AddItem(_ context.Context, item NewItem) (*Cart, error) {
	if item.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return r.mutate(func(c *Cart) error {
		if existing, _ := c.ItemByProduct(item.ProductID); existing != nil {
			existing.Quantity += item.Quantity
			return nil
		}
		c.Items = append(c.Items, LineItem{
			ID:                GuestItemPrefix + uuid.NewString(),
			ProductID:         item.ProductID,
			ProductName:       item.ProductName,
			Quantity:          item.Quantity,
			UnitPriceSnapshot: item.UnitPrice,
		})
		return nil
	})
}

func (r *LocalCartRepository) SetQuantity(_ context.Context, itemID string, qty int64) (*Cart, error) {
	return r.mutate(func(c *Cart) error {
		it, idx := c.Item(itemID)
		if it == nil {
			return ErrNotFound
		}
		if qty <= 0 {
			c.removeAt(idx)
			return nil
		}
		it.Quantity = qty
		return nil
	})
}

func (r *LocalCartRepository) RemoveItem(_ context.Context, itemID string) (*Cart, error) {
	return r.mutate(func(c *Cart) error {
		_, idx := c.Item(itemID)
		if idx < 0 {
			return ErrNotFound
		}
		c.removeAt(idx)
		return nil
	})
}

func (r *LocalCartRepository) Clear(_ context.Context) (*Cart, error) {
	return r.mutate(func(c *Cart) error {
		c.Items = []LineItem{}
		return nil
	})
}

// Discard empties the cart and deletes the stored blob. Called once the
// server cart has superseded it.
func (r *LocalCartRepository) Discard() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cart = &Cart{Items: []LineItem{}}
	if r.path == "" {
		return nil
	}
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cartclient: discard guest cart: %w", err)
	}
	return nil
}

// mutate applies fn to a copy, persists it, and only then makes it current.
func (r *LocalCartRepository) mutate(fn func(c *Cart) error) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.cart.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Recount()
	if err := r.persist(next); err != nil {
		return nil, err
	}
	r.cart = next
	return next.Clone(), nil
}

func (r *LocalCartRepository) persist(c *Cart) error {
	if r.path == "" {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cartclient: persist guest cart: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".guest-cart-*")
	if err != nil {
		return fmt.Errorf("cartclient: persist guest cart: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cartclient: persist guest cart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}
