package cartclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingOp is the marker kept on a line item while its mutation is in flight.
type PendingOp string

const (
	PendingUpdate PendingOp = "update"
	PendingRemove PendingOp = "remove"
)

// DefaultMutationTimeout bounds each authoritative call made by the mirror.
const DefaultMutationTimeout = 8 * time.Second

// productKeyPrefix marks a Command key that names a product, not a line.
const productKeyPrefix = "product:"

// Command is one cart mutation. Apply predicts its effect on the visible
// cart and returns the closure that undoes exactly that prediction. Call is
// the authoritative request.
type Command struct {
	// Key identifies the line item the command targets. Adds use the
	// product, since the line may not exist yet; Dispatch resolves either
	// form to both the line and its product before checking for a pending
	// mutation.
	Key   string
	Op    PendingOp
	Apply func(c *Cart) (compensate func())
	Call  func(ctx context.Context, repo CartRepository) (*Cart, error)
}

// UpdateQuantity predicts the new quantity (qty <= 0 predicts removal).
func UpdateQuantity(itemID string, qty int64) Command {
	op := PendingUpdate
	if qty <= 0 {
		op = PendingRemove
	}
	return Command{
		Key: itemID,
		Op:  op,
		Apply: func(c *Cart) func() {
			it, idx := c.Item(itemID)
			if it == nil {
				return func() {}
			}
			prev := *it
			if qty <= 0 {
				c.removeAt(idx)
			} else {
				it.Quantity = qty
			}
			c.Recount()
			return func() { c.restore(prev, idx); c.Recount() }
		},
		Call: func(ctx context.Context, repo CartRepository) (*Cart, error) {
			return repo.SetQuantity(ctx, itemID, qty)
		},
	}
}

// Remove predicts the line disappearing.
func Remove(itemID string) Command {
	return Command{
		Key: itemID,
		Op:  PendingRemove,
		Apply: func(c *Cart) func() {
			it, idx := c.Item(itemID)
			if it == nil {
				return func() {}
			}
			prev := *it
			c.removeAt(idx)
			c.Recount()
			return func() { c.restore(prev, idx); c.Recount() }
		},
		Call: func(ctx context.Context, repo CartRepository) (*Cart, error) {
			return repo.RemoveItem(ctx, itemID)
		},
	}
}

// Add predicts the quantity growing on the product's line, or a provisional
// line appearing when there is none.
func Add(item NewItem) Command {
	return Command{
		Key: productKeyPrefix + item.ProductID,
		Op:  PendingUpdate,
		Apply: func(c *Cart) func() {
			if it, idx := c.ItemByProduct(item.ProductID); it != nil {
				prev := *it
				it.Quantity += item.Quantity
				c.Recount()
				return func() { c.restore(prev, idx); c.Recount() }
			}
			tempID := "pending:" + uuid.NewString()
			c.Items = append(c.Items, LineItem{
				ID:                tempID,
				ProductID:         item.ProductID,
				ProductName:       item.ProductName,
				Quantity:          item.Quantity,
				UnitPriceSnapshot: item.UnitPrice,
			})
			c.Recount()
			return func() {
				if _, i := c.Item(tempID); i >= 0 {
					c.removeAt(i)
				}
				c.Recount()
			}
		},
		Call: func(ctx context.Context, repo CartRepository) (*Cart, error) {
			return repo.AddItem(ctx, item)
		},
	}
}

type inflight struct {
	cmd        Command
	keys       []string
	compensate func()
}

// Mirror is the optimistic view of a cart. Mutations show up immediately
// and are undone if the repository call fails or times out. At most one
// mutation per line item is in flight; different items proceed concurrently.
type Mirror struct {
	mu      sync.Mutex
	repo    CartRepository
	cart    *Cart
	pending map[string]*inflight
	timeout time.Duration
}

func NewMirror(repo CartRepository, initial *Cart, timeout time.Duration) *Mirror {
	if timeout <= 0 {
		timeout = DefaultMutationTimeout
	}
	return &Mirror{
		repo:    repo,
		cart:    initial.Clone(),
		pending: make(map[string]*inflight),
		timeout: timeout,
	}
}

// Snapshot returns a copy of the visible cart.
func (m *Mirror) Snapshot() *Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Clone()
}

// Pending reports the marker on key, if a mutation is in flight.
func (m *Mirror) Pending(key string) (PendingOp, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.pending[key]
	if !ok {
		return "", false
	}
	return f.cmd.Op, true
}

// Refresh replaces the visible cart with the repository's, keeping the
// predictions of mutations still in flight.
func (m *Mirror) Refresh(ctx context.Context) (*Cart, error) {
	c, err := m.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adoptLocked(c)
	return m.cart.Clone(), nil
}

// Dispatch applies cmd optimistically, then makes the authoritative call.
// On success the returned cart becomes the visible cart. On failure,
// including a timeout, the prediction is compensated and the error returned.
func (m *Mirror) Dispatch(ctx context.Context, cmd Command) (*Cart, error) {
	m.mu.Lock()
	keys := m.keysLocked(cmd.Key)
	for _, k := range keys {
		if _, busy := m.pending[k]; busy {
			m.mu.Unlock()
			return nil, ErrMutationPending
		}
	}
	f := &inflight{cmd: cmd, keys: keys, compensate: cmd.Apply(m.cart)}
	for _, k := range keys {
		m.pending[k] = f
	}
	m.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	result, err := cmd.Call(callCtx, m.repo)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range f.keys {
		delete(m.pending, k)
	}
	if err != nil {
		f.compensate()
		return nil, fmt.Errorf("cartclient: %s %s: %w", cmd.Op, cmd.Key, err)
	}
	m.adoptLocked(result)
	return m.cart.Clone(), nil
}

// adoptLocked makes the authoritative cart visible and re-applies the
// predictions still in flight, so their compensations undo against it.
func (m *Mirror) adoptLocked(authoritative *Cart) {
	m.cart = authoritative.Clone()
	seen := make(map[*inflight]struct{}, len(m.pending))
	for _, f := range m.pending {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		f.compensate = f.cmd.Apply(m.cart)
	}
}

// keysLocked expands a command key to the line id and the product key of
// the visible line it touches, so an Add and an update of the same line
// contend for the same marker.
func (m *Mirror) keysLocked(key string) []string {
	keys := []string{key}
	if productID, ok := strings.CutPrefix(key, productKeyPrefix); ok {
		if it, _ := m.cart.ItemByProduct(productID); it != nil {
			keys = append(keys, it.ID)
		}
		return keys
	}
	if it, _ := m.cart.Item(key); it != nil {
		keys = append(keys, productKeyPrefix+it.ProductID)
	}
	return keys
}
