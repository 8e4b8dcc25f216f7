package cartclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// fakeServer is an in-memory server cart with a stock ledger: every add
// reserves, every decrease or removal releases.
type fakeServer struct {
	mu     sync.Mutex
	cart   *Cart
	stock  map[string]int64
	prices map[string]decimal.Decimal
	seq    int
	calls  int

	// hook, if set, runs before each mutation (outside the lock).
	hook func(ctx context.Context) error
}

func newFakeServer(stock map[string]int64) *fakeServer {
	return &fakeServer{
		cart:   &Cart{ID: "server-cart", Items: []LineItem{}},
		stock:  stock,
		prices: map[string]decimal.Decimal{},
	}
}

var _ CartRepository = (*fakeServer)(nil)

func insufficient(available int64) error {
	return &APIError{Status: 409, Code: CodeInsufficientStock, Detail: "sin stock", Available: &available}
}

func (s *fakeServer) before(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return nil
}

func (s *fakeServer) Get(context.Context) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone(), nil
}

func (s *fakeServer) AddItem(ctx context.Context, item NewItem) (*Cart, error) {
	if err := s.before(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stock[item.ProductID] < item.Quantity {
		return nil, insufficient(s.stock[item.ProductID])
	}
	s.stock[item.ProductID] -= item.Quantity
	if it, _ := s.cart.ItemByProduct(item.ProductID); it != nil {
		it.Quantity += item.Quantity
	} else {
		s.seq++
		price, ok := s.prices[item.ProductID]
		if !ok {
			price = decimal.NewFromInt(1)
		}
		s.cart.Items = append(s.cart.Items, LineItem{
			ID:                fmt.Sprintf("srv-%d", s.seq),
			ProductID:         item.ProductID,
			Quantity:          item.Quantity,
			UnitPriceSnapshot: price,
		})
	}
	s.cart.Recount()
	return s.cart.Clone(), nil
}

func (s *fakeServer) SetQuantity(ctx context.Context, itemID string, qty int64) (*Cart, error) {
	if err := s.before(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it, idx := s.cart.Item(itemID)
	if it == nil {
		return nil, &APIError{Status: 404, Code: CodeNotFound}
	}
	if qty <= 0 {
		s.stock[it.ProductID] += it.Quantity
		s.cart.removeAt(idx)
	} else {
		delta := qty - it.Quantity
		if delta > s.stock[it.ProductID] {
			return nil, insufficient(s.stock[it.ProductID])
		}
		s.stock[it.ProductID] -= delta
		it.Quantity = qty
	}
	s.cart.Recount()
	return s.cart.Clone(), nil
}

func (s *fakeServer) RemoveItem(ctx context.Context, itemID string) (*Cart, error) {
	return s.SetQuantity(ctx, itemID, 0)
}

func (s *fakeServer) Clear(ctx context.Context) (*Cart, error) {
	if err := s.before(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.cart.Items {
		s.stock[it.ProductID] += it.Quantity
	}
	s.cart.Items = []LineItem{}
	s.cart.Recount()
	return s.cart.Clone(), nil
}
