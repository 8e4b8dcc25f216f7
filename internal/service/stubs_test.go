package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────
// In-memory repositories. DB() returns nil so runTx calls fn(nil) directly;
// the stubs ignore the tx argument. All of them are safe for concurrent use
// and hand out copies, like rows read from a database.

type stubStockRepo struct {
	mu      sync.Mutex
	levels  map[uuid.UUID]model.StockLevel
	entries []model.InventoryLogEntry
}

func newStubStockRepo() *stubStockRepo {
	return &stubStockRepo{levels: make(map[uuid.UUID]model.StockLevel)}
}

func (r *stubStockRepo) FindLevelForUpdateTx(_ *gorm.DB, productID uuid.UUID) (*model.StockLevel, error) {
	return r.FindLevel(context.Background(), productID)
}

func (r *stubStockRepo) SaveLevelTx(_ *gorm.DB, s *model.StockLevel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[s.ProductID] = *s
	return nil
}

func (r *stubStockRepo) AppendEntryTx(_ *gorm.DB, e *model.InventoryLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *stubStockRepo) FindLevel(_ context.Context, productID uuid.UUID) (*model.StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lvl, ok := r.levels[productID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &lvl, nil
}

func (r *stubStockRepo) ListLow(_ context.Context, threshold int64) ([]model.StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockLevel
	for _, l := range r.levels {
		if l.Available <= threshold {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Available < out[j].Available })
	return out, nil
}

func (r *stubStockRepo) ListEntries(_ context.Context, f repository.InventoryLogFilter) ([]model.InventoryLogEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []model.InventoryLogEntry
	for _, e := range r.entries {
		if f.ProductID != nil && e.ProductID != *f.ProductID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		matched = append(matched, e)
	}
	total := int64(len(matched))
	start := (f.Page - 1) * f.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *stubStockRepo) EntriesForProduct(_ context.Context, productID uuid.UUID) ([]model.InventoryLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.InventoryLogEntry
	for _, e := range r.entries {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubStockRepo) TouchedSince(_ context.Context, since time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, e := range r.entries {
		if e.OccurredAt.After(since) && !seen[e.ProductID] {
			seen[e.ProductID] = true
			out = append(out, e.ProductID)
		}
	}
	return out, nil
}

func (r *stubStockRepo) DB() *gorm.DB { return nil }

func (r *stubStockRepo) entryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *stubStockRepo) lastEntry() model.InventoryLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

var _ repository.StockRepository = (*stubStockRepo)(nil)

// ─────────────────────────────────────────────────────────────────────────────

type stubProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]model.Product
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: make(map[uuid.UUID]model.Product)}
}

func (r *stubProductRepo) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.products[p.ID] = *p
	return nil
}

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *stubProductRepo) FindBySKU(_ context.Context, sku string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.SKU == sku {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

var _ repository.ProductRepository = (*stubProductRepo)(nil)

// ─────────────────────────────────────────────────────────────────────────────

type stubCartRepo struct {
	mu       sync.Mutex
	carts    map[uuid.UUID]model.Cart // by user id, without items
	items    map[uuid.UUID]model.CartItem
	products *stubProductRepo
	clock    time.Time
}

func newStubCartRepo(products *stubProductRepo) *stubCartRepo {
	return &stubCartRepo{
		carts:    make(map[uuid.UUID]model.Cart),
		items:    make(map[uuid.UUID]model.CartItem),
		products: products,
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *stubCartRepo) FindOrCreateByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	r.mu.Lock()
	if _, ok := r.carts[userID]; !ok {
		r.carts[userID] = model.Cart{ID: uuid.New(), UserID: userID}
	}
	r.mu.Unlock()
	return r.FindByUser(ctx, userID)
}

func (r *stubCartRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	r.mu.Lock()
	c, ok := r.carts[userID]
	if !ok {
		r.mu.Unlock()
		return nil, gorm.ErrRecordNotFound
	}
	c.Items = r.itemsOfLocked(c.ID)
	r.mu.Unlock()

	for i := range c.Items {
		if p, err := r.products.FindByID(ctx, c.Items[i].ProductID); err == nil {
			c.Items[i].Product = p
		}
	}
	return &c, nil
}

func (r *stubCartRepo) itemsOfLocked(cartID uuid.UUID) []model.CartItem {
	var out []model.CartItem
	for _, it := range r.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *stubCartRepo) FindItemsTx(_ *gorm.DB, cartID uuid.UUID) ([]model.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.itemsOfLocked(cartID), nil
}

func (r *stubCartRepo) FindItemTx(_ *gorm.DB, cartID, itemID uuid.UUID) (*model.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok || it.CartID != cartID {
		return nil, gorm.ErrRecordNotFound
	}
	return &it, nil
}

func (r *stubCartRepo) FindItemByProductTx(_ *gorm.DB, cartID, productID uuid.UUID) (*model.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.CartID == cartID && it.ProductID == productID {
			return &it, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCartRepo) CreateItemTx(_ *gorm.DB, item *model.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = r.clock.Add(time.Second)
	item.CreatedAt = r.clock
	r.items[item.ID] = *item
	return nil
}

func (r *stubCartRepo) UpdateItemQuantityTx(_ *gorm.DB, itemID uuid.UUID, quantity int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it := r.items[itemID]
	it.Quantity = quantity
	r.items[itemID] = it
	return nil
}

func (r *stubCartRepo) DeleteItemTx(_ *gorm.DB, itemID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, itemID)
	return nil
}

func (r *stubCartRepo) DeleteItemsTx(_ *gorm.DB, cartID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, it := range r.items {
		if it.CartID == cartID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *stubCartRepo) DB() *gorm.DB { return nil }

var _ repository.CartRepository = (*stubCartRepo)(nil)

// ─────────────────────────────────────────────────────────────────────────────

type stubOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]model.Order
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: make(map[uuid.UUID]model.Order)}
}

func cloneOrder(o model.Order) model.Order {
	o.Items = append([]model.OrderItem(nil), o.Items...)
	o.History = append([]model.OrderStatusChange(nil), o.History...)
	return o
}

func (r *stubOrderRepo) CreateTx(_ *gorm.DB, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *stubOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := cloneOrder(o)
	return &c, nil
}

func (r *stubOrderRepo) FindForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Order, error) {
	return r.FindByID(context.Background(), id)
}

func (r *stubOrderRepo) UpdateStatusTx(_ *gorm.DB, id uuid.UUID, status model.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.Status = status
	r.orders[id] = o
	return nil
}

func (r *stubOrderRepo) AppendHistoryTx(_ *gorm.DB, h *model.OrderStatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[h.OrderID]
	o.History = append(o.History, *h)
	r.orders[h.OrderID] = o
	return nil
}

func (r *stubOrderRepo) List(_ context.Context, f repository.OrderFilter) ([]model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *stubOrderRepo) DB() *gorm.DB { return nil }

var _ repository.OrderRepository = (*stubOrderRepo)(nil)

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	stock    *stubStockRepo
	products *stubProductRepo
	carts    *stubCartRepo
	orders   *stubOrderRepo
	ledger   *StockLedger
	coord    *ReservationCoordinator
	cartSvc  CartService
	orderSvc OrderService
	invSvc   InventoryService
}

func newFixture() *fixture {
	f := &fixture{
		stock:    newStubStockRepo(),
		products: newStubProductRepo(),
		orders:   newStubOrderRepo(),
	}
	f.carts = newStubCartRepo(f.products)
	f.ledger = NewStockLedger(f.stock, nil)
	f.coord = NewReservationCoordinator(f.ledger, f.carts, f.products)
	f.cartSvc = NewCartService(f.carts, f.coord)
	f.orderSvc = NewOrderService(f.orders, f.carts, f.ledger, ShippingPolicy{
		FlatFee:       decimal.NewFromInt(5),
		FreeThreshold: decimal.NewFromInt(100),
	}, nil)
	f.invSvc = NewInventoryService(f.ledger, f.stock, f.products, nil, 5, 0)
	return f
}

// product creates an active product priced at price with stock units available.
func (f *fixture) product(price string, stock int64) uuid.UUID {
	p := &model.Product{
		ID:     uuid.New(),
		SKU:    "SKU-" + uuid.NewString()[:8],
		Name:   "Producto " + price,
		Price:  decimal.RequireFromString(price),
		Active: true,
	}
	_ = f.products.Create(context.Background(), p)
	if stock > 0 {
		if _, err := f.ledger.Restock(context.Background(), p.ID, stock, LedgerRef{Note: "fixture"}); err != nil {
			panic(err)
		}
	}
	return p.ID
}

func (f *fixture) level(productID uuid.UUID) model.StockLevel {
	lvl, err := f.ledger.Levels(context.Background(), productID)
	if err != nil {
		panic(err)
	}
	return *lvl
}
