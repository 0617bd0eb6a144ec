package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
)

// ErrInvalidItem is returned by the memory store when an order item row
// fails its row-level checks during insert.
var ErrInvalidItem = errors.New("invalid order item")

// MemoryStore is the in-memory store used in tests and local runs. It
// implements the same read/write contract as the Postgres store, including
// transactional rollback.
type MemoryStore struct {
	mu          sync.RWMutex
	nextProdID  int64
	nextOrderID int64

	productsByID   map[int64]domain.Product
	ordersByID     map[int64]domain.Order
	itemsByOrderID map[int64][]domain.OrderItem
	orderByIntent  map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextProdID:     1,
		nextOrderID:    1,
		productsByID:   make(map[int64]domain.Product),
		ordersByID:     make(map[int64]domain.Order),
		itemsByOrderID: make(map[int64][]domain.OrderItem),
		orderByIntent:  make(map[string]int64),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// snapshot captures store state for transactional rollback. Map values are
// copied shallowly; stored slices are never mutated in place, only replaced.
type memSnapshot struct {
	nextProdID     int64
	nextOrderID    int64
	productsByID   map[int64]domain.Product
	ordersByID     map[int64]domain.Order
	itemsByOrderID map[int64][]domain.OrderItem
	orderByIntent  map[string]int64
}

func (m *MemoryStore) snapshot() memSnapshot {
	s := memSnapshot{
		nextProdID:     m.nextProdID,
		nextOrderID:    m.nextOrderID,
		productsByID:   make(map[int64]domain.Product, len(m.productsByID)),
		ordersByID:     make(map[int64]domain.Order, len(m.ordersByID)),
		itemsByOrderID: make(map[int64][]domain.OrderItem, len(m.itemsByOrderID)),
		orderByIntent:  make(map[string]int64, len(m.orderByIntent)),
	}
	for k, v := range m.productsByID {
		s.productsByID[k] = v
	}
	for k, v := range m.ordersByID {
		s.ordersByID[k] = v
	}
	for k, v := range m.itemsByOrderID {
		s.itemsByOrderID[k] = v
	}
	for k, v := range m.orderByIntent {
		s.orderByIntent[k] = v
	}
	return s
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.nextProdID = s.nextProdID
	m.nextOrderID = s.nextOrderID
	m.productsByID = s.productsByID
	m.ordersByID = s.ordersByID
	m.itemsByOrderID = s.itemsByOrderID
	m.orderByIntent = s.orderByIntent
}

// Ensure interfaces
var _ ProductRepository = (*MemoryStore)(nil)

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p.ID = m.nextProdID
	m.nextProdID++
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := p
	return &cp, nil
}

func (m *MemoryStore) GetActiveByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		p, ok := m.productsByID[id]
		if !ok || !p.IsActive {
			continue
		}
		out[id] = p
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[p.ID]; !ok {
		return ErrNotFound
	}
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[id]; !ok {
		return ErrNotFound
	}
	delete(m.productsByID, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range m.productsByID {
		if !containsIgnoreCase(p.Name, f.NameSubstring) {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// DecrementStock is the compare-and-decrement guarding against oversell:
// the check and the write happen under one lock.
func (m *MemoryStore) DecrementStock(ctx context.Context, id, qty int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Stock < qty {
		return ErrStockConflict
	}
	p.Stock -= qty
	m.productsByID[id] = p
	return nil
}

func (m *MemoryStore) RestoreStock(ctx context.Context, id, qty int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return ErrNotFound
	}
	p.Stock += qty
	m.productsByID[id] = p
	return nil
}

// MemoryOrders implements OrderRepository on top of MemoryStore.
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

// Create inserts the header, then item rows one at a time the way the SQL
// store does. A row-level failure leaves the header behind inside the
// current transaction; WithTransaction rolls the whole attempt back.
func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	header := *o
	header.ID = mo.store.nextOrderID
	mo.store.nextOrderID++
	header.CreatedAt = time.Now().UTC()
	header.UpdatedAt = header.CreatedAt
	header.Items = nil
	mo.store.ordersByID[header.ID] = header

	items := make([]domain.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		if it.Quantity < 1 || it.UnitPrice < 0 || it.ProductName == "" {
			return ErrInvalidItem
		}
		items = append(items, it)
		mo.store.itemsByOrderID[header.ID] = items
	}

	o.ID = header.ID
	o.CreatedAt = header.CreatedAt
	o.UpdatedAt = header.UpdatedAt
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	return mo.get(id)
}

func (mo *MemoryOrders) get(id int64) (*domain.Order, error) {
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	cp.Items = append([]domain.OrderItem(nil), mo.store.itemsByOrderID[id]...)
	return &cp, nil
}

func (mo *MemoryOrders) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	id, ok := mo.store.orderByIntent[intentID]
	if !ok {
		return nil, ErrNotFound
	}
	return mo.get(id)
}

func (mo *MemoryOrders) SetPaymentIntent(ctx context.Context, orderID int64, intentID string) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.ordersByID[orderID]
	if !ok {
		return ErrNotFound
	}
	if existing, taken := mo.store.orderByIntent[intentID]; taken && existing != orderID {
		return ErrDuplicateRef
	}
	if o.PaymentIntentID != "" && o.PaymentIntentID != intentID {
		return ErrDuplicateRef
	}
	o.PaymentIntentID = intentID
	o.UpdatedAt = time.Now().UTC()
	mo.store.ordersByID[orderID] = o
	mo.store.orderByIntent[intentID] = orderID
	return nil
}

// Update persists status, payment fields and timestamps; item rows are
// immutable after creation and are left untouched.
func (mo *MemoryOrders) Update(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.ordersByID[o.ID]; !ok {
		return ErrNotFound
	}
	o.UpdatedAt = time.Now().UTC()
	header := *o
	header.Items = nil
	mo.store.ordersByID[o.ID] = header
	if o.PaymentIntentID != "" {
		mo.store.orderByIntent[o.PaymentIntentID] = o.ID
	}
	return nil
}

// MemoryTx emulates a transaction with the store's write lock plus a
// snapshot taken before fn runs; an error restores the snapshot.
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

var _ TxManager = (*MemoryTx)(nil)

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	snap := tx.store.snapshot()
	ctx = context.WithValue(ctx, txKey{}, true)
	if err := fn(ctx); err != nil {
		tx.store.restore(snap)
		return err
	}
	return nil
}
