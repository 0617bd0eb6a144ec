package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrStockConflict is returned by a conditional decrement that would take
// stock below zero. The affected row count decides, not a prior read, so
// concurrent checkouts cannot oversell.
var ErrStockConflict = errors.New("stock conflict")

// ErrDuplicateRef is returned when a payment reference unique constraint
// is violated: the intent id is already attached to an order, or the order
// already carries a different intent.
var ErrDuplicateRef = errors.New("duplicate payment reference")

// ProductFilter narrows product listings.
type ProductFilter struct {
	NameSubstring string
	MinPrice      *int64
	MaxPrice      *int64
	ActiveOnly    bool
}

// ProductRepository is the catalog read/write contract. The checkout core
// uses GetActiveByIDs and DecrementStock; the rest serves catalog CRUD.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	// GetActiveByIDs resolves ids to active products; missing or inactive
	// ids are simply absent from the result.
	GetActiveByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	// DecrementStock subtracts qty only when stock >= qty, returning
	// ErrStockConflict otherwise.
	DecrementStock(ctx context.Context, id, qty int64) error
	RestoreStock(ctx context.Context, id, qty int64) error
}

// OrderRepository persists orders. Create writes the header and all item
// rows as one unit and assigns the id.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// GetByPaymentIntentID looks an order up by its external reference;
	// webhook correlation must never trust an order id from the event body.
	GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error)
	// SetPaymentIntent attaches the external reference, at most once per
	// order and unique across orders.
	SetPaymentIntent(ctx context.Context, orderID int64, intentID string) error
	Update(ctx context.Context, o *domain.Order) error
}

// TxManager runs fn atomically: every repository write inside fn is applied
// on success and rolled back on error.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
