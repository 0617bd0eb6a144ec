package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
)

const pgUniqueViolation = "23505"

// pgTxKey carries the open transaction through the context so repositories
// transparently join it, mirroring the memory store's tx marker.
type pgTxKey struct{}

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements ProductRepository against Postgres via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore { return &PostgresStore{pool: pool} }

var _ ProductRepository = (*PostgresStore)(nil)

func (s *PostgresStore) q(ctx context.Context) pgQuerier {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

func (s *PostgresStore) Create(ctx context.Context, p *domain.Product) error {
	row := s.q(ctx).QueryRow(ctx,
		`INSERT INTO products (name, sku, description, price, sale_price, stock, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.Name, p.SKU, p.Description, p.Price, p.SalePrice, p.Stock, p.IsActive)
	return row.Scan(&p.ID)
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	row := s.q(ctx).QueryRow(ctx,
		`SELECT id, name, sku, description, price, sale_price, stock, is_active
		 FROM products WHERE id = $1`, id)
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.SalePrice, &p.Stock, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetActiveByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT id, name, sku, description, price, sale_price, stock, is_active
		 FROM products WHERE id = ANY($1) AND is_active`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.SalePrice, &p.Stock, &p.IsActive); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, p *domain.Product) error {
	tag, err := s.q(ctx).Exec(ctx,
		`UPDATE products SET name = $2, sku = $3, description = $4, price = $5,
		 sale_price = $6, stock = $7, is_active = $8 WHERE id = $1`,
		p.ID, p.Name, p.SKU, p.Description, p.Price, p.SalePrice, p.Stock, p.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	query := `SELECT id, name, sku, description, price, sale_price, stock, is_active
		 FROM products WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		 AND ($2::bigint IS NULL OR price >= $2)
		 AND ($3::bigint IS NULL OR price <= $3)
		 AND (NOT $4 OR is_active)
		 ORDER BY id`
	rows, err := s.q(ctx).Query(ctx, query, f.NameSubstring, f.MinPrice, f.MaxPrice, f.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.SalePrice, &p.Stock, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DecrementStock relies on the affected-row count of a conditional update,
// so two concurrent checkouts can never both take the last unit.
func (s *PostgresStore) DecrementStock(ctx context.Context, id, qty int64) error {
	tag, err := s.q(ctx).Exec(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStockConflict
	}
	return nil
}

func (s *PostgresStore) RestoreStock(ctx context.Context, id, qty int64) error {
	tag, err := s.q(ctx).Exec(ctx,
		`UPDATE products SET stock = stock + $2 WHERE id = $1`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresOrders implements OrderRepository.
type PostgresOrders struct {
	store *PostgresStore
}

func NewPostgresOrders(store *PostgresStore) *PostgresOrders { return &PostgresOrders{store: store} }

var _ OrderRepository = (*PostgresOrders)(nil)

const orderColumns = `id, customer_name, phone, address, gift_wrap, gift_message, notes,
	payment_method, status, payment_status, subtotal, shipping_fee, gift_wrap_fee,
	discount, total, COALESCE(payment_intent_id, ''), COALESCE(payment_ref, ''),
	created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.CustomerName, &o.Phone, &o.Address, &o.GiftWrap, &o.GiftMessage,
		&o.Notes, &o.PaymentMethod, &o.Status, &o.PaymentStatus, &o.Subtotal, &o.ShippingFee,
		&o.GiftWrapFee, &o.Discount, &o.Total, &o.PaymentIntentID, &o.PaymentRef,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (po *PostgresOrders) Create(ctx context.Context, o *domain.Order) error {
	q := po.store.q(ctx)
	row := q.QueryRow(ctx,
		`INSERT INTO orders (customer_name, phone, address, gift_wrap, gift_message, notes,
			payment_method, status, payment_status, subtotal, shipping_fee, gift_wrap_fee,
			discount, total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id, created_at, updated_at`,
		o.CustomerName, o.Phone, o.Address, o.GiftWrap, o.GiftMessage, o.Notes,
		o.PaymentMethod, o.Status, o.PaymentStatus, o.Subtotal, o.ShippingFee,
		o.GiftWrapFee, o.Discount, o.Total)
	if err := row.Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := q.Exec(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.LineTotal); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (po *PostgresOrders) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := po.store.q(ctx).Query(ctx,
		`SELECT product_id, product_name, quantity, unit_price, line_total
		 FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (po *PostgresOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(po.store.q(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := po.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (po *PostgresOrders) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	o, err := scanOrder(po.store.q(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, intentID))
	if err != nil {
		return nil, err
	}
	if err := po.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (po *PostgresOrders) SetPaymentIntent(ctx context.Context, orderID int64, intentID string) error {
	tag, err := po.store.q(ctx).Exec(ctx,
		`UPDATE orders SET payment_intent_id = $2, updated_at = now()
		 WHERE id = $1 AND (payment_intent_id IS NULL OR payment_intent_id = $2)`,
		orderID, intentID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateRef
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		// row exists with a different intent, or no such order
		if _, err := po.GetByID(ctx, orderID); err != nil {
			return err
		}
		return ErrDuplicateRef
	}
	return nil
}

func (po *PostgresOrders) Update(ctx context.Context, o *domain.Order) error {
	tag, err := po.store.q(ctx).Exec(ctx,
		`UPDATE orders SET status = $2, payment_status = $3, payment_ref = NULLIF($4, ''),
		 notes = $5, updated_at = now() WHERE id = $1`,
		o.ID, o.Status, o.PaymentStatus, o.PaymentRef, o.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresTx wraps pgxpool transactions behind the TxManager contract.
type PostgresTx struct {
	pool *pgxpool.Pool
}

func NewPostgresTx(pool *pgxpool.Pool) *PostgresTx { return &PostgresTx{pool: pool} }

var _ TxManager = (*PostgresTx)(nil)

func (t *PostgresTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
