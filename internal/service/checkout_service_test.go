package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/repository"
)

// fakeProvider stands in for the Stripe API.
type fakeProvider struct {
	mu     sync.Mutex
	calls  int
	err    error
	intent string
}

func (f *fakeProvider) CreateIntent(ctx context.Context, amount int64, currency string, orderID int64) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", "", f.err
	}
	id := f.intent
	if id == "" {
		id = fmt.Sprintf("pi_%d", f.calls)
	}
	return id, id + "_secret", nil
}

// spyProducts counts catalog lookups so tests can assert a lookup never
// happened.
type spyProducts struct {
	repository.ProductRepository
	lookups int32
}

func (s *spyProducts) GetActiveByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	atomic.AddInt32(&s.lookups, 1)
	return s.ProductRepository.GetActiveByIDs(ctx, ids)
}

type checkoutEnv struct {
	store    *repository.MemoryStore
	products *spyProducts
	orders   *repository.MemoryOrders
	svc      *CheckoutService
	provider *fakeProvider
}

func defaultRules() PricingRules {
	return PricingRules{
		FreeShippingThreshold: 5000,
		ShippingFee:           200,
		GiftWrapFees: map[domain.GiftWrap]int64{
			domain.GiftWrapStandard: 250,
			domain.GiftWrapPremium:  500,
		},
	}
}

func newCheckoutEnv(t *testing.T, rules PricingRules) *checkoutEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	products := &spyProducts{ProductRepository: store}
	orders := repository.NewMemoryOrders(store)
	tx := repository.NewMemoryTx(store)
	provider := &fakeProvider{}
	channels := map[domain.PaymentMethod]Channel{
		domain.PaymentMethodStripe:   NewStripeChannel(provider, "usd", 0),
		domain.PaymentMethodWhatsApp: NewWhatsAppChannel("923001234567", "Elegant La Vie", "$"),
	}
	svc := NewCheckoutService(products, orders, tx, rules, channels, nil, nil)
	return &checkoutEnv{store: store, products: products, orders: orders, svc: svc, provider: provider}
}

func (e *checkoutEnv) addProduct(t *testing.T, name string, price int64, sale *int64, stock int64, active bool) int64 {
	t.Helper()
	p := domain.Product{Name: name, SKU: name, Price: price, SalePrice: sale, Stock: stock, IsActive: active}
	require.NoError(t, e.store.Create(context.Background(), &p))
	return p.ID
}

func baseRequest(items ...CartLine) CheckoutRequest {
	return CheckoutRequest{
		CustomerName:  "Ayesha Khan",
		Phone:         "+92 300 1234567",
		Address:       "12-B Gulberg III, Lahore",
		PaymentMethod: domain.PaymentMethodWhatsApp,
		Items:         items,
	}
}

func TestCheckout_EmptyCart_NoLookup(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	_, err := env.svc.Checkout(context.Background(), baseRequest())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, atomic.LoadInt32(&env.products.lookups), "empty cart must fail before any lookup")
}

func TestCheckout_MissingCustomerFields(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	id := env.addProduct(t, "Midnight Oud", 4500, nil, 5, true)
	req := baseRequest(CartLine{ProductID: id, Quantity: 1})
	req.Address = "   "
	_, err := env.svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCheckout_UnknownPaymentMethod(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	id := env.addProduct(t, "Midnight Oud", 4500, nil, 5, true)
	req := baseRequest(CartLine{ProductID: id, Quantity: 1})
	req.PaymentMethod = "cheque"
	_, err := env.svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestCheckout_ProductUnavailable(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	inactive := env.addProduct(t, "Archived", 1000, nil, 9, false)

	for _, id := range []int64{inactive, 999} {
		_, err := env.svc.Checkout(context.Background(), baseRequest(CartLine{ProductID: id, Quantity: 1}))
		require.ErrorIs(t, err, ErrProductUnavailable)
	}
	// nothing written
	_, err := env.orders.GetByID(context.Background(), 1)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCheckout_InsufficientStock_NoOrderRow(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	id := env.addProduct(t, "Rose Elixir", 3000, nil, 2, true)

	_, err := env.svc.Checkout(context.Background(), baseRequest(CartLine{ProductID: id, Quantity: 3}))
	require.ErrorIs(t, err, ErrInsufficientStock)

	_, err = env.orders.GetByID(context.Background(), 1)
	require.ErrorIs(t, err, repository.ErrNotFound, "no order row may exist after a stock rejection")
	p, _ := env.store.GetByID(context.Background(), id)
	assert.EqualValues(t, 2, p.Stock, "stock untouched")
}

func TestCheckout_QuantityCoercion(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	id := env.addProduct(t, "Citrus Veil", 1500, nil, 10, true)

	res, err := env.svc.Checkout(context.Background(), baseRequest(CartLine{ProductID: id, Quantity: -4}))
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)
	assert.EqualValues(t, 1, res.Order.Items[0].Quantity, "invalid quantity coerces to 1, never 0")
}

func TestCheckout_EffectivePriceSnapshot(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	sale := int64(3600)
	id := env.addProduct(t, "Midnight Oud", 4500, &sale, 5, true)

	res, err := env.svc.Checkout(context.Background(), baseRequest(CartLine{ProductID: id, Quantity: 2}))
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)
	assert.EqualValues(t, 3600, res.Order.Items[0].UnitPrice, "sale price wins when lower")
	assert.EqualValues(t, 7200, res.Order.Items[0].LineTotal)

	// a later catalog change never rewrites the snapshot
	p, _ := env.store.GetByID(context.Background(), id)
	p.Price = 9900
	p.SalePrice = nil
	require.NoError(t, env.store.Update(context.Background(), p))

	got, err := env.svc.GetOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3600, got.Items[0].UnitPrice)
	assert.EqualValues(t, 7200, got.Items[0].LineTotal)
}

func TestCheckout_TotalsInvariant_ManyLines(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	lines := make([]CartLine, 0, 100)
	for i := 0; i < 100; i++ {
		id := env.addProduct(t, fmt.Sprintf("P%03d", i), int64(101+7*i), nil, 50, true)
		lines = append(lines, CartLine{ProductID: id, Quantity: int64(1 + i%3)})
	}
	req := baseRequest(lines...)
	req.GiftWrap = domain.GiftWrapPremium

	res, err := env.svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	var subtotal int64
	for _, it := range res.Order.Items {
		assert.Equal(t, it.UnitPrice*it.Quantity, it.LineTotal)
		subtotal += it.LineTotal
	}
	assert.Equal(t, subtotal, res.Totals.Subtotal)
	assert.Equal(t, res.Totals.Subtotal+res.Totals.ShippingFee+res.Totals.GiftWrapFee-res.Totals.Discount, res.Totals.Total)
	assert.Equal(t, res.Totals.Total, res.Order.Total)
}

func TestCheckout_StockDecrementedOnSuccess(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	id := env.addProduct(t, "Amber Noir", 2000, nil, 7, true)

	_, err := env.svc.Checkout(context.Background(), baseRequest(CartLine{ProductID: id, Quantity: 3}))
	require.NoError(t, err)
	p, _ := env.store.GetByID(context.Background(), id)
	assert.EqualValues(t, 4, p.Stock)
}

func TestCheckout_UpstreamFailure_RollsBackEverything(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	env.provider.err = errors.New("processor down")
	id := env.addProduct(t, "Rose Elixir", 3000, nil, 5, true)

	req := baseRequest(CartLine{ProductID: id, Quantity: 2})
	req.PaymentMethod = domain.PaymentMethodStripe
	_, err := env.svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, ErrUpstreamChannel)

	_, err = env.orders.GetByID(context.Background(), 1)
	require.ErrorIs(t, err, repository.ErrNotFound, "a failed initiate must leave no order")
	p, _ := env.store.GetByID(context.Background(), id)
	assert.EqualValues(t, 5, p.Stock, "stock restored by rollback")
}

func TestCheckout_DuplicateIntentRef(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	env.provider.intent = "pi_same"
	id := env.addProduct(t, "Citrus Veil", 1500, nil, 10, true)

	req := baseRequest(CartLine{ProductID: id, Quantity: 1})
	req.PaymentMethod = domain.PaymentMethodStripe
	_, err := env.svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	_, err = env.svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, ErrDuplicateExternalRef)
	// the second attempt rolled back fully
	p, _ := env.store.GetByID(context.Background(), id)
	assert.EqualValues(t, 9, p.Stock)
}

func TestCheckout_StripeChannelHandle(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	id := env.addProduct(t, "Midnight Oud", 4500, nil, 5, true)

	req := baseRequest(CartLine{ProductID: id, Quantity: 1})
	req.PaymentMethod = domain.PaymentMethodStripe
	res, err := env.svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, res.Order.Status)
	assert.Equal(t, domain.PaymentStatusPending, res.Order.PaymentStatus)
	assert.NotEmpty(t, res.Handle.ClientSecret)
	assert.NotEmpty(t, res.Order.PaymentIntentID)
	assert.Empty(t, res.Handle.MessageURL)

	stored, err := env.orders.GetByPaymentIntentID(context.Background(), res.Order.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, stored.ID)
}

func TestCheckout_ConcurrentOversell(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	const qty, workers = 3, 8
	id := env.addProduct(t, "Limited Attar", 8000, nil, qty, true)

	var successes, stockFails int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Checkout(context.Background(), baseRequest(CartLine{ProductID: id, Quantity: qty}))
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, ErrInsufficientStock):
				atomic.AddInt32(&stockFails, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes, "exactly one checkout may win the stock")
	assert.EqualValues(t, workers-1, stockFails)
	p, _ := env.store.GetByID(context.Background(), id)
	assert.EqualValues(t, 0, p.Stock)
}

func TestCancelOrder_RestocksAndGuardsState(t *testing.T) {
	env := newCheckoutEnv(t, defaultRules())
	id := env.addProduct(t, "Amber Noir", 2000, nil, 5, true)

	res, err := env.svc.Checkout(context.Background(), baseRequest(CartLine{ProductID: id, Quantity: 2}))
	require.NoError(t, err)

	cancelled, err := env.svc.CancelOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	p, _ := env.store.GetByID(context.Background(), id)
	assert.EqualValues(t, 5, p.Stock, "stock restored")

	_, err = env.svc.CancelOrder(context.Background(), res.Order.ID)
	require.ErrorIs(t, err, ErrInvalidState, "second cancel must conflict")
}
