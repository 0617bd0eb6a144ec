package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/repository"
)

type confirmEnv struct {
	env     *checkoutEnv
	confirm *ConfirmationService
}

func newConfirmEnv(t *testing.T) *confirmEnv {
	t.Helper()
	env := newCheckoutEnv(t, defaultRules())
	tx := repository.NewMemoryTx(env.store)
	return &confirmEnv{
		env:     env,
		confirm: NewConfirmationService(env.orders, tx, nil, nil),
	}
}

// placeStripeOrder runs a checkout through the stripe channel and returns
// the stored intent id.
func (ce *confirmEnv) placeStripeOrder(t *testing.T) (*domain.Order, string) {
	t.Helper()
	id := ce.env.addProduct(t, "Midnight Oud", 4500, nil, 5, true)
	req := baseRequest(CartLine{ProductID: id, Quantity: 1})
	req.PaymentMethod = domain.PaymentMethodStripe
	res, err := ce.env.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Order.PaymentIntentID)
	return res.Order, res.Order.PaymentIntentID
}

func TestHandlePaymentSucceeded_AppliesOnce(t *testing.T) {
	ce := newConfirmEnv(t)
	order, intentID := ce.placeStripeOrder(t)

	ev := WebhookEvent{Type: EventPaymentSucceeded, IntentID: intentID, ChargeID: "ch_1"}
	got, err := ce.confirm.HandlePaymentSucceeded(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
	assert.Equal(t, "ch_1", got.PaymentRef)

	// replaying the identical event is a no-op, not an error
	again, err := ce.confirm.HandlePaymentSucceeded(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, domain.PaymentStatusPaid, again.PaymentStatus)
	assert.Equal(t, "ch_1", again.PaymentRef, "no duplicate settlement record")

	stored, err := ce.env.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, stored.PaymentStatus)
}

func TestHandlePaymentSucceeded_UnmatchedIntentIsIgnored(t *testing.T) {
	ce := newConfirmEnv(t)
	got, err := ce.confirm.HandlePaymentSucceeded(context.Background(), WebhookEvent{
		Type: EventPaymentSucceeded, IntentID: "pi_forged", ChargeID: "ch_x",
	})
	require.NoError(t, err, "unmatched intents are acknowledged, not failed")
	assert.Nil(t, got)
}

func TestUpdateStatus_RejectsUnknownValues(t *testing.T) {
	ce := newConfirmEnv(t)
	order, _ := ce.placeStripeOrder(t)

	bad := "shipped_by_pigeon"
	_, err := ce.confirm.UpdateStatus(context.Background(), order.ID, StatusUpdate{Status: &bad})
	require.ErrorIs(t, err, ErrInvalidStatusValue)

	badPay := "maybe"
	_, err = ce.confirm.UpdateStatus(context.Background(), order.ID, StatusUpdate{PaymentStatus: &badPay})
	require.ErrorIs(t, err, ErrInvalidStatusValue)

	_, err = ce.confirm.UpdateStatus(context.Background(), order.ID, StatusUpdate{})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateStatus_EnforcesTransitions(t *testing.T) {
	ce := newConfirmEnv(t)
	order, _ := ce.placeStripeOrder(t)

	confirmed := string(domain.OrderStatusConfirmed)
	dispatched := string(domain.OrderStatusDispatched)
	delivered := string(domain.OrderStatusDelivered)
	cancelled := string(domain.OrderStatusCancelled)

	// skipping a state is rejected
	_, err := ce.confirm.UpdateStatus(context.Background(), order.ID, StatusUpdate{Status: &delivered})
	require.ErrorIs(t, err, ErrInvalidState)

	for _, next := range []string{confirmed, dispatched, delivered} {
		_, err = ce.confirm.UpdateStatus(context.Background(), order.ID, StatusUpdate{Status: &next})
		require.NoError(t, err, "transition to %s", next)
	}

	// delivered orders cannot be cancelled
	_, err = ce.confirm.UpdateStatus(context.Background(), order.ID, StatusUpdate{Status: &cancelled})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateStatus_ManualConfirmation(t *testing.T) {
	ce := newConfirmEnv(t)
	id := ce.env.addProduct(t, "Rose Elixir", 3000, nil, 5, true)
	res, err := ce.env.svc.Checkout(context.Background(), baseRequest(CartLine{ProductID: id, Quantity: 1}))
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPendingManual, res.Order.Status)

	confirmed := string(domain.OrderStatusConfirmed)
	paid := string(domain.PaymentStatusPaid)
	got, err := ce.confirm.UpdateStatus(context.Background(), res.Order.ID, StatusUpdate{Status: &confirmed, PaymentStatus: &paid})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)

	// re-applying the same values is a no-op
	_, err = ce.confirm.UpdateStatus(context.Background(), res.Order.ID, StatusUpdate{Status: &confirmed, PaymentStatus: &paid})
	require.NoError(t, err)
}
