// Package payment holds the Stripe-backed implementations of the checkout
// core's payment provider and webhook verifier contracts.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/service"
)

// StripeProvider creates PaymentIntents for checkout totals. Amounts are
// already in the processor's minor units, so they pass through untouched.
type StripeProvider struct {
	api *client.API
}

var _ service.PaymentProvider = (*StripeProvider)(nil)

func NewStripeProvider(apiKey string) *StripeProvider {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeProvider{api: api}
}

func (p *StripeProvider) CreateIntent(ctx context.Context, amount int64, currency string, orderID int64) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	// tag the intent so the webhook event can be correlated back
	params.AddMetadata("order_id", strconv.FormatInt(orderID, 10))

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ID, pi.ClientSecret, nil
}

// StripeVerifier validates the Stripe-Signature header against the shared
// endpoint secret and extracts the fields the confirmation handler needs.
type StripeVerifier struct {
	secret string
}

var _ service.WebhookVerifier = (*StripeVerifier)(nil)

func NewStripeVerifier(endpointSecret string) *StripeVerifier {
	return &StripeVerifier{secret: endpointSecret}
}

func (v *StripeVerifier) Verify(payload []byte, signature string) (service.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, v.secret)
	if err != nil {
		return service.WebhookEvent{}, fmt.Errorf("%w: %v", service.ErrSignatureInvalid, err)
	}
	out := service.WebhookEvent{Type: string(event.Type)}
	if out.Type != service.EventPaymentSucceeded {
		return out, nil
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return service.WebhookEvent{}, fmt.Errorf("%w: malformed payment intent payload", service.ErrSignatureInvalid)
	}
	out.IntentID = intent.ID
	if intent.LatestCharge != nil {
		out.ChargeID = intent.LatestCharge.ID
	}
	return out, nil
}
