package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
)

// Handle is the channel-specific result handed back to the client after an
// order is persisted. Exactly one of ClientSecret or MessageURL is set.
type Handle struct {
	ClientSecret string
	MessageURL   string
	Message      string
	// ExternalRef is the processor's intent id, stored on the order for
	// webhook correlation. Empty for the manual channel.
	ExternalRef string
}

// Channel is the single fulfillment capability both strategies implement,
// keeping the pricing/validation/writing pipeline channel-agnostic.
type Channel interface {
	InitialStatus() domain.OrderStatus
	Initiate(ctx context.Context, o *domain.Order) (Handle, error)
}

// PaymentProvider creates an external charge intent. The Stripe-backed
// implementation lives in internal/payment; tests use a fake.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, amount int64, currency string, orderID int64) (intentID, clientSecret string, err error)
}

// StripeChannel initiates an asynchronous card payment. The call is bounded
// by a timeout and runs inside the order transaction, so a failed or timed
// out initiate rolls the whole checkout back.
type StripeChannel struct {
	provider PaymentProvider
	currency string
	timeout  time.Duration
}

func NewStripeChannel(provider PaymentProvider, currency string, timeout time.Duration) *StripeChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeChannel{provider: provider, currency: currency, timeout: timeout}
}

func (c *StripeChannel) InitialStatus() domain.OrderStatus { return domain.OrderStatusPending }

func (c *StripeChannel) Initiate(ctx context.Context, o *domain.Order) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	intentID, secret, err := c.provider.CreateIntent(ctx, o.Total, c.currency, o.ID)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", ErrUpstreamChannel, err)
	}
	return Handle{ClientSecret: secret, ExternalRef: intentID}, nil
}

// WhatsAppChannel renders a merchant-facing order message and a wa.me deep
// link; no external resource is created and confirmation happens manually.
type WhatsAppChannel struct {
	recipient      string // digits only, international format
	storeName      string
	currencySymbol string
}

func NewWhatsAppChannel(recipient, storeName, currencySymbol string) *WhatsAppChannel {
	return &WhatsAppChannel{recipient: recipient, storeName: storeName, currencySymbol: currencySymbol}
}

func (c *WhatsAppChannel) InitialStatus() domain.OrderStatus { return domain.OrderStatusPendingManual }

func (c *WhatsAppChannel) Initiate(ctx context.Context, o *domain.Order) (Handle, error) {
	msg := c.renderMessage(o)
	link := url.URL{
		Scheme:   "https",
		Host:     "wa.me",
		Path:     "/" + c.recipient,
		RawQuery: url.Values{"text": {msg}}.Encode(),
	}
	return Handle{Message: msg, MessageURL: link.String()}, nil
}

func (c *WhatsAppChannel) renderMessage(o *domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - Order #%d\n", c.storeName, o.ID)
	fmt.Fprintf(&b, "Placed: %s\n\n", o.CreatedAt.Format("02 Jan 2006 15:04"))
	for _, it := range o.Items {
		fmt.Fprintf(&b, "%dx %s - %s\n", it.Quantity, it.ProductName, c.amount(it.LineTotal))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", c.amount(o.Subtotal))
	if o.ShippingFee == 0 {
		b.WriteString("Shipping: FREE\n")
	} else {
		fmt.Fprintf(&b, "Shipping: %s\n", c.amount(o.ShippingFee))
	}
	if o.GiftWrapFee != 0 {
		fmt.Fprintf(&b, "Gift wrap (%s): %s\n", o.GiftWrap, c.amount(o.GiftWrapFee))
	}
	if o.Discount != 0 {
		fmt.Fprintf(&b, "Discount: -%s\n", c.amount(o.Discount))
	}
	fmt.Fprintf(&b, "Total: %s\n", c.amount(o.Total))
	if o.GiftMessage != "" {
		fmt.Fprintf(&b, "\nGift message: %s\n", o.GiftMessage)
	}
	fmt.Fprintf(&b, "\nCustomer: %s, %s\nDeliver to: %s\n", o.CustomerName, o.Phone, o.Address)
	return b.String()
}

// amount renders minor units as a decimal string, e.g. 5250 -> "$52.50".
func (c *WhatsAppChannel) amount(minor int64) string {
	neg := ""
	if minor < 0 {
		neg = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s%d.%02d", neg, c.currencySymbol, minor/100, minor%100)
}
