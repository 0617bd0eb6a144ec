package domain

import "time"

// Product is owned by the catalog; the checkout core only reads it.
// Prices are integer minor units (cents); SalePrice is honored only
// when set and strictly below Price.
type Product struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	SalePrice   *int64 `json:"sale_price,omitempty"`
	Stock       int64  `json:"stock"`
	IsActive    bool   `json:"is_active"`
}

// EffectivePrice returns the sale price when it undercuts the list price.
func (p Product) EffectivePrice() int64 {
	if p.SalePrice != nil && *p.SalePrice < p.Price {
		return *p.SalePrice
	}
	return p.Price
}

// OrderStatus is the fulfillment axis of an order.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusPendingManual OrderStatus = "pending_manual_confirmation"
	OrderStatusConfirmed     OrderStatus = "confirmed"
	OrderStatusDispatched    OrderStatus = "dispatched"
	OrderStatusDelivered     OrderStatus = "delivered"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:       0,
	OrderStatusPendingManual: 0,
	OrderStatusConfirmed:     1,
	OrderStatusDispatched:    2,
	OrderStatusDelivered:     3,
}

// ParseOrderStatus validates an operator-supplied status value.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusPendingManual, OrderStatusConfirmed,
		OrderStatusDispatched, OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(s), true
	}
	return "", false
}

// CanTransitionTo enforces pending* -> confirmed -> dispatched -> delivered,
// with cancellation possible from any pre-delivered state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusCancelled {
		return s != OrderStatusDelivered && s != OrderStatusCancelled
	}
	cur, ok := orderStatusRank[s]
	if !ok {
		// cancelled is terminal
		return false
	}
	nxt, ok := orderStatusRank[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

// PaymentStatus is tracked separately from fulfillment status.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return PaymentStatus(s), true
	}
	return "", false
}

// CanTransitionTo: paid is terminal, everything else may settle or fail.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == PaymentStatusPaid {
		return false
	}
	return next == PaymentStatusPaid || next == PaymentStatusFailed
}

// PaymentMethod selects the fulfillment channel.
type PaymentMethod string

const (
	PaymentMethodStripe   PaymentMethod = "stripe"
	PaymentMethodWhatsApp PaymentMethod = "whatsapp"
)

// GiftWrap is the surcharge selector; unknown values carry no fee.
type GiftWrap string

const (
	GiftWrapNone     GiftWrap = ""
	GiftWrapStandard GiftWrap = "standard"
	GiftWrapPremium  GiftWrap = "premium"
)

// NormalizeGiftWrap maps unknown or omitted selections to none.
func NormalizeGiftWrap(s string) GiftWrap {
	switch GiftWrap(s) {
	case GiftWrapStandard, GiftWrapPremium:
		return GiftWrap(s)
	}
	return GiftWrapNone
}

// OrderItem stores an immutable snapshot of name and unit price taken at
// order time; later catalog changes never touch it.
type OrderItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
}

// Order is created together with its items in one transaction. After
// creation only Status, PaymentStatus and the payment references change.
type Order struct {
	ID              int64         `json:"id"`
	CustomerName    string        `json:"customer_name"`
	Phone           string        `json:"phone"`
	Address         string        `json:"address"`
	GiftWrap        GiftWrap      `json:"gift_wrap,omitempty"`
	GiftMessage     string        `json:"gift_message,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	Items           []OrderItem   `json:"items"`
	Subtotal        int64         `json:"subtotal"`
	ShippingFee     int64         `json:"shipping_fee"`
	GiftWrapFee     int64         `json:"gift_wrap_fee"`
	Discount        int64         `json:"discount"`
	Total           int64         `json:"total"`
	PaymentIntentID string        `json:"payment_intent_id,omitempty"`
	PaymentRef      string        `json:"payment_ref,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
