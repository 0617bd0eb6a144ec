package service

import "github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"

// DiscountFunc is the coupon extension point. It receives the validated
// items and subtotal and returns a discount in minor units. Nil means no
// discount.
type DiscountFunc func(items []domain.OrderItem, subtotal int64) int64

// PricingRules holds the configured totals policy. All amounts are integer
// minor units; no float ever touches money.
type PricingRules struct {
	FreeShippingThreshold int64
	ShippingFee           int64
	GiftWrapFees          map[domain.GiftWrap]int64
	Discount              DiscountFunc
}

// Totals is the frozen monetary breakdown recorded on the order.
type Totals struct {
	Subtotal     int64
	ShippingFee  int64
	GiftWrapFee  int64
	Discount     int64
	Total        int64
	FreeShipping bool
}

// Calculate derives the totals from validated line items. The grand total
// is clamped at zero so a future discount hook can never drive it negative.
func (r PricingRules) Calculate(items []domain.OrderItem, wrap domain.GiftWrap) Totals {
	var t Totals
	for _, it := range items {
		t.Subtotal += it.LineTotal
	}
	if t.Subtotal >= r.FreeShippingThreshold {
		t.FreeShipping = true
	} else {
		t.ShippingFee = r.ShippingFee
	}
	// unknown or omitted selections carry no fee
	t.GiftWrapFee = r.GiftWrapFees[wrap]
	if r.Discount != nil {
		t.Discount = r.Discount(items, t.Subtotal)
	}
	t.Total = t.Subtotal + t.ShippingFee + t.GiftWrapFee - t.Discount
	if t.Total < 0 {
		t.Total = 0
	}
	return t
}
