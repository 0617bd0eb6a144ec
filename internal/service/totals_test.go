package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
)

func item(price, qty int64) domain.OrderItem {
	return domain.OrderItem{ProductID: 1, ProductName: "P", Quantity: qty, UnitPrice: price, LineTotal: price * qty}
}

func TestCalculate_ShippingThresholdBoundary(t *testing.T) {
	rules := defaultRules() // T=5000, F=200

	at := rules.Calculate([]domain.OrderItem{item(5000, 1)}, domain.GiftWrapNone)
	assert.EqualValues(t, 0, at.ShippingFee)
	assert.True(t, at.FreeShipping)
	assert.EqualValues(t, 5000, at.Total)

	below := rules.Calculate([]domain.OrderItem{item(4999, 1)}, domain.GiftWrapNone)
	assert.EqualValues(t, 200, below.ShippingFee)
	assert.False(t, below.FreeShipping)
	assert.EqualValues(t, 5199, below.Total)
}

func TestCalculate_GiftWrapFees(t *testing.T) {
	rules := defaultRules()
	items := []domain.OrderItem{item(1000, 1)}

	assert.EqualValues(t, 0, rules.Calculate(items, domain.GiftWrapNone).GiftWrapFee)
	assert.EqualValues(t, 250, rules.Calculate(items, domain.GiftWrapStandard).GiftWrapFee)
	assert.EqualValues(t, 500, rules.Calculate(items, domain.GiftWrapPremium).GiftWrapFee)
	// unknown selections carry no fee
	assert.EqualValues(t, 0, rules.Calculate(items, domain.GiftWrap("velvet")).GiftWrapFee)
}

func TestCalculate_DiscountClampsAtZero(t *testing.T) {
	rules := defaultRules()
	rules.Discount = func(items []domain.OrderItem, subtotal int64) int64 {
		return subtotal + 10000 // pathological future coupon
	}
	got := rules.Calculate([]domain.OrderItem{item(1000, 2)}, domain.GiftWrapNone)
	assert.EqualValues(t, 0, got.Total, "total must never go negative")
}

func TestCalculate_ExactArithmeticNoDrift(t *testing.T) {
	rules := defaultRules()
	items := make([]domain.OrderItem, 0, 100)
	var want int64
	for i := int64(1); i <= 100; i++ {
		it := item(i*3+1, i%5+1)
		items = append(items, it)
		want += it.LineTotal
	}
	got := rules.Calculate(items, domain.GiftWrapNone)
	assert.Equal(t, want, got.Subtotal)
	assert.Equal(t, got.Subtotal+got.ShippingFee+got.GiftWrapFee-got.Discount, got.Total)
}
