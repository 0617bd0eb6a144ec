package service

import (
	"context"
	"fmt"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/repository"
)

// PriceQuote is the authoritative answer for one product id.
type PriceQuote struct {
	ProductID      int64
	Name           string
	UnitPrice      int64
	EffectivePrice int64
	Stock          int64
}

// PriceAuthority resolves cart product ids to authoritative prices and
// stock. It is the sole source of price truth; any price arriving from the
// client is discarded before this point.
type PriceAuthority struct {
	products repository.ProductRepository
}

func NewPriceAuthority(products repository.ProductRepository) *PriceAuthority {
	return &PriceAuthority{products: products}
}

// Resolve returns quotes for the distinct active ids among the requested
// set. Missing and inactive ids are absent, not errors; the cart validator
// decides what absence means.
func (a *PriceAuthority) Resolve(ctx context.Context, ids []int64) (map[int64]PriceQuote, error) {
	distinct := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	products, err := a.products.GetActiveByIDs(ctx, distinct)
	if err != nil {
		return nil, storageErr(err)
	}
	quotes := make(map[int64]PriceQuote, len(products))
	for id, p := range products {
		quotes[id] = PriceQuote{
			ProductID:      id,
			Name:           p.Name,
			UnitPrice:      p.Price,
			EffectivePrice: p.EffectivePrice(),
			Stock:          p.Stock,
		}
	}
	return quotes, nil
}

// CartLine is a raw client cart entry; its quantity may still need
// normalization and its price is never trusted.
type CartLine struct {
	ProductID int64
	Quantity  int64
}

// NormalizeQuantity coerces invalid quantities to 1, never 0 or negative.
func NormalizeQuantity(q int64) int64 {
	if q < 1 {
		return 1
	}
	return q
}

// ValidateCart checks every line against the quote set and converts passing
// lines into order items carrying the effective-price snapshot. Any failing
// line aborts the whole checkout.
func ValidateCart(lines []CartLine, quotes map[int64]PriceQuote) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		qty := NormalizeQuantity(line.Quantity)
		quote, ok := quotes[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, line.ProductID)
		}
		if quote.Stock < qty {
			return nil, fmt.Errorf("%w: product %d has %d left", ErrInsufficientStock, line.ProductID, quote.Stock)
		}
		items = append(items, domain.OrderItem{
			ProductID:   line.ProductID,
			ProductName: quote.Name,
			Quantity:    qty,
			UnitPrice:   quote.EffectivePrice,
			LineTotal:   quote.EffectivePrice * qty,
		})
	}
	return items, nil
}
