package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/events"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/repository"
)

// CheckoutService drives the full pipeline: price resolution, cart
// validation, totals, the atomic write with conditional stock decrement,
// and channel dispatch.
type CheckoutService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	tx       repository.TxManager
	pricing  *PriceAuthority
	rules    PricingRules
	channels map[domain.PaymentMethod]Channel
	events   events.Publisher
	logger   *zap.Logger
}

func NewCheckoutService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	tx repository.TxManager,
	rules PricingRules,
	channels map[domain.PaymentMethod]Channel,
	publisher events.Publisher,
	logger *zap.Logger,
) *CheckoutService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		products: products,
		orders:   orders,
		tx:       tx,
		pricing:  NewPriceAuthority(products),
		rules:    rules,
		channels: channels,
		events:   publisher,
		logger:   logger,
	}
}

// CheckoutRequest carries the channel-agnostic checkout input. Prices never
// appear here; only the catalog decides what things cost.
type CheckoutRequest struct {
	CustomerName  string
	Phone         string
	Address       string
	GiftWrap      domain.GiftWrap
	GiftMessage   string
	Notes         string
	PaymentMethod domain.PaymentMethod
	Items         []CartLine
}

// CheckoutResult pairs the persisted order with its totals breakdown and
// the channel handle.
type CheckoutResult struct {
	Order  *domain.Order
	Totals Totals
	Handle Handle
}

// Checkout validates, prices and persists the order atomically, then
// dispatches it to the selected channel. Any failure, including a channel
// failure, leaves no order behind.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	name := strings.TrimSpace(req.CustomerName)
	phone := strings.TrimSpace(req.Phone)
	address := strings.TrimSpace(req.Address)
	if name == "" || phone == "" || address == "" {
		return nil, fmt.Errorf("%w: customer name, phone and address are required", ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	channel, ok := s.channels[req.PaymentMethod]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}

	ids := make([]int64, 0, len(req.Items))
	for _, line := range req.Items {
		ids = append(ids, line.ProductID)
	}
	quotes, err := s.pricing.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	items, err := ValidateCart(req.Items, quotes)
	if err != nil {
		return nil, err
	}
	totals := s.rules.Calculate(items, req.GiftWrap)

	order := &domain.Order{
		CustomerName:  name,
		Phone:         phone,
		Address:       address,
		GiftWrap:      req.GiftWrap,
		GiftMessage:   strings.TrimSpace(req.GiftMessage),
		Notes:         strings.TrimSpace(req.Notes),
		PaymentMethod: req.PaymentMethod,
		Status:        channel.InitialStatus(),
		PaymentStatus: domain.PaymentStatusPending,
		Items:         items,
		Subtotal:      totals.Subtotal,
		ShippingFee:   totals.ShippingFee,
		GiftWrapFee:   totals.GiftWrapFee,
		Discount:      totals.Discount,
		Total:         totals.Total,
	}

	var handle Handle
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// conditional decrement first: the affected-row check is what
		// serializes concurrent checkouts against the same product
		for _, it := range items {
			if err := s.products.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				switch {
				case errors.Is(err, repository.ErrStockConflict):
					return fmt.Errorf("%w: product %d", ErrInsufficientStock, it.ProductID)
				case errors.Is(err, repository.ErrNotFound):
					return fmt.Errorf("%w: product %d", ErrProductUnavailable, it.ProductID)
				default:
					return storageErr(err)
				}
			}
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return storageErr(err)
		}
		h, err := channel.Initiate(ctx, order)
		if err != nil {
			// no trace of the order may survive a failed initiate
			return err
		}
		if h.ExternalRef != "" {
			if err := s.orders.SetPaymentIntent(ctx, order.ID, h.ExternalRef); err != nil {
				if errors.Is(err, repository.ErrDuplicateRef) {
					return fmt.Errorf("%w: %s", ErrDuplicateExternalRef, h.ExternalRef)
				}
				return storageErr(err)
			}
			order.PaymentIntentID = h.ExternalRef
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.events.Publish(ctx, events.TypeOrderCreated, order); err != nil {
		s.logger.Warn("publish order.created failed", zap.Int64("order_id", order.ID), zap.Error(err))
	}
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("channel", string(order.PaymentMethod)),
		zap.Int64("total", order.Total))

	return &CheckoutResult{Order: order, Totals: totals, Handle: handle}, nil
}

// GetOrder returns an order with its items.
func (s *CheckoutService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.orders.GetByID(ctx, id)
}

// CancelOrder cancels a pre-dispatch order and returns its stock. Paid and
// dispatched orders need out-of-band handling and are rejected here.
func (s *CheckoutService) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		switch o.Status {
		case domain.OrderStatusPending, domain.OrderStatusPendingManual, domain.OrderStatusConfirmed:
		default:
			return ErrInvalidState
		}
		if o.PaymentStatus == domain.PaymentStatusPaid {
			return ErrInvalidState
		}
		for _, it := range o.Items {
			if err := s.products.RestoreStock(ctx, it.ProductID, it.Quantity); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return storageErr(err)
			}
		}
		o.Status = domain.OrderStatusCancelled
		if err := s.orders.Update(ctx, o); err != nil {
			return storageErr(err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
