package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/events"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/repository"
)

// EventPaymentSucceeded is the processor event type the confirmation
// handler acts on; every other verified type is acknowledged and ignored.
const EventPaymentSucceeded = "payment_intent.succeeded"

// WebhookEvent is a verified, already-parsed processor event.
type WebhookEvent struct {
	Type     string
	IntentID string
	ChargeID string
}

// WebhookVerifier checks the transport signature and parses the payload.
// Verification failure must fail closed.
type WebhookVerifier interface {
	Verify(payload []byte, signature string) (WebhookEvent, error)
}

// ConfirmationService applies asynchronous payment outcomes and operator
// status updates. It is the only component that mutates an order's status
// after creation.
type ConfirmationService struct {
	orders repository.OrderRepository
	tx     repository.TxManager
	events events.Publisher
	logger *zap.Logger
}

func NewConfirmationService(orders repository.OrderRepository, tx repository.TxManager, publisher events.Publisher, logger *zap.Logger) *ConfirmationService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfirmationService{orders: orders, tx: tx, events: publisher, logger: logger}
}

// HandlePaymentSucceeded marks the order behind intentID as paid, exactly
// once. The lookup goes through the stored external reference, never an
// order id from the event body, so a forged event cannot target an
// arbitrary order. Replays and unmatched intents are deliberate no-ops.
func (s *ConfirmationService) HandlePaymentSucceeded(ctx context.Context, ev WebhookEvent) (*domain.Order, error) {
	var updated *domain.Order
	var applied bool
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByPaymentIntentID(ctx, ev.IntentID)
		if errors.Is(err, repository.ErrNotFound) {
			// unmatched intent: acknowledge, update nothing
			return nil
		}
		if err != nil {
			return storageErr(err)
		}
		if o.PaymentStatus == domain.PaymentStatusPaid {
			// replay of a terminal state
			updated = o
			return nil
		}
		o.PaymentStatus = domain.PaymentStatusPaid
		o.PaymentRef = ev.ChargeID
		if o.Status.CanTransitionTo(domain.OrderStatusConfirmed) {
			o.Status = domain.OrderStatusConfirmed
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return storageErr(err)
		}
		updated = o
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if applied {
		if err := s.events.Publish(ctx, events.TypeOrderPaid, updated); err != nil {
			s.logger.Warn("publish order.paid failed", zap.Int64("order_id", updated.ID), zap.Error(err))
		}
		s.logger.Info("payment confirmed",
			zap.Int64("order_id", updated.ID),
			zap.String("intent_id", ev.IntentID))
	} else if updated == nil {
		s.logger.Info("webhook intent unmatched, ignored", zap.String("intent_id", ev.IntentID))
	}
	return updated, nil
}

// StatusUpdate is the operator action for the manual channel: either field
// may be provided, both are restricted to the enumerated sets.
type StatusUpdate struct {
	Status        *string
	PaymentStatus *string
}

// UpdateStatus applies an operator status change after out-of-band
// confirmation. Unknown values fail with ErrInvalidStatusValue; legal but
// out-of-order transitions fail with ErrInvalidState. Re-applying the
// current value is a no-op.
func (s *ConfirmationService) UpdateStatus(ctx context.Context, orderID int64, upd StatusUpdate) (*domain.Order, error) {
	if orderID <= 0 {
		return nil, ErrInvalidInput
	}
	if upd.Status == nil && upd.PaymentStatus == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	var nextStatus domain.OrderStatus
	if upd.Status != nil {
		st, ok := domain.ParseOrderStatus(*upd.Status)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatusValue, *upd.Status)
		}
		nextStatus = st
	}
	var nextPayment domain.PaymentStatus
	if upd.PaymentStatus != nil {
		ps, ok := domain.ParsePaymentStatus(*upd.PaymentStatus)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatusValue, *upd.PaymentStatus)
		}
		nextPayment = ps
	}

	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if upd.Status != nil && nextStatus != o.Status {
			if !o.Status.CanTransitionTo(nextStatus) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidState, o.Status, nextStatus)
			}
			o.Status = nextStatus
		}
		if upd.PaymentStatus != nil && nextPayment != o.PaymentStatus {
			if !o.PaymentStatus.CanTransitionTo(nextPayment) {
				return fmt.Errorf("%w: payment %s -> %s", ErrInvalidState, o.PaymentStatus, nextPayment)
			}
			o.PaymentStatus = nextPayment
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return storageErr(err)
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order status updated",
		zap.Int64("order_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.String("payment_status", string(updated.PaymentStatus)))
	return updated, nil
}
