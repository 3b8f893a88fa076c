package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"tours/entity"
	"tours/metrics"
)

// ErrMalformedEvent marks events that will never be processed successfully.
// The router sends them to the poison queue instead of retrying forever.
var ErrMalformedEvent = errors.New("malformed event")

type OpsReadModel interface {
	Update(
		ctx context.Context,
		paymentIntentID string,
		updateFn func(rm entity.OpsPaymentIntent) (entity.OpsPaymentIntent, error),
	) error
	CountByStatus(ctx context.Context, status string) (int, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

type OpsPaymentIntentHandlers struct {
	repo     OpsReadModel
	eventBus EventPublisher
}

func NewOpsPaymentIntentHandlers(repo OpsReadModel, eventBus EventPublisher) OpsPaymentIntentHandlers {
	if repo == nil {
		panic("missing ops read model")
	}
	if eventBus == nil {
		panic("missing event bus")
	}

	return OpsPaymentIntentHandlers{repo: repo, eventBus: eventBus}
}

func (h OpsPaymentIntentHandlers) Handlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		cqrs.NewEventHandler("ops_read_model.OnPaymentIntentCreated", h.OnPaymentIntentCreated),
		cqrs.NewEventHandler("ops_read_model.OnBookingSettled", h.OnBookingSettled),
		cqrs.NewEventHandler("ops_read_model.OnSettlementFailed", h.OnSettlementFailed),
		cqrs.NewEventHandler("ops_read_model.OnBookingAbandoned", h.OnBookingAbandoned),
		cqrs.NewEventHandler("ops_read_model.OnSettlementReconciled", h.OnSettlementReconciled),
		cqrs.NewEventHandler("ops_read_model.OnUpdated", h.OnOpsReadModelUpdated),
	}
}

func (h OpsPaymentIntentHandlers) OnPaymentIntentCreated(ctx context.Context, event *entity.PaymentIntentCreated_v1) error {
	if event.PaymentIntentID == "" {
		return fmt.Errorf("%w: PaymentIntentCreated_v1 %s without payment intent id", ErrMalformedEvent, event.Header.ID)
	}

	return h.update(ctx, event.PaymentIntentID, func(rm entity.OpsPaymentIntent) (entity.OpsPaymentIntent, error) {
		rm.AdvanceStatus(entity.OpsIntentStatusPending)

		rm.AttemptID = event.AttemptID
		rm.GuideID = event.GuideID
		rm.SiteID = event.SiteID
		rm.Hours = event.Hours
		rm.AmountDisplay = event.AmountDisplay
		rm.Currency = event.Currency
		rm.TouristEmail = event.TouristEmail
		rm.CreatedAt = event.Header.PublishedAt

		return rm, nil
	})
}

func (h OpsPaymentIntentHandlers) OnBookingSettled(ctx context.Context, event *entity.BookingSettled_v1) error {
	if event.PaymentIntentID == "" {
		return fmt.Errorf("%w: BookingSettled_v1 %s without payment intent id", ErrMalformedEvent, event.Header.ID)
	}

	return h.update(ctx, event.PaymentIntentID, func(rm entity.OpsPaymentIntent) (entity.OpsPaymentIntent, error) {
		rm.AdvanceStatus(entity.OpsIntentStatusSettled)

		rm.AttemptID = event.AttemptID
		rm.GuideID = event.GuideID
		rm.SiteID = event.SiteID
		rm.Hours = event.Hours
		rm.BookingID = event.BookingID
		rm.SettledAt = event.Header.PublishedAt

		return rm, nil
	})
}

func (h OpsPaymentIntentHandlers) OnSettlementFailed(ctx context.Context, event *entity.SettlementFailed_v1) error {
	if event.PaymentIntentID == "" {
		return fmt.Errorf("%w: SettlementFailed_v1 %s without payment intent id", ErrMalformedEvent, event.Header.ID)
	}

	return h.update(ctx, event.PaymentIntentID, func(rm entity.OpsPaymentIntent) (entity.OpsPaymentIntent, error) {
		rm.AdvanceStatus(entity.OpsIntentStatusSettlementFailed)

		rm.AttemptID = event.AttemptID
		rm.GuideID = event.GuideID
		rm.SiteID = event.SiteID
		rm.TouristEmail = event.TouristEmail
		rm.FailureReason = event.Reason
		rm.FailedAt = event.Header.PublishedAt

		return rm, nil
	})
}

func (h OpsPaymentIntentHandlers) OnBookingAbandoned(ctx context.Context, event *entity.BookingAbandoned_v1) error {
	if event.PaymentIntentID == "" {
		// abandoned before any money was involved
		return nil
	}

	return h.update(ctx, event.PaymentIntentID, func(rm entity.OpsPaymentIntent) (entity.OpsPaymentIntent, error) {
		rm.AdvanceStatus(entity.OpsIntentStatusAbandoned)

		rm.AttemptID = event.AttemptID
		rm.AbandonedAt = event.Header.PublishedAt

		return rm, nil
	})
}

func (h OpsPaymentIntentHandlers) OnSettlementReconciled(ctx context.Context, event *entity.SettlementReconciled_v1) error {
	if event.PaymentIntentID == "" {
		return fmt.Errorf("%w: SettlementReconciled_v1 %s without payment intent id", ErrMalformedEvent, event.Header.ID)
	}

	return h.update(ctx, event.PaymentIntentID, func(rm entity.OpsPaymentIntent) (entity.OpsPaymentIntent, error) {
		rm.Reconcile(event.Resolution, event.Note, event.Header.PublishedAt)
		return rm, nil
	})
}

func (h OpsPaymentIntentHandlers) OnOpsReadModelUpdated(ctx context.Context, event *entity.InternalOpsReadModelUpdated) error {
	count, err := h.repo.CountByStatus(ctx, entity.OpsIntentStatusSettlementFailed)
	if err != nil {
		return err
	}

	metrics.SettlementFailuresPending.Set(float64(count))

	return nil
}

func (h OpsPaymentIntentHandlers) update(
	ctx context.Context,
	paymentIntentID string,
	updateFn func(rm entity.OpsPaymentIntent) (entity.OpsPaymentIntent, error),
) error {
	if err := h.repo.Update(ctx, paymentIntentID, updateFn); err != nil {
		return fmt.Errorf("could not update read model of %s: %w", paymentIntentID, err)
	}

	err := h.eventBus.Publish(ctx, entity.InternalOpsReadModelUpdated{
		Header:          entity.NewEventHeader(),
		PaymentIntentID: paymentIntentID,
	})
	if err != nil {
		log.FromContext(ctx).WithError(err).Error("could not publish InternalOpsReadModelUpdated")
	}

	return nil
}
