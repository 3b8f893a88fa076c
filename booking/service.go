package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tours/entity"
	"tours/metrics"
)

// SettlementUnreachableReason marks settlements whose outcome is unknown because the
// content service could not be reached after the processor confirmed the payment.
const SettlementUnreachableReason = "settlement unreachable"

type GuideDirectory interface {
	GetGuide(ctx context.Context, guideID int64) (entity.Guide, error)
}

// AttemptRepository keeps attempts for their lifetime. Update and Delete hold the attempt
// exclusively and fail with ErrAttemptBusy when another operation is in progress.
type AttemptRepository interface {
	Add(ctx context.Context, attempt Attempt) error
	Get(ctx context.Context, attemptID string) (Attempt, error)
	Update(ctx context.Context, attemptID string, updateFn func(attempt *Attempt) error) (Attempt, error)
	Delete(ctx context.Context, attemptID string) (Attempt, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

type Service struct {
	controller *Controller
	guides     GuideDirectory
	attempts   AttemptRepository
	events     EventPublisher
}

func NewService(
	controller *Controller,
	guides GuideDirectory,
	attempts AttemptRepository,
	events EventPublisher,
) *Service {
	if controller == nil {
		panic("missing controller")
	}
	if guides == nil {
		panic("missing guides")
	}
	if attempts == nil {
		panic("missing attempts")
	}
	if events == nil {
		panic("missing events")
	}

	return &Service{
		controller: controller,
		guides:     guides,
		attempts:   attempts,
		events:     events,
	}
}

func (s *Service) Start(ctx context.Context, guideID int64, siteID *int64) (View, error) {
	if guideID <= 0 {
		return View{}, &ValidationError{Field: "guide_id", Message: "guide_id is required"}
	}

	guide, err := s.guides.GetGuide(ctx, guideID)
	if err != nil {
		return View{}, fmt.Errorf("could not get guide %d: %w", guideID, err)
	}

	attempt := s.controller.Start(uuid.NewString(), guide, siteID)
	if err := s.attempts.Add(ctx, *attempt); err != nil {
		return View{}, fmt.Errorf("could not store booking attempt: %w", err)
	}

	metrics.BookingAttemptsStarted.Inc()
	log.FromContext(ctx).WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"guide_id":   guideID,
	}).Info("Booking attempt started")

	s.publish(ctx, entity.BookingAttemptStarted_v1{
		Header:    entity.NewEventHeaderWithIdempotencyKey(attempt.ID),
		AttemptID: attempt.ID,
		GuideID:   guide.ID,
		SiteID:    siteID,
	})

	return s.controller.View(attempt), nil
}

func (s *Service) Get(ctx context.Context, attemptID string) (View, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return View{}, err
	}

	return s.controller.View(&attempt), nil
}

func (s *Service) UpdateForm(ctx context.Context, attemptID string, patch FormPatch) (View, error) {
	attempt, err := s.run(ctx, attemptID, func(a *Attempt) error {
		return s.controller.UpdateForm(a, patch)
	})
	if err != nil && attempt.ID == "" {
		return View{}, err
	}

	return s.controller.View(&attempt), err
}

func (s *Service) SubmitForm(ctx context.Context, attemptID string) (View, error) {
	attempt, err := s.run(ctx, attemptID, func(a *Attempt) error {
		return s.controller.SubmitForm(ctx, a)
	})
	if err != nil {
		if attempt.ID == "" {
			return View{}, err
		}
		return s.controller.View(&attempt), err
	}

	s.publish(ctx, entity.PaymentIntentCreated_v1{
		Header:          entity.NewEventHeaderWithIdempotencyKey(attempt.Intent.PaymentIntentID),
		AttemptID:       attempt.ID,
		PaymentIntentID: attempt.Intent.PaymentIntentID,
		GuideID:         attempt.Guide.ID,
		SiteID:          attempt.SiteID,
		Hours:           attempt.Request.Hours,
		AmountDisplay:   attempt.Intent.AmountDisplay,
		Currency:        attempt.Intent.Currency,
		TouristEmail:    attempt.Request.Email,
	})

	return s.controller.View(&attempt), nil
}

func (s *Service) Pay(ctx context.Context, attemptID string, method entity.PaymentMethod) (View, error) {
	attempt, err := s.run(ctx, attemptID, func(a *Attempt) error {
		return s.controller.Pay(ctx, a, method)
	})
	if attempt.ID == "" {
		return View{}, err
	}

	var (
		settlementErr   *SettlementError
		connectivityErr *ConnectivityError
	)
	switch {
	case err == nil:
		s.publish(ctx, entity.BookingSettled_v1{
			Header:          entity.NewEventHeaderWithIdempotencyKey(attempt.Intent.PaymentIntentID),
			AttemptID:       attempt.ID,
			BookingID:       attempt.Confirmation.BookingID,
			PaymentIntentID: attempt.Intent.PaymentIntentID,
			GuideID:         attempt.Guide.ID,
			SiteID:          attempt.SiteID,
			Date:            attempt.Request.Date,
			Time:            attempt.Request.Time,
			Hours:           attempt.Request.Hours,
			TotalPaid:       attempt.Confirmation.BookingDetails.TotalPaid,
		})
	case errors.As(err, &settlementErr):
		log.FromContext(ctx).WithFields(logrus.Fields{
			"attempt_id":        attempt.ID,
			"payment_intent_id": settlementErr.PaymentIntentID,
		}).Error("Payment confirmed by processor but not settled, manual reconciliation required")

		s.publish(ctx, entity.SettlementFailed_v1{
			Header:          entity.NewEventHeader(),
			AttemptID:       attempt.ID,
			PaymentIntentID: settlementErr.PaymentIntentID,
			GuideID:         attempt.Guide.ID,
			SiteID:          attempt.SiteID,
			TouristEmail:    attempt.Request.Email,
			Reason:          settlementErr.Message,
		})
	case errors.As(err, &connectivityErr) && connectivityErr.PaymentIntentID != "":
		// the tourist may retry, a later BookingSettled_v1 takes the intent out of the queue
		log.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
			"attempt_id":        attempt.ID,
			"payment_intent_id": connectivityErr.PaymentIntentID,
		}).Error("Payment confirmed by processor but content service unreachable")

		s.publish(ctx, entity.SettlementFailed_v1{
			Header:          entity.NewEventHeader(),
			AttemptID:       attempt.ID,
			PaymentIntentID: connectivityErr.PaymentIntentID,
			GuideID:         attempt.Guide.ID,
			SiteID:          attempt.SiteID,
			TouristEmail:    attempt.Request.Email,
			Reason:          SettlementUnreachableReason,
		})
	}

	return s.controller.View(&attempt), err
}

func (s *Service) Back(ctx context.Context, attemptID string) (View, error) {
	attempt, err := s.run(ctx, attemptID, func(a *Attempt) error {
		return s.controller.Back(ctx, a)
	})
	if err != nil && attempt.ID == "" {
		return View{}, err
	}

	return s.controller.View(&attempt), err
}

// Done closes a settled attempt and returns its confirmation.
func (s *Service) Done(ctx context.Context, attemptID string) (entity.PaymentConfirmation, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return entity.PaymentConfirmation{}, err
	}

	confirmation, err := s.controller.Done(&attempt)
	if err != nil {
		return entity.PaymentConfirmation{}, err
	}

	if _, err := s.attempts.Delete(ctx, attemptID); err != nil && !errors.Is(err, ErrAttemptNotFound) {
		return entity.PaymentConfirmation{}, fmt.Errorf("could not release booking attempt: %w", err)
	}

	return confirmation, nil
}

// Close abandons the attempt. An already created payment intent is not cancelled,
// it expires on the content service side.
func (s *Service) Close(ctx context.Context, attemptID string) error {
	attempt, err := s.attempts.Delete(ctx, attemptID)
	if err != nil {
		return err
	}

	if attempt.Step == StepSuccess {
		return nil
	}

	metrics.BookingAttemptsAbandoned.WithLabelValues(string(attempt.Step)).Inc()

	event := entity.BookingAbandoned_v1{
		Header:    entity.NewEventHeaderWithIdempotencyKey(attempt.ID),
		AttemptID: attempt.ID,
		Step:      string(attempt.Step),
	}
	if attempt.Intent != nil {
		event.PaymentIntentID = attempt.Intent.PaymentIntentID
	}
	s.publish(ctx, event)

	return nil
}

// run applies op under the attempt's lock. Flow errors are persisted together with the
// attempt (they are part of what the tourist sees), invalid transitions are not.
func (s *Service) run(ctx context.Context, attemptID string, op func(a *Attempt) error) (Attempt, error) {
	var opErr error

	attempt, err := s.attempts.Update(ctx, attemptID, func(a *Attempt) error {
		opErr = op(a)
		if errors.Is(opErr, ErrInvalidTransition) {
			return opErr
		}
		return nil
	})
	if errors.Is(err, ErrInvalidTransition) {
		current, getErr := s.attempts.Get(ctx, attemptID)
		if getErr != nil {
			return Attempt{}, errors.Join(err, getErr)
		}
		return current, err
	}
	if err != nil {
		return Attempt{}, err
	}

	return attempt, opErr
}

// publish reports what already happened, so it does not depend on the caller still waiting.
func (s *Service) publish(ctx context.Context, event any) {
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.FromContext(ctx).WithError(err).WithField("event", fmt.Sprintf("%T", event)).
			Error("Could not publish booking event")
	}
}
