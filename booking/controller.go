package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"tours/entity"
	"tours/metrics"
)

type ContentService interface {
	CreatePaymentIntent(ctx context.Context, request entity.CreatePaymentIntentRequest) (entity.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, request entity.ConfirmPaymentRequest) (entity.PaymentConfirmation, error)
}

type PaymentProcessor interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, method entity.PaymentMethod) (entity.ProcessorResult, error)
}

// IntentRetriever is implemented by processors able to report an intent's current status.
type IntentRetriever interface {
	RetrievePaymentIntent(ctx context.Context, clientSecret string) (entity.ProcessorIntent, error)
}

type Config struct {
	ReferenceRate string
	Location      *time.Location
	// VerifyReplayedIntents makes the controller ask the processor for the real intent status
	// before settling an intent reported as already confirmed.
	VerifyReplayedIntents bool
	Now                   func() time.Time
}

type Controller struct {
	content   ContentService
	processor PaymentProcessor
	pricer    Pricer
	validate  *validator.Validate

	location       *time.Location
	verifyReplayed bool
	now            func() time.Time
}

func NewController(content ContentService, processor PaymentProcessor, config Config) (*Controller, error) {
	if content == nil {
		panic("missing content service")
	}
	if processor == nil {
		panic("missing payment processor")
	}

	rate := config.ReferenceRate
	if rate == "" {
		rate = DefaultReferenceRate
	}
	pricer, err := NewPricer(rate)
	if err != nil {
		return nil, err
	}

	location := config.Location
	if location == nil {
		location = time.UTC
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Controller{
		content:        content,
		processor:      processor,
		pricer:         pricer,
		validate:       newValidator(),
		location:       location,
		verifyReplayed: config.VerifyReplayedIntents,
		now:            now,
	}, nil
}

// earliestDate is the first bookable day: tomorrow in the service's location.
func (c *Controller) earliestDate() time.Time {
	now := c.now().In(c.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.location)
	return today.AddDate(0, 0, 1)
}

func (c *Controller) Start(attemptID string, guide entity.Guide, siteID *int64) *Attempt {
	now := c.now()

	return &Attempt{
		ID:     attemptID,
		Step:   StepForm,
		Guide:  guide,
		SiteID: siteID,
		Request: entity.BookingRequest{
			Date:  c.earliestDate().Format(dateLayout),
			Time:  defaultTimeSlot,
			Hours: defaultHours(guide),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Controller) UpdateForm(a *Attempt, patch FormPatch) error {
	if a.Step != StepForm {
		return ErrInvalidTransition
	}

	patch.apply(&a.Request)
	a.UpdatedAt = c.now()

	return nil
}

// SubmitForm validates the form and asks the content service for a payment intent.
// Nothing is sent over the network when the form is invalid.
func (c *Controller) SubmitForm(ctx context.Context, a *Attempt) error {
	if a.Step != StepForm {
		return ErrInvalidTransition
	}
	a.Error = nil

	if err := validateRequest(c.validate, a.Request, c.earliestDate()); err != nil {
		return c.fail(ctx, a, err)
	}

	intent, err := c.content.CreatePaymentIntent(ctx, entity.CreatePaymentIntentRequest{
		GuideID: a.Guide.ID,
		Hours:   a.Request.Hours,
		Email:   a.Request.Email,
		SiteID:  a.SiteID,
	})
	if err != nil {
		var serviceErr *entity.ServiceError
		if errors.As(err, &serviceErr) {
			return c.fail(ctx, a, &ValidationError{Message: serviceErr.Message})
		}
		return c.fail(ctx, a, &ConnectivityError{Op: "create payment intent", Message: msgPaymentCreationError, Err: err})
	}
	if intent.ClientSecret == "" || intent.PaymentIntentID == "" {
		return c.fail(ctx, a, &ConnectivityError{
			Op:      "create payment intent",
			Message: msgPaymentCreationError,
			Err:     fmt.Errorf("incomplete payment intent returned"),
		})
	}

	a.Intent = &intent
	c.transition(ctx, a, StepPayment)

	return nil
}

// Pay confirms the card payment with the processor and settles it with the content service.
// Only a successful settlement moves the attempt to the success step.
func (c *Controller) Pay(ctx context.Context, a *Attempt, method entity.PaymentMethod) error {
	if a.Step != StepPayment || a.Intent == nil {
		return ErrInvalidTransition
	}
	a.Error = nil

	if method.ID == "" {
		return c.fail(ctx, a, &ValidationError{Field: "payment_method_id", Message: "payment method is required"})
	}
	if method.BillingName == "" {
		method.BillingName = a.Request.Name
	}
	if method.BillingEmail == "" {
		method.BillingEmail = a.Request.Email
	}

	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"attempt_id":        a.ID,
		"payment_intent_id": a.Intent.PaymentIntentID,
	})

	result, err := c.processor.ConfirmCardPayment(ctx, a.Intent.ClientSecret, method)
	if err != nil {
		return c.fail(ctx, a, &ConnectivityError{Op: "confirm card payment", Message: msgPaymentProcessingError, Err: err})
	}

	switch {
	case result.Failure != nil && result.Failure.Code == entity.CodePaymentIntentUnexpectedState:
		logger.Info("Payment intent already confirmed, settling without processor confirmation")

		if err := c.verifyReplayedIntent(ctx, a); err != nil {
			return c.fail(ctx, a, err)
		}
	case result.Failure != nil:
		msg := result.Failure.Message
		if msg == "" {
			msg = msgPaymentFailed
		}
		return c.fail(ctx, a, &ProcessorError{Code: result.Failure.Code, Message: msg})
	case result.Intent == nil:
		return c.fail(ctx, a, &ProcessorError{Message: msgPaymentFailed})
	case result.Intent.Status != entity.ProcessorIntentStatusSucceeded:
		return c.fail(ctx, a, &ProcessorError{
			Message: fmt.Sprintf("Payment was not completed (status: %s)", result.Intent.Status),
		})
	}

	return c.settle(ctx, a)
}

func (c *Controller) verifyReplayedIntent(ctx context.Context, a *Attempt) error {
	if !c.verifyReplayed {
		return nil
	}
	retriever, ok := c.processor.(IntentRetriever)
	if !ok {
		return nil
	}

	intent, err := retriever.RetrievePaymentIntent(ctx, a.Intent.ClientSecret)
	if err != nil {
		return &ConnectivityError{Op: "retrieve payment intent", Message: msgPaymentProcessingError, Err: err}
	}
	if intent.Status != entity.ProcessorIntentStatusSucceeded {
		return &ProcessorError{
			Code:    entity.CodePaymentIntentUnexpectedState,
			Message: fmt.Sprintf("Payment was not completed (status: %s)", intent.Status),
		}
	}

	return nil
}

func (c *Controller) settle(ctx context.Context, a *Attempt) error {
	confirmation, err := c.content.ConfirmPayment(ctx, entity.ConfirmPaymentRequest{
		PaymentIntentID: a.Intent.PaymentIntentID,
		GuideID:         a.Guide.ID,
		SiteID:          a.SiteID,
		Date:            a.Request.Date,
		Time:            a.Request.Time,
		Hours:           a.Request.Hours,
		TouristName:     a.Request.Name,
		TouristEmail:    a.Request.Email,
		TouristPhone:    a.Request.Phone,
		Notes:           a.Request.Notes,
	})
	if err != nil {
		var serviceErr *entity.ServiceError
		if errors.As(err, &serviceErr) {
			return c.fail(ctx, a, &SettlementError{PaymentIntentID: a.Intent.PaymentIntentID, Message: serviceErr.Message})
		}
		return c.fail(ctx, a, &ConnectivityError{
			Op:              "confirm payment",
			Message:         msgPaymentProcessingError,
			Err:             err,
			PaymentIntentID: a.Intent.PaymentIntentID,
		})
	}

	if !confirmation.Succeeded() {
		msg := confirmation.Error
		if msg == "" {
			msg = msgConfirmationFailed
		}
		return c.fail(ctx, a, &SettlementError{PaymentIntentID: a.Intent.PaymentIntentID, Message: msg})
	}

	a.Confirmation = &confirmation
	c.transition(ctx, a, StepSuccess)

	return nil
}

// Back returns to the form keeping every entered field.
func (c *Controller) Back(ctx context.Context, a *Attempt) error {
	if a.Step != StepPayment {
		return ErrInvalidTransition
	}

	a.Error = nil
	c.transition(ctx, a, StepForm)

	return nil
}

// Done ends a settled attempt and hands the confirmation to the caller.
func (c *Controller) Done(a *Attempt) (entity.PaymentConfirmation, error) {
	if a.Step != StepSuccess || a.Confirmation == nil {
		return entity.PaymentConfirmation{}, ErrInvalidTransition
	}

	return *a.Confirmation, nil
}

func (c *Controller) View(a *Attempt) View {
	v := View{
		AttemptID: a.ID,
		Step:      a.Step,
		GuideID:   a.Guide.ID,
		GuideName: a.Guide.FullName,
		SiteID:    a.SiteID,
		Request:   a.Request,
		MinDate:   c.earliestDate().Format(dateLayout),
		TimeSlots: TimeSlots,
		Durations: Durations,
		Error:     a.Error,
	}

	if estimate, err := c.pricer.Estimate(a.Guide.PricePerHour, a.Request.Hours); err == nil {
		v.PricePerHour = estimate.PerHour
		v.EstimatedTotal = estimate.Total
	}

	if a.Step == StepPayment && a.Intent != nil {
		v.AmountToPay = a.Intent.AmountDisplay
		v.Currency = a.Intent.Currency
	}

	if a.Step == StepSuccess && a.Confirmation != nil && a.Confirmation.Succeeded() {
		v.Confirmation = &ConfirmationView{
			BookingID:      a.Confirmation.BookingID,
			GuideContact:   a.Confirmation.GuideContact,
			BookingDetails: a.Confirmation.BookingDetails,
		}
	}

	return v
}

func (c *Controller) transition(ctx context.Context, a *Attempt, to Step) {
	from := a.Step
	a.Step = to
	a.UpdatedAt = c.now()

	metrics.BookingTransitions.WithLabelValues(string(from), string(to)).Inc()

	log.FromContext(ctx).WithFields(logrus.Fields{
		"attempt_id": a.ID,
		"from":       from,
		"to":         to,
	}).Info("Booking attempt moved to next step")
}

func (c *Controller) fail(ctx context.Context, a *Attempt, err error) error {
	a.Error = flowErrorFrom(err)
	a.UpdatedAt = c.now()

	if a.Error != nil {
		metrics.BookingFlowErrors.WithLabelValues(string(a.Step), string(a.Error.Kind)).Inc()
	}

	log.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
		"attempt_id": a.ID,
		"step":       a.Step,
	}).Warn("Booking attempt step failed")

	return err
}
