package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tours/booking"
	"tours/entity"
	"tours/gateway"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

var testGuide = entity.Guide{
	ID:                  1,
	FullName:            "Aziz Karimov",
	PricePerHour:        "50000",
	AverageTourDuration: 3,
}

func newController(t *testing.T, content booking.ContentService, processor booking.PaymentProcessor, verify bool) *booking.Controller {
	t.Helper()

	controller, err := booking.NewController(content, processor, booking.Config{
		VerifyReplayedIntents: verify,
		Now:                   func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	return controller
}

func newContentMock() *gateway.ContentMock {
	return &gateway.ContentMock{
		Guides: map[int64]entity.Guide{testGuide.ID: testGuide},
	}
}

func validForm() booking.FormPatch {
	return booking.FormPatch{
		Date:  lo.ToPtr("2024-05-10"),
		Time:  lo.ToPtr("09:00"),
		Hours: lo.ToPtr(2),
		Name:  lo.ToPtr("Jane Doe"),
		Email: lo.ToPtr("jane@example.com"),
		Phone: lo.ToPtr("+44 20 7946 0958"),
		Notes: lo.ToPtr("  Vegetarian lunch, please.\nWe are 3 people 🙂 "),
	}
}

func startFilled(t *testing.T, controller *booking.Controller) *booking.Attempt {
	t.Helper()

	attempt := controller.Start("attempt-1", testGuide, lo.ToPtr(int64(7)))
	require.NoError(t, controller.UpdateForm(attempt, validForm()))

	return attempt
}

func startInPayment(t *testing.T, controller *booking.Controller) *booking.Attempt {
	t.Helper()

	attempt := startFilled(t, controller)
	require.NoError(t, controller.SubmitForm(context.Background(), attempt))
	require.Equal(t, booking.StepPayment, attempt.Step)

	return attempt
}

var card = entity.PaymentMethod{ID: "pm_card_visa"}

func TestController_Start(t *testing.T) {
	controller := newController(t, newContentMock(), &gateway.ProcessorMock{}, true)

	attempt := controller.Start("attempt-1", testGuide, nil)

	assert.Equal(t, booking.StepForm, attempt.Step)
	assert.Equal(t, "2024-05-02", attempt.Request.Date)
	assert.Equal(t, "10:00", attempt.Request.Time)
	assert.Equal(t, 3, attempt.Request.Hours)

	view := controller.View(attempt)
	assert.Equal(t, "2024-05-02", view.MinDate)
	assert.Equal(t, "$4.00", view.PricePerHour)
	assert.Equal(t, "$12.00", view.EstimatedTotal)
	assert.Equal(t, booking.TimeSlots, view.TimeSlots)
	assert.Equal(t, booking.Durations, view.Durations)
}

func TestController_Start_unknownDuration(t *testing.T) {
	controller := newController(t, newContentMock(), &gateway.ProcessorMock{}, true)

	guide := testGuide
	guide.AverageTourDuration = 7

	attempt := controller.Start("attempt-1", guide, nil)
	assert.Equal(t, 2, attempt.Request.Hours)
}

func TestController_SubmitForm_invalid(t *testing.T) {
	testCases := []struct {
		Name          string
		Patch         booking.FormPatch
		ExpectedField string
	}{
		{
			Name:          "malformed email",
			Patch:         booking.FormPatch{Email: lo.ToPtr("jane.example.com")},
			ExpectedField: "email",
		},
		{
			Name:          "missing name",
			Patch:         booking.FormPatch{Name: lo.ToPtr("   ")},
			ExpectedField: "name",
		},
		{
			Name:          "missing phone",
			Patch:         booking.FormPatch{Phone: lo.ToPtr("")},
			ExpectedField: "phone",
		},
		{
			Name:          "date today",
			Patch:         booking.FormPatch{Date: lo.ToPtr("2024-05-01")},
			ExpectedField: "date",
		},
		{
			Name:          "malformed date",
			Patch:         booking.FormPatch{Date: lo.ToPtr("10/05/2024")},
			ExpectedField: "date",
		},
		{
			Name:          "time outside slots",
			Patch:         booking.FormPatch{Time: lo.ToPtr("13:00")},
			ExpectedField: "time",
		},
		{
			Name:          "duration outside allowed set",
			Patch:         booking.FormPatch{Hours: lo.ToPtr(7)},
			ExpectedField: "hours",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			content := newContentMock()
			controller := newController(t, content, &gateway.ProcessorMock{}, true)

			attempt := startFilled(t, controller)
			require.NoError(t, controller.UpdateForm(attempt, tc.Patch))

			err := controller.SubmitForm(context.Background(), attempt)

			var validationErr *booking.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.ExpectedField, validationErr.Field)

			assert.Equal(t, booking.StepForm, attempt.Step)
			require.NotNil(t, attempt.Error)
			assert.Equal(t, booking.ErrorKindValidation, attempt.Error.Kind)
			assert.Equal(t, tc.ExpectedField, attempt.Error.Field)
			assert.Nil(t, attempt.Intent)

			assert.Equal(t, 0, content.CreatedIntentsCount(), "no payment intent should be requested for an invalid form")
		})
	}
}

func TestController_SubmitForm_contentServiceErrors(t *testing.T) {
	t.Run("rejected by service", func(t *testing.T) {
		content := newContentMock()
		content.CreateIntentFn = func(entity.CreatePaymentIntentRequest) (entity.PaymentIntent, error) {
			return entity.PaymentIntent{}, &entity.ServiceError{StatusCode: 400, Message: "Guide is not available"}
		}
		controller := newController(t, content, &gateway.ProcessorMock{}, true)

		attempt := startFilled(t, controller)
		err := controller.SubmitForm(context.Background(), attempt)

		var validationErr *booking.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, booking.StepForm, attempt.Step)
		assert.Equal(t, "Guide is not available", attempt.Error.Message)
	})

	t.Run("unreachable", func(t *testing.T) {
		content := newContentMock()
		content.CreateIntentFn = func(entity.CreatePaymentIntentRequest) (entity.PaymentIntent, error) {
			return entity.PaymentIntent{}, errors.New("connection refused")
		}
		controller := newController(t, content, &gateway.ProcessorMock{}, true)

		attempt := startFilled(t, controller)
		err := controller.SubmitForm(context.Background(), attempt)

		var connectivityErr *booking.ConnectivityError
		require.ErrorAs(t, err, &connectivityErr)
		assert.Equal(t, booking.StepForm, attempt.Step)
		assert.Equal(t, booking.ErrorKindConnectivity, attempt.Error.Kind)
		assert.Equal(t, "Payment creation error", attempt.Error.Message)
	})

	t.Run("incomplete intent", func(t *testing.T) {
		content := newContentMock()
		content.CreateIntentFn = func(entity.CreatePaymentIntentRequest) (entity.PaymentIntent, error) {
			return entity.PaymentIntent{PaymentIntentID: "pi_1"}, nil
		}
		controller := newController(t, content, &gateway.ProcessorMock{}, true)

		attempt := startFilled(t, controller)
		err := controller.SubmitForm(context.Background(), attempt)

		var connectivityErr *booking.ConnectivityError
		require.ErrorAs(t, err, &connectivityErr)
		assert.Equal(t, booking.StepForm, attempt.Step)
		assert.Nil(t, attempt.Intent)
	})
}

func TestController_happyPath(t *testing.T) {
	content := newContentMock()
	processor := &gateway.ProcessorMock{}
	controller := newController(t, content, processor, true)
	ctx := context.Background()

	attempt := startFilled(t, controller)
	estimate := controller.View(attempt).EstimatedTotal
	assert.Equal(t, "$8.00", estimate)

	require.NoError(t, controller.SubmitForm(ctx, attempt))
	assert.Equal(t, booking.StepPayment, attempt.Step)
	assert.Nil(t, attempt.Error)

	require.Len(t, content.CreatedIntents, 1)
	assert.Equal(t, entity.CreatePaymentIntentRequest{
		GuideID: 1,
		Hours:   2,
		Email:   "jane@example.com",
		SiteID:  lo.ToPtr(int64(7)),
	}, content.CreatedIntents[0])

	view := controller.View(attempt)
	assert.Equal(t, estimate, view.AmountToPay, "client estimate should agree with the issued intent")
	assert.Equal(t, "usd", view.Currency)
	assert.Nil(t, view.Confirmation)

	require.NoError(t, controller.Pay(ctx, attempt, card))
	assert.Equal(t, booking.StepSuccess, attempt.Step)

	require.Len(t, processor.Confirmations, 1)
	assert.Equal(t, attempt.Intent.ClientSecret, processor.Confirmations[0].ClientSecret)
	assert.Equal(t, "Jane Doe", processor.Confirmations[0].Method.BillingName)
	assert.Equal(t, "jane@example.com", processor.Confirmations[0].Method.BillingEmail)

	require.Len(t, content.ConfirmedPayments, 1)
	confirmRequest := content.ConfirmedPayments[0]
	assert.Equal(t, attempt.Intent.PaymentIntentID, confirmRequest.PaymentIntentID)
	assert.Equal(t, "2024-05-10", confirmRequest.Date)
	assert.Equal(t, "09:00", confirmRequest.Time)
	assert.Equal(t, 2, confirmRequest.Hours)
	assert.Equal(t, "Jane Doe", confirmRequest.TouristName)
	assert.Equal(t, *validForm().Notes, confirmRequest.Notes)

	view = controller.View(attempt)
	require.NotNil(t, view.Confirmation)
	assert.Equal(t, "Mock Guide", view.Confirmation.GuideContact.Name)
	assert.Equal(t, "+998 90 000 00 00", view.Confirmation.GuideContact.Phone)

	confirmation, err := controller.Done(attempt)
	require.NoError(t, err)
	assert.Equal(t, "booking-"+attempt.Intent.PaymentIntentID, confirmation.BookingID)
}

func TestController_Pay_settlementRefused(t *testing.T) {
	content := newContentMock()
	content.ConfirmPaymentFn = func(entity.ConfirmPaymentRequest) (entity.PaymentConfirmation, error) {
		return entity.PaymentConfirmation{
			Status: "failed",
			Error:  "The selected time slot is no longer available",
			GuideContact: entity.GuideContact{
				Name:  "Should Not Leak",
				Phone: "+998 90 111 11 11",
			},
		}, nil
	}
	processor := &gateway.ProcessorMock{}
	controller := newController(t, content, processor, true)

	attempt := startInPayment(t, controller)
	err := controller.Pay(context.Background(), attempt, card)

	var settlementErr *booking.SettlementError
	require.ErrorAs(t, err, &settlementErr)
	assert.Equal(t, attempt.Intent.PaymentIntentID, settlementErr.PaymentIntentID)

	assert.Equal(t, booking.StepPayment, attempt.Step)
	require.NotNil(t, attempt.Error)
	assert.Equal(t, booking.ErrorKindSettlement, attempt.Error.Kind)
	assert.Equal(t, "The selected time slot is no longer available", attempt.Error.Message)
	assert.Nil(t, attempt.Confirmation)

	view := controller.View(attempt)
	assert.Nil(t, view.Confirmation, "guide contact must not be shown before a successful confirmation")

	_, err = controller.Done(attempt)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
}

func TestController_Pay_settlementRejectedWithError(t *testing.T) {
	content := newContentMock()
	content.ConfirmPaymentFn = func(entity.ConfirmPaymentRequest) (entity.PaymentConfirmation, error) {
		return entity.PaymentConfirmation{}, &entity.ServiceError{StatusCode: 409, Message: "Booking already exists"}
	}
	controller := newController(t, content, &gateway.ProcessorMock{}, true)

	attempt := startInPayment(t, controller)
	err := controller.Pay(context.Background(), attempt, card)

	var settlementErr *booking.SettlementError
	require.ErrorAs(t, err, &settlementErr)
	assert.Equal(t, booking.StepPayment, attempt.Step)
	assert.Equal(t, "Booking already exists", attempt.Error.Message)
}

func TestController_Pay_settlementUnreachable(t *testing.T) {
	content := newContentMock()
	content.ConfirmPaymentFn = func(entity.ConfirmPaymentRequest) (entity.PaymentConfirmation, error) {
		return entity.PaymentConfirmation{}, errors.New("i/o timeout")
	}
	controller := newController(t, content, &gateway.ProcessorMock{}, true)

	attempt := startInPayment(t, controller)
	err := controller.Pay(context.Background(), attempt, card)

	var connectivityErr *booking.ConnectivityError
	require.ErrorAs(t, err, &connectivityErr)
	assert.Equal(t, booking.StepPayment, attempt.Step)
	assert.Equal(t, "Payment processing error", attempt.Error.Message)
}

func TestController_Pay_processorErrors(t *testing.T) {
	testCases := []struct {
		Name            string
		Result          entity.ProcessorResult
		Err             error
		ExpectedKind    booking.ErrorKind
		ExpectedMessage string
	}{
		{
			Name: "card declined",
			Result: entity.ProcessorResult{
				Failure: &entity.ProcessorFailure{Code: "card_declined", Type: "card_error", Message: "Your card was declined."},
			},
			ExpectedKind:    booking.ErrorKindProcessor,
			ExpectedMessage: "Your card was declined.",
		},
		{
			Name: "failure without message",
			Result: entity.ProcessorResult{
				Failure: &entity.ProcessorFailure{Code: "processing_error"},
			},
			ExpectedKind:    booking.ErrorKindProcessor,
			ExpectedMessage: "Payment failed",
		},
		{
			Name: "requires action",
			Result: entity.ProcessorResult{
				Intent: &entity.ProcessorIntent{ID: "pi_1", Status: "requires_action"},
			},
			ExpectedKind:    booking.ErrorKindProcessor,
			ExpectedMessage: "Payment was not completed (status: requires_action)",
		},
		{
			Name:            "unreachable",
			Err:             errors.New("connection reset"),
			ExpectedKind:    booking.ErrorKindConnectivity,
			ExpectedMessage: "Payment processing error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			content := newContentMock()
			processor := &gateway.ProcessorMock{
				ConfirmFn: func(string, entity.PaymentMethod) (entity.ProcessorResult, error) {
					return tc.Result, tc.Err
				},
			}
			controller := newController(t, content, processor, true)

			attempt := startInPayment(t, controller)
			err := controller.Pay(context.Background(), attempt, card)
			require.Error(t, err)

			assert.Equal(t, booking.StepPayment, attempt.Step)
			require.NotNil(t, attempt.Error)
			assert.Equal(t, tc.ExpectedKind, attempt.Error.Kind)
			assert.Equal(t, tc.ExpectedMessage, attempt.Error.Message)

			assert.Equal(t, 0, content.ConfirmedPaymentsCount())
		})
	}
}

func TestController_Pay_missingPaymentMethod(t *testing.T) {
	content := newContentMock()
	processor := &gateway.ProcessorMock{}
	controller := newController(t, content, processor, true)

	attempt := startInPayment(t, controller)
	err := controller.Pay(context.Background(), attempt, entity.PaymentMethod{})

	var validationErr *booking.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, 0, processor.ConfirmationsCount())
	assert.Equal(t, booking.StepPayment, attempt.Step)
}

func TestController_Pay_errorClearedOnRetry(t *testing.T) {
	declined := true
	processor := &gateway.ProcessorMock{
		ConfirmFn: func(clientSecret string, _ entity.PaymentMethod) (entity.ProcessorResult, error) {
			if declined {
				return entity.ProcessorResult{
					Failure: &entity.ProcessorFailure{Code: "card_declined", Message: "Your card was declined."},
				}, nil
			}
			return entity.ProcessorResult{
				Intent: &entity.ProcessorIntent{ID: "pi", Status: entity.ProcessorIntentStatusSucceeded},
			}, nil
		},
	}
	controller := newController(t, newContentMock(), processor, true)

	attempt := startInPayment(t, controller)
	require.Error(t, controller.Pay(context.Background(), attempt, card))
	require.NotNil(t, attempt.Error)

	declined = false
	require.NoError(t, controller.Pay(context.Background(), attempt, card))
	assert.Nil(t, attempt.Error)
	assert.Equal(t, booking.StepSuccess, attempt.Step)
}

func alreadyConfirmed(string, entity.PaymentMethod) (entity.ProcessorResult, error) {
	return entity.ProcessorResult{
		Failure: &entity.ProcessorFailure{
			Code:    entity.CodePaymentIntentUnexpectedState,
			Type:    "invalid_request_error",
			Message: "You cannot confirm this PaymentIntent because it has already succeeded after being previously confirmed.",
		},
	}, nil
}

func TestController_Pay_alreadyConfirmed(t *testing.T) {
	content := newContentMock()
	processor := &gateway.ProcessorMock{ConfirmFn: alreadyConfirmed}
	controller := newController(t, content, processor, false)

	attempt := startInPayment(t, controller)
	require.NoError(t, controller.Pay(context.Background(), attempt, card))

	assert.Equal(t, booking.StepSuccess, attempt.Step)
	assert.Equal(t, 1, processor.ConfirmationsCount())
	require.Len(t, content.ConfirmedPayments, 1)
	assert.Equal(t, attempt.Intent.PaymentIntentID, content.ConfirmedPayments[0].PaymentIntentID)
}

func TestController_Pay_alreadyConfirmedVerified(t *testing.T) {
	testCases := []struct {
		Name          string
		IntentStatus  string
		Verify        bool
		ExpectSettled bool
		Retrievals    int
	}{
		{
			Name:          "succeeded",
			IntentStatus:  entity.ProcessorIntentStatusSucceeded,
			Verify:        true,
			ExpectSettled: true,
			Retrievals:    1,
		},
		{
			Name:          "not succeeded",
			IntentStatus:  "requires_payment_method",
			Verify:        true,
			ExpectSettled: false,
			Retrievals:    1,
		},
		{
			Name:          "verification disabled",
			IntentStatus:  "requires_payment_method",
			Verify:        false,
			ExpectSettled: true,
			Retrievals:    0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			content := newContentMock()
			processor := &gateway.RetrievingProcessorMock{
				ProcessorMock: gateway.ProcessorMock{ConfirmFn: alreadyConfirmed},
				IntentStatus:  tc.IntentStatus,
			}
			controller := newController(t, content, processor, tc.Verify)

			attempt := startInPayment(t, controller)
			err := controller.Pay(context.Background(), attempt, card)

			assert.Len(t, processor.Retrievals, tc.Retrievals)
			assert.Equal(t, 1, processor.ConfirmationsCount())

			if tc.ExpectSettled {
				require.NoError(t, err)
				assert.Equal(t, booking.StepSuccess, attempt.Step)
				assert.Equal(t, 1, content.ConfirmedPaymentsCount())
				return
			}

			var processorErr *booking.ProcessorError
			require.ErrorAs(t, err, &processorErr)
			assert.Equal(t, booking.StepPayment, attempt.Step)
			assert.Equal(t, 0, content.ConfirmedPaymentsCount())
		})
	}
}

func TestController_Back(t *testing.T) {
	content := newContentMock()
	controller := newController(t, content, &gateway.ProcessorMock{}, true)
	ctx := context.Background()

	attempt := startInPayment(t, controller)
	entered := attempt.Request
	firstIntent := attempt.Intent.PaymentIntentID

	require.NoError(t, controller.Back(ctx, attempt))
	assert.Equal(t, booking.StepForm, attempt.Step)
	assert.Equal(t, entered, attempt.Request)

	view := controller.View(attempt)
	assert.Empty(t, view.AmountToPay)
	assert.Equal(t, entered, view.Request)

	require.NoError(t, controller.UpdateForm(attempt, booking.FormPatch{Hours: lo.ToPtr(4)}))
	require.NoError(t, controller.SubmitForm(ctx, attempt))

	assert.Equal(t, 2, content.CreatedIntentsCount())
	assert.NotEqual(t, firstIntent, attempt.Intent.PaymentIntentID)
	assert.Equal(t, "$16.00", controller.View(attempt).AmountToPay)
}

func TestController_invalidTransitions(t *testing.T) {
	controller := newController(t, newContentMock(), &gateway.ProcessorMock{}, true)
	ctx := context.Background()

	form := startFilled(t, controller)
	assert.ErrorIs(t, controller.Pay(ctx, form, card), booking.ErrInvalidTransition)
	assert.ErrorIs(t, controller.Back(ctx, form), booking.ErrInvalidTransition)
	_, err := controller.Done(form)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	payment := startInPayment(t, controller)
	assert.ErrorIs(t, controller.UpdateForm(payment, validForm()), booking.ErrInvalidTransition)
	assert.ErrorIs(t, controller.SubmitForm(ctx, payment), booking.ErrInvalidTransition)

	require.NoError(t, controller.Pay(ctx, payment, card))
	assert.ErrorIs(t, controller.Pay(ctx, payment, card), booking.ErrInvalidTransition)
	assert.ErrorIs(t, controller.Back(ctx, payment), booking.ErrInvalidTransition)
	assert.ErrorIs(t, controller.UpdateForm(payment, validForm()), booking.ErrInvalidTransition)
}
