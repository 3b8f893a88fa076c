package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tours/app"
	"tours/attempts"
	"tours/booking"
	"tours/db"
	"tours/entity"
	"tours/gateway"
	"tours/pubsub/bus"
	"tours/pubsub/outbox"
)

const (
	httpAddress = "localhost:8081"
	serverURL   = "http://" + httpAddress

	guideAvailable   int64 = 1
	guideUnavailable int64 = 2
	guideUnreachable int64 = 3
)

func TestComponent(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("github.com/testcontainers/testcontainers-go.(*Reaper).Connect.func1"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)

	ctx, cancel := context.WithCancel(context.Background())

	dbconn, err := sqlx.Open("postgres", postgresURL)
	require.NoError(t, err)
	defer dbconn.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()

	content := &gateway.ContentMock{
		Guides: map[int64]entity.Guide{
			guideAvailable:   {ID: guideAvailable, FullName: "Aziz Karimov", PricePerHour: "50000", AverageTourDuration: 2},
			guideUnavailable: {ID: guideUnavailable, FullName: "Dilnoza Yusupova", PricePerHour: "50000"},
			guideUnreachable: {ID: guideUnreachable, FullName: "Rustam Aliev", PricePerHour: "50000"},
		},
		ConfirmPaymentFn: func(request entity.ConfirmPaymentRequest) (entity.PaymentConfirmation, error) {
			switch request.GuideID {
			case guideUnavailable:
				return entity.PaymentConfirmation{Status: "error", Error: "Guide is not available"}, nil
			case guideUnreachable:
				return entity.PaymentConfirmation{}, errors.New("connection reset by peer")
			}
			return entity.PaymentConfirmation{
				Status:       entity.PaymentConfirmationStatusSuccess,
				BookingID:    "booking-" + request.PaymentIntentID,
				GuideContact: entity.GuideContact{Name: "Aziz Karimov", Phone: "+998 90 123 45 67"},
			}, nil
		},
	}
	processor := &gateway.ProcessorMock{}

	application, err := app.New(
		app.Config{
			HTTPAddr:             httpAddress,
			StripePublishableKey: "pk_test_component",
			Booking:              booking.Config{VerifyReplayedIntents: true},
		},
		dbconn,
		redisClient,
		content,
		processor,
		attempts.NewRedisRepository(redisClient, time.Hour, 15*time.Second),
		nil,
	)
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		assert.NoError(t, application.Run(ctx))
	}()
	defer func() {
		cancel()
		<-finished
	}()

	waitForHttpServer(t)

	opsReadModel := db.NewOpsPaymentIntents(dbconn)

	t.Run("settled booking", func(t *testing.T) {
		view := bookAndPay(t, guideAvailable)
		require.Equal(t, booking.StepSuccess, view.Step)
		require.NotNil(t, view.Confirmation)
		assert.Equal(t, "+998 90 123 45 67", view.Confirmation.GuideContact.Phone)

		assertIntentStatus(t, opsReadModel, lastIntentID(t, processor), entity.OpsIntentStatusSettled)
	})

	t.Run("failed settlement and reconciliation", func(t *testing.T) {
		view := bookAndPay(t, guideUnavailable)
		require.Equal(t, booking.StepPayment, view.Step)
		require.NotNil(t, view.Error)
		assert.Equal(t, booking.ErrorKindSettlement, view.Error.Kind)
		assert.Nil(t, view.Confirmation)

		intentID := lastIntentID(t, processor)
		assertIntentStatus(t, opsReadModel, intentID, entity.OpsIntentStatusSettlementFailed)

		closeAttempt(t, view.AttemptID)

		assert.EventuallyWithT(
			t,
			func(collectT *assert.CollectT) {
				rm, err := opsReadModel.Get(context.Background(), intentID)
				if !assert.NoError(collectT, err) {
					return
				}
				assert.False(collectT, rm.AbandonedAt.IsZero(), "abandon not processed yet")
				assert.Equal(collectT, entity.OpsIntentStatusSettlementFailed, rm.Status)
			},
			10*time.Second,
			100*time.Millisecond,
		)

		_, err := opsReadModel.Resolve(
			context.Background(),
			intentID,
			entity.ResolutionRefunded,
			"refunded manually",
			func(ctx context.Context, tx *sqlx.Tx, rm entity.OpsPaymentIntent) error {
				publisher, err := outbox.NewPublisher(tx.Tx, log.NewWatermill(log.FromContext(ctx)))
				if err != nil {
					return err
				}
				eventBus, err := bus.NewEventBus(publisher)
				if err != nil {
					return err
				}
				return eventBus.Publish(ctx, entity.SettlementReconciled_v1{
					Header:          entity.NewEventHeader(),
					PaymentIntentID: rm.PaymentIntentID,
					Resolution:      rm.Resolution,
					Note:            rm.ResolutionNote,
				})
			},
		)
		require.NoError(t, err)

		assertIntentStatus(t, opsReadModel, intentID, entity.OpsIntentStatusReconciled)
		assertEventInDataLake(t, db.NewDataLake(dbconn), "SettlementReconciled_v1")
	})

	t.Run("content service unreachable after charge", func(t *testing.T) {
		view := bookAndPay(t, guideUnreachable)
		require.Equal(t, booking.StepPayment, view.Step)
		require.NotNil(t, view.Error)
		assert.Equal(t, booking.ErrorKindConnectivity, view.Error.Kind)

		intentID := lastIntentID(t, processor)
		assertIntentStatus(t, opsReadModel, intentID, entity.OpsIntentStatusSettlementFailed)

		closeAttempt(t, view.AttemptID)

		assert.EventuallyWithT(
			t,
			func(collectT *assert.CollectT) {
				rm, err := opsReadModel.Get(context.Background(), intentID)
				if !assert.NoError(collectT, err) {
					return
				}
				assert.False(collectT, rm.AbandonedAt.IsZero(), "abandon not processed yet")
				assert.Equal(collectT, entity.OpsIntentStatusSettlementFailed, rm.Status)
				assert.Equal(collectT, booking.SettlementUnreachableReason, rm.FailureReason)
			},
			10*time.Second,
			100*time.Millisecond,
		)
	})
}

func bookAndPay(t *testing.T, guideID int64) booking.View {
	t.Helper()

	view := sendJSON(t, http.MethodPost, "/bookings", map[string]any{"guide_id": guideID}, http.StatusCreated)
	path := "/bookings/" + view.AttemptID

	sendJSON(t, http.MethodPatch, path+"/form", map[string]any{
		"name":  "Jane Doe",
		"email": "jane@example.com",
		"phone": "+1 555 0100",
		"hours": 2,
	}, http.StatusOK)

	view = sendJSON(t, http.MethodPost, path+"/submit", nil, http.StatusOK)
	require.Equal(t, booking.StepPayment, view.Step)
	assert.Equal(t, "$8.00", view.AmountToPay)

	return sendJSON(t, http.MethodPost, path+"/pay", map[string]any{"payment_method_id": "pm_card_visa"}, 0)
}

func closeAttempt(t *testing.T, attemptID string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, serverURL+"/bookings/"+attemptID, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func sendJSON(t *testing.T, method, path string, body any, expectedStatus int) booking.View {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(method, serverURL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if expectedStatus != 0 {
		require.Equal(t, expectedStatus, resp.StatusCode)
	}

	var view booking.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))

	return view
}

func lastIntentID(t *testing.T, processor *gateway.ProcessorMock) string {
	t.Helper()

	require.NotZero(t, processor.ConfirmationsCount())
	last, err := lo.Last(processor.Confirmations)
	require.NoError(t, err)

	return last.ClientSecret[:len(last.ClientSecret)-len("_secret_mock")]
}

func assertIntentStatus(t *testing.T, repo db.OpsPaymentIntents, intentID, status string) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(collectT *assert.CollectT) {
			rm, err := repo.Get(context.Background(), intentID)
			if !assert.NoError(collectT, err) {
				return
			}
			assert.Equal(collectT, status, rm.Status)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

func assertEventInDataLake(t *testing.T, dataLake db.DataLake, eventName string) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(collectT *assert.CollectT) {
			events, err := dataLake.GetEvents(context.Background())
			if !assert.NoError(collectT, err) {
				return
			}
			_, found := lo.Find(events, func(e entity.DataLakeEvent) bool { return e.Name == eventName })
			assert.True(collectT, found, "event %s not found in data lake", eventName)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

func waitForHttpServer(t *testing.T) {
	t.Helper()

	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get(serverURL + "/health")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			assert.Less(t, resp.StatusCode, 300, "API not ready, http status: %d", resp.StatusCode)
		},
		time.Second*10,
		time.Millisecond*50,
	)
}
