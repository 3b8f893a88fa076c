package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"

	"tours/entity"
)

type DataLake interface {
	GetEvents(ctx context.Context) ([]entity.DataLakeEvent, error)
}

type OpsReadModelHandlers interface {
	OnPaymentIntentCreated(ctx context.Context, event *entity.PaymentIntentCreated_v1) error
	OnBookingSettled(ctx context.Context, event *entity.BookingSettled_v1) error
	OnSettlementFailed(ctx context.Context, event *entity.SettlementFailed_v1) error
	OnBookingAbandoned(ctx context.Context, event *entity.BookingAbandoned_v1) error
	OnSettlementReconciled(ctx context.Context, event *entity.SettlementReconciled_v1) error
}

// RebuildOpsReadModel replays every event stored in the data lake into the ops read model.
// Handlers are idempotent, so replaying over an existing read model is safe.
func RebuildOpsReadModel(ctx context.Context, dl DataLake, rm OpsReadModelHandlers) error {
	logger := log.FromContext(ctx)
	logger.Info("Rebuilding ops read model")

	events, err := dl.GetEvents(ctx)
	if err != nil {
		return err
	}

	logger.WithField("events_count", len(events)).Info("Has events to replay")

	replayed := 0
	for _, event := range events {
		start := time.Now()

		ok, err := replayEvent(ctx, event, rm)
		if err != nil {
			return fmt.Errorf("could not replay event %s (%s): %w", event.ID, event.Name, err)
		}
		if !ok {
			continue
		}
		replayed++

		logger.WithFields(logrus.Fields{
			"event_name": event.Name,
			"event_id":   event.ID,
			"duration":   time.Since(start),
		}).Debug("Event replayed")
	}

	logger.WithField("replayed", replayed).Info("Ops read model rebuilt")

	return nil
}

// replayEvent reports false for events the read model does not depend on.
func replayEvent(ctx context.Context, event entity.DataLakeEvent, rm OpsReadModelHandlers) (bool, error) {
	switch event.Name {
	case "PaymentIntentCreated_v1":
		return replay(ctx, event, rm.OnPaymentIntentCreated)
	case "BookingSettled_v1":
		return replay(ctx, event, rm.OnBookingSettled)
	case "SettlementFailed_v1":
		return replay(ctx, event, rm.OnSettlementFailed)
	case "BookingAbandoned_v1":
		return replay(ctx, event, rm.OnBookingAbandoned)
	case "SettlementReconciled_v1":
		return replay(ctx, event, rm.OnSettlementReconciled)
	default:
		return false, nil
	}
}

func replay[T any](ctx context.Context, event entity.DataLakeEvent, handle func(ctx context.Context, event *T) error) (bool, error) {
	eventInstance, err := unmarshalDataLakeEvent[T](event)
	if err != nil {
		return false, err
	}

	return true, handle(ctx, eventInstance)
}

func unmarshalDataLakeEvent[T any](event entity.DataLakeEvent) (*T, error) {
	eventInstance := new(T)

	err := json.Unmarshal(event.Payload, eventInstance)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal event %s: %w", event.Name, err)
	}

	return eventInstance, nil
}
