package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/redis/go-redis/v9"
)

const poisonQueueBatchSize = 100

type PoisonedMessage struct {
	ID     string
	Reason string
}

// PoisonQueue reads the poison queue stream directly. Nothing consumes it, so the
// stream itself is the queue and removing a message deletes its entry.
type PoisonQueue struct {
	rdb         *redis.Client
	unmarshaler redisstream.Unmarshaller
}

func NewPoisonQueue(rdb *redis.Client) *PoisonQueue {
	if rdb == nil {
		panic("redis client must be set")
	}

	return &PoisonQueue{rdb: rdb, unmarshaler: redisstream.DefaultMarshallerUnmarshaller{}}
}

func (q *PoisonQueue) Preview(ctx context.Context) ([]PoisonedMessage, error) {
	var result []PoisonedMessage

	err := q.walk(ctx, func(_ string, msg *message.Message) (bool, error) {
		result = append(result, PoisonedMessage{
			ID:     msg.UUID,
			Reason: msg.Metadata.Get(middleware.ReasonForPoisonedKey),
		})
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (q *PoisonQueue) Remove(ctx context.Context, messageID string) error {
	found := false

	err := q.walk(ctx, func(entryID string, msg *message.Message) (bool, error) {
		if msg.UUID != messageID {
			return true, nil
		}

		if err := q.rdb.XDel(ctx, PoisonQueueTopic, entryID).Err(); err != nil {
			return false, fmt.Errorf("could not remove poisoned message %s: %w", messageID, err)
		}
		found = true

		log.FromContext(ctx).WithField("message_uuid", messageID).Info("Poisoned message removed")
		return false, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("message %s not found", messageID)
	}

	return nil
}

// walk visits stream entries oldest first until visit returns false.
func (q *PoisonQueue) walk(ctx context.Context, visit func(entryID string, msg *message.Message) (next bool, err error)) error {
	start := "-"

	for {
		entries, err := q.rdb.XRangeN(ctx, PoisonQueueTopic, start, "+", poisonQueueBatchSize).Result()
		if err != nil {
			return fmt.Errorf("could not read poison queue: %w", err)
		}

		for _, entry := range entries {
			msg, err := q.unmarshaler.Unmarshal(entry.Values)
			if err != nil {
				return fmt.Errorf("could not unmarshal poisoned entry %s: %w", entry.ID, err)
			}

			next, err := visit(entry.ID, msg)
			if err != nil {
				return err
			}
			if !next {
				return nil
			}
		}

		if len(entries) < poisonQueueBatchSize {
			return nil
		}
		// exclusive range start
		start = "(" + entries[len(entries)-1].ID
	}
}
