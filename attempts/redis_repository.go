package attempts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tours/booking"
)

const (
	keyPrefix = "tours:booking-attempt:"

	minLockTTL = 2 * time.Minute
	// callsPerOperation is the most outbound calls made while an attempt is locked:
	// processor confirmation, intent retrieval and content service settlement.
	callsPerOperation = 3
	lockMargin        = 30 * time.Second
)

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRepository stores attempts as JSON snapshots that expire after ttl,
// so that several instances of the service can serve the same attempt.
type RedisRepository struct {
	rdb     *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisRepository takes the timeout of a single outbound call. The attempt lock
// outlives the slowest operation, and bounds how long a crashed instance keeps it.
func NewRedisRepository(rdb *redis.Client, ttl time.Duration, callTimeout time.Duration) *RedisRepository {
	if rdb == nil {
		panic("redis client must be set")
	}
	if ttl <= 0 {
		panic("ttl must be positive")
	}

	return &RedisRepository{rdb: rdb, ttl: ttl, lockTTL: lockTTLFor(callTimeout)}
}

func lockTTLFor(callTimeout time.Duration) time.Duration {
	return max(minLockTTL, callsPerOperation*callTimeout+lockMargin)
}

func attemptKey(attemptID string) string {
	return keyPrefix + attemptID
}

func lockKey(attemptID string) string {
	return keyPrefix + attemptID + ":lock"
}

func (r *RedisRepository) Add(ctx context.Context, attempt booking.Attempt) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("could not marshal booking attempt: %w", err)
	}

	ok, err := r.rdb.SetNX(ctx, attemptKey(attempt.ID), payload, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("could not store booking attempt: %w", err)
	}
	if !ok {
		return fmt.Errorf("booking attempt %s already exists", attempt.ID)
	}

	return nil
}

func (r *RedisRepository) Get(ctx context.Context, attemptID string) (booking.Attempt, error) {
	payload, err := r.rdb.Get(ctx, attemptKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return booking.Attempt{}, booking.ErrAttemptNotFound
	}
	if err != nil {
		return booking.Attempt{}, fmt.Errorf("could not get booking attempt: %w", err)
	}

	var attempt booking.Attempt
	if err := json.Unmarshal(payload, &attempt); err != nil {
		return booking.Attempt{}, fmt.Errorf("could not unmarshal booking attempt: %w", err)
	}

	return attempt, nil
}

func (r *RedisRepository) Update(
	ctx context.Context,
	attemptID string,
	updateFn func(attempt *booking.Attempt) error,
) (booking.Attempt, error) {
	var updated booking.Attempt

	err := r.withLock(ctx, attemptID, func() error {
		attempt, err := r.Get(ctx, attemptID)
		if err != nil {
			return err
		}

		if err := updateFn(&attempt); err != nil {
			return err
		}

		payload, err := json.Marshal(attempt)
		if err != nil {
			return fmt.Errorf("could not marshal booking attempt: %w", err)
		}

		// updateFn may have settled a payment, its outcome is stored even if the caller went away
		if err := r.rdb.Set(context.WithoutCancel(ctx), attemptKey(attemptID), payload, r.ttl).Err(); err != nil {
			return fmt.Errorf("could not update booking attempt: %w", err)
		}

		updated = attempt
		return nil
	})
	if err != nil {
		return booking.Attempt{}, err
	}

	return updated, nil
}

func (r *RedisRepository) Delete(ctx context.Context, attemptID string) (booking.Attempt, error) {
	var deleted booking.Attempt

	err := r.withLock(ctx, attemptID, func() error {
		attempt, err := r.Get(ctx, attemptID)
		if err != nil {
			return err
		}

		if err := r.rdb.Del(ctx, attemptKey(attemptID)).Err(); err != nil {
			return fmt.Errorf("could not delete booking attempt: %w", err)
		}

		deleted = attempt
		return nil
	})
	if err != nil {
		return booking.Attempt{}, err
	}

	return deleted, nil
}

func (r *RedisRepository) withLock(ctx context.Context, attemptID string, fn func() error) (err error) {
	token := uuid.NewString()

	acquired, err := r.rdb.SetNX(ctx, lockKey(attemptID), token, r.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("could not lock booking attempt: %w", err)
	}
	if !acquired {
		return booking.ErrAttemptBusy
	}

	defer func() {
		// the request context may already be cancelled, the lock has to be released anyway
		releaseErr := releaseLockScript.Run(context.WithoutCancel(ctx), r.rdb, []string{lockKey(attemptID)}, token).Err()
		if releaseErr != nil {
			err = errors.Join(err, fmt.Errorf("could not unlock booking attempt: %w", releaseErr))
		}
	}()

	return fn()
}
