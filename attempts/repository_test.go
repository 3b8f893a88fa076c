package attempts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tours/booking"
	"tours/entity"
)

func newAttempt() booking.Attempt {
	return booking.Attempt{
		ID:    uuid.NewString(),
		Step:  booking.StepForm,
		Guide: entity.Guide{ID: 1, FullName: "Aziz Karimov", PricePerHour: "50000"},
		Request: entity.BookingRequest{
			Date:  "2024-05-02",
			Time:  "10:00",
			Hours: 2,
		},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// testRepository checks the behaviour both repositories share.
func testRepository(t *testing.T, repo booking.AttemptRepository) {
	ctx := context.Background()

	t.Run("add and get", func(t *testing.T) {
		attempt := newAttempt()
		require.NoError(t, repo.Add(ctx, attempt))

		got, err := repo.Get(ctx, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, attempt, got)

		assert.Error(t, repo.Add(ctx, attempt), "adding the same attempt twice should fail")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, booking.ErrAttemptNotFound)

		_, err = repo.Update(ctx, uuid.NewString(), func(*booking.Attempt) error { return nil })
		assert.ErrorIs(t, err, booking.ErrAttemptNotFound)

		_, err = repo.Delete(ctx, uuid.NewString())
		assert.ErrorIs(t, err, booking.ErrAttemptNotFound)
	})

	t.Run("update", func(t *testing.T) {
		attempt := newAttempt()
		require.NoError(t, repo.Add(ctx, attempt))

		updated, err := repo.Update(ctx, attempt.ID, func(a *booking.Attempt) error {
			a.Request.Name = "Jane Doe"
			a.Error = &booking.FlowError{Kind: booking.ErrorKindValidation, Field: "email", Message: "email is required"}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", updated.Request.Name)

		got, err := repo.Get(ctx, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("failed update is not stored", func(t *testing.T) {
		attempt := newAttempt()
		require.NoError(t, repo.Add(ctx, attempt))

		errBoom := errors.New("boom")
		_, err := repo.Update(ctx, attempt.ID, func(a *booking.Attempt) error {
			a.Step = booking.StepPayment
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)

		got, err := repo.Get(ctx, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.StepForm, got.Step)
	})

	t.Run("busy while updating", func(t *testing.T) {
		attempt := newAttempt()
		require.NoError(t, repo.Add(ctx, attempt))

		_, err := repo.Update(ctx, attempt.ID, func(a *booking.Attempt) error {
			_, err := repo.Update(ctx, attempt.ID, func(*booking.Attempt) error { return nil })
			assert.ErrorIs(t, err, booking.ErrAttemptBusy)

			_, err = repo.Delete(ctx, attempt.ID)
			assert.ErrorIs(t, err, booking.ErrAttemptBusy)

			got, err := repo.Get(ctx, attempt.ID)
			assert.NoError(t, err, "reads are not blocked by an update")
			assert.Equal(t, attempt.ID, got.ID)

			return nil
		})
		require.NoError(t, err)

		_, err = repo.Update(ctx, attempt.ID, func(*booking.Attempt) error { return nil })
		assert.NoError(t, err, "attempt should be released after the update")
	})

	t.Run("delete", func(t *testing.T) {
		attempt := newAttempt()
		require.NoError(t, repo.Add(ctx, attempt))

		deleted, err := repo.Delete(ctx, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, attempt.ID, deleted.ID)

		_, err = repo.Get(ctx, attempt.ID)
		assert.ErrorIs(t, err, booking.ErrAttemptNotFound)
	})
}
