package attempts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tours/booking"
)

type memoryEntry struct {
	attempt   booking.Attempt
	busy      bool
	expiresAt time.Time
}

// MemoryRepository keeps attempts in the process. It is used when no Redis is configured and in tests.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	if ttl <= 0 {
		panic("ttl must be positive")
	}

	return &MemoryRepository{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (r *MemoryRepository) Add(ctx context.Context, attempt booking.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweep()

	if _, ok := r.entries[attempt.ID]; ok {
		return fmt.Errorf("booking attempt %s already exists", attempt.ID)
	}

	r.entries[attempt.ID] = &memoryEntry{
		attempt:   attempt,
		expiresAt: r.now().Add(r.ttl),
	}

	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, attemptID string) (booking.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.entry(attemptID)
	if err != nil {
		return booking.Attempt{}, err
	}

	return e.attempt, nil
}

func (r *MemoryRepository) Update(
	ctx context.Context,
	attemptID string,
	updateFn func(attempt *booking.Attempt) error,
) (booking.Attempt, error) {
	r.mu.Lock()
	e, err := r.entry(attemptID)
	if err != nil {
		r.mu.Unlock()
		return booking.Attempt{}, err
	}
	if e.busy {
		r.mu.Unlock()
		return booking.Attempt{}, booking.ErrAttemptBusy
	}
	e.busy = true
	attempt := e.attempt
	r.mu.Unlock()

	// updateFn may call external services, the entry stays reserved meanwhile
	fnErr := updateFn(&attempt)

	r.mu.Lock()
	defer r.mu.Unlock()

	e.busy = false
	if fnErr != nil {
		return booking.Attempt{}, fnErr
	}

	e.attempt = attempt
	e.expiresAt = r.now().Add(r.ttl)

	return attempt, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, attemptID string) (booking.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.entry(attemptID)
	if err != nil {
		return booking.Attempt{}, err
	}
	if e.busy {
		return booking.Attempt{}, booking.ErrAttemptBusy
	}

	delete(r.entries, attemptID)

	return e.attempt, nil
}

// entry must be called with mu held.
func (r *MemoryRepository) entry(attemptID string) (*memoryEntry, error) {
	e, ok := r.entries[attemptID]
	if !ok {
		return nil, booking.ErrAttemptNotFound
	}
	if !e.busy && r.now().After(e.expiresAt) {
		delete(r.entries, attemptID)
		return nil, booking.ErrAttemptNotFound
	}

	return e, nil
}

func (r *MemoryRepository) sweep() {
	now := r.now()
	for id, e := range r.entries {
		if !e.busy && now.After(e.expiresAt) {
			delete(r.entries, id)
		}
	}
}
