package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"tours/entity"
)

// OpsPaymentIntents is the operator read model of payment intents. Events can arrive
// in any order, so updates create the row when it does not exist yet.
type OpsPaymentIntents struct {
	db *sqlx.DB
}

func NewOpsPaymentIntents(db *sqlx.DB) OpsPaymentIntents {
	if db == nil {
		panic("db is nil")
	}

	return OpsPaymentIntents{db: db}
}

func (r OpsPaymentIntents) Update(
	ctx context.Context,
	paymentIntentID string,
	updateFn func(rm entity.OpsPaymentIntent) (entity.OpsPaymentIntent, error),
) error {
	return updateInTx(
		ctx,
		r.db,
		sql.LevelRepeatableRead,
		func(ctx context.Context, tx *sqlx.Tx) error {
			rm, err := r.findForUpdate(ctx, tx, paymentIntentID)
			if errors.Is(err, entity.ErrNotFound) {
				rm = entity.OpsPaymentIntent{PaymentIntentID: paymentIntentID}
			} else if err != nil {
				return err
			}

			updated, err := updateFn(rm)
			if err != nil {
				return err
			}

			return r.store(ctx, tx, updated)
		},
	)
}

// Resolve closes a failed settlement. onResolved runs in the same transaction, so a
// resolution is recorded together with whatever the caller stores alongside it.
func (r OpsPaymentIntents) Resolve(
	ctx context.Context,
	paymentIntentID string,
	resolution string,
	note string,
	onResolved func(ctx context.Context, tx *sqlx.Tx, rm entity.OpsPaymentIntent) error,
) (entity.OpsPaymentIntent, error) {
	if !entity.IsValidResolution(resolution) {
		return entity.OpsPaymentIntent{}, fmt.Errorf("invalid resolution %q", resolution)
	}

	var resolved entity.OpsPaymentIntent
	err := updateInTx(
		ctx,
		r.db,
		sql.LevelRepeatableRead,
		func(ctx context.Context, tx *sqlx.Tx) error {
			rm, err := r.findForUpdate(ctx, tx, paymentIntentID)
			if err != nil {
				return err
			}
			if rm.Status != entity.OpsIntentStatusSettlementFailed {
				return fmt.Errorf(
					"payment intent %s is %s, only failed settlements can be resolved: %w",
					paymentIntentID,
					rm.Status,
					entity.ErrConflict,
				)
			}

			rm.Reconcile(resolution, note, time.Now().UTC())
			if err := r.store(ctx, tx, rm); err != nil {
				return err
			}

			resolved = rm
			if onResolved != nil {
				return onResolved(ctx, tx, rm)
			}
			return nil
		},
	)
	if err != nil {
		return entity.OpsPaymentIntent{}, err
	}

	return resolved, nil
}

func (r OpsPaymentIntents) Get(ctx context.Context, paymentIntentID string) (entity.OpsPaymentIntent, error) {
	var payload []byte

	err := r.db.QueryRowContext(
		ctx,
		"SELECT payload FROM ops_payment_intents WHERE payment_intent_id = $1",
		paymentIntentID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.OpsPaymentIntent{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.OpsPaymentIntent{}, fmt.Errorf("could not get payment intent %s: %w", paymentIntentID, err)
	}

	return unmarshalOpsPaymentIntent(payload)
}

// FindAll returns read models ordered from the newest; an empty status returns all of them.
func (r OpsPaymentIntents) FindAll(ctx context.Context, status string) ([]entity.OpsPaymentIntent, error) {
	query := "SELECT payload FROM ops_payment_intents"
	var args []any

	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY updated_at DESC"

	var payloads [][]byte
	if err := r.db.SelectContext(ctx, &payloads, query, args...); err != nil {
		return nil, fmt.Errorf("could not list payment intents: %w", err)
	}

	result := make([]entity.OpsPaymentIntent, 0, len(payloads))
	for _, payload := range payloads {
		rm, err := unmarshalOpsPaymentIntent(payload)
		if err != nil {
			return nil, err
		}
		result = append(result, rm)
	}

	return result, nil
}

func (r OpsPaymentIntents) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM ops_payment_intents WHERE status = $1", status)
	if err != nil {
		return 0, fmt.Errorf("could not count payment intents: %w", err)
	}

	return count, nil
}

func (r OpsPaymentIntents) findForUpdate(
	ctx context.Context,
	db dbExecutor,
	paymentIntentID string,
) (entity.OpsPaymentIntent, error) {
	var payload []byte

	err := db.QueryRowContext(
		ctx,
		"SELECT payload FROM ops_payment_intents WHERE payment_intent_id = $1 FOR UPDATE",
		paymentIntentID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.OpsPaymentIntent{}, entity.ErrNotFound
	}
	if err != nil {
		return entity.OpsPaymentIntent{}, fmt.Errorf("could not find payment intent %s: %w", paymentIntentID, err)
	}

	return unmarshalOpsPaymentIntent(payload)
}

func (r OpsPaymentIntents) store(ctx context.Context, db dbExecutor, rm entity.OpsPaymentIntent) error {
	rm.LastUpdate = time.Now().UTC()

	payload, err := json.Marshal(rm)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO 
			ops_payment_intents (payment_intent_id, status, payload, updated_at)
		VALUES
			($1, $2, $3, $4)
		ON CONFLICT (payment_intent_id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload,
			updated_at = excluded.updated_at;
		`, rm.PaymentIntentID, rm.Status, payload, rm.LastUpdate)
	if err != nil {
		return fmt.Errorf("could not store payment intent read model: %w", err)
	}

	return nil
}

func unmarshalOpsPaymentIntent(payload []byte) (entity.OpsPaymentIntent, error) {
	var rm entity.OpsPaymentIntent
	if err := json.Unmarshal(payload, &rm); err != nil {
		return entity.OpsPaymentIntent{}, fmt.Errorf("could not unmarshal payment intent read model: %w", err)
	}

	return rm, nil
}
