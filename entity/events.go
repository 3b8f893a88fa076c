package entity

import (
	"time"

	"github.com/google/uuid"
)

type Event interface {
	IsInternal() bool
}

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type BookingAttemptStarted_v1 struct {
	Header    EventHeader `json:"header"`
	AttemptID string      `json:"attempt_id"`
	GuideID   int64       `json:"guide_id"`
	SiteID    *int64      `json:"site_id,omitempty"`
}

func (e BookingAttemptStarted_v1) IsInternal() bool {
	return false
}

type PaymentIntentCreated_v1 struct {
	Header          EventHeader `json:"header"`
	AttemptID       string      `json:"attempt_id"`
	PaymentIntentID string      `json:"payment_intent_id"`
	GuideID         int64       `json:"guide_id"`
	SiteID          *int64      `json:"site_id,omitempty"`
	Hours           int         `json:"hours"`
	AmountDisplay   string      `json:"amount_display"`
	Currency        string      `json:"currency"`
	TouristEmail    string      `json:"tourist_email"`
}

func (e PaymentIntentCreated_v1) IsInternal() bool {
	return false
}

// BookingSettled_v1 deliberately carries no guide contact details.
type BookingSettled_v1 struct {
	Header          EventHeader `json:"header"`
	AttemptID       string      `json:"attempt_id"`
	BookingID       string      `json:"booking_id"`
	PaymentIntentID string      `json:"payment_intent_id"`
	GuideID         int64       `json:"guide_id"`
	SiteID          *int64      `json:"site_id,omitempty"`
	Date            string      `json:"date"`
	Time            string      `json:"time"`
	Hours           int         `json:"hours"`
	TotalPaid       string      `json:"total_paid"`
}

func (e BookingSettled_v1) IsInternal() bool {
	return false
}

// SettlementFailed_v1 is published when the processor charged the card but the
// content service refused to settle. Such intents need manual reconciliation.
type SettlementFailed_v1 struct {
	Header          EventHeader `json:"header"`
	AttemptID       string      `json:"attempt_id"`
	PaymentIntentID string      `json:"payment_intent_id"`
	GuideID         int64       `json:"guide_id"`
	SiteID          *int64      `json:"site_id,omitempty"`
	TouristEmail    string      `json:"tourist_email"`
	Reason          string      `json:"reason"`
}

func (e SettlementFailed_v1) IsInternal() bool {
	return false
}

type BookingAbandoned_v1 struct {
	Header          EventHeader `json:"header"`
	AttemptID       string      `json:"attempt_id"`
	Step            string      `json:"step"`
	PaymentIntentID string      `json:"payment_intent_id,omitempty"`
}

func (e BookingAbandoned_v1) IsInternal() bool {
	return false
}

type InternalOpsReadModelUpdated struct {
	Header          EventHeader `json:"header"`
	PaymentIntentID string      `json:"payment_intent_id"`
}

func (e InternalOpsReadModelUpdated) IsInternal() bool {
	return true
}

// SettlementReconciled_v1 records the operator's resolution of a failed settlement.
type SettlementReconciled_v1 struct {
	Header          EventHeader `json:"header"`
	PaymentIntentID string      `json:"payment_intent_id"`
	Resolution      string      `json:"resolution"`
	Note            string      `json:"note,omitempty"`
}

func (e SettlementReconciled_v1) IsInternal() bool {
	return false
}
