package entity

import (
	"time"
)

const (
	OpsIntentStatusPending          = "pending"
	OpsIntentStatusSettled          = "settled"
	OpsIntentStatusSettlementFailed = "settlement_failed"
	OpsIntentStatusAbandoned        = "abandoned"
	OpsIntentStatusReconciled       = "reconciled"
)

const (
	ResolutionRefunded = "refunded"
	ResolutionSettled  = "settled"
)

func IsValidResolution(resolution string) bool {
	return resolution == ResolutionRefunded || resolution == ResolutionSettled
}

// OpsPaymentIntent is the operator's view of a payment intent created by a booking attempt.
type OpsPaymentIntent struct {
	PaymentIntentID string `json:"payment_intent_id"`
	AttemptID       string `json:"attempt_id"`
	Status          string `json:"status"`

	GuideID       int64  `json:"guide_id"`
	SiteID        *int64 `json:"site_id,omitempty"`
	Hours         int    `json:"hours"`
	AmountDisplay string `json:"amount_display"`
	Currency      string `json:"currency"`
	TouristEmail  string `json:"tourist_email"`

	CreatedAt   time.Time `json:"created_at"`
	SettledAt   time.Time `json:"settled_at,omitempty"`
	FailedAt    time.Time `json:"failed_at,omitempty"`
	AbandonedAt time.Time `json:"abandoned_at,omitempty"`

	BookingID     string `json:"booking_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`

	ReconciledAt   time.Time `json:"reconciled_at,omitempty"`
	Resolution     string    `json:"resolution,omitempty"`
	ResolutionNote string    `json:"resolution_note,omitempty"`

	LastUpdate time.Time `json:"last_update"`
}

var opsIntentStatusRank = map[string]int{
	"":                              0,
	OpsIntentStatusPending:          1,
	OpsIntentStatusAbandoned:        2,
	OpsIntentStatusSettlementFailed: 3,
	OpsIntentStatusSettled:          4,
	OpsIntentStatusReconciled:       5,
}

// AdvanceStatus moves the intent to status unless it already reached a later one.
// A failed settlement survives the attempt being abandoned afterwards, a successful retry
// overrides the failure.
func (i *OpsPaymentIntent) AdvanceStatus(status string) bool {
	if opsIntentStatusRank[status] <= opsIntentStatusRank[i.Status] {
		return false
	}
	i.Status = status
	return true
}

func (i *OpsPaymentIntent) Reconcile(resolution, note string, at time.Time) {
	i.Status = OpsIntentStatusReconciled
	i.Resolution = resolution
	i.ResolutionNote = note
	i.ReconciledAt = at
}
