package booking

import (
	"strings"
	"time"

	"tours/entity"
)

type Step string

const (
	StepForm    Step = "form"
	StepPayment Step = "payment"
	StepSuccess Step = "success"
)

// Attempt is the state of a single booking attempt. Only Controller moves it between steps:
// form -> payment -> success, with payment -> form as the only way back.
type Attempt struct {
	ID     string       `json:"id"`
	Step   Step         `json:"step"`
	Guide  entity.Guide `json:"guide"`
	SiteID *int64       `json:"site_id,omitempty"`

	Request entity.BookingRequest `json:"request"`

	Intent       *entity.PaymentIntent       `json:"intent,omitempty"`
	Confirmation *entity.PaymentConfirmation `json:"confirmation,omitempty"`

	Error *FlowError `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FormPatch holds the fields changed by the tourist; nil fields are left untouched.
type FormPatch struct {
	Date  *string `json:"date"`
	Time  *string `json:"time"`
	Hours *int    `json:"hours"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
	Notes *string `json:"notes"`
}

func (p FormPatch) apply(req *entity.BookingRequest) {
	if p.Date != nil {
		req.Date = strings.TrimSpace(*p.Date)
	}
	if p.Time != nil {
		req.Time = strings.TrimSpace(*p.Time)
	}
	if p.Hours != nil {
		req.Hours = *p.Hours
	}
	if p.Name != nil {
		req.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		req.Email = strings.TrimSpace(*p.Email)
	}
	if p.Phone != nil {
		req.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Notes != nil {
		req.Notes = *p.Notes
	}
}

// ConfirmationView is what the tourist sees once the booking is settled.
type ConfirmationView struct {
	BookingID      string                `json:"booking_id"`
	GuideContact   entity.GuideContact   `json:"guide_contact"`
	BookingDetails entity.BookingDetails `json:"booking_details"`
}

type View struct {
	AttemptID string `json:"attempt_id"`
	Step      Step   `json:"step"`

	GuideID   int64  `json:"guide_id"`
	GuideName string `json:"guide_name"`
	SiteID    *int64 `json:"site_id,omitempty"`

	PricePerHour   string `json:"price_per_hour,omitempty"`
	EstimatedTotal string `json:"estimated_total,omitempty"`

	Request   entity.BookingRequest `json:"request"`
	MinDate   string                `json:"min_date"`
	TimeSlots []string              `json:"time_slots"`
	Durations []int                 `json:"durations"`

	AmountToPay string `json:"amount_to_pay,omitempty"`
	Currency    string `json:"currency,omitempty"`

	Error *FlowError `json:"error,omitempty"`

	Confirmation *ConfirmationView `json:"confirmation,omitempty"`
}
