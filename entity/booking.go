package entity

// BookingRequest is what the tourist enters in the booking form.
type BookingRequest struct {
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Time  string `json:"time" validate:"required,oneof=08:00 09:00 10:00 11:00 12:00 14:00 15:00 16:00"`
	Hours int    `json:"hours" validate:"required,oneof=1 2 3 4 5 6 8"`
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,max=32"`
	Notes string `json:"notes" validate:"max=2000"`
}

// PaymentIntent is a reserved, not yet captured charge issued by the content service.
// ClientSecret is single use and belongs to exactly one PaymentIntentID.
type PaymentIntent struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	AmountDisplay   string `json:"amount_display"`
	Currency        string `json:"currency"`
}

const PaymentConfirmationStatusSuccess = "success"

type GuideContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

type BookingDetails struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Duration  int    `json:"duration"`
	TotalPaid string `json:"total_paid"`
}

type PaymentConfirmation struct {
	Status         string         `json:"status"`
	BookingID      string         `json:"booking_id"`
	GuideContact   GuideContact   `json:"guide_contact"`
	BookingDetails BookingDetails `json:"booking_details"`
	Error          string         `json:"error,omitempty"`
}

func (c PaymentConfirmation) Succeeded() bool {
	return c.Status == PaymentConfirmationStatusSuccess
}

type CreatePaymentIntentRequest struct {
	GuideID int64  `json:"guide_id"`
	Hours   int    `json:"hours"`
	Email   string `json:"email"`
	SiteID  *int64 `json:"site_id,omitempty"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	GuideID         int64  `json:"guide_id"`
	SiteID          *int64 `json:"site_id,omitempty"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Hours           int    `json:"hours"`
	TouristName     string `json:"tourist_name"`
	TouristEmail    string `json:"tourist_email"`
	TouristPhone    string `json:"tourist_phone"`
	Notes           string `json:"notes"`
}
