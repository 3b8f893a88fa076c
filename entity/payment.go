package entity

// CodePaymentIntentUnexpectedState is reported by the processor when the intent
// was already confirmed, typically because the tourist resubmitted the payment.
const CodePaymentIntentUnexpectedState = "payment_intent_unexpected_state"

const ProcessorIntentStatusSucceeded = "succeeded"

// PaymentMethod references card data tokenized by the processor on the client.
// Raw card data never reaches this service.
type PaymentMethod struct {
	ID           string `json:"payment_method_id"`
	BillingName  string `json:"billing_name"`
	BillingEmail string `json:"billing_email"`
}

type ProcessorFailure struct {
	Code    string `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ProcessorIntent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

// ProcessorResult mirrors the processor's confirm response: either a failure or the confirmed intent.
type ProcessorResult struct {
	Failure *ProcessorFailure
	Intent  *ProcessorIntent
}
