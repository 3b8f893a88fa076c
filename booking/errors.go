package booking

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("operation not allowed in current step")
	ErrAttemptNotFound   = errors.New("booking attempt not found")
	ErrAttemptBusy       = errors.New("booking attempt is processing another request")
)

type ErrorKind string

const (
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindProcessor    ErrorKind = "processor"
	ErrorKindConnectivity ErrorKind = "connectivity"
	ErrorKindSettlement   ErrorKind = "settlement"
)

const (
	msgPaymentCreationError   = "Payment creation error"
	msgPaymentProcessingError = "Payment processing error"
	msgPaymentFailed          = "Payment failed"
	msgConfirmationFailed     = "Confirmation failed"
)

// FlowError is the inline error shown in the current step.
type FlowError struct {
	Kind    ErrorKind `json:"kind"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

// ValidationError is user-correctable: a bad form field or a request rejected by the content service.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ProcessorError carries the payment processor's message verbatim.
type ProcessorError struct {
	Code    string
	Message string
}

func (e *ProcessorError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// ConnectivityError is transient; the user may retry the same step.
// PaymentIntentID is set when the processor may already have captured the charge.
type ConnectivityError struct {
	Op              string
	Message         string
	Err             error
	PaymentIntentID string
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// SettlementError means the content service refused to settle a payment the
// processor may already have captured. It must be reconciled manually.
type SettlementError struct {
	PaymentIntentID string
	Message         string
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement of %s failed: %s", e.PaymentIntentID, e.Message)
}

func flowErrorFrom(err error) *FlowError {
	var (
		validationErr   *ValidationError
		processorErr    *ProcessorError
		connectivityErr *ConnectivityError
		settlementErr   *SettlementError
	)

	switch {
	case errors.As(err, &validationErr):
		return &FlowError{Kind: ErrorKindValidation, Field: validationErr.Field, Message: validationErr.Message}
	case errors.As(err, &processorErr):
		return &FlowError{Kind: ErrorKindProcessor, Message: processorErr.Message}
	case errors.As(err, &connectivityErr):
		return &FlowError{Kind: ErrorKindConnectivity, Message: connectivityErr.Message}
	case errors.As(err, &settlementErr):
		return &FlowError{Kind: ErrorKindSettlement, Message: settlementErr.Message}
	default:
		return nil
	}
}
