package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tours/entity"
)

const dateLayout = "2006-01-02"

var (
	TimeSlots = []string{"08:00", "09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00"}
	Durations = []int{1, 2, 3, 4, 5, 6, 8}
)

const (
	defaultTimeSlot = "10:00"
	fallbackHours   = 2
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest performs client-side checks only; the content service validates authoritatively.
func validateRequest(v *validator.Validate, req entity.BookingRequest, earliest time.Time) error {
	if err := v.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return &ValidationError{Message: err.Error()}
	}

	date, err := time.ParseInLocation(dateLayout, req.Date, earliest.Location())
	if err != nil {
		return &ValidationError{Field: "date", Message: "date must be formatted as YYYY-MM-DD"}
	}
	if date.Before(earliest) {
		return &ValidationError{
			Field:   "date",
			Message: fmt.Sprintf("date must be %s or later", earliest.Format(dateLayout)),
		}
	}

	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	field := fe.Field()

	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "email":
		msg = "email is not a valid address"
	case "datetime":
		msg = field + " must be formatted as YYYY-MM-DD"
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		msg = field + " is invalid"
	}

	return &ValidationError{Field: field, Message: msg}
}

func defaultHours(guide entity.Guide) int {
	for _, d := range Durations {
		if d == guide.AverageTourDuration {
			return d
		}
	}
	return fallbackHours
}
