package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"tours/booking"
	"tours/entity"
)

type startBookingRequest struct {
	GuideID int64  `json:"guide_id"`
	SiteID  *int64 `json:"site_id"`
}

func (s Server) PostBooking(c echo.Context) error {
	var request startBookingRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	view, err := s.bookings.Start(c.Request().Context(), request.GuideID, request.SiteID)
	if err != nil {
		return bookingError(c, view, err)
	}

	return c.JSON(http.StatusCreated, view)
}

func (s Server) GetBooking(c echo.Context) error {
	view, err := s.bookings.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return bookingError(c, view, err)
	}

	return c.JSON(http.StatusOK, view)
}

func (s Server) PatchBookingForm(c echo.Context) error {
	var patch booking.FormPatch
	if err := c.Bind(&patch); err != nil {
		return err
	}

	view, err := s.bookings.UpdateForm(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return bookingError(c, view, err)
	}

	return c.JSON(http.StatusOK, view)
}

func (s Server) PostBookingSubmit(c echo.Context) error {
	view, err := s.bookings.SubmitForm(c.Request().Context(), c.Param("id"))
	if err != nil {
		return bookingError(c, view, err)
	}

	return c.JSON(http.StatusOK, view)
}

func (s Server) PostBookingPay(c echo.Context) error {
	var method entity.PaymentMethod
	if err := c.Bind(&method); err != nil {
		return err
	}

	view, err := s.bookings.Pay(c.Request().Context(), c.Param("id"), method)
	if err != nil {
		return bookingError(c, view, err)
	}

	return c.JSON(http.StatusOK, view)
}

func (s Server) PostBookingBack(c echo.Context) error {
	view, err := s.bookings.Back(c.Request().Context(), c.Param("id"))
	if err != nil {
		return bookingError(c, view, err)
	}

	return c.JSON(http.StatusOK, view)
}

func (s Server) PostBookingDone(c echo.Context) error {
	confirmation, err := s.bookings.Done(c.Request().Context(), c.Param("id"))
	if err != nil {
		return bookingError(c, booking.View{}, err)
	}

	return c.JSON(http.StatusOK, confirmation)
}

func (s Server) DeleteBooking(c echo.Context) error {
	if err := s.bookings.Close(c.Request().Context(), c.Param("id")); err != nil {
		return bookingError(c, booking.View{}, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// bookingError answers with the attempt's view carrying the inline error whenever the
// attempt exists, so the shell can render the current step as is.
func bookingError(c echo.Context, view booking.View, err error) error {
	status, known := statusFor(err)
	if !known {
		return err
	}

	if view.AttemptID == "" {
		return echo.NewHTTPError(status, err.Error())
	}

	return c.JSON(status, view)
}

func statusFor(err error) (int, bool) {
	var (
		validationErr   *booking.ValidationError
		processorErr    *booking.ProcessorError
		settlementErr   *booking.SettlementError
		connectivityErr *booking.ConnectivityError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, true
	case errors.As(err, &processorErr):
		return http.StatusPaymentRequired, true
	case errors.As(err, &settlementErr):
		return http.StatusConflict, true
	case errors.As(err, &connectivityErr):
		return http.StatusBadGateway, true
	case errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusConflict, true
	case errors.Is(err, booking.ErrAttemptBusy):
		return http.StatusTooManyRequests, true
	case errors.Is(err, booking.ErrAttemptNotFound), errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, true
	default:
		return http.StatusInternalServerError, false
	}
}
