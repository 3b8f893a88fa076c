package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"tours/entity"
)

func (s Server) GetOpsPaymentIntents(c echo.Context) error {
	intents, err := s.opsPaymentIntents.FindAll(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, intents)
}

func (s Server) GetOpsPaymentIntent(c echo.Context) error {
	intent, err := s.opsPaymentIntents.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, entity.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "payment intent not found")
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, intent)
}
