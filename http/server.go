package http

import (
	"context"
	"errors"
	"net/http"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"tours/booking"
	"tours/entity"
)

type BookingService interface {
	Start(ctx context.Context, guideID int64, siteID *int64) (booking.View, error)
	Get(ctx context.Context, attemptID string) (booking.View, error)
	UpdateForm(ctx context.Context, attemptID string, patch booking.FormPatch) (booking.View, error)
	SubmitForm(ctx context.Context, attemptID string) (booking.View, error)
	Pay(ctx context.Context, attemptID string, method entity.PaymentMethod) (booking.View, error)
	Back(ctx context.Context, attemptID string) (booking.View, error)
	Done(ctx context.Context, attemptID string) (entity.PaymentConfirmation, error)
	Close(ctx context.Context, attemptID string) error
}

type Catalog interface {
	ListGuides(ctx context.Context) ([]entity.Guide, error)
	GetGuide(ctx context.Context, guideID int64) (entity.Guide, error)
	GetGuideReviews(ctx context.Context, guideID int64) ([]entity.GuideReview, error)
	ListSites(ctx context.Context) ([]entity.HistoricalSite, error)
	GetSite(ctx context.Context, siteID int64) (entity.HistoricalSite, error)
	SearchSites(ctx context.Context, query, lang string) ([]entity.HistoricalSite, error)
	ListSiteGuides(ctx context.Context, siteID int64) ([]entity.Guide, error)
	ListMapMarkers(ctx context.Context) ([]entity.MapMarker, error)
	ListCategories(ctx context.Context) ([]entity.Category, error)
}

type OpsPaymentIntents interface {
	FindAll(ctx context.Context, status string) ([]entity.OpsPaymentIntent, error)
	Get(ctx context.Context, paymentIntentID string) (entity.OpsPaymentIntent, error)
}

type Server struct {
	addr string
	e    *echo.Echo

	bookings             BookingService
	catalog              Catalog
	opsPaymentIntents    OpsPaymentIntents
	stripePublishableKey string
}

func NewServer(
	addr string,
	bookings BookingService,
	catalog Catalog,
	opsPaymentIntents OpsPaymentIntents,
	stripePublishableKey string,
) *Server {
	e := echoHTTP.NewEcho()
	e.Use(otelecho.Middleware("tours"))

	// otelecho already hands the error to the handler before returning it
	handleError := e.HTTPErrorHandler
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		handleError(err, c)
	}

	server := &Server{
		addr:                 addr,
		e:                    e,
		bookings:             bookings,
		catalog:              catalog,
		opsPaymentIntents:    opsPaymentIntents,
		stripePublishableKey: stripePublishableKey,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/config", server.GetConfig)

	e.POST("/bookings", server.PostBooking)
	e.GET("/bookings/:id", server.GetBooking)
	e.PATCH("/bookings/:id/form", server.PatchBookingForm)
	e.POST("/bookings/:id/submit", server.PostBookingSubmit)
	e.POST("/bookings/:id/pay", server.PostBookingPay)
	e.POST("/bookings/:id/back", server.PostBookingBack)
	e.POST("/bookings/:id/done", server.PostBookingDone)
	e.DELETE("/bookings/:id", server.DeleteBooking)

	e.GET("/guides", server.GetGuides)
	e.GET("/guides/:id", server.GetGuide)
	e.GET("/guides/:id/reviews", server.GetGuideReviews)
	e.GET("/sites", server.GetSites)
	e.GET("/sites/search", server.SearchSites)
	e.GET("/sites/map-markers", server.GetMapMarkers)
	e.GET("/sites/:id", server.GetSite)
	e.GET("/sites/:id/guides", server.GetSiteGuides)
	e.GET("/categories", server.GetCategories)

	e.GET("/ops/payment-intents", server.GetOpsPaymentIntents)
	e.GET("/ops/payment-intents/:id", server.GetOpsPaymentIntent)

	return server
}

// Handler exposes the router, mostly for tests.
func (s Server) Handler() http.Handler {
	return s.e
}

func (s Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(context.WithoutCancel(ctx))
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()

	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type configResponse struct {
	StripePublishableKey string `json:"stripe_publishable_key"`
}

func (s Server) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, configResponse{StripePublishableKey: s.stripePublishableKey})
}
