package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/lithammer/shortuuid/v3"
	"github.com/samber/lo"

	"tours/entity"
)

// ContentMock simulates the content service. Behaviour can be overridden per test with
// CreateIntentFn and ConfirmPaymentFn; calls are recorded.
type ContentMock struct {
	mock sync.Mutex

	Guides map[int64]entity.Guide
	Sites  map[int64]entity.HistoricalSite

	CreateIntentFn   func(request entity.CreatePaymentIntentRequest) (entity.PaymentIntent, error)
	ConfirmPaymentFn func(request entity.ConfirmPaymentRequest) (entity.PaymentConfirmation, error)

	CreatedIntents    []entity.CreatePaymentIntentRequest
	ConfirmedPayments []entity.ConfirmPaymentRequest
}

func (c *ContentMock) GetGuide(ctx context.Context, guideID int64) (entity.Guide, error) {
	c.mock.Lock()
	defer c.mock.Unlock()

	guide, ok := c.Guides[guideID]
	if !ok {
		return entity.Guide{}, entity.ErrNotFound
	}

	return guide, nil
}

func (c *ContentMock) ListGuides(ctx context.Context) ([]entity.Guide, error) {
	c.mock.Lock()
	defer c.mock.Unlock()

	return lo.Values(c.Guides), nil
}

func (c *ContentMock) GetGuideReviews(ctx context.Context, guideID int64) ([]entity.GuideReview, error) {
	return []entity.GuideReview{}, nil
}

func (c *ContentMock) ListSites(ctx context.Context) ([]entity.HistoricalSite, error) {
	c.mock.Lock()
	defer c.mock.Unlock()

	return lo.Values(c.Sites), nil
}

func (c *ContentMock) GetSite(ctx context.Context, siteID int64) (entity.HistoricalSite, error) {
	c.mock.Lock()
	defer c.mock.Unlock()

	site, ok := c.Sites[siteID]
	if !ok {
		return entity.HistoricalSite{}, entity.ErrNotFound
	}

	return site, nil
}

func (c *ContentMock) SearchSites(ctx context.Context, query, lang string) ([]entity.HistoricalSite, error) {
	c.mock.Lock()
	defer c.mock.Unlock()

	query = strings.ToLower(query)
	return lo.Filter(lo.Values(c.Sites), func(site entity.HistoricalSite, _ int) bool {
		return strings.Contains(strings.ToLower(site.NameEn), query)
	}), nil
}

func (c *ContentMock) ListSiteGuides(ctx context.Context, siteID int64) ([]entity.Guide, error) {
	return c.ListGuides(ctx)
}

func (c *ContentMock) ListMapMarkers(ctx context.Context) ([]entity.MapMarker, error) {
	return []entity.MapMarker{}, nil
}

func (c *ContentMock) ListCategories(ctx context.Context) ([]entity.Category, error) {
	return []entity.Category{}, nil
}

func (c *ContentMock) CreatePaymentIntent(ctx context.Context, request entity.CreatePaymentIntentRequest) (entity.PaymentIntent, error) {
	c.mock.Lock()
	defer c.mock.Unlock()

	c.CreatedIntents = append(c.CreatedIntents, request)

	if c.CreateIntentFn != nil {
		return c.CreateIntentFn(request)
	}

	guide, ok := c.Guides[request.GuideID]
	if !ok {
		return entity.PaymentIntent{}, &entity.ServiceError{StatusCode: 404, Message: "Guide not found"}
	}

	price, err := strconv.ParseFloat(guide.PricePerHour, 64)
	if err != nil {
		return entity.PaymentIntent{}, fmt.Errorf("invalid guide price: %w", err)
	}

	id := "pi_" + shortuuid.New()

	return entity.PaymentIntent{
		ClientSecret:    id + "_secret_mock",
		PaymentIntentID: id,
		AmountDisplay:   fmt.Sprintf("$%.2f", price/12500*float64(request.Hours)),
		Currency:        "usd",
	}, nil
}

func (c *ContentMock) ConfirmPayment(ctx context.Context, request entity.ConfirmPaymentRequest) (entity.PaymentConfirmation, error) {
	c.mock.Lock()
	defer c.mock.Unlock()

	c.ConfirmedPayments = append(c.ConfirmedPayments, request)

	if c.ConfirmPaymentFn != nil {
		return c.ConfirmPaymentFn(request)
	}

	return entity.PaymentConfirmation{
		Status:    entity.PaymentConfirmationStatusSuccess,
		BookingID: "booking-" + request.PaymentIntentID,
		GuideContact: entity.GuideContact{
			Name:  "Mock Guide",
			Phone: "+998 90 000 00 00",
			Email: "guide@example.com",
		},
		BookingDetails: entity.BookingDetails{
			Date:     request.Date,
			Time:     request.Time,
			Duration: request.Hours,
		},
	}, nil
}

func (c *ContentMock) CreatedIntentsCount() int {
	c.mock.Lock()
	defer c.mock.Unlock()

	return len(c.CreatedIntents)
}

func (c *ContentMock) ConfirmedPaymentsCount() int {
	c.mock.Lock()
	defer c.mock.Unlock()

	return len(c.ConfirmedPayments)
}
