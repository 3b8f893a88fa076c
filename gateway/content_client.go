package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tours/entity"
)

// ContentClient talks to the content service: the source of truth for guides, sites,
// pricing and payment settlement.
type ContentClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewContentClient(baseURL string, timeout time.Duration) ContentClient {
	if baseURL == "" {
		panic("content service url must be set")
	}

	return ContentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type serviceErrorPayload struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (p serviceErrorPayload) message() string {
	if p.Error != "" {
		return p.Error
	}
	return p.Detail
}

func (c ContentClient) CreatePaymentIntent(ctx context.Context, request entity.CreatePaymentIntentRequest) (entity.PaymentIntent, error) {
	var resp struct {
		entity.PaymentIntent
		Error string `json:"error"`
	}

	err := c.do(ctx, http.MethodPost, "/payments/create-intent/", request, &resp)
	if err != nil {
		return entity.PaymentIntent{}, fmt.Errorf("failed to create payment intent: %w", err)
	}
	if resp.Error != "" {
		return entity.PaymentIntent{}, &entity.ServiceError{StatusCode: http.StatusOK, Message: resp.Error}
	}

	return resp.PaymentIntent, nil
}

func (c ContentClient) ConfirmPayment(ctx context.Context, request entity.ConfirmPaymentRequest) (entity.PaymentConfirmation, error) {
	var confirmation entity.PaymentConfirmation

	err := c.do(ctx, http.MethodPost, "/payments/confirm/", request, &confirmation)
	if err != nil {
		return entity.PaymentConfirmation{}, fmt.Errorf("failed to confirm payment: %w", err)
	}

	return confirmation, nil
}

func (c ContentClient) GetGuide(ctx context.Context, guideID int64) (entity.Guide, error) {
	var guide entity.Guide
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guides/%d/", guideID), nil, &guide); err != nil {
		return entity.Guide{}, fmt.Errorf("failed to get guide: %w", err)
	}

	return guide, nil
}

func (c ContentClient) ListGuides(ctx context.Context) ([]entity.Guide, error) {
	var guides []entity.Guide
	if err := c.do(ctx, http.MethodGet, "/guides/", nil, &guides); err != nil {
		return nil, fmt.Errorf("failed to list guides: %w", err)
	}

	return guides, nil
}

func (c ContentClient) GetGuideReviews(ctx context.Context, guideID int64) ([]entity.GuideReview, error) {
	var reviews []entity.GuideReview
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guides/%d/reviews/", guideID), nil, &reviews); err != nil {
		return nil, fmt.Errorf("failed to get guide reviews: %w", err)
	}

	return reviews, nil
}

func (c ContentClient) ListSites(ctx context.Context) ([]entity.HistoricalSite, error) {
	var sites []entity.HistoricalSite
	if err := c.do(ctx, http.MethodGet, "/sites/", nil, &sites); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	return sites, nil
}

func (c ContentClient) GetSite(ctx context.Context, siteID int64) (entity.HistoricalSite, error) {
	var site entity.HistoricalSite
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sites/%d/", siteID), nil, &site); err != nil {
		return entity.HistoricalSite{}, fmt.Errorf("failed to get site: %w", err)
	}

	return site, nil
}

func (c ContentClient) SearchSites(ctx context.Context, query, lang string) ([]entity.HistoricalSite, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("lang", lang)

	var sites []entity.HistoricalSite
	if err := c.do(ctx, http.MethodGet, "/sites/search/?"+params.Encode(), nil, &sites); err != nil {
		return nil, fmt.Errorf("failed to search sites: %w", err)
	}

	return sites, nil
}

func (c ContentClient) ListSiteGuides(ctx context.Context, siteID int64) ([]entity.Guide, error) {
	var guides []entity.Guide
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sites/%d/guides/", siteID), nil, &guides); err != nil {
		return nil, fmt.Errorf("failed to list site guides: %w", err)
	}

	return guides, nil
}

func (c ContentClient) ListMapMarkers(ctx context.Context) ([]entity.MapMarker, error) {
	var markers []entity.MapMarker
	if err := c.do(ctx, http.MethodGet, "/sites/map_markers/", nil, &markers); err != nil {
		return nil, fmt.Errorf("failed to list map markers: %w", err)
	}

	return markers, nil
}

func (c ContentClient) ListCategories(ctx context.Context) ([]entity.Category, error) {
	var categories []entity.Category
	if err := c.do(ctx, http.MethodGet, "/categories/", nil, &categories); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	return categories, nil
}

func (c ContentClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if correlationID := log.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set("Correlation-ID", correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var payload serviceErrorPayload
		if json.Unmarshal(respBody, &payload) == nil && payload.message() != "" {
			return &entity.ServiceError{StatusCode: resp.StatusCode, Message: payload.message()}
		}
		if resp.StatusCode == http.StatusNotFound {
			return entity.ErrNotFound
		}
		return fmt.Errorf("unexpected status code for %s %s: %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("could not unmarshal response: %w", err)
	}

	return nil
}
