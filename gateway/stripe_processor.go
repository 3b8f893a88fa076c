package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tours/entity"
)

const DefaultStripeURL = "https://api.stripe.com"

// StripeProcessor confirms payment intents with a publishable key and the intent's client
// secret, exactly like the browser SDK does. It never sees raw card data: the shell tokenizes
// the card and sends us a payment method (pm_...) or token (tok_...) id.
type StripeProcessor struct {
	baseURL        string
	publishableKey string
	httpClient     *http.Client
}

func NewStripeProcessor(baseURL, publishableKey string, timeout time.Duration) StripeProcessor {
	if publishableKey == "" {
		panic("stripe publishable key must be set")
	}
	if baseURL == "" {
		baseURL = DefaultStripeURL
	}

	return StripeProcessor{
		baseURL:        strings.TrimRight(baseURL, "/"),
		publishableKey: publishableKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type stripeErrorResponse struct {
	Error entity.ProcessorFailure `json:"error"`
}

func (p StripeProcessor) ConfirmCardPayment(
	ctx context.Context,
	clientSecret string,
	method entity.PaymentMethod,
) (entity.ProcessorResult, error) {
	intentID, err := intentIDFromClientSecret(clientSecret)
	if err != nil {
		return entity.ProcessorResult{}, err
	}

	form := url.Values{}
	form.Set("key", p.publishableKey)
	form.Set("client_secret", clientSecret)
	if strings.HasPrefix(method.ID, "tok_") {
		form.Set("payment_method_data[type]", "card")
		form.Set("payment_method_data[card][token]", method.ID)
		form.Set("payment_method_data[billing_details][name]", method.BillingName)
		form.Set("payment_method_data[billing_details][email]", method.BillingEmail)
	} else {
		form.Set("payment_method", method.ID)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/v1/payment_intents/%s/confirm", p.baseURL, url.PathEscape(intentID)),
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return entity.ProcessorResult{}, fmt.Errorf("could not create confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return p.doIntentRequest(req)
}

func (p StripeProcessor) RetrievePaymentIntent(ctx context.Context, clientSecret string) (entity.ProcessorIntent, error) {
	intentID, err := intentIDFromClientSecret(clientSecret)
	if err != nil {
		return entity.ProcessorIntent{}, err
	}

	params := url.Values{}
	params.Set("key", p.publishableKey)
	params.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/v1/payment_intents/%s?%s", p.baseURL, url.PathEscape(intentID), params.Encode()),
		nil,
	)
	if err != nil {
		return entity.ProcessorIntent{}, fmt.Errorf("could not create retrieve request: %w", err)
	}

	result, err := p.doIntentRequest(req)
	if err != nil {
		return entity.ProcessorIntent{}, err
	}
	if result.Failure != nil {
		return entity.ProcessorIntent{}, fmt.Errorf("could not retrieve payment intent: %s", result.Failure.Message)
	}

	return *result.Intent, nil
}

func (p StripeProcessor) doIntentRequest(req *http.Request) (entity.ProcessorResult, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return entity.ProcessorResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.ProcessorResult{}, fmt.Errorf("could not read processor response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var intent entity.ProcessorIntent
		if err := json.Unmarshal(body, &intent); err != nil {
			return entity.ProcessorResult{}, fmt.Errorf("could not unmarshal payment intent: %w", err)
		}
		return entity.ProcessorResult{Intent: &intent}, nil
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		var errResp stripeErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return entity.ProcessorResult{}, fmt.Errorf("could not unmarshal processor error (status %d): %w", resp.StatusCode, err)
		}
		return entity.ProcessorResult{Failure: &errResp.Error}, nil
	default:
		return entity.ProcessorResult{}, fmt.Errorf("unexpected status code from payment processor: %d", resp.StatusCode)
	}
}

// intentIDFromClientSecret extracts "pi_123" from "pi_123_secret_456".
func intentIDFromClientSecret(clientSecret string) (string, error) {
	idx := strings.Index(clientSecret, "_secret_")
	if idx <= 0 {
		return "", fmt.Errorf("malformed client secret")
	}
	return clientSecret[:idx], nil
}
