package gateway

import (
	"context"
	"sync"

	"tours/entity"
)

type ProcessorCall struct {
	ClientSecret string
	Method       entity.PaymentMethod
}

// ProcessorMock confirms every intent unless ConfirmFn says otherwise.
type ProcessorMock struct {
	mock sync.Mutex

	ConfirmFn func(clientSecret string, method entity.PaymentMethod) (entity.ProcessorResult, error)

	Confirmations []ProcessorCall
}

func (p *ProcessorMock) ConfirmCardPayment(
	ctx context.Context,
	clientSecret string,
	method entity.PaymentMethod,
) (entity.ProcessorResult, error) {
	p.mock.Lock()
	defer p.mock.Unlock()

	p.Confirmations = append(p.Confirmations, ProcessorCall{ClientSecret: clientSecret, Method: method})

	if p.ConfirmFn != nil {
		return p.ConfirmFn(clientSecret, method)
	}

	intentID, err := intentIDFromClientSecret(clientSecret)
	if err != nil {
		return entity.ProcessorResult{}, err
	}

	return entity.ProcessorResult{
		Intent: &entity.ProcessorIntent{ID: intentID, Status: entity.ProcessorIntentStatusSucceeded},
	}, nil
}

func (p *ProcessorMock) ConfirmationsCount() int {
	p.mock.Lock()
	defer p.mock.Unlock()

	return len(p.Confirmations)
}

// RetrievingProcessorMock can also report an intent's status.
type RetrievingProcessorMock struct {
	ProcessorMock

	IntentStatus string
	Retrievals   []string
}

func (p *RetrievingProcessorMock) RetrievePaymentIntent(ctx context.Context, clientSecret string) (entity.ProcessorIntent, error) {
	p.mock.Lock()
	defer p.mock.Unlock()

	p.Retrievals = append(p.Retrievals, clientSecret)

	intentID, err := intentIDFromClientSecret(clientSecret)
	if err != nil {
		return entity.ProcessorIntent{}, err
	}

	return entity.ProcessorIntent{ID: intentID, Status: p.IntentStatus}, nil
}
