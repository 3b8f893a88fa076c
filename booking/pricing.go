package booking

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// DefaultReferenceRate converts guide prices (UZS) into the display currency (USD).
const DefaultReferenceRate = "12500"

var priceContext = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// Estimate is advisory only. The amount the tourist pays is the one on the PaymentIntent.
type Estimate struct {
	PerHour string
	Total   string
}

type Pricer struct {
	referenceRate *apd.Decimal
	symbol        string
}

func NewPricer(referenceRate string) (Pricer, error) {
	rate, _, err := apd.NewFromString(referenceRate)
	if err != nil {
		return Pricer{}, fmt.Errorf("invalid reference rate %q: %w", referenceRate, err)
	}
	if rate.Sign() <= 0 {
		return Pricer{}, fmt.Errorf("reference rate must be positive, got %s", referenceRate)
	}

	return Pricer{referenceRate: rate, symbol: "$"}, nil
}

func (p Pricer) Estimate(pricePerHour string, hours int) (Estimate, error) {
	price, _, err := apd.NewFromString(pricePerHour)
	if err != nil {
		return Estimate{}, fmt.Errorf("invalid price per hour %q: %w", pricePerHour, err)
	}
	if price.Sign() < 0 {
		return Estimate{}, fmt.Errorf("price per hour must not be negative, got %s", pricePerHour)
	}

	hourly := new(apd.Decimal)
	if _, err := priceContext.Quo(hourly, price, p.referenceRate); err != nil {
		return Estimate{}, fmt.Errorf("could not convert price: %w", err)
	}

	total := new(apd.Decimal)
	if _, err := priceContext.Mul(total, hourly, apd.New(int64(hours), 0)); err != nil {
		return Estimate{}, fmt.Errorf("could not multiply price: %w", err)
	}

	perHour, err := round2(hourly)
	if err != nil {
		return Estimate{}, err
	}
	totalRounded, err := round2(total)
	if err != nil {
		return Estimate{}, err
	}

	return Estimate{
		PerHour: p.symbol + perHour,
		Total:   p.symbol + totalRounded,
	}, nil
}

func round2(d *apd.Decimal) (string, error) {
	rounded := new(apd.Decimal)
	if _, err := priceContext.Quantize(rounded, d, -2); err != nil {
		return "", fmt.Errorf("could not round price: %w", err)
	}
	return rounded.Text('f'), nil
}
