package payment

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/paymentmethod"
)

// StripeProvider implements Provider on top of Stripe PaymentIntents with
// manual capture.
type StripeProvider struct{}

func NewStripeProvider(apiKey string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{}
}

func (p *StripeProvider) CreateAuthorization(ctx context.Context, customerID, methodID string, amount float64, metadata map[string]string) (*Authorization, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toCents(amount)),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		Customer:      stripe.String(customerID),
		PaymentMethod: stripe.String(methodID),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create intent: %w", err)
	}
	return &Authorization{ID: pi.ID, Status: string(pi.Status)}, nil
}

func (p *StripeProvider) CancelAuthorization(ctx context.Context, id string) (*Authorization, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	pi, err := paymentintent.Cancel(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe cancel intent: %w", err)
	}
	return &Authorization{ID: pi.ID, Status: string(pi.Status)}, nil
}

func (p *StripeProvider) CaptureAuthorization(ctx context.Context, id string) (*Authorization, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx

	pi, err := paymentintent.Capture(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe capture intent: %w", err)
	}
	return &Authorization{ID: pi.ID, Status: string(pi.Status)}, nil
}

func (p *StripeProvider) ListPaymentMethods(ctx context.Context, customerID string) ([]Method, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	var methods []Method
	iter := paymentmethod.List(params)
	for iter.Next() {
		pm := iter.PaymentMethod()
		methods = append(methods, Method{ID: pm.ID, Created: pm.Created})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe list payment methods: %w", err)
	}
	return methods, nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
