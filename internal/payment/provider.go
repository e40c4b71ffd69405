// Package payment is the boundary to the external payment provider.
// The engine only ever talks through the Provider interface; the Stripe
// adapter lives alongside it.
package payment

import "context"

// Authorization is a provider-side hold on a customer's payment method.
// Status mirrors the provider's state machine verbatim.
type Authorization struct {
	ID     string
	Status string
}

// Method is a provider-side payment method reference. Created is a unix
// timestamp used to pick the oldest method as a conservative fallback.
type Method struct {
	ID      string
	Created int64
}

type Provider interface {
	// CreateAuthorization places a manual-capture hold for the amount,
	// attributed to the booking and client via metadata.
	CreateAuthorization(ctx context.Context, customerID, methodID string, amount float64, metadata map[string]string) (*Authorization, error)
	CancelAuthorization(ctx context.Context, id string) (*Authorization, error)
	CaptureAuthorization(ctx context.Context, id string) (*Authorization, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]Method, error)
}
