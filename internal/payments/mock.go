package payments

import (
	"context"

	"github.com/google/uuid"
)

// mockProvider fakes a checkout for local development. The returned URL
// points nowhere; the frontend calls the dev-only mock/complete endpoint
// to settle the payment.
type mockProvider struct{}

func newMockProvider() *mockProvider { return &mockProvider{} }

func (p *mockProvider) Name() string { return "mock" }

func (p *mockProvider) CreateCheckout(_ context.Context, in CheckoutInput) (*Session, error) {
	id := "mock_" + uuid.NewString()
	return &Session{ID: id, URL: "mock://checkout?payment_id=" + in.Payment.ID.String()}, nil
}
