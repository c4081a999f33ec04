package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// stripeProvider opens Stripe Checkout sessions. One-off invoice payments
// use mode=payment with an inline XOF price; the pro upgrade uses
// mode=subscription against the price configured in STRIPE_PRO_PRICE_ID.
type stripeProvider struct {
	proPriceID string
}

func newStripeProvider() *stripeProvider {
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	return &stripeProvider{proPriceID: os.Getenv("STRIPE_PRO_PRICE_ID")}
}

func (p *stripeProvider) Name() string { return "stripe" }

func (p *stripeProvider) CreateCheckout(ctx context.Context, in CheckoutInput) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		SuccessURL:        stripe.String(in.Payment.SuccessURL),
		CancelURL:         stripe.String(in.Payment.CancelURL),
		ClientReferenceID: stripe.String(in.Payment.ID.String()),
		CustomerEmail:     stripe.String(in.User.Email),
	}

	if in.Payment.Purpose == "subscription" {
		if p.proPriceID == "" {
			return nil, fmt.Errorf("stripe: STRIPE_PRO_PRICE_ID is empty")
		}
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(p.proPriceID),
			Quantity: stripe.Int64(1),
		}}
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			// XOF is a zero-decimal currency: UnitAmount is whole francs
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String("xof"),
				UnitAmount: stripe.Int64(wholeFCFA(in.Payment.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(in.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}}
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// parseStripeEvent verifies the webhook signature and extracts the events
// the app cares about.
func parseStripeEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	return webhook.ConstructEvent(payload, sigHeader, secret)
}

func sessionFromEvent(ev stripe.Event) (*stripe.CheckoutSession, error) {
	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	return &s, nil
}

func subscriptionFromEvent(ev stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("stripe: decode subscription: %w", err)
	}
	return &sub, nil
}
