package payments

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/fasodevis/fasodevis-backend/pkg/models"
)

// CheckoutInput carries everything a provider needs to open a hosted
// payment page. Amount is whole FCFA (XOF has no minor unit).
type CheckoutInput struct {
	Payment     *models.Payment
	User        *models.User
	Description string
}

// Session is the provider-side checkout the frontend redirects to.
type Session struct {
	ID  string
	URL string
}

// Provider opens checkout sessions. Settlement never happens here: a
// payment only becomes succeeded through the provider's webhook (or the
// dev mock endpoint), so a crashed redirect can never fake a payment.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, in CheckoutInput) (*Session, error)
}

// FromEnv picks the configured provider. Unknown values fall back to the
// mock so a fresh dev checkout works without any provider keys.
func FromEnv() Provider {
	switch os.Getenv("PAYMENT_PROVIDER") {
	case "stripe":
		return newStripeProvider()
	case "cinetpay":
		return newCinetPayProvider()
	default:
		return newMockProvider()
	}
}

// wholeFCFA renders an amount for providers that want integer francs.
func wholeFCFA(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func checkoutDescription(p *models.Payment, quoteNumber string) string {
	if p.Purpose == models.PurposeSubscription {
		return "Abonnement Pro FasoDevis"
	}
	return fmt.Sprintf("Règlement %s", quoteNumber)
}
