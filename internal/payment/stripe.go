package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

// StripeProvider creates a Checkout Session in payment mode and returns its
// hosted URL.
type StripeProvider struct {
	secretKey string
	priceID   string
	baseURL   string
}

func NewStripeProvider(secretKey, priceID, baseURL string) *StripeProvider {
	return &StripeProvider{
		secretKey: strings.TrimSpace(secretKey),
		priceID:   strings.TrimSpace(priceID),
		baseURL:   baseURL,
	}
}

func (p *StripeProvider) CreateIntent(_ context.Context, in Intent) (string, error) {
	if p.secretKey == "" || p.priceID == "" {
		return "", fmt.Errorf("stripe not configured (secret key or price id missing)")
	}

	urls := BuildConfirmURLs(p.baseURL, in)

	// Stripe uses a global API key. Keep usage limited to this call.
	stripe.Key = p.secretKey

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(urls.Success),
		CancelURL:  stripe.String(urls.Failure),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"date":    in.Date,
			"time":    in.Time,
			"service": in.Service,
		},
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session create: %w", err)
	}
	if sess == nil || strings.TrimSpace(sess.URL) == "" {
		return "", fmt.Errorf("stripe checkout session missing url")
	}
	return sess.URL, nil
}
