package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"

	"github.com/noah-isme/backend-booking/internal/common"
)

// NewStripeBackend builds an API backend using httpClient. An empty baseURL
// targets the live Stripe API. Retries are disabled; the caller reports
// failures instead.
func NewStripeBackend(httpClient *http.Client, baseURL string) stripe.Backend {
	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if u := strings.TrimRight(strings.TrimSpace(baseURL), "/"); u != "" {
		cfg.URL = stripe.String(u)
	}
	return stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
}

// StripeProvider creates Checkout Sessions with a per-call secret key so
// credentials are never held in package globals.
type StripeProvider struct {
	Backend stripe.Backend
}

// CreateCheckoutSession implements Provider.
func (p StripeProvider) CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error) {
	backend := p.Backend
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	client := session.Client{B: backend, Key: req.SecretKey}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.ProductName),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.Token),
	}
	params.Context = ctx
	params.AddMetadata("booking_token", req.Token)

	sess, err := client.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return Session{}, common.ProviderError("stripe rejected the checkout session", stripeErr.Msg)
		}
		return Session{}, common.ProviderError("stripe request failed", err.Error())
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}
