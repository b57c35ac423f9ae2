package settings

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/backend-booking/internal/pricing"
)

// Option keys in the options table.
const (
	KeyStripe  = "stripe_settings"
	KeyGeneral = "general_settings"
	KeyPages   = "booking_pages"
)

// StripeSettings is the persisted provider block. SecretKey and WebhookSecret
// hold ciphertext; they are only decrypted by Resolve.
type StripeSettings struct {
	Enabled         bool               `json:"enabled"`
	PublishableKey  string             `json:"publishable_key"`
	SecretKey       string             `json:"secret_key"`
	WebhookSecret   string             `json:"webhook_secret"`
	Sandbox         bool               `json:"sandbox"`
	PriceCorrection pricing.Correction `json:"price_correction"`
}

// GeneralSettings holds store-wide options the payment flow reads.
type GeneralSettings struct {
	Currency string `json:"currency"`
}

// PageSettings holds the provisioned redirect pages for hosted checkout.
type PageSettings struct {
	PaymentSuccessURL string `json:"payment_success_url"`
	PaymentCancelURL  string `json:"payment_cancel_url"`
}

// DefaultStripe is merged under whatever is stored.
func DefaultStripe() StripeSettings {
	return StripeSettings{
		Enabled:         false,
		Sandbox:         true,
		PriceCorrection: pricing.Correction{Kind: pricing.CorrectionNone},
	}
}

// DefaultGeneral is merged under whatever is stored.
func DefaultGeneral() GeneralSettings {
	return GeneralSettings{Currency: "usd"}
}

// DefaultPages is merged under whatever is stored.
func DefaultPages() PageSettings {
	return PageSettings{}
}

// Resolved is the merged, decrypted view used by checkout and webhook handling.
type Resolved struct {
	Enabled         bool
	PublishableKey  string
	SecretKey       string
	WebhookSecret   string
	Sandbox         bool
	PriceCorrection pricing.Correction
	Currency        string
	SuccessURL      string
	CancelURL       string
}

// String masks credentials so a Resolved value never leaks through %v.
func (r Resolved) String() string {
	return fmt.Sprintf("settings{enabled=%t sandbox=%t currency=%s secret_key=%s webhook_secret=%s}",
		r.Enabled, r.Sandbox, r.Currency, Mask(r.SecretKey), Mask(r.WebhookSecret))
}

// MarshalJSON masks credentials the same way String does.
func (r Resolved) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Enabled         bool               `json:"enabled"`
		PublishableKey  string             `json:"publishable_key"`
		SecretKey       string             `json:"secret_key"`
		WebhookSecret   string             `json:"webhook_secret"`
		Sandbox         bool               `json:"sandbox"`
		PriceCorrection pricing.Correction `json:"price_correction"`
		Currency        string             `json:"currency"`
		SuccessURL      string             `json:"payment_success_url"`
		CancelURL       string             `json:"payment_cancel_url"`
	}{
		Enabled:         r.Enabled,
		PublishableKey:  r.PublishableKey,
		SecretKey:       Mask(r.SecretKey),
		WebhookSecret:   Mask(r.WebhookSecret),
		Sandbox:         r.Sandbox,
		PriceCorrection: r.PriceCorrection,
		Currency:        r.Currency,
		SuccessURL:      r.SuccessURL,
		CancelURL:       r.CancelURL,
	})
}

// Mask keeps the key prefix and last four characters.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	head := 0
	if i := strings.LastIndex(secret[:len(secret)-4], "_"); i >= 0 && i < 8 {
		head = i + 1
	}
	return secret[:head] + strings.Repeat("*", len(secret)-head-4) + secret[len(secret)-4:]
}
