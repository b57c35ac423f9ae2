package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/pricing"
)

// Cipher encrypts secrets before they are stored and decrypts them on read.
// Decrypt returns "" for anything it cannot open.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) string
}

// Repository loads, merges and saves the settings blocks.
type Repository struct {
	Store  OptionStore
	Cipher Cipher
}

func (r *Repository) load(ctx context.Context, key string, dst any) error {
	raw, err := r.Store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil
	}
	// decoding over the defaults leaves absent keys untouched
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.Store.Put(ctx, key, raw)
}

// LoadStripe returns the stored Stripe block merged over DefaultStripe.
func (r *Repository) LoadStripe(ctx context.Context) (StripeSettings, error) {
	out := DefaultStripe()
	if err := r.load(ctx, KeyStripe, &out); err != nil {
		return DefaultStripe(), err
	}
	if !out.PriceCorrection.Valid() || out.PriceCorrection.Kind == "" {
		out.PriceCorrection.Kind = pricing.CorrectionNone
	}
	return out, nil
}

// LoadGeneral returns the general block merged over DefaultGeneral.
func (r *Repository) LoadGeneral(ctx context.Context) (GeneralSettings, error) {
	out := DefaultGeneral()
	if err := r.load(ctx, KeyGeneral, &out); err != nil {
		return DefaultGeneral(), err
	}
	out.Currency = strings.ToLower(strings.TrimSpace(out.Currency))
	if out.Currency == "" {
		out.Currency = DefaultGeneral().Currency
	}
	return out, nil
}

// LoadPages returns the provisioned redirect pages.
func (r *Repository) LoadPages(ctx context.Context) (PageSettings, error) {
	out := DefaultPages()
	if err := r.load(ctx, KeyPages, &out); err != nil {
		return DefaultPages(), err
	}
	return out, nil
}

// StripeInput is the admin payload for the Stripe block. Empty secrets keep
// the stored value so the admin UI never has to echo them back.
type StripeInput struct {
	Enabled         bool    `json:"enabled"`
	PublishableKey  string  `json:"publishable_key" validate:"omitempty,startswith=pk_"`
	SecretKey       string  `json:"secret_key" validate:"omitempty,startswith=sk_|startswith=rk_"`
	WebhookSecret   string  `json:"webhook_secret" validate:"omitempty,startswith=whsec_"`
	Sandbox         bool    `json:"sandbox"`
	CorrectionKind  string  `json:"price_correction_kind" validate:"omitempty,oneof=none increase_percent discount_percent addition deduction"`
	CorrectionValue float64 `json:"price_correction_amount" validate:"gte=0"`
}

// SaveStripe encrypts any supplied secret and persists the block.
func (r *Repository) SaveStripe(ctx context.Context, in StripeInput) error {
	if err := common.ValidateStruct(in); err != nil {
		return err
	}
	current, err := r.LoadStripe(ctx)
	if err != nil {
		return err
	}
	current.Enabled = in.Enabled
	current.Sandbox = in.Sandbox
	current.PublishableKey = strings.TrimSpace(in.PublishableKey)
	if in.CorrectionKind != "" {
		current.PriceCorrection.Kind = pricing.CorrectionKind(in.CorrectionKind)
	}
	current.PriceCorrection.Amount = in.CorrectionValue
	if s := strings.TrimSpace(in.SecretKey); s != "" {
		if current.SecretKey, err = r.Cipher.Encrypt(s); err != nil {
			return err
		}
	}
	if s := strings.TrimSpace(in.WebhookSecret); s != "" {
		if current.WebhookSecret, err = r.Cipher.Encrypt(s); err != nil {
			return err
		}
	}
	return r.save(ctx, KeyStripe, current)
}

// GeneralInput is the admin payload for the general block.
type GeneralInput struct {
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

// SaveGeneral persists the general block.
func (r *Repository) SaveGeneral(ctx context.Context, in GeneralInput) error {
	if err := common.ValidateStruct(in); err != nil {
		return err
	}
	return r.save(ctx, KeyGeneral, GeneralSettings{Currency: strings.ToLower(in.Currency)})
}

// PagesInput is the admin payload for redirect pages.
type PagesInput struct {
	PaymentSuccessURL string `json:"payment_success_url" validate:"omitempty,url"`
	PaymentCancelURL  string `json:"payment_cancel_url" validate:"omitempty,url"`
}

// SavePages persists the redirect pages.
func (r *Repository) SavePages(ctx context.Context, in PagesInput) error {
	if err := common.ValidateStruct(in); err != nil {
		return err
	}
	return r.save(ctx, KeyPages, PageSettings(in))
}

// Resolve merges every block and decrypts the credentials. A missing or
// undecryptable secret key is a ConfigurationError, returned before any
// other work so callers never reach the provider unconfigured.
func (r *Repository) Resolve(ctx context.Context) (Resolved, error) {
	stripeSettings, err := r.LoadStripe(ctx)
	if err != nil {
		return Resolved{}, err
	}
	secretKey := r.Cipher.Decrypt(stripeSettings.SecretKey)
	if strings.TrimSpace(secretKey) == "" {
		return Resolved{}, common.ConfigurationError("stripe secret key is not configured")
	}
	general, err := r.LoadGeneral(ctx)
	if err != nil {
		return Resolved{}, err
	}
	pages, err := r.LoadPages(ctx)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{
		Enabled:         stripeSettings.Enabled,
		PublishableKey:  stripeSettings.PublishableKey,
		SecretKey:       secretKey,
		WebhookSecret:   r.Cipher.Decrypt(stripeSettings.WebhookSecret),
		Sandbox:         stripeSettings.Sandbox,
		PriceCorrection: stripeSettings.PriceCorrection,
		Currency:        general.Currency,
		SuccessURL:      pages.PaymentSuccessURL,
		CancelURL:       pages.PaymentCancelURL,
	}, nil
}
