package payment

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-booking/internal/booking"
	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/obs"
	"github.com/noah-isme/backend-booking/internal/pending"
	"github.com/noah-isme/backend-booking/internal/pricing"
)

// DefaultDescription labels the line item when the service cannot be found.
const DefaultDescription = "Appointment booking"

// Checkout opens hosted checkout sessions for pending bookings.
type Checkout struct {
	Settings SettingsResolver
	Provider Provider
	Pending  TokenStore
	Services ServiceNamer
	Logger   zerolog.Logger
	NewToken func() (string, error)
}

// CreateSession validates raw form data, parks it under a fresh token and
// returns the provider's redirect URL.
func (c *Checkout) CreateSession(ctx context.Context, raw []byte) (checkoutURL string, err error) {
	ctx, span := otel.Tracer("payment.Checkout").Start(ctx, "Checkout.CreateSession")
	defer span.End()

	start := time.Now()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("checkout.result", result),
			attribute.Float64("checkout.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		obs.CountCheckoutSession(result)
	}()

	form, err := booking.DecodeFormData(raw)
	if err != nil {
		result = "invalid"
		return "", err
	}
	cfg, err := c.Settings.Resolve(ctx)
	if err != nil {
		result = "unconfigured"
		return "", err
	}
	if !cfg.Enabled {
		result = "unconfigured"
		return "", common.ConfigurationError("stripe payments are disabled")
	}
	if strings.TrimSpace(cfg.SuccessURL) == "" || strings.TrimSpace(cfg.CancelURL) == "" {
		result = "unconfigured"
		return "", common.ConfigurationError("payment success and cancel pages are not configured")
	}

	description := c.describe(ctx, form.ServiceID)
	amount := pricing.Charge(form.PriceValue(), cfg.PriceCorrection, cfg.Currency)
	span.SetAttributes(
		attribute.Int64("booking.service_id", form.ServiceID),
		attribute.Int64("checkout.amount", amount),
		attribute.String("checkout.currency", cfg.Currency),
	)

	newToken := c.NewToken
	if newToken == nil {
		newToken = pending.NewToken
	}
	token, err := newToken()
	if err != nil {
		return "", common.ServerError("unable to generate booking token")
	}
	if err := c.Pending.Put(ctx, token, form); err != nil {
		c.Logger.Error().Err(err).Msg("store pending booking")
		return "", common.ServerError("unable to store pending booking")
	}

	sess, err := c.Provider.CreateCheckoutSession(ctx, SessionRequest{
		SecretKey:   cfg.SecretKey,
		Currency:    cfg.Currency,
		UnitAmount:  amount,
		ProductName: description,
		SuccessURL:  cfg.SuccessURL,
		CancelURL:   cfg.CancelURL,
		Token:       token,
	})
	if err != nil {
		result = "provider_error"
		c.Logger.Error().Err(err).Int64("service_id", form.ServiceID).Msg("create checkout session")
		if common.IsAppError(err) {
			return "", err
		}
		return "", common.ProviderError("stripe request failed", err.Error())
	}
	if strings.TrimSpace(sess.URL) == "" {
		return "", common.ServerError("stripe returned no checkout url")
	}
	result = "ok"
	c.Logger.Info().Str("session_id", sess.ID).Int64("service_id", form.ServiceID).Int64("amount", amount).Str("currency", cfg.Currency).Msg("checkout session created")
	return sess.URL, nil
}

func (c *Checkout) describe(ctx context.Context, serviceID int64) string {
	if c.Services == nil {
		return DefaultDescription
	}
	name, err := c.Services.ServiceName(ctx, serviceID)
	if err != nil || strings.TrimSpace(name) == "" {
		return DefaultDescription
	}
	return name
}
