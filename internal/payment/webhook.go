package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-booking/internal/booking"
	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/obs"
	"github.com/noah-isme/backend-booking/internal/pending"
	"github.com/noah-isme/backend-booking/internal/pricing"
)

// Outcome is the terminal state of one webhook delivery.
type Outcome string

const (
	// OutcomeIgnored covers other event types and unpaid or unreferenced sessions.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDuplicate means the token was already consumed or has expired.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeProcessed means the appointment was written.
	OutcomeProcessed Outcome = "processed"
	// OutcomeFailed means the token was consumed but the write failed; the
	// booking was queued for manual review.
	OutcomeFailed Outcome = "failed"
)

const eventCheckoutCompleted = "checkout.session.completed"

// defaultSettleTimeout bounds the writes that follow a consumed token.
const defaultSettleTimeout = 30 * time.Second

// SignatureHeader carries Stripe's webhook signature.
const SignatureHeader = "Stripe-Signature"

// Dispatcher verifies Stripe events and materialises paid bookings.
type Dispatcher struct {
	Settings     SettingsResolver
	Pending      TokenStore
	Materializer Materializer
	Recoveries   RecoveryRecorder
	Logger       zerolog.Logger
	// SettleTimeout bounds materialisation once the token is consumed.
	SettleTimeout time.Duration
}

// Process handles one delivery. Errors are returned only for configuration
// and authenticity failures; every other path acknowledges the event.
func (d *Dispatcher) Process(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	ctx, span := otel.Tracer("payment.Dispatcher").Start(ctx, "Dispatcher.Process")
	defer span.End()

	cfg, err := d.Settings.Resolve(ctx)
	if err != nil {
		obs.CountStripeWebhook("unknown", "unconfigured")
		return "", err
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		obs.CountStripeWebhook("unknown", "unconfigured")
		return "", common.ConfigurationError("stripe webhook secret is not configured")
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		obs.CountStripeWebhook("unknown", "invalid_payload")
		return "", common.InvalidPayloadError("webhook payload is not valid JSON")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			obs.CountStripeWebhook("unknown", "invalid_signature")
			d.Logger.Warn().Err(err).Msg("stripe webhook signature rejected")
			return "", common.InvalidSignatureError("webhook signature verification failed")
		}
		obs.CountStripeWebhook("unknown", "invalid_payload")
		return "", common.InvalidPayloadError("webhook payload could not be parsed")
	}

	eventType := string(event.Type)
	span.SetAttributes(attribute.String("stripe.event_type", eventType), attribute.String("stripe.event_id", event.ID))
	outcome, err := d.dispatch(ctx, event)
	if err != nil {
		obs.CountStripeWebhook(eventType, "error")
		return "", err
	}
	span.SetAttributes(attribute.String("stripe.outcome", string(outcome)))
	obs.CountStripeWebhook(eventType, string(outcome))
	return outcome, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event stripe.Event) (Outcome, error) {
	if string(event.Type) != eventCheckoutCompleted {
		d.Logger.Debug().Str("event_type", string(event.Type)).Str("event_id", event.ID).Msg("stripe event ignored")
		return OutcomeIgnored, nil
	}
	if event.Data == nil {
		return OutcomeIgnored, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		d.Logger.Warn().Err(err).Str("event_id", event.ID).Msg("decode checkout session")
		return OutcomeIgnored, nil
	}
	token := strings.TrimSpace(sess.ClientReferenceID)
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid || token == "" {
		d.Logger.Info().Str("session_id", sess.ID).Str("payment_status", string(sess.PaymentStatus)).Msg("checkout session not actionable")
		return OutcomeIgnored, nil
	}

	form, err := d.Pending.Take(ctx, token)
	if err != nil {
		if errors.Is(err, pending.ErrNotFound) {
			d.Logger.Info().Str("session_id", sess.ID).Msg("booking token already consumed or expired")
			return OutcomeDuplicate, nil
		}
		// nothing was consumed, so a 5xx lets Stripe redeliver
		d.Logger.Error().Err(err).Str("session_id", sess.ID).Msg("read pending booking")
		return "", common.ServerError("unable to read pending booking")
	}

	// the token is gone, so the writes below must outlive the delivery
	timeout := d.SettleTimeout
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	info := paymentInfo(sess)
	if _, err := d.Materializer.Create(settleCtx, form, &info); err != nil {
		d.Logger.Error().Err(err).
			Str("session_id", sess.ID).
			Str("transaction_id", info.TransactionID).
			Msg("materialize paid booking")
		if d.Recoveries == nil {
			d.logUnrecorded(sess.ID, form, info, nil)
			return OutcomeFailed, nil
		}
		if _, recErr := d.Recoveries.Record(settleCtx, form, &info, err); recErr != nil {
			d.logUnrecorded(sess.ID, form, info, recErr)
		}
		return OutcomeFailed, nil
	}
	return OutcomeProcessed, nil
}

// logUnrecorded leaves the full booking in the error log when no review row
// could be written; the log line is then the only copy of the form data.
func (d *Dispatcher) logUnrecorded(sessionID string, form booking.FormData, info booking.PaymentInfo, err error) {
	d.Logger.Error().Err(err).
		Str("session_id", sessionID).
		Interface("form", form).
		Interface("payment", info).
		Msg("paid booking not recorded for review")
}

func paymentInfo(sess stripe.CheckoutSession) booking.PaymentInfo {
	currency := strings.ToLower(string(sess.Currency))
	info := booking.PaymentInfo{
		Provider: ProviderStripe,
		Amount:   pricing.FromMinorUnits(sess.AmountTotal, currency),
		Currency: currency,
		Status:   booking.PaymentPaid,
	}
	if sess.PaymentIntent != nil {
		info.TransactionID = sess.PaymentIntent.ID
	}
	if info.TransactionID == "" {
		info.TransactionID = sess.ID
	}
	return info
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// WebhookHandler serves POST /api/v1/stripe/webhook.
type WebhookHandler struct {
	Dispatcher   *Dispatcher
	MaxBodyBytes int64
}

// ServeHTTP implements http.Handler.
func (h WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = 65536
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		common.WriteError(w, common.InvalidPayloadError("unable to read webhook payload"))
		return
	}
	outcome, err := h.Dispatcher.Process(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}
