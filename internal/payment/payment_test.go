package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/noah-isme/backend-booking/internal/booking"
	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/pending"
	"github.com/noah-isme/backend-booking/internal/pricing"
	"github.com/noah-isme/backend-booking/internal/settings"
)

const testWebhookSecret = "whsec_test_secret"

type fakeSettings struct {
	res settings.Resolved
	err error
}

func (f *fakeSettings) Resolve(context.Context) (settings.Resolved, error) {
	return f.res, f.err
}

func configured() *fakeSettings {
	return &fakeSettings{res: settings.Resolved{
		Enabled:         true,
		SecretKey:       "sk_test_123",
		WebhookSecret:   testWebhookSecret,
		Currency:        "usd",
		PriceCorrection: pricing.Correction{Kind: pricing.CorrectionNone},
		SuccessURL:      "https://example.com/success",
		CancelURL:       "https://example.com/cancel",
	}}
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []SessionRequest
	url      string
	err      error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req SessionRequest) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return Session{}, f.err
	}
	return Session{ID: fmt.Sprintf("cs_test_%d", len(f.requests)), URL: f.url}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeNamer map[int64]string

func (f fakeNamer) ServiceName(_ context.Context, id int64) (string, error) {
	name, ok := f[id]
	if !ok {
		return "", common.NotFoundError("service not found")
	}
	return name, nil
}

type fakeMaterializer struct {
	mu     sync.Mutex
	forms  []booking.FormData
	infos  []booking.PaymentInfo
	err    error
	before func()
}

func (f *fakeMaterializer) Create(ctx context.Context, form booking.FormData, info *booking.PaymentInfo) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.before != nil {
		f.before()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.err != nil {
		return 0, f.err
	}
	f.forms = append(f.forms, form)
	if info != nil {
		f.infos = append(f.infos, *info)
	}
	return int64(len(f.forms)), nil
}

func (f *fakeMaterializer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forms)
}

type fakeRecorder struct {
	causes []error
	infos  []booking.PaymentInfo
	forms  []booking.FormData
	err    error
}

func (f *fakeRecorder) Record(ctx context.Context, form booking.FormData, info *booking.PaymentInfo, cause error) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if f.err != nil {
		return 0, f.err
	}
	f.causes = append(f.causes, cause)
	f.forms = append(f.forms, form)
	if info != nil {
		f.infos = append(f.infos, *info)
	}
	return int64(len(f.causes)), nil
}

type harness struct {
	mr           *miniredis.Miniredis
	store        pending.Store
	settings     *fakeSettings
	provider     *fakeProvider
	materializer *fakeMaterializer
	recorder     *fakeRecorder
	checkout     *Checkout
	dispatcher   *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := &harness{
		mr:           mr,
		store:        pending.Store{R: client, TTL: time.Hour},
		settings:     configured(),
		provider:     &fakeProvider{url: "https://checkout.stripe.com/c/pay/cs_test"},
		materializer: &fakeMaterializer{},
		recorder:     &fakeRecorder{},
	}
	h.checkout = &Checkout{
		Settings: h.settings,
		Provider: h.provider,
		Pending:  h.store,
		Services: fakeNamer{7: "Deep tissue massage"},
		Logger:   zerolog.Nop(),
	}
	h.dispatcher = &Dispatcher{
		Settings:     h.settings,
		Pending:      h.store,
		Materializer: h.materializer,
		Recoveries:   h.recorder,
		Logger:       zerolog.Nop(),
	}
	return h
}

const validForm = `{"service_id":7,"price":100,"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","date":"2026-03-01","time":"09:30","answers":{"notes":"first visit"}}`

func checkoutCompleted(token, paymentStatus string, amount int64, currency string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_test_1",
  "object": "event",
  "api_version": "2024-09-30.acacia",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "payment_status": %q,
    "client_reference_id": %q,
    "payment_intent": "pi_test_1",
    "amount_total": %d,
    "currency": %q
  }}
}`, paymentStatus, token, amount, currency))
}

func sign(payload []byte, secret string, at time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	return signed.Header
}

func isKind(err, kind error) bool { return errors.Is(err, kind) }
