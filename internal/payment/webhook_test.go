package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-booking/internal/common"
)

func createToken(t *testing.T, h *harness) string {
	t.Helper()
	_, err := h.checkout.CreateSession(context.Background(), []byte(validForm))
	require.NoError(t, err)
	return h.provider.requests[len(h.provider.requests)-1].Token
}

func TestWebhookProcessesOnce(t *testing.T) {
	h := newHarness(t)
	token := createToken(t, h)
	payload := checkoutCompleted(token, "paid", 10000, "usd")
	header := sign(payload, testWebhookSecret, time.Now())

	outcome, err := h.dispatcher.Process(context.Background(), payload, header)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	outcome, err = h.dispatcher.Process(context.Background(), payload, header)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, outcome)

	require.Equal(t, 1, h.materializer.count())
	info := h.materializer.infos[0]
	require.Equal(t, "stripe", info.Provider)
	require.Equal(t, "pi_test_1", info.TransactionID)
	require.Equal(t, 100.0, info.Amount)
	require.Equal(t, "usd", info.Currency)
	require.Equal(t, "Ada", h.materializer.forms[0].FirstName)
}

func TestWebhookConcurrentDeliveries(t *testing.T) {
	h := newHarness(t)
	token := createToken(t, h)
	payload := checkoutCompleted(token, "paid", 10000, "usd")
	header := sign(payload, testWebhookSecret, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.dispatcher.Process(context.Background(), payload, header)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, h.materializer.count())
}

func TestWebhookZeroDecimalAmount(t *testing.T) {
	h := newHarness(t)
	token := createToken(t, h)
	payload := checkoutCompleted(token, "paid", 100, "jpy")
	_, err := h.dispatcher.Process(context.Background(), payload, sign(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	require.Equal(t, 100.0, h.materializer.infos[0].Amount)
}

func TestWebhookTamperedPayload(t *testing.T) {
	h := newHarness(t)
	token := createToken(t, h)
	payload := checkoutCompleted(token, "paid", 10000, "usd")
	header := sign(payload, testWebhookSecret, time.Now())

	tampered := []byte(strings.Replace(string(payload), "10000", "10001", 1))
	_, err := h.dispatcher.Process(context.Background(), tampered, header)
	require.True(t, isKind(err, common.ErrInvalidSignature))
	require.Zero(t, h.materializer.count())

	// the token survives a rejected delivery
	outcome, err := h.dispatcher.Process(context.Background(), payload, header)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)
}

func TestWebhookWrongSecretAndStaleSignature(t *testing.T) {
	h := newHarness(t)
	payload := checkoutCompleted("tok", "paid", 10000, "usd")

	_, err := h.dispatcher.Process(context.Background(), payload, sign(payload, "whsec_other", time.Now()))
	require.True(t, isKind(err, common.ErrInvalidSignature))

	_, err = h.dispatcher.Process(context.Background(), payload, sign(payload, testWebhookSecret, time.Now().Add(-time.Hour)))
	require.True(t, isKind(err, common.ErrInvalidSignature))

	_, err = h.dispatcher.Process(context.Background(), payload, "")
	require.True(t, isKind(err, common.ErrInvalidSignature))
}

func TestWebhookInvalidPayload(t *testing.T) {
	h := newHarness(t)
	for _, body := range []string{"", "not json", "[1]", `{"id":`} {
		_, err := h.dispatcher.Process(context.Background(), []byte(body), sign([]byte(body), testWebhookSecret, time.Now()))
		require.True(t, isKind(err, common.ErrInvalidPayload), body)
	}
}

func TestWebhookMissingSecrets(t *testing.T) {
	h := newHarness(t)
	payload := checkoutCompleted("tok", "paid", 10000, "usd")
	header := sign(payload, testWebhookSecret, time.Now())

	h.settings.res.WebhookSecret = ""
	_, err := h.dispatcher.Process(context.Background(), payload, header)
	require.True(t, isKind(err, common.ErrConfiguration))

	h.settings.err = common.ConfigurationError("stripe secret key is not configured")
	_, err = h.dispatcher.Process(context.Background(), payload, header)
	require.True(t, isKind(err, common.ErrConfiguration))
}

func TestWebhookIgnoresOtherEventsAndUnpaid(t *testing.T) {
	h := newHarness(t)
	token := createToken(t, h)

	other := []byte(`{"id":"evt_2","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)
	outcome, err := h.dispatcher.Process(context.Background(), other, sign(other, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, outcome)

	unpaid := checkoutCompleted(token, "unpaid", 10000, "usd")
	outcome, err = h.dispatcher.Process(context.Background(), unpaid, sign(unpaid, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, outcome)

	noRef := checkoutCompleted("", "paid", 10000, "usd")
	outcome, err = h.dispatcher.Process(context.Background(), noRef, sign(noRef, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, outcome)

	require.Zero(t, h.materializer.count())
	// an ignored delivery leaves the token redeemable
	paid := checkoutCompleted(token, "paid", 10000, "usd")
	outcome, err = h.dispatcher.Process(context.Background(), paid, sign(paid, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)
}

func TestWebhookAfterTokenExpiry(t *testing.T) {
	h := newHarness(t)
	token := createToken(t, h)
	h.mr.FastForward(time.Hour + time.Minute)

	payload := checkoutCompleted(token, "paid", 10000, "usd")
	outcome, err := h.dispatcher.Process(context.Background(), payload, sign(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, outcome)
	require.Zero(t, h.materializer.count())
}

func TestWebhookMaterializerFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	token := createToken(t, h)
	h.materializer.err = errors.New("customers table locked")

	payload := checkoutCompleted(token, "paid", 10000, "usd")
	header := sign(payload, testWebhookSecret, time.Now())
	handler := WebhookHandler{Dispatcher: h.dispatcher}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", strings.NewReader(string(payload)))
	req.Header.Set(SignatureHeader, header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, string(OutcomeFailed), body["status"])
	require.Len(t, h.recorder.causes, 1)
	require.Equal(t, "pi_test_1", h.recorder.infos[0].TransactionID)

	// the token was consumed before the failure
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", strings.NewReader(string(payload)))
	req.Header.Set(SignatureHeader, header)
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), string(OutcomeDuplicate))
}

func TestWebhookSettlesAfterDeliveryCancelled(t *testing.T) {
	h := newHarness(t)
	token := createToken(t, h)
	payload := checkoutCompleted(token, "paid", 10000, "usd")
	header := sign(payload, testWebhookSecret, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the caller hangs up while the appointment is being written
	h.materializer.before = cancel

	outcome, err := h.dispatcher.Process(ctx, payload, header)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)
	require.Equal(t, 1, h.materializer.count())
	require.Empty(t, h.recorder.causes)
}

func TestWebhookCancelledDeliveryStillRecordsFailure(t *testing.T) {
	h := newHarness(t)
	token := createToken(t, h)
	h.materializer.err = errors.New("connection reset")
	payload := checkoutCompleted(token, "paid", 10000, "usd")
	header := sign(payload, testWebhookSecret, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.materializer.before = cancel

	outcome, err := h.dispatcher.Process(ctx, payload, header)
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, outcome)
	require.Len(t, h.recorder.causes, 1)
	require.Equal(t, "Ada", h.recorder.forms[0].FirstName)
	require.Equal(t, "pi_test_1", h.recorder.infos[0].TransactionID)
}

func TestWebhookUnrecordedFailureLogsForm(t *testing.T) {
	h := newHarness(t)
	var logs bytes.Buffer
	h.dispatcher.Logger = zerolog.New(&logs)
	token := createToken(t, h)
	h.materializer.err = errors.New("connection reset")
	h.recorder.err = errors.New("booking_recoveries unavailable")

	payload := checkoutCompleted(token, "paid", 10000, "usd")
	outcome, err := h.dispatcher.Process(context.Background(), payload, sign(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	require.Equal(t, OutcomeFailed, outcome)
	require.Contains(t, logs.String(), "paid booking not recorded for review")
	require.Contains(t, logs.String(), "ada@example.com")
	require.Contains(t, logs.String(), "pi_test_1")
}

func TestWebhookHandlerRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	handler := WebhookHandler{Dispatcher: h.dispatcher}
	payload := checkoutCompleted("tok", "paid", 10000, "usd")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", strings.NewReader(string(payload)))
	req.Header.Set(SignatureHeader, "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_SIGNATURE")
}

func TestWebhookHandlerBodyLimit(t *testing.T) {
	h := newHarness(t)
	handler := WebhookHandler{Dispatcher: h.dispatcher, MaxBodyBytes: 16}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook", strings.NewReader(string(checkoutCompleted("tok", "paid", 1, "usd"))))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_PAYLOAD")
}
