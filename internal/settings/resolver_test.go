package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/pricing"
	"github.com/noah-isme/backend-booking/internal/secrets"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	return m.data[key], nil
}

func (m *memStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func newRepo(t *testing.T) (*Repository, *memStore) {
	t.Helper()
	c, err := secrets.NewCipher("test-passphrase")
	require.NoError(t, err)
	store := newMemStore()
	return &Repository{Store: store, Cipher: c}, store
}

func TestResolveWithoutSecretIsConfigurationError(t *testing.T) {
	repo, _ := newRepo(t)
	_, err := repo.Resolve(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestLoadDefaultsWhenNothingStored(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	general, err := repo.LoadGeneral(ctx)
	require.NoError(t, err)
	require.Equal(t, "usd", general.Currency)
	st, err := repo.LoadStripe(ctx)
	require.NoError(t, err)
	require.False(t, st.Enabled)
	require.Equal(t, pricing.CorrectionNone, st.PriceCorrection.Kind)
}

func TestSaveStripeEncryptsAndResolveDecrypts(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveStripe(ctx, StripeInput{
		Enabled:         true,
		PublishableKey:  "pk_test_123",
		SecretKey:       "sk_test_abcdef123456",
		WebhookSecret:   "whsec_987654321",
		CorrectionKind:  "increase_percent",
		CorrectionValue: 10,
	}))
	require.NotContains(t, string(store.data[KeyStripe]), "sk_test_abcdef123456")
	require.NotContains(t, string(store.data[KeyStripe]), "whsec_987654321")

	require.NoError(t, repo.SaveGeneral(ctx, GeneralInput{Currency: "EUR"}))
	require.NoError(t, repo.SavePages(ctx, PagesInput{
		PaymentSuccessURL: "https://example.com/thanks",
		PaymentCancelURL:  "https://example.com/cancel",
	}))

	res, err := repo.Resolve(ctx)
	require.NoError(t, err)
	require.True(t, res.Enabled)
	require.Equal(t, "sk_test_abcdef123456", res.SecretKey)
	require.Equal(t, "whsec_987654321", res.WebhookSecret)
	require.Equal(t, "eur", res.Currency)
	require.Equal(t, "https://example.com/thanks", res.SuccessURL)
	require.Equal(t, pricing.CorrectionIncreasePercent, res.PriceCorrection.Kind)
	require.NotContains(t, res.String(), "abcdef")

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "abcdef")
	require.Contains(t, string(raw), `"currency":"eur"`)
}

func TestSaveStripeEmptySecretKeepsExisting(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveStripe(ctx, StripeInput{Enabled: true, SecretKey: "sk_test_keepme0000"}))
	require.NoError(t, repo.SaveStripe(ctx, StripeInput{Enabled: false}))

	res, err := repo.Resolve(ctx)
	require.NoError(t, err)
	require.False(t, res.Enabled)
	require.Equal(t, "sk_test_keepme0000", res.SecretKey)
}

func TestResolveUndecryptableSecret(t *testing.T) {
	repo, store := newRepo(t)
	raw, _ := json.Marshal(StripeSettings{Enabled: true, SecretKey: "enc:v1:garbage"})
	store.data[KeyStripe] = raw
	_, err := repo.Resolve(context.Background())
	require.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestSaveStripeValidation(t *testing.T) {
	repo, _ := newRepo(t)
	err := repo.SaveStripe(context.Background(), StripeInput{SecretKey: "not-a-key"})
	require.True(t, errors.Is(err, common.ErrValidation))
	err = repo.SaveStripe(context.Background(), StripeInput{CorrectionKind: "triple"})
	require.True(t, errors.Is(err, common.ErrValidation))
}

func TestMask(t *testing.T) {
	require.Equal(t, "", Mask(""))
	require.Equal(t, "*****", Mask("short"))
	require.Equal(t, "sk_test_********1234", Mask("sk_test_abcdefgh1234"))
}

func TestHandlerNeverReturnsSecrets(t *testing.T) {
	repo, _ := newRepo(t)
	h := NewHandler(repo)

	body := `{"enabled":true,"secret_key":"sk_live_supersecret9999","webhook_secret":"whsec_hidden"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings/stripe", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.PutStripe(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "supersecret")
	require.NotContains(t, rec.Body.String(), "whsec_hidden")
	require.Contains(t, rec.Body.String(), `"secret_key_set":true`)
	require.Contains(t, rec.Body.String(), `"webhook_secret_set":true`)
}

func TestHandlerRejectsUnknownFields(t *testing.T) {
	repo, _ := newRepo(t)
	h := NewHandler(repo)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings/general", strings.NewReader(`{"currency":"usd","x":1}`))
	rec := httptest.NewRecorder()
	h.PutGeneral(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
