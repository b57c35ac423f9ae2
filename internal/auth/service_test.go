package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-booking/internal/common"
)

func newTokens(t *testing.T, now time.Time) *TokenService {
	t.Helper()
	svc, err := NewTokenService(Config{Secret: "test-secret", Issuer: "booking-api", TTL: time.Hour})
	require.NoError(t, err)
	svc.WithNow(func() time.Time { return now })
	return svc
}

func requireCode(t *testing.T, err error, status int) {
	t.Helper()
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, status, appErr.HTTPStatus)
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(Config{Secret: "  "})
	require.Error(t, err)
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	svc := newTokens(t, now)

	token, exp, err := svc.Issue("owner@example.com", RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), exp)

	claims, err := svc.ParseWithRole(token, RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, "owner@example.com", claims.Subject)
	require.Equal(t, RoleAdmin, claims.Role)
	require.True(t, exp.Equal(claims.ExpiresAt))
}

func TestParseRejects(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	svc := newTokens(t, now)

	staff, _, err := svc.Issue("staff@example.com", "staff")
	require.NoError(t, err)
	_, err = svc.ParseWithRole(staff, RoleAdmin)
	requireCode(t, err, http.StatusForbidden)

	admin, _, err := svc.Issue("owner@example.com", RoleAdmin)
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return now.Add(2 * time.Hour) })
	_, err = svc.Parse(admin)
	requireCode(t, err, http.StatusUnauthorized)

	svc.WithNow(func() time.Time { return now })
	other, err := NewTokenService(Config{Secret: "other-secret"})
	require.NoError(t, err)
	_, err = other.Parse(admin)
	requireCode(t, err, http.StatusUnauthorized)

	_, err = svc.Parse("")
	requireCode(t, err, http.StatusUnauthorized)
	_, err = svc.Parse("not.a.jwt")
	requireCode(t, err, http.StatusUnauthorized)
}

func TestParseRejectsForeignAlgorithm(t *testing.T) {
	now := time.Now()
	svc := newTokens(t, now)
	tok, err := jwt.NewBuilder().
		Subject("owner@example.com").
		Issuer("booking-api").
		Audience([]string{defaultAudience}).
		Expiration(now.Add(time.Minute)).
		Claim(RoleClaim, RoleAdmin).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, []byte("test-secret")))
	require.NoError(t, err)

	_, err = svc.Parse(string(signed))
	requireCode(t, err, http.StatusUnauthorized)
}

func TestRequireAdmin(t *testing.T) {
	svc := newTokens(t, time.Now())
	mw := Middleware{Tokens: svc}

	var gotUser, gotRole string
	h := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = common.UserID(r.Context())
		gotRole = common.Role(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/settings", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	admin, _, err := svc.Issue("owner@example.com", RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, call("Bearer "+admin))
	require.Equal(t, "owner@example.com", gotUser)
	require.Equal(t, RoleAdmin, gotRole)

	staff, _, err := svc.Issue("staff@example.com", "staff")
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, call("bearer "+staff))
	require.Equal(t, http.StatusUnauthorized, call(""))
	require.Equal(t, http.StatusUnauthorized, call("Basic abc"))
	require.Equal(t, http.StatusUnauthorized, call("Bearer garbage"))
}
