// Package auth issues and verifies the bearer tokens that guard the admin API.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-booking/internal/common"
)

// RoleAdmin is the role required by the admin API.
const RoleAdmin = "admin"

const (
	defaultTTL      = 12 * time.Hour
	defaultAudience = "booking-admin"
)

// Config configures a TokenService.
type Config struct {
	Secret    string
	Issuer    string
	Audience  string
	TTL       time.Duration
	ClockSkew time.Duration
}

// Claims are the verified facts carried by a token.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// TokenService signs and parses HS256 tokens.
type TokenService struct {
	secret    []byte
	issuer    string
	audience  string
	ttl       time.Duration
	clockSkew time.Duration
	now       func() time.Time
	validator TokenValidator
}

// NewTokenService validates cfg and fills defaults.
func NewTokenService(cfg Config) (*TokenService, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "booking-api"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	skew := cfg.ClockSkew
	if skew < 0 {
		skew = 0
	}
	return &TokenService{
		secret:    []byte(secret),
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
		clockSkew: skew,
		now:       time.Now,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: skew,
			Algorithm: jwa.HS256,
		},
	}, nil
}

// WithNow overrides the clock. Tests only.
func (s *TokenService) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Issue signs a token for subject carrying role.
func (s *TokenService) Issue(subject, role string) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	tok, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Claim(RoleClaim, role).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return string(signed), expiresAt, nil
}

// Parse verifies token and returns its claims. Failures are 401 AppErrors.
func (s *TokenService) Parse(token string) (Claims, error) {
	return s.parse(token, s.validator)
}

// ParseWithRole is Parse plus a role claim check.
func (s *TokenService) ParseWithRole(token, role string) (Claims, error) {
	v := s.validator
	v.Role = role
	return s.parse(token, v)
}

func (s *TokenService) parse(token string, v TokenValidator) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, unauthorized("invalid token", err)
	}
	if algorithm != v.Algorithm {
		return Claims{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, unauthorized("invalid token", err)
	}
	if err := v.Validate(parsed, algorithm, s.now()); err != nil {
		if errors.Is(err, errRoleMismatch) {
			return Claims{}, common.NewAppError("FORBIDDEN", "insufficient role", http.StatusForbidden, err)
		}
		return Claims{}, unauthorized("invalid token", err)
	}
	role, _ := roleOf(parsed)
	return Claims{Subject: parsed.Subject(), Role: role, ExpiresAt: parsed.Expiration()}, nil
}

func unauthorized(message string, err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: expected exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}
