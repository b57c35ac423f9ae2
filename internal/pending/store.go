// Package pending keeps booking form data in Redis while the customer is on
// the hosted checkout page. Each entry is keyed by a single-use token.
package pending

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-booking/internal/booking"
)

// DefaultTTL bounds how long a checkout may stay open before the token lapses.
const DefaultTTL = time.Hour

const keyPrefix = "booking:pending:"

// ErrNotFound is returned when a token is unknown, expired or already used.
var ErrNotFound = errors.New("pending booking not found")

// Store persists pending bookings.
type Store struct {
	R   *redis.Client
	TTL time.Duration
}

// NewToken returns 32 random bytes hex encoded.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("pending: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Put stores form under token for the configured TTL.
func (s Store) Put(ctx context.Context, token string, form booking.FormData) error {
	if s.R == nil {
		return errors.New("pending: redis client not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("pending: token is required")
	}
	raw, err := json.Marshal(form)
	if err != nil {
		return err
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return s.R.Set(ctx, keyPrefix+token, raw, ttl).Err()
}

// Take atomically reads and deletes the entry for token. A second Take for
// the same token, or one after expiry, returns ErrNotFound.
func (s Store) Take(ctx context.Context, token string) (booking.FormData, error) {
	if s.R == nil {
		return booking.FormData{}, errors.New("pending: redis client not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return booking.FormData{}, ErrNotFound
	}
	raw, err := s.R.GetDel(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return booking.FormData{}, ErrNotFound
	}
	if err != nil {
		return booking.FormData{}, err
	}
	var form booking.FormData
	if err := json.Unmarshal(raw, &form); err != nil {
		return booking.FormData{}, fmt.Errorf("pending: decode entry: %w", err)
	}
	return form, nil
}
