package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-booking/internal/db"
)

// OptionStore is the key-value storage behind settings. Get returns nil
// without error when the key has never been written.
type OptionStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// PGOptionStore keeps options as JSONB rows.
type PGOptionStore struct {
	DB db.DBTX
}

// Get implements OptionStore.
func (s PGOptionStore) Get(ctx context.Context, key string) ([]byte, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, `SELECT value FROM options WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Put implements OptionStore.
func (s PGOptionStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO options (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	return err
}
