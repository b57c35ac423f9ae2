// Package form manages the custom question sets attached to bookings.
package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/db"
)

// Field is one question on a booking form.
type Field struct {
	Name     string   `json:"name" validate:"required,max=64,excludesall=0x20"`
	Label    string   `json:"label" validate:"required,max=200"`
	Type     string   `json:"type" validate:"required,oneof=text textarea email phone number select checkbox date"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty" validate:"required_if=Type select,dive,required,max=200"`
}

// Form is a stored booking form.
type Form struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Fields    []Field   `json:"fields"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sort whitelists form ordering.
var Sort = common.SortSpec{
	Columns: map[string]string{"id": "id", "name": "name", "created_at": "created_at"},
	Default: "name",
}

// Store is the persistence contract for forms.
type Store interface {
	List(ctx context.Context, activeOnly bool, p common.ListParams) ([]Form, int64, error)
	Get(ctx context.Context, id int64) (Form, error)
	Create(ctx context.Context, f Form) (Form, error)
	Update(ctx context.Context, f Form) (Form, error)
	Delete(ctx context.Context, id int64) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	DB db.DBTX
}

const columns = `id, name, fields, is_active, created_at, updated_at`

func scan(row pgx.Row) (Form, error) {
	var (
		f   Form
		raw []byte
	)
	if err := row.Scan(&f.ID, &f.Name, &raw, &f.IsActive, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Form{}, common.NotFoundError("form not found")
		}
		return Form{}, err
	}
	if err := json.Unmarshal(raw, &f.Fields); err != nil {
		return Form{}, fmt.Errorf("decode form fields: %w", err)
	}
	if f.Fields == nil {
		f.Fields = []Field{}
	}
	return f, nil
}

// List implements Store.
func (s PGStore) List(ctx context.Context, activeOnly bool, p common.ListParams) ([]Form, int64, error) {
	where := ""
	if activeOnly {
		where = " WHERE is_active"
	}
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM forms`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.DB.Query(ctx, `SELECT `+columns+` FROM forms`+where+` ORDER BY `+p.OrderBy()+` LIMIT $1 OFFSET $2`, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Form, 0)
	for rows.Next() {
		f, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

// Get implements Store.
func (s PGStore) Get(ctx context.Context, id int64) (Form, error) {
	return scan(s.DB.QueryRow(ctx, `SELECT `+columns+` FROM forms WHERE id = $1`, id))
}

// Create implements Store.
func (s PGStore) Create(ctx context.Context, f Form) (Form, error) {
	raw, err := json.Marshal(f.Fields)
	if err != nil {
		return Form{}, err
	}
	return scan(s.DB.QueryRow(ctx, `
		INSERT INTO forms (name, fields, is_active) VALUES ($1, $2, $3) RETURNING `+columns,
		f.Name, raw, f.IsActive))
}

// Update implements Store.
func (s PGStore) Update(ctx context.Context, f Form) (Form, error) {
	raw, err := json.Marshal(f.Fields)
	if err != nil {
		return Form{}, err
	}
	return scan(s.DB.QueryRow(ctx, `
		UPDATE forms SET name = $2, fields = $3, is_active = $4, updated_at = now()
		WHERE id = $1 RETURNING `+columns, f.ID, f.Name, raw, f.IsActive))
}

// Delete implements Store.
func (s PGStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundError("form not found")
	}
	return nil
}
