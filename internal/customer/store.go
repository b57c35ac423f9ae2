// Package customer manages the contact records bookings are attached to.
package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/db"
)

// Customer is a stored contact.
type Customer struct {
	ID               int64     `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Notes            string    `json:"notes"`
	AppointmentCount int64     `json:"appointment_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Sort whitelists customer ordering.
var Sort = common.SortSpec{
	Columns: map[string]string{
		"id":         "c.id",
		"first_name": "c.first_name",
		"last_name":  "c.last_name",
		"email":      "c.email",
		"created_at": "c.created_at",
	},
	Default:     "created_at",
	DefaultDesc: true,
}

// Store is the persistence contract for customers.
type Store interface {
	List(ctx context.Context, query string, p common.ListParams) ([]Customer, int64, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, c Customer) (Customer, error)
	Delete(ctx context.Context, id int64) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	DB db.DBTX
}

const selectCustomer = `
	SELECT c.id, c.first_name, c.last_name, c.email, c.phone, c.notes,
		(SELECT count(*) FROM appointments a WHERE a.customer_id = c.id),
		c.created_at, c.updated_at
	FROM customers c`

func scan(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Notes, &c.AppointmentCount, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return common.NotFoundError("customer not found")
	case common.IsUniqueViolation(err):
		return common.ConflictError("a customer with this email already exists")
	}
	return err
}

// List implements Store. query matches name or email.
func (s PGStore) List(ctx context.Context, query string, p common.ListParams) ([]Customer, int64, error) {
	where := ""
	var args []any
	if q := strings.TrimSpace(query); q != "" {
		args = append(args, q)
		where = ` WHERE (c.first_name ILIKE '%' || $1 || '%' OR c.last_name ILIKE '%' || $1 || '%' OR c.email ILIKE '%' || $1 || '%')`
	}
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM customers c`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	sql := fmt.Sprintf(`%s%s ORDER BY %s LIMIT $%d OFFSET $%d`, selectCustomer, where, p.OrderBy(), len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, sql, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Customer, 0)
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Get implements Store.
func (s PGStore) Get(ctx context.Context, id int64) (Customer, error) {
	c, err := scan(s.DB.QueryRow(ctx, selectCustomer+` WHERE c.id = $1`, id))
	return c, mapErr(err)
}

// Create implements Store.
func (s PGStore) Create(ctx context.Context, c Customer) (Customer, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
		INSERT INTO customers (first_name, last_name, email, phone, notes)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Notes).Scan(&id)
	if err != nil {
		return Customer{}, mapErr(err)
	}
	return s.Get(ctx, id)
}

// Update implements Store.
func (s PGStore) Update(ctx context.Context, c Customer) (Customer, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE customers SET first_name = $2, last_name = $3, email = $4, phone = $5, notes = $6, updated_at = now()
		WHERE id = $1`, c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.Notes)
	if err != nil {
		return Customer{}, mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return Customer{}, common.NotFoundError("customer not found")
	}
	return s.Get(ctx, c.ID)
}

// Delete implements Store. Appointments of the customer are removed with it.
func (s PGStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundError("customer not found")
	}
	return nil
}
