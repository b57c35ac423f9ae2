// Package appointment serves the admin view over materialized bookings.
package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/db"
)

// Appointment is a booking row joined with its customer, service and latest payment.
type Appointment struct {
	ID            int64          `json:"id"`
	Reference     uuid.UUID      `json:"reference"`
	ServiceID     *int64         `json:"service_id"`
	ServiceName   string         `json:"service_name"`
	CustomerID    int64          `json:"customer_id"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email"`
	FormID        *int64         `json:"form_id"`
	Date          string         `json:"date"`
	Time          string         `json:"time"`
	Status        string         `json:"status"`
	Price         float64        `json:"price"`
	Notes         string         `json:"notes"`
	Answers       map[string]any `json:"answers"`
	PaymentStatus *string        `json:"payment_status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Filter narrows the admin list. Zero values are ignored.
type Filter struct {
	Status     string
	ServiceID  int64
	CustomerID int64
	From       string
	To         string
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}
	if f.Status != "" {
		add("a.status = $%d", f.Status)
	}
	if f.ServiceID > 0 {
		add("a.service_id = $%d", f.ServiceID)
	}
	if f.CustomerID > 0 {
		add("a.customer_id = $%d", f.CustomerID)
	}
	if f.From != "" {
		add("a.start_date >= $%d::date", f.From)
	}
	if f.To != "" {
		add("a.start_date <= $%d::date", f.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Sort whitelists appointment ordering.
var Sort = common.SortSpec{
	Columns: map[string]string{
		"id":         "a.id",
		"date":       "a.start_date",
		"status":     "a.status",
		"price":      "a.price",
		"created_at": "a.created_at",
	},
	Default:     "date",
	DefaultDesc: true,
}

// Store is the persistence contract for the admin appointment views.
type Store interface {
	List(ctx context.Context, f Filter, p common.ListParams) ([]Appointment, int64, error)
	Get(ctx context.Context, id int64) (Appointment, error)
	UpdateStatus(ctx context.Context, id int64, status string) (Appointment, error)
	Delete(ctx context.Context, id int64) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	DB db.DBTX
}

const selectAppointment = `
	SELECT a.id, a.reference, a.service_id, COALESCE(s.name, ''), a.customer_id,
		trim(c.first_name || ' ' || c.last_name), c.email, a.form_id,
		a.start_date::text, to_char(a.start_time, 'HH24:MI'), a.status, a.price::float8,
		a.notes, a.answers,
		(SELECT p.status FROM payments p WHERE p.appointment_id = a.id ORDER BY p.id DESC LIMIT 1),
		a.created_at, a.updated_at
	FROM appointments a
	JOIN customers c ON c.id = a.customer_id
	LEFT JOIN services s ON s.id = a.service_id`

func scan(row pgx.Row) (Appointment, error) {
	var (
		a       Appointment
		answers []byte
	)
	err := row.Scan(&a.ID, &a.Reference, &a.ServiceID, &a.ServiceName, &a.CustomerID,
		&a.CustomerName, &a.CustomerEmail, &a.FormID, &a.Date, &a.Time, &a.Status, &a.Price,
		&a.Notes, &answers, &a.PaymentStatus, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, common.NotFoundError("appointment not found")
		}
		return Appointment{}, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return Appointment{}, fmt.Errorf("decode answers: %w", err)
		}
	}
	return a, nil
}

// List implements Store.
func (s PGStore) List(ctx context.Context, f Filter, p common.ListParams) ([]Appointment, int64, error) {
	where, args := f.where()
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM appointments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	sql := fmt.Sprintf(`%s%s ORDER BY %s LIMIT $%d OFFSET $%d`, selectAppointment, where, p.OrderBy(), len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, sql, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Appointment, 0)
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// Get implements Store.
func (s PGStore) Get(ctx context.Context, id int64) (Appointment, error) {
	return scan(s.DB.QueryRow(ctx, selectAppointment+` WHERE a.id = $1`, id))
}

// UpdateStatus implements Store.
func (s PGStore) UpdateStatus(ctx context.Context, id int64, status string) (Appointment, error) {
	tag, err := s.DB.Exec(ctx, `UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return Appointment{}, err
	}
	if tag.RowsAffected() == 0 {
		return Appointment{}, common.NotFoundError("appointment not found")
	}
	return s.Get(ctx, id)
}

// Delete implements Store. Payments of the appointment cascade.
func (s PGStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NotFoundError("appointment not found")
	}
	return nil
}
