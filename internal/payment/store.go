package payment

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

// Payment is a recorded payment row.
type Payment struct {
	ID            int64     `json:"id"`
	AppointmentID int64     `json:"appointment_id"`
	Provider      string    `json:"provider"`
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListFilter narrows payment listings.
type ListFilter struct {
	Status        string
	Provider      string
	AppointmentID int64
}

// PaymentSort whitelists admin ordering of payments.
var PaymentSort = common.SortSpec{
	Columns: map[string]string{
		"id":         "id",
		"amount":     "amount",
		"status":     "status",
		"provider":   "provider",
		"created_at": "created_at",
	},
	Default:     "created_at",
	DefaultDesc: true,
}

// Reader lists and fetches payments.
type Reader interface {
	List(ctx context.Context, f ListFilter, p common.ListParams) ([]Payment, int64, error)
	Get(ctx context.Context, id int64) (Payment, error)
}

// PGStore reads payments from Postgres.
type PGStore struct {
	DB db.DBTX
}

const paymentColumns = `id, appointment_id, provider, transaction_id, amount::float8, currency, status, created_at`

func (f ListFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Provider != "" {
		add("provider = $%d", f.Provider)
	}
	if f.AppointmentID > 0 {
		add("appointment_id = $%d", f.AppointmentID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List implements Reader.
func (s PGStore) List(ctx context.Context, f ListFilter, p common.ListParams) ([]Payment, int64, error) {
	where, args := f.where()
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM payments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := fmt.Sprintf(`SELECT %s FROM payments%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		paymentColumns, where, p.OrderBy(), len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Payment, 0)
	for rows.Next() {
		var pay Payment
		if err := rows.Scan(&pay.ID, &pay.AppointmentID, &pay.Provider, &pay.TransactionID, &pay.Amount, &pay.Currency, &pay.Status, &pay.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, pay)
	}
	return out, total, rows.Err()
}

// Get implements Reader.
func (s PGStore) Get(ctx context.Context, id int64) (Payment, error) {
	var pay Payment
	err := s.DB.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id).
		Scan(&pay.ID, &pay.AppointmentID, &pay.Provider, &pay.TransactionID, &pay.Amount, &pay.Currency, &pay.Status, &pay.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, common.NotFoundError("payment not found")
	}
	return pay, err
}
