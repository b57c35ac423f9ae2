package booking

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-booking/internal/db"
)

// PGStore is the Postgres implementation of Store.
type PGStore struct {
	DB db.TxBeginner
}

// WithTx implements Store.
func (s PGStore) WithTx(ctx context.Context, fn func(Writer) error) error {
	return pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(pgWriter{q: tx})
	})
}

type pgWriter struct {
	q db.DBTX
}

func (w pgWriter) UpsertCustomer(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := w.q.QueryRow(ctx, `
		INSERT INTO customers (first_name, last_name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), customers.first_name),
			last_name  = COALESCE(NULLIF(EXCLUDED.last_name, ''), customers.last_name),
			phone      = COALESCE(NULLIF(EXCLUDED.phone, ''), customers.phone),
			updated_at = now()
		RETURNING id`, c.FirstName, c.LastName, c.Email, c.Phone).Scan(&id)
	return id, err
}

func (w pgWriter) InsertAppointment(ctx context.Context, a NewAppointment) (int64, error) {
	var serviceID pgtype.Int8
	if a.ServiceID > 0 {
		serviceID = pgtype.Int8{Int64: a.ServiceID, Valid: true}
	}
	var formID pgtype.Int8
	if a.FormID != nil {
		formID = pgtype.Int8{Int64: *a.FormID, Valid: true}
	}
	clock := pgtype.Time{
		Microseconds: int64(a.Time.Hour())*3_600_000_000 + int64(a.Time.Minute())*60_000_000,
		Valid:        true,
	}
	var id int64
	err := w.q.QueryRow(ctx, `
		INSERT INTO appointments
			(reference, service_id, customer_id, form_id, start_date, start_time, status, price, notes, answers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		a.Reference, serviceID, a.CustomerID, formID,
		pgtype.Date{Time: a.Date, Valid: true}, clock,
		a.Status, a.Price, a.Notes, a.Answers,
	).Scan(&id)
	return id, err
}

func (w pgWriter) InsertPayment(ctx context.Context, appointmentID int64, info PaymentInfo) error {
	_, err := w.q.Exec(ctx, `
		INSERT INTO payments (appointment_id, provider, transaction_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		appointmentID, info.Provider, info.TransactionID, info.Amount, info.Currency, info.Status)
	return err
}
