package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/db"
)

// Recovery statuses.
const (
	RecoveryOpen     = "open"
	RecoveryResolved = "resolved"
)

// Recovery is a paid booking that could not be written and awaits manual review.
type Recovery struct {
	ID            int64        `json:"id"`
	FormData      FormData     `json:"form_data"`
	PaymentInfo   *PaymentInfo `json:"payment_info,omitempty"`
	LastError     string       `json:"last_error"`
	Status        string       `json:"status"`
	Attempts      int          `json:"attempts"`
	AppointmentID *int64       `json:"appointment_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	ResolvedAt    *time.Time   `json:"resolved_at,omitempty"`
}

// RecoverySort whitelists admin ordering of recoveries.
var RecoverySort = common.SortSpec{
	Columns:     map[string]string{"created_at": "created_at", "id": "id", "attempts": "attempts"},
	Default:     "created_at",
	DefaultDesc: true,
}

// RecoveryStore persists manual-review records.
type RecoveryStore interface {
	Insert(ctx context.Context, form FormData, info *PaymentInfo, cause string) (int64, error)
	Get(ctx context.Context, id int64) (Recovery, error)
	List(ctx context.Context, status string, p common.ListParams) ([]Recovery, int64, error)
	MarkResolved(ctx context.Context, id, appointmentID int64) error
	MarkFailed(ctx context.Context, id int64, cause string) error
	// FindAppointment returns the appointment already holding the payment's
	// transaction, if any.
	FindAppointment(ctx context.Context, info PaymentInfo) (int64, bool, error)
}

// Creator writes a booking; *Materializer implements it.
type Creator interface {
	Create(ctx context.Context, form FormData, info *PaymentInfo) (int64, error)
}

// AlertEnqueuer schedules the admin notification for a recovery.
type AlertEnqueuer interface {
	EnqueueRecoveryAlert(ctx context.Context, recoveryID int64) error
}

// Locker serialises work on a key; lock.Locker implements it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ErrAlreadyResolved is returned when retrying a recovery that is closed.
var ErrAlreadyResolved = errors.New("recovery already resolved")

// Recoveries records failed bookings and lets admins retry them.
type Recoveries struct {
	Store   RecoveryStore
	Creator Creator
	Alerts  AlertEnqueuer
	Locker  Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// Record stores the failed booking and schedules an alert. The record is
// written first so a failed enqueue never loses the booking.
func (r *Recoveries) Record(ctx context.Context, form FormData, info *PaymentInfo, cause error) (int64, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	id, err := r.Store.Insert(ctx, form, info, msg)
	if err != nil {
		return 0, fmt.Errorf("record recovery: %w", err)
	}
	evt := r.Logger.Error().Int64("recovery_id", id).Str("email", form.Email).Int64("service_id", form.ServiceID)
	if info != nil {
		evt = evt.Str("transaction_id", info.TransactionID).Float64("amount", info.Amount).Str("currency", info.Currency)
	}
	evt.Str("cause", msg).Msg("paid booking needs manual review")

	if r.Alerts != nil {
		if err := r.Alerts.EnqueueRecoveryAlert(ctx, id); err != nil {
			r.Logger.Error().Err(err).Int64("recovery_id", id).Msg("enqueue recovery alert")
		}
	}
	return id, nil
}

// List returns recoveries filtered by status.
func (r *Recoveries) List(ctx context.Context, status string, p common.ListParams) ([]Recovery, int64, error) {
	return r.Store.List(ctx, status, p)
}

// Get returns one recovery.
func (r *Recoveries) Get(ctx context.Context, id int64) (Recovery, error) {
	return r.Store.Get(ctx, id)
}

// Retry materialises the stored booking again. Concurrent retries of the same
// record are serialised so a booking is written at most once.
func (r *Recoveries) Retry(ctx context.Context, id int64) (Recovery, error) {
	if r.Locker == nil {
		return r.retry(ctx, id)
	}
	ttl := r.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	var out Recovery
	err := r.Locker.WithLock(ctx, "lock:booking:recovery:"+strconv.FormatInt(id, 10), ttl, func(lockCtx context.Context) error {
		var err error
		out, err = r.retry(lockCtx, id)
		return err
	})
	return out, err
}

func (r *Recoveries) retry(ctx context.Context, id int64) (Recovery, error) {
	rec, err := r.Store.Get(ctx, id)
	if err != nil {
		return Recovery{}, err
	}
	if rec.Status == RecoveryResolved {
		return rec, ErrAlreadyResolved
	}
	// an earlier retry may have written the booking but failed to resolve
	if rec.PaymentInfo != nil && rec.PaymentInfo.TransactionID != "" {
		apptID, found, err := r.Store.FindAppointment(ctx, *rec.PaymentInfo)
		if err != nil {
			return Recovery{}, err
		}
		if found {
			return r.resolve(ctx, id, apptID)
		}
	}
	apptID, createErr := r.Creator.Create(ctx, rec.FormData, rec.PaymentInfo)
	if createErr != nil {
		if err := r.Store.MarkFailed(ctx, id, createErr.Error()); err != nil {
			return Recovery{}, err
		}
		r.Logger.Warn().Err(createErr).Int64("recovery_id", id).Msg("recovery retry failed")
		return Recovery{}, createErr
	}
	return r.resolve(ctx, id, apptID)
}

func (r *Recoveries) resolve(ctx context.Context, id, apptID int64) (Recovery, error) {
	if err := r.Store.MarkResolved(ctx, id, apptID); err != nil {
		return Recovery{}, err
	}
	r.Logger.Info().Int64("recovery_id", id).Int64("appointment_id", apptID).Msg("recovery resolved")
	return r.Store.Get(ctx, id)
}

// PGRecoveryStore is the Postgres RecoveryStore.
type PGRecoveryStore struct {
	DB db.DBTX
}

const recoveryColumns = `id, form_data, payment_info, last_error, status, attempts, appointment_id, created_at, resolved_at`

// Insert implements RecoveryStore.
func (s PGRecoveryStore) Insert(ctx context.Context, form FormData, info *PaymentInfo, cause string) (int64, error) {
	formRaw, err := json.Marshal(form)
	if err != nil {
		return 0, err
	}
	var infoRaw []byte
	if info != nil {
		if infoRaw, err = json.Marshal(info); err != nil {
			return 0, err
		}
	}
	var id int64
	err = s.DB.QueryRow(ctx, `
		INSERT INTO booking_recoveries (form_data, payment_info, last_error)
		VALUES ($1, $2, $3) RETURNING id`, formRaw, infoRaw, cause).Scan(&id)
	return id, err
}

// Get implements RecoveryStore.
func (s PGRecoveryStore) Get(ctx context.Context, id int64) (Recovery, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+recoveryColumns+` FROM booking_recoveries WHERE id = $1`, id)
	rec, err := scanRecovery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Recovery{}, common.NotFoundError("recovery not found")
	}
	return rec, err
}

// List implements RecoveryStore.
func (s PGRecoveryStore) List(ctx context.Context, status string, p common.ListParams) ([]Recovery, int64, error) {
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM booking_recoveries WHERE ($1 = '' OR status = $1)`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.DB.Query(ctx, `SELECT `+recoveryColumns+` FROM booking_recoveries
		WHERE ($1 = '' OR status = $1)
		ORDER BY `+p.OrderBy()+` LIMIT $2 OFFSET $3`, status, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Recovery, 0)
	for rows.Next() {
		rec, err := scanRecovery(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// MarkResolved implements RecoveryStore.
func (s PGRecoveryStore) MarkResolved(ctx context.Context, id, appointmentID int64) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE booking_recoveries
		SET status = 'resolved', attempts = attempts + 1, appointment_id = $2, resolved_at = now(), last_error = ''
		WHERE id = $1`, id, appointmentID)
	return err
}

// MarkFailed implements RecoveryStore.
func (s PGRecoveryStore) MarkFailed(ctx context.Context, id int64, cause string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE booking_recoveries SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, cause)
	return err
}

// FindAppointment implements RecoveryStore.
func (s PGRecoveryStore) FindAppointment(ctx context.Context, info PaymentInfo) (int64, bool, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
		SELECT appointment_id FROM payments
		WHERE provider = $1 AND transaction_id = $2
		LIMIT 1`, info.Provider, info.TransactionID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func scanRecovery(row pgx.Row) (Recovery, error) {
	var (
		rec      Recovery
		formRaw  []byte
		infoRaw  []byte
		apptID   *int64
		resolved *time.Time
	)
	if err := row.Scan(&rec.ID, &formRaw, &infoRaw, &rec.LastError, &rec.Status, &rec.Attempts, &apptID, &rec.CreatedAt, &resolved); err != nil {
		return Recovery{}, err
	}
	if err := json.Unmarshal(formRaw, &rec.FormData); err != nil {
		return Recovery{}, fmt.Errorf("decode recovery form: %w", err)
	}
	if len(infoRaw) > 0 {
		var info PaymentInfo
		if err := json.Unmarshal(infoRaw, &info); err != nil {
			return Recovery{}, fmt.Errorf("decode recovery payment: %w", err)
		}
		rec.PaymentInfo = &info
	}
	rec.AppointmentID = apptID
	rec.ResolvedAt = resolved
	return rec, nil
}
