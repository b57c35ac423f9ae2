package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/obs"
)

// Appointment statuses.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Payment statuses written alongside an appointment.
const (
	PaymentPaid    = "paid"
	PaymentPending = "pending"
)

// Customer is the contact record a booking is attached to.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// NewAppointment is the row written for a booking.
type NewAppointment struct {
	Reference  uuid.UUID
	ServiceID  int64
	CustomerID int64
	FormID     *int64
	Date       time.Time
	Time       time.Time
	Status     string
	Price      float64
	Notes      string
	Answers    map[string]any
}

// Writer performs the individual inserts of a booking inside one transaction.
type Writer interface {
	UpsertCustomer(ctx context.Context, c Customer) (int64, error)
	InsertAppointment(ctx context.Context, a NewAppointment) (int64, error)
	InsertPayment(ctx context.Context, appointmentID int64, info PaymentInfo) error
}

// Store runs fn inside a transaction. fn's error rolls everything back.
type Store interface {
	WithTx(ctx context.Context, fn func(Writer) error) error
}

// Materializer creates the customer, appointment and payment rows for a
// booking in a single transaction.
type Materializer struct {
	Store  Store
	Logger zerolog.Logger
	Source string
}

// Create writes the booking and returns the new appointment id. A nil info
// means the booking was placed without online payment.
func (m *Materializer) Create(ctx context.Context, form FormData, info *PaymentInfo) (int64, error) {
	if m == nil || m.Store == nil {
		return 0, errors.New("booking: store not configured")
	}
	source := m.Source
	if source == "" {
		source = "direct"
	}
	if info != nil {
		source = info.Provider
	}
	appt, err := buildAppointment(form, info)
	if err != nil {
		obs.CountMaterialize(source, "invalid")
		return 0, err
	}

	var id int64
	err = m.Store.WithTx(ctx, func(w Writer) error {
		customerID, err := w.UpsertCustomer(ctx, Customer{
			FirstName: form.FirstName,
			LastName:  form.LastName,
			Email:     form.Email,
			Phone:     form.Phone,
		})
		if err != nil {
			return fmt.Errorf("upsert customer: %w", err)
		}
		appt.CustomerID = customerID
		if id, err = w.InsertAppointment(ctx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		if info != nil {
			if err := w.InsertPayment(ctx, id, *info); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		obs.CountMaterialize(source, "error")
		return 0, err
	}
	obs.CountMaterialize(source, "ok")
	m.Logger.Info().Int64("appointment_id", id).Str("reference", appt.Reference.String()).Str("source", source).Msg("appointment created")
	return id, nil
}

func buildAppointment(form FormData, info *PaymentInfo) (NewAppointment, error) {
	date, err := time.Parse("2006-01-02", form.Date)
	if err != nil {
		return NewAppointment{}, common.ValidationError("invalid booking date", map[string]string{"date": "datetime"})
	}
	clock, err := time.Parse("15:04", form.Time)
	if err != nil {
		return NewAppointment{}, common.ValidationError("invalid booking time", map[string]string{"time": "datetime"})
	}
	status := StatusPending
	if info != nil && info.Status == PaymentPaid {
		status = StatusApproved
	}
	answers := form.Answers
	if answers == nil {
		answers = map[string]any{}
	}
	return NewAppointment{
		Reference: uuid.New(),
		ServiceID: form.ServiceID,
		FormID:    form.FormID,
		Date:      date,
		Time:      clock,
		Status:    status,
		Price:     form.PriceValue(),
		Notes:     form.Notes,
		Answers:   answers,
	}, nil
}
