package payment

import (
	"context"

	"github.com/noah-isme/backend-booking/internal/booking"
	"github.com/noah-isme/backend-booking/internal/settings"
)

// ProviderStripe is the provider name recorded on payments.
const ProviderStripe = "stripe"

// SessionRequest carries everything needed to open a hosted checkout session.
type SessionRequest struct {
	SecretKey   string
	Currency    string
	UnitAmount  int64
	ProductName string
	SuccessURL  string
	CancelURL   string
	Token       string
}

// Session is the provider's checkout session. It is never persisted locally.
type Session struct {
	ID  string
	URL string
}

// Provider abstracts the hosted checkout call so it can be replaced in tests.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (Session, error)
}

// SettingsResolver yields the decrypted payment settings.
type SettingsResolver interface {
	Resolve(ctx context.Context) (settings.Resolved, error)
}

// TokenStore keeps form data under single-use tokens; pending.Store implements it.
type TokenStore interface {
	Put(ctx context.Context, token string, form booking.FormData) error
	Take(ctx context.Context, token string) (booking.FormData, error)
}

// ServiceNamer resolves a service id to its display name.
type ServiceNamer interface {
	ServiceName(ctx context.Context, id int64) (string, error)
}

// Materializer writes a confirmed booking; *booking.Materializer implements it.
type Materializer interface {
	Create(ctx context.Context, form booking.FormData, info *booking.PaymentInfo) (int64, error)
}

// RecoveryRecorder stores paid bookings that failed to materialise.
type RecoveryRecorder interface {
	Record(ctx context.Context, form booking.FormData, info *booking.PaymentInfo, cause error) (int64, error)
}
