// Package booking turns validated booking form data into persisted
// appointments and keeps the manual-review queue for bookings that were paid
// but could not be written.
package booking

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/noah-isme/backend-booking/internal/common"
)

// FormData is the booking payload collected by the front end. It is stored
// verbatim while the customer is away on the hosted checkout page.
type FormData struct {
	ServiceID int64          `json:"service_id" validate:"required,gt=0"`
	Price     *float64       `json:"price" validate:"required,gte=0"`
	FirstName string         `json:"first_name" validate:"required,max=100"`
	LastName  string         `json:"last_name" validate:"omitempty,max=100"`
	Email     string         `json:"email" validate:"required,email"`
	Phone     string         `json:"phone" validate:"omitempty,max=40"`
	Date      string         `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string         `json:"time" validate:"required,datetime=15:04"`
	Notes     string         `json:"notes" validate:"omitempty,max=2000"`
	FormID    *int64         `json:"form_id,omitempty" validate:"omitempty,gt=0"`
	Answers   map[string]any `json:"answers,omitempty"`
}

// PriceValue returns the submitted price, zero when absent.
func (f FormData) PriceValue() float64 {
	if f.Price == nil {
		return 0
	}
	return *f.Price
}

// DecodeFormData parses and validates a raw request body. Anything that is
// not a JSON object, or fails validation, is a ValidationError.
func DecodeFormData(raw []byte) (FormData, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return FormData{}, common.ValidationError("booking form data is required", nil)
	}
	if trimmed[0] != '{' {
		return FormData{}, common.ValidationError("booking form data must be a JSON object", nil)
	}
	var form FormData
	if err := json.Unmarshal(trimmed, &form); err != nil {
		return FormData{}, common.ValidationError("booking form data is malformed", nil)
	}
	form.normalize()
	if err := common.ValidateStruct(form); err != nil {
		return FormData{}, err
	}
	return form, nil
}

func (f *FormData) normalize() {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Phone = strings.TrimSpace(f.Phone)
	f.Date = strings.TrimSpace(f.Date)
	f.Time = strings.TrimSpace(f.Time)
}

// PaymentInfo describes a captured payment attached to a booking.
type PaymentInfo struct {
	Provider      string  `json:"provider"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
}
