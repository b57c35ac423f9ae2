package payment

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-booking/internal/common"
)

// Handler exposes the checkout-session endpoint and the admin payment views.
type Handler struct {
	Checkout     *Checkout
	Payments     Reader
	MaxBodyBytes int64
	DefaultLimit int
	MaxLimit     int
}

// CheckoutSession handles POST /api/v1/stripe/checkout-session.
func (h *Handler) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Checkout == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "checkout unavailable", nil)
		return
	}
	raw, ok := common.ReadBody(w, r, h.MaxBodyBytes)
	if !ok {
		return
	}
	url, err := h.Checkout.CreateSession(r.Context(), raw)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"checkout_url": url})
}

// List handles GET /api/v1/admin/payments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := common.ParseListParams(r, h.DefaultLimit, h.MaxLimit, PaymentSort)
	q := r.URL.Query()
	filter := ListFilter{
		Status:   strings.TrimSpace(q.Get("status")),
		Provider: strings.TrimSpace(q.Get("provider")),
	}
	var ok bool
	if filter.AppointmentID, ok = common.QueryInt64(w, r, "appointment_id"); !ok {
		return
	}
	items, total, err := h.Payments.List(r.Context(), filter, params)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list payments", nil)
		return
	}
	common.WriteList(w, items, total, params)
}

// Get handles GET /api/v1/admin/payments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Payments.Get(r.Context(), id)
	common.WriteResult(w, http.StatusOK, p, err)
}
