package appointment

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-booking/internal/booking"
	"github.com/noah-isme/backend-booking/internal/common"
)

// StatusInput is the payload for PATCH /admin/appointments/{id}.
type StatusInput struct {
	Status string `json:"status" validate:"required,oneof=pending approved cancelled completed"`
}

// Handler exposes admin appointment endpoints.
type Handler struct {
	Store        Store
	Logger       zerolog.Logger
	DefaultLimit int
	MaxLimit     int
}

func parseFilter(w http.ResponseWriter, r *http.Request) (Filter, bool) {
	q := r.URL.Query()
	f := Filter{Status: strings.ToLower(strings.TrimSpace(q.Get("status")))}
	switch f.Status {
	case "", booking.StatusPending, booking.StatusApproved, booking.StatusCancelled, booking.StatusCompleted:
	default:
		common.JSONError(w, http.StatusBadRequest, "INVALID_FILTER", "invalid status", nil)
		return Filter{}, false
	}
	var ok bool
	if f.ServiceID, ok = common.QueryInt64(w, r, "service_id"); !ok {
		return Filter{}, false
	}
	if f.CustomerID, ok = common.QueryInt64(w, r, "customer_id"); !ok {
		return Filter{}, false
	}
	for _, p := range []struct {
		name string
		dst  *string
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, raw); err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_FILTER", "invalid "+p.name, nil)
			return Filter{}, false
		}
		*p.dst = raw
	}
	return f, true
}

// List handles GET /api/v1/admin/appointments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}
	params := common.ParseListParams(r, h.DefaultLimit, h.MaxLimit, Sort)
	rows, total, err := h.Store.List(r.Context(), f, params)
	if err != nil {
		h.Logger.Error().Err(err).Msg("list appointments")
		common.WriteError(w, err)
		return
	}
	common.WriteList(w, rows, total, params)
}

// Get handles GET /api/v1/admin/appointments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	a, err := h.Store.Get(r.Context(), id)
	common.WriteResult(w, http.StatusOK, a, err)
}

// UpdateStatus handles PATCH /api/v1/admin/appointments/{id}.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	var in StatusInput
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if err := common.ValidateStruct(in); err != nil {
		common.WriteError(w, err)
		return
	}
	a, err := h.Store.UpdateStatus(r.Context(), id, in.Status)
	if err == nil {
		h.Logger.Info().Int64("appointment_id", id).Str("status", in.Status).Msg("appointment status changed")
	}
	common.WriteResult(w, http.StatusOK, a, err)
}

// Delete handles DELETE /api/v1/admin/appointments/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
