package booking

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-booking/internal/common"
)

// Handler exposes the public booking endpoint and the admin recovery queue.
type Handler struct {
	Creator      Creator
	Recoveries   *Recoveries
	MaxBodyBytes int64
	DefaultLimit int
	MaxLimit     int
}

// Book handles POST /api/v1/appointments for bookings paid on site.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	raw, ok := common.ReadBody(w, r, h.MaxBodyBytes)
	if !ok {
		return
	}
	form, err := DecodeFormData(raw)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	id, err := h.Creator.Create(r.Context(), form, nil)
	if err != nil {
		if common.IsAppError(err) {
			common.WriteError(w, err)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create appointment", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": id, "status": StatusPending}})
}

// ListRecoveries handles GET /api/v1/admin/recoveries.
func (h *Handler) ListRecoveries(w http.ResponseWriter, r *http.Request) {
	params := common.ParseListParams(r, h.DefaultLimit, h.MaxLimit, RecoverySort)
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	items, total, err := h.Recoveries.List(r.Context(), status, params)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list recoveries", nil)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": params.Pagination(total)})
}

// GetRecovery handles GET /api/v1/admin/recoveries/{id}.
func (h *Handler) GetRecovery(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, err := h.Recoveries.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// RetryRecovery handles POST /api/v1/admin/recoveries/{id}/retry.
func (h *Handler) RetryRecovery(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, err := h.Recoveries.Retry(r.Context(), id)
	switch {
	case err == nil:
		common.JSON(w, http.StatusOK, map[string]any{"data": rec})
	case errors.Is(err, ErrAlreadyResolved):
		common.JSONError(w, http.StatusConflict, "ALREADY_RESOLVED", "recovery already resolved", nil)
	case common.IsAppError(err):
		common.WriteError(w, err)
	default:
		common.JSONError(w, http.StatusBadGateway, "RETRY_FAILED", "retry failed", map[string]string{"cause": err.Error()})
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid id", nil)
		return 0, false
	}
	return id, true
}
