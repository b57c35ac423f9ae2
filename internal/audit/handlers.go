package audit

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-booking/internal/common"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	Store        Store
	DefaultLimit int
	MaxLimit     int
}

// List handles GET /api/v1/admin/audit-logs?actor=&resource=.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	q := r.URL.Query()
	f := Filter{
		Actor:        strings.TrimSpace(q.Get("actor")),
		ResourceType: strings.TrimSpace(q.Get("resource")),
	}
	p := common.ParseListParams(r, h.DefaultLimit, h.MaxLimit, Sort)
	rows, total, err := h.Store.List(r.Context(), f, p)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	common.WriteList(w, rows, total, p)
}
