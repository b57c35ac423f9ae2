package catalog

import (
	"net/http"

	"github.com/noah-isme/backend-booking/internal/common"
)

// Handler exposes public and admin catalog endpoints.
type Handler struct {
	service      *Service
	defaultLimit int
	maxLimit     int
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service      *Service
	DefaultLimit int
	MaxLimit     int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, defaultLimit: cfg.DefaultLimit, maxLimit: cfg.MaxLimit}
}

// PublicCategories handles GET /api/v1/categories.
func (h *Handler) PublicCategories(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.PublicCategories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// PublicServices handles GET /api/v1/services.
func (h *Handler) PublicServices(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.PublicServices(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// ListCategories handles GET /api/v1/admin/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	params := common.ParseListParams(r, h.defaultLimit, h.maxLimit, CategorySort)
	rows, total, err := h.service.ListCategories(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.WriteList(w, rows, total, params)
}

// GetCategory handles GET /api/v1/admin/categories/{id}.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	row, err := h.service.GetCategory(r.Context(), id)
	h.respond(w, http.StatusOK, row, err)
}

// CreateCategory handles POST /api/v1/admin/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	row, err := h.service.CreateCategory(r.Context(), in)
	h.respond(w, http.StatusCreated, row, err)
}

// UpdateCategory handles PUT /api/v1/admin/categories/{id}.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	var in CategoryInput
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	row, err := h.service.UpdateCategory(r.Context(), id, in)
	h.respond(w, http.StatusOK, row, err)
}

// DeleteCategory handles DELETE /api/v1/admin/categories/{id}.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListServices handles GET /api/v1/admin/services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	params := common.ParseListParams(r, h.defaultLimit, h.maxLimit, ServiceSort)
	categoryID, ok := common.QueryInt64(w, r, "category_id")
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := ServiceFilter{Query: q.Get("q"), CategoryID: categoryID, ActiveOnly: q.Get("active") == "true"}
	rows, total, err := h.service.ListServices(r.Context(), filter, params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.WriteList(w, rows, total, params)
}

// GetService handles GET /api/v1/admin/services/{id}.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	row, err := h.service.GetService(r.Context(), id)
	h.respond(w, http.StatusOK, row, err)
}

// CreateService handles POST /api/v1/admin/services.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var in ServiceInput
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	row, err := h.service.CreateService(r.Context(), in)
	h.respond(w, http.StatusCreated, row, err)
}

// UpdateService handles PUT /api/v1/admin/services/{id}.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	var in ServiceInput
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	row, err := h.service.UpdateService(r.Context(), id, in)
	h.respond(w, http.StatusOK, row, err)
}

// DeleteService handles DELETE /api/v1/admin/services/{id}.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteService(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, status, map[string]any{"data": v})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if common.IsAppError(err) {
		common.WriteError(w, err)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog request failed", nil)
}
