package form

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-booking/internal/common"
)

// Input is the admin payload for forms.
type Input struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Fields   []Field `json:"fields" validate:"max=100,dive"`
	IsActive *bool   `json:"is_active"`
}

func (in Input) model(id int64) (Form, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := common.ValidateStruct(in); err != nil {
		return Form{}, err
	}
	seen := make(map[string]struct{}, len(in.Fields))
	for _, f := range in.Fields {
		if _, dup := seen[f.Name]; dup {
			return Form{}, common.ValidationError("duplicate field name", map[string]string{"fields": f.Name})
		}
		seen[f.Name] = struct{}{}
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	fields := in.Fields
	if fields == nil {
		fields = []Field{}
	}
	return Form{ID: id, Name: in.Name, Fields: fields, IsActive: active}, nil
}

// Handler exposes admin form endpoints.
type Handler struct {
	Store        Store
	DefaultLimit int
	MaxLimit     int
}

// List handles GET /api/v1/admin/forms.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := common.ParseListParams(r, h.DefaultLimit, h.MaxLimit, Sort)
	rows, total, err := h.Store.List(r.Context(), r.URL.Query().Get("active") == "true", params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteList(w, rows, total, params)
}

// Get handles GET /api/v1/admin/forms/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	f, err := h.Store.Get(r.Context(), id)
	common.WriteResult(w, http.StatusOK, f, err)
}

// Create handles POST /api/v1/admin/forms.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	f, err := in.model(0)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	f, err = h.Store.Create(r.Context(), f)
	common.WriteResult(w, http.StatusCreated, f, err)
}

// Update handles PUT /api/v1/admin/forms/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	var in Input
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	f, err := in.model(id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	f, err = h.Store.Update(r.Context(), f)
	common.WriteResult(w, http.StatusOK, f, err)
}

// Delete handles DELETE /api/v1/admin/forms/{id}.
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
