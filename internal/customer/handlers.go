package customer

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-booking/internal/common"
)

// Input is the admin payload for customers.
type Input struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"max=40"`
	Notes     string `json:"notes" validate:"max=2000"`
}

func (in Input) model(id int64) (Customer, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := common.ValidateStruct(in); err != nil {
		return Customer{}, err
	}
	return Customer{ID: id, FirstName: in.FirstName, LastName: in.LastName, Email: in.Email, Phone: in.Phone, Notes: in.Notes}, nil
}

// Handler exposes admin customer endpoints.
type Handler struct {
	Store        Store
	DefaultLimit int
	MaxLimit     int
}

// List handles GET /api/v1/admin/customers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := common.ParseListParams(r, h.DefaultLimit, h.MaxLimit, Sort)
	rows, total, err := h.Store.List(r.Context(), r.URL.Query().Get("q"), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteList(w, rows, total, params)
}

// Get handles GET /api/v1/admin/customers/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Store.Get(r.Context(), id)
	common.WriteResult(w, http.StatusOK, c, err)
}

// Create handles POST /api/v1/admin/customers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	c, err := in.model(0)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	c, err = h.Store.Create(r.Context(), c)
	common.WriteResult(w, http.StatusCreated, c, err)
}

// Update handles PUT /api/v1/admin/customers/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLInt64(w, r, "id")
	if !ok {
		return
	}
	var in Input
	if !common.DecodeJSON(w, r, &in) {
		return
	}
	c, err := in.model(id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	c, err = h.Store.Update(r.Context(), c)
	common.WriteResult(w, http.StatusOK, c, err)
}

// Delete handles DELETE /api/v1/admin/customers/{id}.
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
