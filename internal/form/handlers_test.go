package form

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-booking/internal/common"
)

type memStore struct {
	rows map[int64]Form
	next int64
}

func (m *memStore) List(_ context.Context, activeOnly bool, _ common.ListParams) ([]Form, int64, error) {
	var out []Form
	for _, f := range m.rows {
		if activeOnly && !f.IsActive {
			continue
		}
		out = append(out, f)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) Get(_ context.Context, id int64) (Form, error) {
	f, ok := m.rows[id]
	if !ok {
		return Form{}, common.NotFoundError("form not found")
	}
	return f, nil
}

func (m *memStore) Create(_ context.Context, f Form) (Form, error) {
	m.next++
	f.ID = m.next
	m.rows[f.ID] = f
	return f, nil
}

func (m *memStore) Update(_ context.Context, f Form) (Form, error) {
	if _, ok := m.rows[f.ID]; !ok {
		return Form{}, common.NotFoundError("form not found")
	}
	m.rows[f.ID] = f
	return f, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return common.NotFoundError("form not found")
	}
	delete(m.rows, id)
	return nil
}

func newRouter(store Store) http.Handler {
	h := &Handler{Store: store}
	r := chi.NewRouter()
	r.Get("/forms", h.List)
	r.Post("/forms", h.Create)
	r.Get("/forms/{id}", h.Get)
	r.Put("/forms/{id}", h.Update)
	r.Delete("/forms/{id}", h.Delete)
	return r
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestFormCreateAndList(t *testing.T) {
	store := &memStore{rows: map[int64]Form{}}
	h := newRouter(store)

	body := `{"name":"Intake","fields":[
		{"name":"allergies","label":"Allergies","type":"textarea"},
		{"name":"pressure","label":"Pressure","type":"select","required":true,"options":["soft","firm"]}
	]}`
	rec := call(h, http.MethodPost, "/forms", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.rows[1].Fields, 2)
	require.True(t, store.rows[1].IsActive)

	rec = call(h, http.MethodPost, "/forms", `{"name":"Empty","is_active":false}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, store.rows[2].Fields)

	rec = call(h, http.MethodGet, "/forms?active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
}

func TestFormValidation(t *testing.T) {
	h := newRouter(&memStore{rows: map[int64]Form{}})
	cases := map[string]string{
		"missing name":       `{"fields":[]}`,
		"bad type":           `{"name":"x","fields":[{"name":"a","label":"A","type":"color"}]}`,
		"select w/o options": `{"name":"x","fields":[{"name":"a","label":"A","type":"select"}]}`,
		"space in name":      `{"name":"x","fields":[{"name":"a b","label":"A","type":"text"}]}`,
		"duplicate":          `{"name":"x","fields":[{"name":"a","label":"A","type":"text"},{"name":"a","label":"B","type":"text"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := call(h, http.MethodPost, "/forms", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
		})
	}
}

func TestFormNotFound(t *testing.T) {
	h := newRouter(&memStore{rows: map[int64]Form{}})
	require.Equal(t, http.StatusNotFound, call(h, http.MethodPut, "/forms/3", `{"name":"x"}`).Code)
	require.Equal(t, http.StatusNotFound, call(h, http.MethodDelete, "/forms/3", "").Code)
	require.Equal(t, http.StatusBadRequest, call(h, http.MethodGet, "/forms/zero", "").Code)
}
