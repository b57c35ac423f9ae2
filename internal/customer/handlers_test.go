package customer

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
	rows      map[int64]Customer
	next      int64
	lastQuery string
	lastSort  string
}

func (m *memStore) List(_ context.Context, q string, p common.ListParams) ([]Customer, int64, error) {
	m.lastQuery = q
	m.lastSort = p.OrderBy()
	out := make([]Customer, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) Get(_ context.Context, id int64) (Customer, error) {
	c, ok := m.rows[id]
	if !ok {
		return Customer{}, common.NotFoundError("customer not found")
	}
	return c, nil
}

func (m *memStore) Create(_ context.Context, c Customer) (Customer, error) {
	for _, existing := range m.rows {
		if existing.Email == c.Email {
			return Customer{}, common.ConflictError("a customer with this email already exists")
		}
	}
	m.next++
	c.ID = m.next
	m.rows[c.ID] = c
	return c, nil
}

func (m *memStore) Update(_ context.Context, c Customer) (Customer, error) {
	if _, ok := m.rows[c.ID]; !ok {
		return Customer{}, common.NotFoundError("customer not found")
	}
	m.rows[c.ID] = c
	return c, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return common.NotFoundError("customer not found")
	}
	delete(m.rows, id)
	return nil
}

func router(store Store) http.Handler {
	h := &Handler{Store: store, DefaultLimit: 20, MaxLimit: 100}
	r := chi.NewRouter()
	r.Get("/customers", h.List)
	r.Post("/customers", h.Create)
	r.Get("/customers/{id}", h.Get)
	r.Put("/customers/{id}", h.Update)
	r.Delete("/customers/{id}", h.Delete)
	return r
}

func send(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCustomerLifecycle(t *testing.T) {
	store := &memStore{rows: map[int64]Customer{}}
	h := router(store)

	rec := send(h, http.MethodPost, "/customers", `{"first_name":" Ada ","email":"ADA@Example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "ada@example.com", store.rows[1].Email)
	require.Equal(t, "Ada", store.rows[1].FirstName)

	rec = send(h, http.MethodPost, "/customers", `{"first_name":"Other","email":"ada@example.com"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = send(h, http.MethodPost, "/customers", `{"first_name":"X","email":"not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"email":"email"`)

	rec = send(h, http.MethodPut, "/customers/1", `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Lovelace")

	rec = send(h, http.MethodGet, "/customers?q=ada&sort=email&order=asc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ada", store.lastQuery)
	require.Equal(t, "c.email ASC", store.lastSort)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec = send(h, http.MethodDelete, "/customers/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = send(h, http.MethodGet, "/customers/1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCustomerDefaultSort(t *testing.T) {
	store := &memStore{rows: map[int64]Customer{}}
	send(router(store), http.MethodGet, "/customers?sort=secret", "")
	require.Equal(t, "c.created_at DESC", store.lastSort)
}
