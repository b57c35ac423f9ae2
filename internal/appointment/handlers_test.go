package appointment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-booking/internal/common"
)

type memStore struct {
	rows       map[int64]Appointment
	lastFilter Filter
	lastParams common.ListParams
}

func (m *memStore) List(_ context.Context, f Filter, p common.ListParams) ([]Appointment, int64, error) {
	m.lastFilter, m.lastParams = f, p
	out := make([]Appointment, 0, len(m.rows))
	for _, a := range m.rows {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) Get(_ context.Context, id int64) (Appointment, error) {
	a, ok := m.rows[id]
	if !ok {
		return Appointment{}, common.NotFoundError("appointment not found")
	}
	return a, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id int64, status string) (Appointment, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	a.Status = status
	m.rows[id] = a
	return a, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return common.NotFoundError("appointment not found")
	}
	delete(m.rows, id)
	return nil
}

func setup() (*memStore, http.Handler) {
	store := &memStore{rows: map[int64]Appointment{
		1: {ID: 1, Status: "pending", Date: "2026-11-02", Time: "09:30"},
		2: {ID: 2, Status: "approved", Date: "2026-11-03", Time: "14:00"},
	}}
	h := &Handler{Store: store, Logger: zerolog.Nop()}
	r := chi.NewRouter()
	r.Get("/appointments", h.List)
	r.Get("/appointments/{id}", h.Get)
	r.Patch("/appointments/{id}", h.UpdateStatus)
	r.Delete("/appointments/{id}", h.Delete)
	return store, r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestListFilters(t *testing.T) {
	store, h := setup()

	rec := do(h, http.MethodGet, "/appointments?status=Approved&service_id=4&customer_id=9&from=2026-11-01&to=2026-11-30&sort=price&order=desc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	require.Equal(t, Filter{Status: "approved", ServiceID: 4, CustomerID: 9, From: "2026-11-01", To: "2026-11-30"}, store.lastFilter)
	require.Equal(t, "a.price DESC", store.lastParams.OrderBy())

	for _, q := range []string{"status=done", "service_id=x", "customer_id=-1", "from=11/01/2026", "to=2026-13-01"} {
		rec := do(h, http.MethodGet, "/appointments?"+q, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
		require.Contains(t, rec.Body.String(), "INVALID_FILTER", q)
	}
}

func TestFilterWhere(t *testing.T) {
	where, args := Filter{}.where()
	require.Empty(t, where)
	require.Empty(t, args)

	where, args = Filter{Status: "pending", CustomerID: 3, To: "2026-12-31"}.where()
	require.Equal(t, " WHERE a.status = $1 AND a.customer_id = $2 AND a.start_date <= $3::date", where)
	require.Equal(t, []any{"pending", int64(3), "2026-12-31"}, args)
}

func TestUpdateStatus(t *testing.T) {
	store, h := setup()

	rec := do(h, http.MethodPatch, "/appointments/1", `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "completed", store.rows[1].Status)

	rec = do(h, http.MethodPatch, "/appointments/1", `{"status":"archived"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")

	rec = do(h, http.MethodPatch, "/appointments/99", `{"status":"cancelled"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete(t *testing.T) {
	store, h := setup()
	require.Equal(t, http.StatusNoContent, do(h, http.MethodDelete, "/appointments/2", "").Code)
	require.NotContains(t, store.rows, int64(2))
	require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/appointments/2", "").Code)
}
