package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	infos    map[string]*asynq.QueueInfo
	archived map[string][]*asynq.TaskInfo
	ran      []string
	err      error
}

func (f *fakeInspector) Queues() ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	names := make([]string, 0, len(f.infos))
	for _, n := range []string{QueueCritical, QueueDefault} {
		if _, ok := f.infos[n]; ok {
			names = append(names, n)
		}
	}
	return names, nil
}

func (f *fakeInspector) GetQueueInfo(q string) (*asynq.QueueInfo, error) {
	info, ok := f.infos[q]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func (f *fakeInspector) ListArchivedTasks(q string, _ ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	if _, ok := f.infos[q]; !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return f.archived[q], nil
}

func (f *fakeInspector) RunTask(q, id string) error {
	for _, t := range f.archived[q] {
		if t.ID == id {
			f.ran = append(f.ran, id)
			return nil
		}
	}
	return asynq.ErrTaskNotFound
}

func newAdmin() (*fakeInspector, http.Handler) {
	insp := &fakeInspector{
		infos: map[string]*asynq.QueueInfo{
			QueueCritical: {Queue: QueueCritical, Pending: 2, Archived: 1},
			QueueDefault:  {Queue: QueueDefault},
		},
		archived: map[string][]*asynq.TaskInfo{
			QueueCritical: {{
				ID:           "t-1",
				Type:         "booking:recovery_alert",
				Payload:      []byte(`{"recovery_id":4}`),
				Retried:      10,
				MaxRetry:     10,
				LastErr:      "smtp down",
				LastFailedAt: time.Unix(1700000000, 0).UTC(),
			}},
		},
	}
	h := &AdminHandler{Inspector: insp, Logger: zerolog.Nop()}
	r := chi.NewRouter()
	r.Get("/queues", h.Stats)
	r.Get("/queues/{queue}/archived", h.ListArchived)
	r.Post("/queues/{queue}/archived/{id}/run", h.RunArchived)
	return insp, r
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStatsUpdatesGauges(t *testing.T) {
	_, h := newAdmin()
	rec := serve(h, http.MethodGet, "/queues")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []queueStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	require.Equal(t, 2, body.Data[0].Pending)
	require.Equal(t, float64(2), testutil.ToFloat64(QueueDepth.WithLabelValues(QueueCritical)))
	require.Equal(t, float64(1), testutil.ToFloat64(QueueArchivedSize.WithLabelValues(QueueCritical)))
}

func TestStatsBackendDown(t *testing.T) {
	insp, h := newAdmin()
	insp.err = errors.New("dial tcp: refused")
	require.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodGet, "/queues").Code)
}

func TestArchivedListAndRun(t *testing.T) {
	insp, h := newAdmin()

	rec := serve(h, http.MethodGet, "/queues/critical/archived")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "smtp down")
	require.Contains(t, rec.Body.String(), `recovery_id`)

	require.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/queues/nope/archived").Code)

	require.Equal(t, http.StatusAccepted, serve(h, http.MethodPost, "/queues/critical/archived/t-1/run").Code)
	require.Equal(t, []string{"t-1"}, insp.ran)
	require.Equal(t, http.StatusNotFound, serve(h, http.MethodPost, "/queues/critical/archived/t-9/run").Code)
}

func TestInstrumentCountsOutcomes(t *testing.T) {
	const kind = "test:instrument"
	ok := Instrument(asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return nil }))
	bad := Instrument(asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return errors.New("x") }))

	require.NoError(t, ok.ProcessTask(context.Background(), asynq.NewTask(kind, nil)))
	require.Error(t, bad.ProcessTask(context.Background(), asynq.NewTask(kind, nil)))
	require.Error(t, bad.ProcessTask(context.Background(), asynq.NewTask(kind, nil)))

	require.Equal(t, float64(1), testutil.ToFloat64(QueueProcessedTotal.WithLabelValues(kind, "ok")))
	require.Equal(t, float64(2), testutil.ToFloat64(QueueProcessedTotal.WithLabelValues(kind, "error")))
}

func TestNewMuxRoutesByType(t *testing.T) {
	var got string
	mux := NewMux(map[string]asynq.Handler{
		"booking:recovery_alert": asynq.HandlerFunc(func(_ context.Context, t *asynq.Task) error {
			got = string(t.Payload())
			return nil
		}),
	})
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask("booking:recovery_alert", []byte("7"))))
	require.Equal(t, "7", got)
	require.Error(t, mux.ProcessTask(context.Background(), asynq.NewTask("unknown", nil)))
}

func TestRedisOpt(t *testing.T) {
	opt, err := RedisOpt("redis://:pw@localhost:6380/2")
	require.NoError(t, err)
	client, ok := opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	require.Equal(t, "localhost:6380", client.Addr)
	require.Equal(t, 2, client.DB)

	_, err = RedisOpt("http://nope")
	require.Error(t, err)
}
