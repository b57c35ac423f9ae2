package queue

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-booking/internal/common"
)

// Inspector is the subset of *asynq.Inspector used by AdminHandler.
type Inspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
}

// AdminHandler exposes queue stats and replay of archived tasks.
type AdminHandler struct {
	Inspector Inspector
	PageSize  int
	Logger    zerolog.Logger
}

type queueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed_today"`
	Failed    int    `json:"failed_today"`
	Paused    bool   `json:"paused"`
}

type archivedTask struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Payload      string    `json:"payload"`
	Retried      int       `json:"retried"`
	MaxRetry     int       `json:"max_retry"`
	LastError    string    `json:"last_error"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// Stats handles GET /api/v1/admin/queues.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	names, err := h.Inspector.Queues()
	if err != nil {
		h.Logger.Error().Err(err).Msg("list queues")
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "queue backend unavailable", nil)
		return
	}
	out := make([]queueStats, 0, len(names))
	for _, name := range names {
		info, err := h.Inspector.GetQueueInfo(name)
		if err != nil {
			h.Logger.Warn().Err(err).Str("queue", name).Msg("queue info")
			continue
		}
		QueueDepth.WithLabelValues(name).Set(float64(info.Pending))
		QueueArchivedSize.WithLabelValues(name).Set(float64(info.Archived))
		out = append(out, queueStats{
			Queue:     name,
			Pending:   info.Pending,
			Active:    info.Active,
			Scheduled: info.Scheduled,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Processed: info.Processed,
			Failed:    info.Failed,
			Paused:    info.Paused,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// ListArchived handles GET /api/v1/admin/queues/{queue}/archived.
func (h *AdminHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "queue"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	tasks, err := h.Inspector.ListArchivedTasks(name, asynq.PageSize(h.pageSize()), asynq.Page(page))
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "queue not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("queue", name).Msg("list archived tasks")
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "queue backend unavailable", nil)
		return
	}
	items := make([]archivedTask, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, archivedTask{
			ID:           t.ID,
			Type:         t.Type,
			Payload:      string(t.Payload),
			Retried:      t.Retried,
			MaxRetry:     t.MaxRetry,
			LastError:    t.LastErr,
			LastFailedAt: t.LastFailedAt,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "queue": name, "page": page})
}

// RunArchived handles POST /api/v1/admin/queues/{queue}/archived/{id}/run.
func (h *AdminHandler) RunArchived(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "queue"))
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := h.Inspector.RunTask(name, id); err != nil {
		switch {
		case errors.Is(err, asynq.ErrQueueNotFound), errors.Is(err, asynq.ErrTaskNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "task not found", nil)
		default:
			h.Logger.Error().Err(err).Str("queue", name).Str("task_id", id).Msg("run archived task")
			common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "queue backend unavailable", nil)
		}
		return
	}
	h.Logger.Info().Str("queue", name).Str("task_id", id).Msg("archived task requeued")
	common.JSON(w, http.StatusAccepted, map[string]string{"status": "requeued", "id": id})
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 20
	}
	return h.PageSize
}
