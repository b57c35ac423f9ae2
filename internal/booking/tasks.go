package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/obs"
)

// TaskRecoveryAlert is the asynq task type that emails admins about a recovery.
const TaskRecoveryAlert = "booking:recovery_alert"

// RecoveryAlertPayload is the task body.
type RecoveryAlertPayload struct {
	RecoveryID int64 `json:"recovery_id"`
}

// NewRecoveryAlertTask builds the asynq task for id.
func NewRecoveryAlertTask(id int64) (*asynq.Task, error) {
	raw, err := json.Marshal(RecoveryAlertPayload{RecoveryID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecoveryAlert, raw, asynq.MaxRetry(10)), nil
}

// TaskEnqueuer is the subset of *asynq.Client used to schedule tasks.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqAlerts schedules recovery alerts on an asynq queue.
type AsynqAlerts struct {
	Client TaskEnqueuer
	Queue  string
}

// EnqueueRecoveryAlert implements AlertEnqueuer.
func (a AsynqAlerts) EnqueueRecoveryAlert(ctx context.Context, recoveryID int64) error {
	task, err := NewRecoveryAlertTask(recoveryID)
	if err != nil {
		return err
	}
	var opts []asynq.Option
	if a.Queue != "" {
		opts = append(opts, asynq.Queue(a.Queue))
	}
	_, err = a.Client.EnqueueContext(ctx, task, opts...)
	return err
}

// AlertHandler emails the configured admin address about a recovery.
type AlertHandler struct {
	Store  RecoveryStore
	Email  common.EmailSender
	To     string
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h AlertHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload RecoveryAlertPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RecoveryID <= 0 {
		obs.CountRecoveryAlert("invalid")
		return fmt.Errorf("recovery alert payload: %w", asynq.SkipRetry)
	}
	rec, err := h.Store.Get(ctx, payload.RecoveryID)
	if err != nil {
		obs.CountRecoveryAlert("error")
		return err
	}
	if rec.Status == RecoveryResolved {
		obs.CountRecoveryAlert("skipped")
		return nil
	}
	to := strings.TrimSpace(h.To)
	if to == "" {
		h.Logger.Warn().Int64("recovery_id", rec.ID).Msg("no admin alert address configured")
		obs.CountRecoveryAlert("skipped")
		return nil
	}
	subject := fmt.Sprintf("Booking #%d needs manual review", rec.ID)
	if err := h.Email.Send(to, subject, renderAlert(rec)); err != nil {
		obs.CountRecoveryAlert("error")
		return err
	}
	obs.CountRecoveryAlert("sent")
	h.Logger.Info().Int64("recovery_id", rec.ID).Msg("recovery alert sent")
	return nil
}

func renderAlert(rec Recovery) string {
	var b strings.Builder
	b.WriteString("<p>A paid booking could not be saved and needs manual review.</p><ul>")
	fmt.Fprintf(&b, "<li>Recovery: %d</li>", rec.ID)
	fmt.Fprintf(&b, "<li>Customer: %s %s &lt;%s&gt;</li>",
		html.EscapeString(rec.FormData.FirstName), html.EscapeString(rec.FormData.LastName), html.EscapeString(rec.FormData.Email))
	fmt.Fprintf(&b, "<li>When: %s %s</li>", html.EscapeString(rec.FormData.Date), html.EscapeString(rec.FormData.Time))
	if rec.PaymentInfo != nil {
		fmt.Fprintf(&b, "<li>Payment: %s %.2f %s</li>",
			html.EscapeString(rec.PaymentInfo.TransactionID), rec.PaymentInfo.Amount, html.EscapeString(strings.ToUpper(rec.PaymentInfo.Currency)))
	}
	fmt.Fprintf(&b, "<li>Error: %s</li></ul>", html.EscapeString(rec.LastError))
	return b.String()
}
