// Package queue runs background tasks on asynq.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Queue names and their relative priority.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// RedisOpt converts a redis:// URL into asynq connection options.
func RedisOpt(url string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(url)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	return opt, nil
}

// ServerConfig configures NewServer.
type ServerConfig struct {
	Concurrency     int
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// NewServer builds an asynq server that logs through zerolog and counts
// failures on QueueProcessedTotal.
func NewServer(opt asynq.RedisConnOpt, cfg ServerConfig) *asynq.Server {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}
	logger := cfg.Logger
	return asynq.NewServer(opt, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{QueueCritical: 6, QueueDefault: 3},
		ShutdownTimeout: shutdown,
		Logger:          Logger{L: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error().Err(err).
				Str("task", task.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("task failed")
		}),
	})
}

// NewMux registers handlers by task type behind the Instrument middleware.
func NewMux(handlers map[string]asynq.Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(Instrument)
	for kind, h := range handlers {
		mux.Handle(kind, h)
	}
	return mux
}

// Instrument records the outcome of every processed task.
func Instrument(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		err := next.ProcessTask(ctx, t)
		status := "ok"
		if err != nil {
			status = "error"
		}
		QueueProcessedTotal.WithLabelValues(t.Type(), status).Inc()
		return err
	})
}
