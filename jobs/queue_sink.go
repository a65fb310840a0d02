package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/umucyo/guarantee-gateway/internal/audit"
)

// Enqueuer is the subset of *asynq.Client used by QueueSink.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSink hands audit records to the worker through the audit queue.
// When the queue is unreachable the record goes straight to fallback.
type QueueSink struct {
	queue    Enqueuer
	fallback audit.Sink
	logger   *slog.Logger
}

// NewQueueSink constructs a QueueSink.
func NewQueueSink(queue Enqueuer, fallback audit.Sink, logger *slog.Logger) *QueueSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueSink{queue: queue, fallback: fallback, logger: logger}
}

// Append enqueues rec, or persists it directly if enqueueing fails.
func (s *QueueSink) Append(ctx context.Context, rec audit.Record) error {
	err := s.enqueue(ctx, rec)
	if err == nil {
		return nil
	}
	if s.fallback == nil {
		return err
	}
	s.logger.Warn("audit enqueue failed, writing directly",
		slog.String("record_id", rec.ID.String()),
		slog.Any("error", err))
	return s.fallback.Append(ctx, rec)
}

func (s *QueueSink) enqueue(ctx context.Context, rec audit.Record) error {
	if s.queue == nil {
		return errors.New("jobs: audit queue not configured")
	}
	task, err := NewAuditAppendTask(rec)
	if err != nil {
		return err
	}
	_, err = s.queue.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
