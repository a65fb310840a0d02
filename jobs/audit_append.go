package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/umucyo/guarantee-gateway/internal/audit"
	jobmetrics "github.com/umucyo/guarantee-gateway/internal/jobs"
)

// AuditAppendJob drains the audit queue into the durable store.
type AuditAppendJob struct {
	Store   audit.Sink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditAppendJob constructs the job handler.
func NewAuditAppendJob(store audit.Sink, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditAppendJob {
	return &AuditAppendJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle executes one audit:append task.
func (j *AuditAppendJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("audit append: store not configured")
	}
	var rec audit.Record
	if err := json.Unmarshal(task.Payload(), &rec); err != nil {
		j.log().Error("decode audit record", slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskAuditAppend)
	err := j.Store.Append(ctx, rec)
	if err != nil {
		j.log().Warn("persist audit record",
			slog.String("record_id", rec.ID.String()),
			slog.String("operation", rec.Operation),
			slog.Any("error", err))
	}
	return tracker.End(err)
}

func (j *AuditAppendJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
