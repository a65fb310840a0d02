package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/umucyo/guarantee-gateway/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries audit records waiting to be persisted.
	QueueAudit = "audit"
	// TaskAuditAppend persists one audit record.
	TaskAuditAppend = "audit:append"
)

const auditMaxRetry = 10

// NewAuditAppendTask wraps rec in a task. The record ID doubles as the task
// ID so a record is never queued twice.
func NewAuditAppendTask(rec audit.Record) (*asynq.Task, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditAppend, body,
		asynq.Queue(QueueAudit),
		asynq.TaskID(rec.ID.String()),
		asynq.MaxRetry(auditMaxRetry),
		asynq.Retention(24*time.Hour),
	), nil
}
