package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"

	"github.com/umucyo/guarantee-gateway/internal/audit"
	"github.com/umucyo/guarantee-gateway/jobs"
)

// Inspector is the subset of *asynq.Inspector used by the queue commands.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunAllArchivedTasks(queue string) (int, error)
}

// QueueCLI wraps operational helpers for the audit queue.
type QueueCLI struct {
	inspector Inspector
}

// NewQueueCLI constructs the helper around inspector.
func NewQueueCLI(inspector Inspector) *QueueCLI {
	return &QueueCLI{inspector: inspector}
}

// Options carries output settings shared by all commands.
type Options struct {
	JSONOutput bool
	Limit      int
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *Options) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Limit <= 0 {
		o.Limit = 20
	}
}

// QueueStats summarises the current audit queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// ArchivedRecord describes a record that exhausted its retries.
type ArchivedRecord struct {
	TaskID    string `json:"task_id"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	LastError string `json:"last_error"`
	Retried   int    `json:"retried"`
}

var errNoInspector = errors.New("auditctl: inspector not configured")

// Stats reports the audit queue counters.
func (c *QueueCLI) Stats(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errNoInspector
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueAudit)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return QueueStats{Queue: jobs.QueueAudit}, nil
		}
		return QueueStats{}, err
	}
	return QueueStats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Processed: info.Processed,
		Failed:    info.Failed,
	}, nil
}

// Archived lists audit records the worker gave up on.
func (c *QueueCLI) Archived(ctx context.Context, limit int) ([]ArchivedRecord, error) {
	if c == nil || c.inspector == nil {
		return nil, errNoInspector
	}
	tasks, err := c.inspector.ListArchivedTasks(jobs.QueueAudit, asynq.PageSize(limit), asynq.Page(1))
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]ArchivedRecord, 0, len(tasks))
	for _, task := range tasks {
		item := ArchivedRecord{TaskID: task.ID, LastError: task.LastErr, Retried: task.Retried}
		var rec audit.Record
		if err := json.Unmarshal(task.Payload, &rec); err == nil {
			item.Operation = rec.Operation
			item.Status = string(rec.Status)
		}
		out = append(out, item)
	}
	return out, nil
}

// Requeue moves every archived audit task back to pending.
func (c *QueueCLI) Requeue(ctx context.Context) (int, error) {
	if c == nil || c.inspector == nil {
		return 0, errNoInspector
	}
	n, err := c.inspector.RunAllArchivedTasks(jobs.QueueAudit)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return 0, nil
	}
	return n, err
}

// Run executes the named command and returns the process exit code.
func (c *QueueCLI) Run(ctx context.Context, command string, opts Options) int {
	opts.defaults()
	var (
		result any
		err    error
	)
	switch command {
	case "stats":
		var stats QueueStats
		stats, err = c.Stats(ctx)
		result = stats
		if err == nil && !opts.JSONOutput {
			_, _ = fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d retry=%d archived=%d processed=%d failed=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Retry, stats.Archived, stats.Processed, stats.Failed)
		}
	case "archived":
		var records []ArchivedRecord
		records, err = c.Archived(ctx, opts.Limit)
		result = records
		if err == nil && !opts.JSONOutput {
			for _, r := range records {
				_, _ = fmt.Fprintf(opts.Stdout, "%s\t%s\t%s\tretried=%d\t%s\n", r.TaskID, r.Operation, r.Status, r.Retried, r.LastError)
			}
		}
	case "requeue":
		var n int
		n, err = c.Requeue(ctx)
		result = map[string]int{"requeued": n}
		if err == nil && !opts.JSONOutput {
			_, _ = fmt.Fprintf(opts.Stdout, "requeued %d audit records\n", n)
		}
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "auditctl: unknown command %q (want stats, archived or requeue)\n", command)
		return 2
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "auditctl %s: %v\n", command, err)
		return 1
	}
	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "auditctl %s: %v\n", command, err)
			return 1
		}
	}
	return 0
}
