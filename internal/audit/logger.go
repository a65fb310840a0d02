// Package audit records one immutable trail entry per gateway dispatch.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const defaultWriteTimeout = 5 * time.Second

// Entry is what a dispatch hands to the Logger once it is finished.
type Entry struct {
	Operation string
	UserID    *int64
	Started   time.Time

	// RequestWire and ResponseWire hold the exact bytes exchanged with the
	// remote service, when there were any. They take precedence over the
	// in-memory values.
	RequestWire  []byte
	ResponseWire []byte
	Request      any
	Response     any

	Err         error
	FailureKind string
	Attempts    int
}

// Logger turns entries into records and appends them to a Sink. It never
// fails the caller: persistence problems go to the operational log.
type Logger struct {
	sink    Sink
	logger  *slog.Logger
	redact  bool
	timeout time.Duration
	now     func() time.Time
}

// LoggerOption customises a Logger.
type LoggerOption func(*Logger)

// WithRedaction toggles masking of credentials in stored payloads.
func WithRedaction(on bool) LoggerOption {
	return func(l *Logger) { l.redact = on }
}

// WithWriteTimeout bounds a single sink write.
func WithWriteTimeout(d time.Duration) LoggerOption {
	return func(l *Logger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) LoggerOption {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger wraps sink. Redaction is on unless disabled with an option.
func NewLogger(sink Sink, logger *slog.Logger, opts ...LoggerOption) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{
		sink:    sink,
		logger:  logger,
		redact:  true,
		timeout: defaultWriteTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record builds the audit record for e and appends it. The write runs on a
// context detached from the caller's deadline so a timed out dispatch is
// still recorded.
func (l *Logger) Record(ctx context.Context, e Entry) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("audit record panicked",
				slog.String("operation", e.Operation),
				slog.Any("panic", r))
		}
	}()

	rec := l.build(e)
	if l.sink == nil {
		l.logger.Warn("audit sink not configured", slog.String("operation", e.Operation))
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()
	if err := l.sink.Append(writeCtx, rec); err != nil {
		l.logger.Error("audit append failed",
			slog.String("operation", rec.Operation),
			slog.String("record_id", rec.ID.String()),
			slog.Any("error", err))
	}
}

func (l *Logger) build(e Entry) Record {
	now := l.now()
	rec := Record{
		ID:             uuid.New(),
		Operation:      e.Operation,
		UserID:         e.UserID,
		RequestPayload: l.payload(e.RequestWire, e.Request),
		Status:         StatusSuccess,
		Attempts:       e.Attempts,
	}
	if !e.Started.IsZero() {
		rec.Duration = now.Sub(e.Started).Seconds()
	}
	if len(e.ResponseWire) > 0 || e.Response != nil {
		resp := l.payload(e.ResponseWire, e.Response)
		rec.ResponsePayload = &resp
	}
	if e.Err != nil {
		rec.Status = StatusFailed
		msg := e.Err.Error()
		rec.ErrorMessage = &msg
	}
	if e.FailureKind != "" {
		kind := e.FailureKind
		rec.FailureKind = &kind
	}
	return rec
}

// payload serialises a value: raw wire bytes first, JSON of the in-memory
// value second, fmt formatting last.
func (l *Logger) payload(wire []byte, value any) string {
	var out string
	switch {
	case len(wire) > 0:
		out = string(wire)
	default:
		if raw, err := json.Marshal(value); err == nil {
			out = string(raw)
		} else {
			out = fmt.Sprintf("%+v", value)
		}
	}
	if l.redact {
		out = Redact(out)
	}
	return out
}
