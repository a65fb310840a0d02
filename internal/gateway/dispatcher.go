// Package gateway dispatches named operations to the remote guarantee
// document service. The Dispatcher is the only component that knows the
// registry, the guard, the transport and the audit logger.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/umucyo/guarantee-gateway/internal/audit"
	"github.com/umucyo/guarantee-gateway/internal/operations"
	"github.com/umucyo/guarantee-gateway/internal/rbac"
	"github.com/umucyo/guarantee-gateway/internal/soap"
)

const tracerName = "github.com/umucyo/guarantee-gateway/internal/gateway"

// Transport sends one request to the remote service.
type Transport interface {
	Send(ctx context.Context, req soap.Request) (*soap.Exchange, error)
}

// Authorizer decides whether a principal may invoke an operation.
type Authorizer interface {
	Authorize(ctx context.Context, principal *rbac.Principal, operation string) rbac.Decision
}

// Recorder persists the audit trail of a dispatch. It must not fail.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Observer receives per-dispatch measurements.
type Observer interface {
	ObserveDispatch(operation, kind string, elapsed time.Duration)
}

// Config is resolved once at start.
type Config struct {
	Mock        bool
	Credentials Credentials
}

// Params groups the Dispatcher collaborators.
type Params struct {
	Registry  *operations.Registry
	Guard     Authorizer
	Transport Transport
	Audit     Recorder
	Logger    *slog.Logger
	Metrics   Observer
	Tracer    trace.Tracer
	Config    Config
	Now       func() time.Time
}

// Dispatcher runs the dispatch state machine. It is safe for concurrent
// use; all shared state is read-only.
type Dispatcher struct {
	registry  *operations.Registry
	guard     Authorizer
	transport Transport
	audit     Recorder
	logger    *slog.Logger
	metrics   Observer
	tracer    trace.Tracer
	cfg       Config
	now       func() time.Time
}

// NewDispatcher validates p and builds a Dispatcher. A transport is only
// required outside mock mode.
func NewDispatcher(p Params) (*Dispatcher, error) {
	if p.Registry == nil {
		return nil, errors.New("gateway: registry required")
	}
	if p.Guard == nil {
		return nil, errors.New("gateway: guard required")
	}
	if p.Audit == nil {
		return nil, errors.New("gateway: audit recorder required")
	}
	if p.Transport == nil && !p.Config.Mock {
		return nil, errors.New("gateway: transport required outside mock mode")
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Tracer == nil {
		p.Tracer = otel.Tracer(tracerName)
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Dispatcher{
		registry:  p.Registry,
		guard:     p.Guard,
		transport: p.Transport,
		audit:     p.Audit,
		logger:    p.Logger,
		metrics:   p.Metrics,
		tracer:    p.Tracer,
		cfg:       p.Config,
		now:       p.Now,
	}, nil
}

// Operations lists the registered operation names.
func (d *Dispatcher) Operations() []string {
	return d.registry.Names()
}

// Dispatch resolves, authorizes, shapes and invokes the named operation.
// Every call, rejected or not, produces exactly one audit record.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, principal *rbac.Principal, raw map[string]any) (res Result) {
	started := d.now()
	ctx, span := d.tracer.Start(ctx, "gateway.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("gateway.operation", name)))

	entry := audit.Entry{
		Operation: name,
		UserID:    principalID(principal),
		Started:   started,
		Request:   raw,
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch panicked", slog.String("operation", name), slog.Any("panic", r))
			entry.Err = fmt.Errorf("panic: %v", r)
			res = failure(KindRemoteUnavailable, RemoteUnavailableMessage)
		}
		d.finish(ctx, span, &entry, res)
	}()

	res = d.run(ctx, name, principal, raw, &entry)
	return res
}

func (d *Dispatcher) run(ctx context.Context, name string, principal *rbac.Principal, raw map[string]any, entry *audit.Entry) Result {
	op, ok := d.registry.Resolve(name)
	if !ok {
		return failure(KindUnknownOperation, fmt.Sprintf("unknown operation %s", name))
	}

	decision := d.guard.Authorize(ctx, principal, op.Name)
	if !decision.Allowed {
		kind := KindPermissionDenied
		if decision.Reason == rbac.ReasonAuthRequired {
			kind = KindAuthRequired
		}
		return failure(kind, decision.Message)
	}

	req, err := buildRequest(op, raw, d.cfg.Credentials)
	if err != nil {
		return failure(KindInvalidArguments, err.Error())
	}

	if d.cfg.Mock {
		mocked := d.mockResponse(op.Name, raw)
		entry.Response = mocked
		return success(mocked)
	}

	ex, err := d.transport.Send(ctx, req)
	if ex != nil {
		entry.RequestWire = ex.Request
		entry.ResponseWire = ex.Response
		entry.Attempts = ex.Attempts
	}
	if err != nil {
		entry.Err = err
		d.logger.Error("remote call failed",
			slog.String("operation", op.Name),
			slog.Int("attempts", entry.Attempts),
			slog.Any("error", err))
		return failure(KindRemoteUnavailable, RemoteUnavailableMessage)
	}
	entry.Response = ex.Result
	return success(ex.Result)
}

func (d *Dispatcher) mockResponse(operation string, raw map[string]any) map[string]any {
	input := raw
	if input == nil {
		input = map[string]any{}
	}
	return map[string]any{
		"status":  "MOCK_SUCCESS",
		"message": fmt.Sprintf("Operation '%s' mocked successfully.", operation),
		"data": map[string]any{
			"mock_id":        "12345",
			"timestamp":      d.now().Format(time.RFC3339Nano),
			"input_received": input,
		},
	}
}

func (d *Dispatcher) finish(ctx context.Context, span trace.Span, entry *audit.Entry, res Result) {
	defer span.End()
	if !res.OK() {
		entry.FailureKind = string(res.Kind)
		if entry.Err == nil {
			entry.Err = errors.New(res.Message)
		}
		span.SetStatus(codes.Error, string(res.Kind))
	}
	span.SetAttributes(
		attribute.String("gateway.kind", string(res.Kind)),
		attribute.Int("gateway.attempts", entry.Attempts))

	if res.Kind == KindUnknownOperation || res.Kind == KindAuthRequired || res.Kind == KindPermissionDenied {
		d.logger.Warn("dispatch rejected",
			slog.String("operation", entry.Operation),
			slog.String("kind", string(res.Kind)))
	}

	d.audit.Record(ctx, *entry)
	if d.metrics != nil {
		d.metrics.ObserveDispatch(entry.Operation, string(res.Kind), d.now().Sub(entry.Started))
	}
}

func principalID(p *rbac.Principal) *int64 {
	if p == nil || !p.Authenticated {
		return nil
	}
	id := p.ID
	return &id
}
