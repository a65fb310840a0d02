package rbac

import (
	"context"
	"fmt"
	"log/slog"
)

// DenyReason tags why a principal was refused.
type DenyReason string

const (
	ReasonAuthRequired     DenyReason = "auth_required"
	ReasonPermissionDenied DenyReason = "permission_denied"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	Message string
}

// Allow is the positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// GrantChecker answers whether a principal holds an active grant for an
// operation through any of its roles.
type GrantChecker interface {
	HasActiveGrant(ctx context.Context, principal Principal, operation string) (bool, error)
}

// Guard decides whether a principal may invoke an operation. It performs
// reads only.
type Guard struct {
	grants GrantChecker
	logger *slog.Logger
}

// NewGuard constructs a Guard backed by grants.
func NewGuard(grants GrantChecker, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{grants: grants, logger: logger}
}

// Authorize evaluates the principal against the operation name. Superusers
// pass for any name, registered or not. Grant lookup failures deny.
func (g *Guard) Authorize(ctx context.Context, principal *Principal, operation string) Decision {
	if principal == nil || !principal.Authenticated {
		return Decision{Reason: ReasonAuthRequired, Message: "authentication required"}
	}
	if principal.IsSuperuser {
		return Allow()
	}
	denied := Decision{Reason: ReasonPermissionDenied, Message: fmt.Sprintf("permission denied for %s", operation)}
	if g == nil || g.grants == nil {
		return denied
	}
	ok, err := g.grants.HasActiveGrant(ctx, *principal, operation)
	if err != nil {
		g.logger.Error("rbac grant lookup", slog.String("operation", operation), slog.Int64("user_id", principal.ID), slog.Any("error", err))
		return denied
	}
	if !ok {
		return denied
	}
	return Allow()
}
