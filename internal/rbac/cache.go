package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	grantVersionKey = "rbac:grants:version"
	// lookupTimeout bounds a shared lookup, which no longer follows the
	// cancellation of the caller that started it.
	lookupTimeout = 5 * time.Second
)

// CachedGrants memoises grant lookups in Redis. Entries are keyed by a
// version counter so Invalidate drops every cached answer at once. Redis
// errors fall through to the wrapped checker.
type CachedGrants struct {
	next   GrantChecker
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedGrants wraps next. A nil client or non-positive ttl disables
// caching.
func NewCachedGrants(next GrantChecker, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedGrants {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedGrants{next: next, client: client, ttl: ttl, logger: logger}
}

// HasActiveGrant implements GrantChecker.
func (c *CachedGrants) HasActiveGrant(ctx context.Context, principal Principal, operation string) (bool, error) {
	if c.client == nil || c.ttl <= 0 {
		return c.next.HasActiveGrant(ctx, principal, operation)
	}
	key, err := c.key(ctx, principal.ID, operation)
	if err != nil {
		c.logger.Warn("rbac cache version", slog.Any("error", err))
		return c.next.HasActiveGrant(ctx, principal, operation)
	}
	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == "1", nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("rbac cache get", slog.String("key", key), slog.Any("error", err))
		return c.next.HasActiveGrant(ctx, principal, operation)
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		ok, err := c.next.HasActiveGrant(shared, principal, operation)
		if err != nil {
			return false, err
		}
		value := "0"
		if ok {
			value = "1"
		}
		if err := c.client.Set(shared, key, value, c.ttl).Err(); err != nil {
			c.logger.Warn("rbac cache set", slog.String("key", key), slog.Any("error", err))
		}
		return ok, nil
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	}
}

// Invalidate discards every cached grant answer.
func (c *CachedGrants) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, grantVersionKey).Err()
}

func (c *CachedGrants) key(ctx context.Context, userID int64, operation string) (string, error) {
	ver, err := c.client.Get(ctx, grantVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("rbac:grant:%d:%d:%s", ver, userID, operation), nil
}
