package household

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
)

// DefaultCacheTTL bounds staleness of the account->household mapping.
// Membership changes rarely; five minutes keeps misroutes short-lived.
const DefaultCacheTTL = 5 * time.Minute

// CachedDirectory is a read-through Redis cache in front of a Directory.
// Cache failures are ignored (fail-open): the wrapped directory remains
// authoritative and an unavailable Redis only costs latency.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOption configures a CachedDirectory.
type CacheOption func(*CachedDirectory)

// WithCacheTTL overrides the default entry TTL.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(d *CachedDirectory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithCacheLogger sets a logger for cache errors.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(d *CachedDirectory) {
		d.logger = logger
	}
}

// NewCachedDirectory wraps next with a Redis lookaside. A nil client returns
// next unchanged so callers can wire the cache unconditionally.
func NewCachedDirectory(next Directory, client *redis.Client, opts ...CacheOption) Directory {
	if client == nil {
		return next
	}
	d := &CachedDirectory{next: next, client: client, ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *CachedDirectory) HouseholdForAccount(ctx context.Context, accountID id.AccountID) (id.HouseholdID, error) {
	key := cacheKey(accountID)
	cached, err := d.client.Get(ctx, key).Result()
	if err == nil {
		if householdID, parseErr := id.ParseHouseholdID(cached); parseErr == nil {
			return householdID, nil
		}
		// A corrupt entry falls through to the authoritative lookup.
	} else if !errors.Is(err, redis.Nil) {
		d.logError(ctx, "household cache read failed", err)
	}

	householdID, err := d.next.HouseholdForAccount(ctx, accountID)
	if err != nil {
		return id.HouseholdID{}, err
	}
	if setErr := d.client.Set(ctx, key, householdID.String(), d.ttl).Err(); setErr != nil {
		d.logError(ctx, "household cache write failed", setErr)
	}
	return householdID, nil
}

func (d *CachedDirectory) logError(ctx context.Context, msg string, err error) {
	if d.logger == nil || errors.Is(err, sentinel.ErrNotFound) {
		return
	}
	d.logger.WarnContext(ctx, msg, "error", err)
}

func cacheKey(accountID id.AccountID) string {
	return "homeledger:household:account:" + accountID.String()
}
