// Package redislock implements a cross-process advisory lock over Redis,
// using SET NX PX plus a token-checked Lua release so a lock owner never
// releases a lease that has since rolled over to another process after TTL
// expiry.
//
// Grounded on the standard Redis "distributed lock" recipe; the corpus
// carries no Redis locking library (only github.com/redis/go-redis/v9
// itself), so this is hand-rolled directly against the client rather than
// wrapping a third-party redlock package that is not in go.mod.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Locker acquires per-user locks backed by one Redis key each.
type Locker struct {
	Client     *redis.Client
	KeyPrefix  string // default "alfred:lock:"
	TTL        time.Duration // default 30s
	RetryDelay time.Duration // default 50ms
}

// New builds a Locker with sane defaults.
func New(client *redis.Client) *Locker {
	return &Locker{Client: client, KeyPrefix: "alfred:lock:", TTL: 30 * time.Second, RetryDelay: 50 * time.Millisecond}
}

func (l *Locker) key(userID string) string {
	prefix := l.KeyPrefix
	if prefix == "" {
		prefix = "alfred:lock:"
	}
	return prefix + userID
}

func (l *Locker) ttl() time.Duration {
	if l.TTL <= 0 {
		return 30 * time.Second
	}
	return l.TTL
}

func (l *Locker) retryDelay() time.Duration {
	if l.RetryDelay <= 0 {
		return 50 * time.Millisecond
	}
	return l.RetryDelay
}

// Acquire blocks (polling at RetryDelay) until the user's key can be set, ctx
// is canceled, or a hung lock's TTL simply expires and frees it up.
func (l *Locker) Acquire(ctx context.Context, userID string) (func(), error) {
	token := uuid.NewString()
	key := l.key(userID)

	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.ttl()).Result()
		if err != nil {
			return nil, fmt.Errorf("redislock: acquire: %w", err)
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				l.Client.Eval(releaseCtx, releaseScript, []string{key}, token)
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay()):
		}
	}
}

// ErrNotOwner is unused directly (the release script silently no-ops on a
// mismatched token) but documents why Release never returns "not owner".
var ErrNotOwner = errors.New("redislock: lock not held by this token")
