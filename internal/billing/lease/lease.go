// Package lease guards the billing tick against overlap. Two ticks running
// concurrently could both read the same due snapshot and double-process a
// subscription before its next-due instant moves, so a tick only proceeds
// while holding the lease.
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease is a single-holder advisory lock with a TTL safety valve.
type Lease interface {
	// TryAcquire returns true when this caller now holds the lease. A false
	// return means another tick is in flight.
	TryAcquire(ctx context.Context, ttl time.Duration) (bool, error)
	// Release frees the lease if this caller still holds it.
	Release(ctx context.Context) error
}

// InProcess serializes ticks within one process. The dev default and the
// fallback when Redis is not configured.
type InProcess struct {
	mu sync.Mutex
}

func NewInProcess() *InProcess {
	return &InProcess{}
}

func (l *InProcess) TryAcquire(_ context.Context, _ time.Duration) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *InProcess) Release(_ context.Context) error {
	l.mu.Unlock()
	return nil
}

// Redis is the distributed lease for multi-replica deployments: SET NX with
// a TTL, released only by the holder.
type Redis struct {
	client *redis.Client
	key    string

	mu    sync.Mutex // one lease value may be shared across goroutines
	token string
}

func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

func (l *Redis) TryAcquire(ctx context.Context, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return ok, nil
}

// releaseScript deletes the key only when the stored token is ours, so an
// expired lease taken over by another replica is never stolen back.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *Redis) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
}
