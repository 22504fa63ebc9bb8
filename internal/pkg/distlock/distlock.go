// Package distlock serializes export runs per dataset across server
// instances. Redis backs the lock when available; without Redis the
// runner falls back to a process-local mutex table, which is sufficient
// for single-instance deployments.
package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock guards one dataset's export. A Lock instance belongs to a single
// goroutine; concurrent holders need separate instances.
type Lock interface {
	// TryAcquire attempts the lock without blocking; true on success.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still owns it.
	Release(ctx context.Context) error
}

// Factory mints locks for dataset keys.
type Factory interface {
	ForDataset(datasetID string) Lock
}

// RedisFactory issues Redis-backed locks with a TTL, so a crashed worker
// cannot wedge its dataset forever.
type RedisFactory struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFactory(client *redis.Client, ttl time.Duration) *RedisFactory {
	return &RedisFactory{client: client, ttl: ttl}
}

func (f *RedisFactory) ForDataset(datasetID string) Lock {
	token := make([]byte, 16)
	rand.Read(token)
	return &redisLock{
		client: f.client,
		key:    "export:lock:" + datasetID,
		value:  hex.EncodeToString(token),
		ttl:    f.ttl,
	}
}

// redisLock is SET NX with a random ownership token; release is a Lua
// compare-and-delete so one holder cannot free another's lock.
type redisLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

func (l *redisLock) TryAcquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (l *redisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// LocalFactory is the in-process fallback: one mutex slot per dataset.
type LocalFactory struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalFactory() *LocalFactory {
	return &LocalFactory{held: make(map[string]bool)}
}

func (f *LocalFactory) ForDataset(datasetID string) Lock {
	return &localLock{factory: f, key: datasetID}
}

type localLock struct {
	factory *LocalFactory
	key     string
	owned   bool
}

func (l *localLock) TryAcquire(ctx context.Context) (bool, error) {
	l.factory.mu.Lock()
	defer l.factory.mu.Unlock()
	if l.factory.held[l.key] {
		return false, nil
	}
	l.factory.held[l.key] = true
	l.owned = true
	return true, nil
}

func (l *localLock) Release(ctx context.Context) error {
	if !l.owned {
		return nil
	}
	l.factory.mu.Lock()
	delete(l.factory.held, l.key)
	l.factory.mu.Unlock()
	l.owned = false
	return nil
}
