package kbsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cqa-workers/internal/common/errors"
)

const (
	lockKeyPrefix  = "kbsync:lock:"
	DefaultLockTTL = 30 * time.Minute
)

// ReleaseFunc gives a held lock back.
type ReleaseFunc func(ctx context.Context) error

// Locker serializes exports per project. Imports are read-only and never lock.
type Locker interface {
	Acquire(ctx context.Context, project string) (ReleaseFunc, error)
}

// Deletes the key only while it still holds our token, so an expired lock taken over by
// another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Extends the key only while it still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLock holds a per-project key for the length of a run. The key expires after ttl
// unless refreshed, and a held lock refreshes itself every ttl/3 until released, so a
// crashed worker frees the project within one ttl while a slow export keeps it.
type RedisLock struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisLock(client redis.UniversalClient, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLock{client: client, ttl: ttl}
}

func lockKey(project string) string {
	return lockKeyPrefix + project
}

// Acquire takes the project lock or fails with a SYNC_CONFLICT error when another run holds it.
func (l *RedisLock) Acquire(ctx context.Context, project string) (ReleaseFunc, error) {
	key := lockKey(project)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return nil, errors.NewSyncConflictError(project)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(key, token, stop, done)

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
		})
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release sync lock: %w", err)
		}
		return nil
	}, nil
}

// keepAlive stops on release or once the key no longer holds token.
func (l *RedisLock) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			held, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err == nil && held == 0 {
				return
			}
		}
	}
}
