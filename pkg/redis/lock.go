package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/inspection-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when the lock is still held after the wait budget.
var ErrLockHeld = errors.New("lock is held by another worker")

const (
	lockKeyPrefix = "workflow:lock:"
	lockRetry     = 50 * time.Millisecond
	lockWait      = 2 * time.Second
)

// 토큰이 일치할 때만 삭제 (다른 워커의 락을 풀지 않도록)
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes workflows on the same entity across processes.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// lockKey namespaces a workflow entity name such as "business:42".
func lockKey(name string) string {
	return lockKeyPrefix + name
}

// Lock acquires name with SET NX PX, retrying until the wait budget or ctx runs out.
// The returned func releases the lock and is safe to call once.
func (l *Locker) Lock(ctx context.Context, name string) (func(), error) {
	key := lockKey(name)
	token := uuid.NewString()
	deadline := time.Now().Add(lockWait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			logger.Error("Failed to acquire workflow lock", err, map[string]interface{}{
				"key": key,
			})
			return nil, err
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		if time.Now().After(deadline) {
			logger.Warn("Workflow lock wait exceeded", map[string]interface{}{
				"key": key,
			})
			return nil, ErrLockHeld
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetry):
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		logger.Warn("Failed to release workflow lock", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
