package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes quota check and persistence per owner.
type Locker interface {
	Lock(ctx context.Context, ownerID int64) (unlock func(), err error)
}

// NoopLocker keeps the advisory behavior: concurrent uploads for one owner
// may both pass the quota check.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, int64) (func(), error) { return func() {}, nil }

// LocalLocker is an in-process keyed mutex. Entries are removed once nobody
// holds or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[int64]*ownerLock
}

type ownerLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[int64]*ownerLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, ownerID int64) (func(), error) {
	l.mu.Lock()
	ol, ok := l.locks[ownerID]
	if !ok {
		ol = &ownerLock{ch: make(chan struct{}, 1)}
		l.locks[ownerID] = ol
	}
	ol.refs++
	l.mu.Unlock()

	select {
	case ol.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-ol.ch
				l.release(ownerID, ol)
			})
		}, nil
	case <-ctx.Done():
		l.release(ownerID, ol)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(ownerID int64, ol *ownerLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ol.refs--
	if ol.refs == 0 {
		delete(l.locks, ownerID)
	}
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker holds the owner lock in Redis so several API instances share it.
// The TTL bounds how long a crashed holder can block an owner.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, retry: 50 * time.Millisecond, prefix: "upload:lock:owner:"}
}

func (l *RedisLocker) Lock(ctx context.Context, ownerID int64) (func(), error) {
	key := fmt.Sprintf("%s%d", l.prefix, ownerID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire owner lock: %w", err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = unlockScript.Run(ctx, l.client, []string{key}, token).Err()
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}
