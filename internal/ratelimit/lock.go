package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
	obsmetrics "github.com/smallbiznis/posbridge/internal/observability/metrics"
)

var (
	ErrLockNotObtained = obsmetrics.ErrJobLockNotObtained
	errEmptyLockKey    = errors.New("lock key is empty")
	errInvalidLockTTL  = errors.New("lock ttl must be positive")
)

// Locker guards a job across instances. A nil Locker always succeeds so a
// single instance runs without redis.
type Locker struct {
	client *redislock.Client
	prefix string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: redislock.New(client), prefix: "posbridge:lock:"}
}

// TryLock obtains key for ttl without waiting. The returned release func is
// never nil when err is nil.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if key == "" {
		return nil, errEmptyLockKey
	}
	if ttl <= 0 {
		return nil, errInvalidLockTTL
	}
	if l == nil || l.client == nil {
		return func(context.Context) error { return nil }, nil
	}

	lock, err := l.client.Obtain(ctx, l.prefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
