package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/posbridge/internal/clock"
	"github.com/smallbiznis/posbridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DefaultPushInterval = 501 * time.Millisecond
	pushBucketKey       = "posbridge:throttle:inventory_push"
)

// Throttle paces calls against a rate limited API.
type Throttle interface {
	Wait(ctx context.Context) error
}

// IntervalThrottle sleeps a fixed interval on every Wait.
type IntervalThrottle struct {
	clock    clock.Clock
	interval time.Duration
}

func NewIntervalThrottle(clk clock.Clock, interval time.Duration) *IntervalThrottle {
	if interval < DefaultPushInterval {
		interval = DefaultPushInterval
	}
	return &IntervalThrottle{clock: clk, interval: interval}
}

func (t *IntervalThrottle) Wait(ctx context.Context) error {
	return t.clock.Sleep(ctx, t.interval)
}

// SharedThrottle waits the local interval and then takes a token from the
// redis bucket shared by every instance, sleeping until one is available.
type SharedThrottle struct {
	local  *IntervalThrottle
	bucket *TokenBucket
	clock  clock.Clock
	rate   float64
	log    *zap.Logger
}

func (t *SharedThrottle) Wait(ctx context.Context) error {
	if err := t.local.Wait(ctx); err != nil {
		return err
	}
	for {
		res, err := t.bucket.Allow(ctx, pushBucketKey, t.rate, 1)
		if err != nil {
			// The local interval already holds the pace.
			t.log.Warn("ratelimit.bucket_unavailable", zap.Error(err))
			return nil
		}
		if res.Allowed {
			return nil
		}
		wait := res.RetryAfter
		if wait <= 0 {
			wait = t.local.interval
		}
		if err := t.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

type ThrottleParams struct {
	fx.In

	Config config.Config
	Clock  clock.Clock
	Log    *zap.Logger
	Redis  *redis.Client `optional:"true"`
}

// NewPushThrottle builds the inventory push throttle.
func NewPushThrottle(p ThrottleParams) Throttle {
	local := NewIntervalThrottle(p.Clock, p.Config.Sync.PushInterval)
	bucket := NewTokenBucket(p.Redis)
	if bucket == nil {
		return local
	}
	return &SharedThrottle{
		local:  local,
		bucket: bucket,
		clock:  p.Clock,
		rate:   float64(time.Second) / float64(local.interval),
		log:    p.Log.Named("ratelimit"),
	}
}
