package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	obsmetrics "github.com/smallbiznis/posbridge/internal/observability/metrics"
	"github.com/smallbiznis/posbridge/internal/ratelimit"
	"github.com/smallbiznis/posbridge/internal/scheduler/guard"
	"go.uber.org/zap"
)

// JobLocker guards a job across instances.
type JobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// lockGrace keeps the distributed lock alive past the job deadline while the
// job unwinds.
const lockGrace = time.Minute

// lockTTL never lets the lock expire before a job bounded by timeout returns.
func (s *Scheduler) lockTTL(timeout time.Duration) time.Duration {
	ttl := timeout + lockGrace
	if s.cfg.JobLockTTL > ttl {
		return s.cfg.JobLockTTL
	}
	return ttl
}

// acquireJob claims the in-process guard first and then the distributed lock,
// so a second trigger in the same process never reaches redis.
func (s *Scheduler) acquireJob(ctx context.Context, job string, ttl time.Duration) (func(), error) {
	leave, err := s.guard.TryEnter(job)
	if err != nil {
		s.metrics.IncJobSkipped(job)
		s.logger(ctx).Info("scheduler.job.skipped", zap.String("job", job), zap.String("reason", "running"))
		return nil, fmt.Errorf("%s: %w", job, err)
	}

	unlock := func(context.Context) error { return nil }
	if s.locker != nil {
		unlock, err = s.locker.TryLock(ctx, job, ttl)
	}
	if err != nil {
		leave()
		if errors.Is(err, ratelimit.ErrLockNotObtained) {
			s.metrics.IncJobSkipped(job)
			s.logger(ctx).Info("scheduler.job.skipped", zap.String("job", job), zap.String("reason", obsmetrics.JobReasonLockNotObtained))
			return nil, fmt.Errorf("%s: %w", job, err)
		}
		s.metrics.IncJobError(job, err)
		return nil, fmt.Errorf("%s: acquire lock: %w", job, err)
	}

	return func() {
		if err := unlock(context.Background()); err != nil {
			s.logger(ctx).Warn("scheduler.job.unlock_failed", zap.String("job", job), zap.Error(err))
		}
		leave()
	}, nil
}

// IsSkipped reports whether err means the job was already running elsewhere.
func IsSkipped(err error) bool {
	return errors.Is(err, guard.ErrJobRunning) || errors.Is(err, ratelimit.ErrLockNotObtained)
}
