// Package scheduler runs the recurring synchronization jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posbridge/internal/cache"
	catalogdomain "github.com/smallbiznis/posbridge/internal/catalog/domain"
	"github.com/smallbiznis/posbridge/internal/clock"
	"github.com/smallbiznis/posbridge/internal/inventory"
	obsmetrics "github.com/smallbiznis/posbridge/internal/observability/metrics"
	"github.com/smallbiznis/posbridge/internal/ordersync"
	"github.com/smallbiznis/posbridge/internal/ratelimit"
	"github.com/smallbiznis/posbridge/internal/scheduler/guard"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobIncompleteOrderRecovery = "incomplete_order_recovery"
	JobCatalogRefresh          = "catalog_refresh"
	JobInventorySync           = "inventory_sync"
	JobInventoryPush           = "inventory_push"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrUnknownJob    = errors.New("unknown_job")
)

// OrderRecoverer re-drives unplaced transaction records.
type OrderRecoverer interface {
	Recover(ctx context.Context) (ordersync.RecoveryResult, error)
}

type CatalogRefresher interface {
	Refresh(ctx context.Context) (catalogdomain.RefreshResult, error)
}

type InventoryReconciler interface {
	Reconcile(ctx context.Context) (inventory.Result, error)
	Push(ctx context.Context, code string, qty int) (inventory.Result, error)
}

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Orders    *ordersync.Orchestrator
	Catalog   catalogdomain.Service
	Inventory *inventory.Reconciler
	Locker    *ratelimit.Locker   `optional:"true"`
	Variants  *cache.VariantCache `optional:"true"`
	Config    Config              `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *obsmetrics.SyncMetrics
	guard   *guard.Guard
	locker  JobLocker

	orders    OrderRecoverer
	catalog   CatalogRefresher
	inventory InventoryReconciler

	onCatalogRefreshed func()
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Orders == nil || p.Catalog == nil || p.Inventory == nil {
		return nil, ErrInvalidConfig
	}
	s := newScheduler(p.Log, p.GenID, p.Clock, p.Config, p.Locker, p.Orders, p.Catalog, p.Inventory)
	if p.Variants != nil {
		s.onCatalogRefreshed = p.Variants.Purge
	}
	return s, nil
}

func newScheduler(
	log *zap.Logger,
	genID *snowflake.Node,
	clk clock.Clock,
	cfg Config,
	locker JobLocker,
	orders OrderRecoverer,
	catalog CatalogRefresher,
	inv InventoryReconciler,
) *Scheduler {
	return &Scheduler{
		log:       log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       cfg.withDefaults(),
		genID:     genID,
		clock:     clk,
		metrics:   obsmetrics.Sync(),
		guard:     guard.New(),
		locker:    locker,
		orders:    orders,
		catalog:   catalog,
		inventory: inv,
	}
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) (err error) {
	release, err := s.acquireJob(parent, name, s.lockTTL(timeout))
	if err != nil {
		return err
	}
	defer release()

	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	s.metrics.IncJobRun(name)

	err = s.call(ctx, fn)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	// A deadline is a soft timeout; the next run picks up the remainder.
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		s.metrics.IncJobTimeout(name)
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.logJobError(ctx, name, err)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) call(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// RunIncompleteOrderRecovery re-drives every unplaced transaction record.
func (s *Scheduler) RunIncompleteOrderRecovery(ctx context.Context) (ordersync.RecoveryResult, error) {
	var result ordersync.RecoveryResult
	err := s.runJob(ctx, JobIncompleteOrderRecovery, s.cfg.RecoveryTimeout, func(ctx context.Context) error {
		var err error
		result, err = s.orders.Recover(ctx)
		run := jobRunFromContext(ctx)
		run.AddProcessed(result.RecoveredCount + result.FailedCount)
		run.AddErrors(result.FailedCount)
		s.metrics.AddBatchProcessed(JobIncompleteOrderRecovery, "transaction_records", result.RecoveredCount+result.FailedCount)
		return err
	})
	return result, err
}

// RunCatalogRefresh rebuilds the catalog mirror from the storefront.
func (s *Scheduler) RunCatalogRefresh(ctx context.Context) (catalogdomain.RefreshResult, error) {
	var result catalogdomain.RefreshResult
	err := s.runJob(ctx, JobCatalogRefresh, s.cfg.CatalogTimeout, func(ctx context.Context) error {
		var err error
		result, err = s.catalog.Refresh(ctx)
		jobRunFromContext(ctx).AddProcessed(result.Variants)
		s.metrics.AddBatchProcessed(JobCatalogRefresh, "variants", result.Variants)
		if s.onCatalogRefreshed != nil && result.Variants > 0 {
			s.onCatalogRefreshed()
		}
		return err
	})
	return result, err
}

// RunInventorySync reconciles storefront stock with the POS feed.
func (s *Scheduler) RunInventorySync(ctx context.Context) (inventory.Result, error) {
	var result inventory.Result
	err := s.runJob(ctx, JobInventorySync, s.cfg.InventoryTimeout, func(ctx context.Context) error {
		var err error
		result, err = s.inventory.Reconcile(ctx)
		run := jobRunFromContext(ctx)
		run.AddProcessed(len(result.Updated) + len(result.UpToDate) + len(result.NotUpdated) + len(result.NotFound))
		run.AddErrors(len(result.NotUpdated))
		return err
	})
	return result, err
}

// PushInventory sets the storefront quantity of one item code.
func (s *Scheduler) PushInventory(ctx context.Context, code string, qty int) (inventory.Result, error) {
	var result inventory.Result
	err := s.runJob(ctx, JobInventoryPush, s.cfg.RecoveryTimeout, func(ctx context.Context) error {
		var err error
		result, err = s.inventory.Push(ctx, code, qty)
		jobRunFromContext(ctx).AddProcessed(1)
		return err
	})
	return result, err
}

// Jobs lists the jobs RunJob accepts.
func Jobs() []string {
	return []string{JobIncompleteOrderRecovery, JobCatalogRefresh, JobInventorySync}
}

// RunJob runs one job by name and returns its result.
func (s *Scheduler) RunJob(ctx context.Context, name string) (any, error) {
	switch name {
	case JobIncompleteOrderRecovery:
		return s.RunIncompleteOrderRecovery(ctx)
	case JobCatalogRefresh:
		return s.RunCatalogRefresh(ctx)
	case JobInventorySync:
		return s.RunInventorySync(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
}

// RunOnce runs every job once, catalog first so the mirror is fresh for the
// other two.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var err error
	_, cerr := s.RunCatalogRefresh(ctx)
	err = errors.Join(err, cerr)
	_, rerr := s.RunIncompleteOrderRecovery(ctx)
	err = errors.Join(err, rerr)
	_, ierr := s.RunInventorySync(ctx)
	return errors.Join(err, ierr)
}

// RunForever drives every job on its own timer until ctx is done.
func (s *Scheduler) RunForever(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return
	}

	loops := []struct {
		name string
		next func(now time.Time) time.Time
		run  func(ctx context.Context) error
	}{
		{
			name: JobIncompleteOrderRecovery,
			next: func(now time.Time) time.Time { return now.Add(s.cfg.RecoveryInterval) },
			run: func(ctx context.Context) error {
				_, err := s.RunIncompleteOrderRecovery(ctx)
				return err
			},
		},
		{
			name: JobCatalogRefresh,
			next: func(now time.Time) time.Time { return nextDaily(now, s.cfg.CatalogRefreshAt, s.cfg.Location) },
			run: func(ctx context.Context) error {
				_, err := s.RunCatalogRefresh(ctx)
				return err
			},
		},
		{
			name: JobInventorySync,
			next: func(now time.Time) time.Time { return nextDaily(now, s.cfg.InventorySyncAt, s.cfg.Location) },
			run: func(ctx context.Context) error {
				_, err := s.RunInventorySync(ctx)
				return err
			},
		},
	}

	var wg sync.WaitGroup
	for _, l := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, l.name, l.next, l.run)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, next func(time.Time) time.Time, run func(context.Context) error) {
	for {
		now := s.clock.Now()
		at := next(now)
		s.log.Debug("scheduler.job.next", zap.String("job", name), zap.Time("at", at))
		if err := s.clock.Sleep(ctx, at.Sub(now)); err != nil {
			return
		}
		if lag := s.clock.Now().Sub(at); lag > 0 {
			s.metrics.ObserveRunLoopLag(lag)
		}
		if err := run(ctx); err != nil && !IsSkipped(err) {
			s.log.Warn("scheduler run failed", zap.String("job", name), zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}
