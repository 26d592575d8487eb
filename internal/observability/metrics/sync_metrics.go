package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	posdomain "github.com/smallbiznis/posbridge/internal/pos/domain"
	"github.com/smallbiznis/posbridge/pkg/db"
)

const (
	SyncErrorTypeDeadlineExceeded = "deadline_exceeded"
	SyncErrorTypePOSAuth          = "pos_auth"
	SyncErrorTypePOSLock          = "pos_lock"
	SyncErrorTypeTransport        = "transport"
	SyncErrorTypeLogical          = "pos_logical"
	SyncErrorTypeDB               = "db"
	SyncErrorTypeUnknown          = "unknown"
)

const (
	JobReasonDeadlineExceeded = "deadline_exceeded"
	JobReasonLockNotObtained  = "lock_not_obtained"
	JobReasonUniqueViolation  = "unique_violation"
	JobReasonPOS              = "pos"
	JobReasonUnknown          = "unknown"
)

// ErrJobLockNotObtained is reported when another instance already runs the job.
var ErrJobLockNotObtained = errors.New("job_lock_not_obtained")

// SyncMetrics captures scheduler and synchronization health signals.
type SyncMetrics struct {
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	jobTimeouts      *prometheus.CounterVec
	jobErrors        *prometheus.CounterVec
	jobSkipped       *prometheus.CounterVec
	batchProcessed   *prometheus.CounterVec
	runLoopLag       prometheus.Histogram
	orderTransitions *prometheus.CounterVec
	orderOutcomes    *prometheus.CounterVec
	inventoryResults *prometheus.CounterVec
	posCallDuration  *prometheus.HistogramVec
	posCallErrors    *prometheus.CounterVec
}

var (
	syncMetricsOnce sync.Once
	syncMetrics     *SyncMetrics
)

// Sync returns the singleton sync metrics registry.
func Sync() *SyncMetrics {
	return SyncWithConfig(Config{})
}

// SyncWithConfig returns the singleton sync metrics registry using config labels.
func SyncWithConfig(cfg Config) *SyncMetrics {
	syncMetricsOnce.Do(func() {
		syncMetrics = newSyncMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return syncMetrics
}

// ResetSyncMetricsForTest resets the sync metrics singleton for tests.
func ResetSyncMetricsForTest() {
	syncMetricsOnce = sync.Once{}
	syncMetrics = nil
}

func newSyncMetrics(registerer prometheus.Registerer, cfg Config) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "posbridge"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &SyncMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posbridge_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "posbridge_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posbridge_scheduler_job_timeouts_total",
			Help:        "Scheduler job timeouts.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posbridge_scheduler_job_errors_total",
			Help:        "Scheduler job errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		jobSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posbridge_scheduler_job_skipped_total",
			Help:        "Scheduler job runs skipped because another run held the job lock.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		batchProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posbridge_scheduler_batch_processed_total",
			Help:        "Items processed by scheduler jobs.",
			ConstLabels: constLabels,
		}, []string{"job", "resource"}),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "posbridge_scheduler_runloop_lag_seconds",
			Help:        "Scheduler run loop lag beyond the planned fire time.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posbridge_order_sync_transitions_total",
			Help:        "Order sync state machine transitions.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		orderOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posbridge_order_sync_outcomes_total",
			Help:        "Order sync attempts by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		inventoryResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posbridge_inventory_reconcile_results_total",
			Help:        "Inventory reconciliation variants by result bucket.",
			ConstLabels: constLabels,
		}, []string{"bucket"}),
		posCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "posbridge_pos_call_duration_seconds",
			Help:        "POS protocol call latency by operation.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			ConstLabels: constLabels,
		}, []string{"operation"}),
		posCallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "posbridge_pos_call_errors_total",
			Help:        "POS protocol call failures by operation and error type.",
			ConstLabels: constLabels,
		}, []string{"operation", "error_type"}),
	}

	registerer.MustRegister(
		m.jobRuns,
		m.jobDuration,
		m.jobTimeouts,
		m.jobErrors,
		m.jobSkipped,
		m.batchProcessed,
		m.runLoopLag,
		m.orderTransitions,
		m.orderOutcomes,
		m.inventoryResults,
		m.posCallDuration,
		m.posCallErrors,
	)
	return m
}

// IncJobRun increments the run counter for a scheduler job.
func (m *SyncMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *SyncMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the scheduler job.
func (m *SyncMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the scheduler job error counter with classification.
func (m *SyncMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

func (m *SyncMetrics) IncJobSkipped(job string) {
	if m == nil {
		return
	}
	m.jobSkipped.WithLabelValues(job).Inc()
}

// AddBatchProcessed increments the processed counter for a resource by count.
func (m *SyncMetrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// ObserveRunLoopLag records lag between the planned fire time and actual run start.
func (m *SyncMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.runLoopLag.Observe(duration.Seconds())
}

func (m *SyncMetrics) IncOrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *SyncMetrics) IncOrderOutcome(outcome string) {
	if m == nil {
		return
	}
	m.orderOutcomes.WithLabelValues(outcome).Inc()
}

func (m *SyncMetrics) AddInventoryResults(bucket string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.inventoryResults.WithLabelValues(bucket).Add(float64(count))
}

// ObservePOSCall records latency and, on failure, the classified error for a POS call.
func (m *SyncMetrics) ObservePOSCall(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.posCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.posCallErrors.WithLabelValues(operation, ClassifySyncErrorType(err)).Inc()
	}
}

// ClassifySyncErrorType returns a low-cardinality error type for logging.
func ClassifySyncErrorType(err error) string {
	switch {
	case err == nil:
		return SyncErrorTypeUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SyncErrorTypeDeadlineExceeded
	case errors.Is(err, posdomain.ErrAuthFailed):
		return SyncErrorTypePOSAuth
	case errors.Is(err, posdomain.ErrLockFailed):
		return SyncErrorTypePOSLock
	case errors.Is(err, posdomain.ErrTransport):
		return SyncErrorTypeTransport
	case errors.Is(err, posdomain.ErrLogicalFailure):
		return SyncErrorTypeLogical
	case db.IsStoreErr(err):
		return SyncErrorTypeDB
	default:
		return SyncErrorTypeUnknown
	}
}

// IsSyncErrorRetryable reports whether the error should be retried on a later pass.
func IsSyncErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if posdomain.IsRetryable(err) {
		return true
	}
	return db.IsStoreErr(err)
}

// ClassifyJobReason maps scheduler job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	switch {
	case err == nil:
		return JobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return JobReasonDeadlineExceeded
	case errors.Is(err, ErrJobLockNotObtained):
		return JobReasonLockNotObtained
	case db.IsDuplicateKeyErr(err):
		return JobReasonUniqueViolation
	case errors.Is(err, posdomain.ErrAuthFailed),
		errors.Is(err, posdomain.ErrLockFailed),
		errors.Is(err, posdomain.ErrTransport),
		errors.Is(err, posdomain.ErrLogicalFailure):
		return JobReasonPOS
	default:
		return JobReasonUnknown
	}
}
