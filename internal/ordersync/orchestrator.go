// Package ordersync delivers storefront orders to the POS exactly once.
package ordersync

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/posbridge/internal/config"
	obscontext "github.com/smallbiznis/posbridge/internal/observability/context"
	obslogger "github.com/smallbiznis/posbridge/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/posbridge/internal/observability/metrics"
	"github.com/smallbiznis/posbridge/internal/observability/tracing"
	posclient "github.com/smallbiznis/posbridge/internal/pos/client"
	posdomain "github.com/smallbiznis/posbridge/internal/pos/domain"
	storefrontdomain "github.com/smallbiznis/posbridge/internal/storefront/domain"
	transactiondomain "github.com/smallbiznis/posbridge/internal/transaction/domain"
	"github.com/smallbiznis/posbridge/internal/translator"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	OutcomePlaced        = "placed"
	OutcomeDuplicate     = "duplicate"
	OutcomeAlreadyPlaced = "already_placed"
	OutcomeFailed        = "failed"
)

var ErrInvalidPayload = errors.New("invalid_order_payload")

// Translator builds the POS document for an order.
type Translator interface {
	TrxNo(order storefrontdomain.Order) (string, error)
	Translate(ctx context.Context, order storefrontdomain.Order) (translator.Document, error)
}

// Outcome reports what a single Sync did.
type Outcome struct {
	TrxNo       string  `json:"trx_no"`
	Transitions []State `json:"transitions"`
	Final       State   `json:"final"`
	Result      string  `json:"result"`
}

// RecoveryResult summarizes one recovery pass.
type RecoveryResult struct {
	RecoveredCount int `json:"recovered_count"`
	FailedCount    int `json:"failed_count"`
}

type Params struct {
	fx.In

	Config       config.Config
	Log          *zap.Logger
	POS          posdomain.Client
	Transactions transactiondomain.Service
	Translator   *translator.Translator
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

type Orchestrator struct {
	log          *zap.Logger
	pos          posdomain.Client
	creds        posdomain.Credentials
	transactions transactiondomain.Service
	translator   Translator
	metrics      *obsmetrics.Metrics
	sync         *obsmetrics.SyncMetrics

	orders  *keyedMutex
	posGate gate
}

func New(p Params) *Orchestrator {
	return NewOrchestrator(p.Log, p.POS, posclient.CredentialsFromConfig(p.Config.POS), p.Transactions, p.Translator, p.Metrics)
}

func NewOrchestrator(
	log *zap.Logger,
	pos posdomain.Client,
	creds posdomain.Credentials,
	transactions transactiondomain.Service,
	tr Translator,
	metrics *obsmetrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		log:          log.Named("ordersync"),
		pos:          pos,
		creds:        creds,
		transactions: transactions,
		translator:   tr,
		metrics:      metrics,
		sync:         obsmetrics.Sync(),
		orders:       newKeyedMutex(),
		posGate:      newGate(),
	}
}

// Sync delivers one raw storefront order to the POS. The transaction record
// is written before the POS is contacted and is marked placed only once the
// POS confirms the sale or reports it as already imported.
func (o *Orchestrator) Sync(ctx context.Context, payload []byte) (Outcome, error) {
	m := newMachine(func(from, to State) {
		o.sync.IncOrderTransition(string(from), string(to))
	})
	outcome := func(result string) Outcome {
		return Outcome{TrxNo: "", Transitions: m.transitions, Final: m.current, Result: result}
	}

	order, err := storefrontdomain.ParseOrder(payload)
	if err != nil {
		return outcome(OutcomeFailed), fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	trxNo, err := o.translator.TrxNo(order)
	if err != nil {
		return outcome(OutcomeFailed), fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	ctx = obscontext.WithTrxNo(ctx, trxNo)
	ctx, span := tracing.StartSpan(ctx, "ordersync.sync", attribute.String("trx_no", trxNo))
	defer span.End()

	log := obslogger.WithContext(ctx, o.log).With(zap.String("order_number", order.OrderNumber.String()))

	unlock, err := o.orders.Lock(ctx, trxNo)
	if err != nil {
		out := outcome(OutcomeFailed)
		out.TrxNo = trxNo
		return out, err
	}
	defer unlock()

	result, err := o.run(ctx, log, m, trxNo, order, payload)
	out := outcome(result)
	out.TrxNo = trxNo
	if m.invalid != nil {
		log.Error("ordersync.transition.invalid", zap.Error(m.invalid))
		err = errors.Join(err, m.invalid)
	}
	if err != nil {
		span.RecordError(tracing.SafeError(err))
	}

	o.sync.IncOrderOutcome(result)
	o.metrics.RecordOrderSynced(ctx, result)
	return out, err
}

func (o *Orchestrator) run(
	ctx context.Context,
	log *zap.Logger,
	m *machine,
	trxNo string,
	order storefrontdomain.Order,
	payload []byte,
) (string, error) {
	record, err := o.transactions.Begin(ctx, transactiondomain.BeginRequest{
		TrxNo:       trxNo,
		OrderNumber: order.OrderNumber.String(),
		Body:        payload,
	})
	if err != nil {
		log.Error("ordersync.record.persist_failed", zap.Error(err))
		return OutcomeFailed, err
	}
	m.advance(StateRecordPersisted)

	if record.Placed {
		m.advance(StateRecordFinalized)
		log.Info("ordersync.already_placed", zap.Int("attempts", record.Attempts))
		return OutcomeAlreadyPlaced, nil
	}

	release, err := o.posGate.Enter(ctx)
	if err != nil {
		return OutcomeFailed, o.fail(ctx, log, m, trxNo, err)
	}
	result, syncErr := o.deliver(ctx, log, m, trxNo, order)
	release()

	if syncErr != nil {
		return OutcomeFailed, o.fail(ctx, log, m, trxNo, syncErr)
	}

	finalize := context.WithoutCancel(ctx)
	if err := o.transactions.MarkPlaced(finalize, trxNo); err != nil {
		log.Error("ordersync.record.mark_placed_failed", zap.Error(err))
		return OutcomeFailed, err
	}
	m.advance(StateRecordFinalized)

	if result == posdomain.ResultDuplicate {
		log.Info("ordersync.duplicate_confirmed")
		return OutcomeDuplicate, nil
	}
	log.Info("ordersync.placed")
	return OutcomePlaced, nil
}

// deliver runs the POS session. Once the session is open the lock is released
// and the session closed exactly once, whatever happens in between.
func (o *Orchestrator) deliver(
	ctx context.Context,
	log *zap.Logger,
	m *machine,
	trxNo string,
	order storefrontdomain.Order,
) (result posdomain.Result, err error) {
	loginID, err := o.pos.Open(ctx, o.creds)
	if err != nil {
		return posdomain.ResultFailure, err
	}
	m.advance(StateSessionOpened)
	session := posdomain.Session{LoginID: loginID}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(err, fmt.Errorf("order sync panicked: %v", r))
			result = posdomain.ResultFailure
		}
		cleanup := context.WithoutCancel(ctx)
		if session.LockID != "" {
			if rerr := o.pos.Release(cleanup, session); rerr != nil {
				log.Warn("ordersync.release_failed", zap.Error(rerr))
			}
			m.advance(StateReleased)
		}
		if cerr := o.pos.Close(cleanup, session.LoginID); cerr != nil {
			log.Warn("ordersync.close_failed", zap.Error(cerr))
		}
		m.advance(StateClosed)
	}()

	lockID, err := o.pos.AcquireLock(ctx, loginID, o.creds.UserID, o.creds.UserPassword)
	if err != nil {
		return posdomain.ResultFailure, err
	}
	session.LockID = lockID
	m.advance(StateLockAcquired)

	doc, err := o.translator.Translate(ctx, order)
	if err != nil {
		return posdomain.ResultFailure, fmt.Errorf("translate order: %w", err)
	}
	data, err := translator.Encode(doc)
	if err != nil {
		return posdomain.ResultFailure, fmt.Errorf("encode document: %w", err)
	}
	if err := o.transactions.RecordDocument(ctx, trxNo, data); err != nil {
		log.Warn("ordersync.record.document_failed", zap.Error(err))
	}
	m.advance(StateTranslated)

	resp, err := o.pos.Submit(ctx, session, posdomain.WindowActionUpdate, posdomain.TargetSales, data)
	if err != nil {
		return posdomain.ResultFailure, err
	}
	m.advance(StateSubmitted)

	result, err = resp.Classify(trxNo)
	switch result {
	case posdomain.ResultSuccess:
		m.advance(StateConfirmed)
	case posdomain.ResultDuplicate:
		m.advance(StateDuplicateConfirmed)
	default:
		m.advance(StateLogicalFailure)
		log.Warn("ordersync.pos_rejected", zap.Error(err))
	}
	return result, err
}

// fail stores the cause on the still unplaced record and finalizes it.
func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, m *machine, trxNo string, cause error) error {
	log.Error("ordersync.failed",
		zap.Error(cause),
		zap.Bool("retryable", posdomain.IsRetryable(cause)),
		zap.String("error_type", obsmetrics.ClassifySyncErrorType(cause)),
	)
	if err := o.transactions.MarkFailed(context.WithoutCancel(ctx), trxNo, cause); err != nil {
		log.Error("ordersync.record.mark_failed_failed", zap.Error(err))
		return errors.Join(cause, err)
	}
	m.advance(StateRecordFinalized)
	return cause
}

// Recover re-drives every unplaced transaction record with its stored order body.
func (o *Orchestrator) Recover(ctx context.Context) (RecoveryResult, error) {
	var result RecoveryResult

	records, err := o.transactions.ListIncomplete(ctx)
	if err != nil {
		return result, err
	}
	if len(records) == 0 {
		return result, nil
	}
	o.log.Info("ordersync.recovery.started", zap.Int("records", len(records)))

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := o.Sync(ctx, []byte(record.Body))
		if err != nil {
			result.FailedCount++
			o.log.Warn("ordersync.recovery.record_failed",
				zap.String("trx_no", record.TrxNo),
				zap.Int("attempts", record.Attempts),
				zap.Error(err),
			)
			continue
		}
		if outcome.TrxNo != record.TrxNo {
			o.log.Warn("ordersync.recovery.trx_no_mismatch",
				zap.String("trx_no", record.TrxNo),
				zap.String("derived_trx_no", outcome.TrxNo),
			)
		}
		result.RecoveredCount++
	}

	o.log.Info("ordersync.recovery.completed",
		zap.Int("recovered", result.RecoveredCount),
		zap.Int("failed", result.FailedCount),
	)
	return result, nil
}
