package service

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/smallbiznis/posbridge/internal/clock"
	"github.com/smallbiznis/posbridge/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxErrorLength = 1024

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("transaction.service"),
		repo:  p.Repo,
		clock: p.Clock,
	}
}

// Begin persists the attempt before the POS is contacted.
func (s *Service) Begin(ctx context.Context, req domain.BeginRequest) (domain.TransactionRecord, error) {
	trxNo := strings.TrimSpace(req.TrxNo)
	if trxNo == "" {
		return domain.TransactionRecord{}, domain.ErrInvalidTrxNo
	}
	if len(req.Body) == 0 || !json.Valid(req.Body) {
		return domain.TransactionRecord{}, domain.ErrInvalidBody
	}

	now := s.clock.Now()
	record := domain.TransactionRecord{
		TrxNo:       trxNo,
		OrderNumber: strings.TrimSpace(req.OrderNumber),
		Body:        datatypes.JSON(req.Body),
		Attempts:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Upsert(ctx, s.db, &record); err != nil {
		return domain.TransactionRecord{}, err
	}

	stored, err := s.repo.FindByTrxNo(ctx, s.db, trxNo)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	if stored == nil {
		return domain.TransactionRecord{}, domain.ErrNotFound
	}
	return *stored, nil
}

func (s *Service) MarkPlaced(ctx context.Context, trxNo string) error {
	if strings.TrimSpace(trxNo) == "" {
		return domain.ErrInvalidTrxNo
	}
	return s.repo.MarkPlaced(ctx, s.db, trxNo, s.clock.Now())
}

// RecordDocument stores the encoded POS document submitted for trxNo.
func (s *Service) RecordDocument(ctx context.Context, trxNo string, document string) error {
	if strings.TrimSpace(trxNo) == "" {
		return domain.ErrInvalidTrxNo
	}
	if !json.Valid([]byte(document)) {
		return domain.ErrInvalidDocument
	}
	return s.repo.RecordDocument(ctx, s.db, trxNo, []byte(document), s.clock.Now())
}

// MarkFailed stores the last failure message. The record stays unplaced.
func (s *Service) MarkFailed(ctx context.Context, trxNo string, cause error) error {
	if strings.TrimSpace(trxNo) == "" {
		return domain.ErrInvalidTrxNo
	}
	message := "unknown"
	if cause != nil {
		message = cause.Error()
	}
	return s.repo.RecordFailure(ctx, s.db, trxNo, truncateMessage(message, maxErrorLength), s.clock.Now())
}

// truncateMessage caps message at max bytes without splitting a rune.
func truncateMessage(message string, max int) string {
	message = strings.ToValidUTF8(message, "?")
	if len(message) <= max {
		return message
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

func (s *Service) Get(ctx context.Context, trxNo string) (domain.TransactionRecord, error) {
	trxNo = strings.TrimSpace(trxNo)
	if trxNo == "" {
		return domain.TransactionRecord{}, domain.ErrInvalidTrxNo
	}
	record, err := s.repo.FindByTrxNo(ctx, s.db, trxNo)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	if record == nil {
		return domain.TransactionRecord{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.TransactionRecord, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{Placed: req.Placed, Limit: req.Limit})
	if err != nil {
		return nil, err
	}
	records := make([]domain.TransactionRecord, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}
	return records, nil
}

func (s *Service) ListIncomplete(ctx context.Context) ([]domain.TransactionRecord, error) {
	placed := false
	return s.List(ctx, domain.ListRequest{Placed: &placed})
}

// Delete soft-deletes a placed record. Unplaced records are the only evidence
// of an unconfirmed sale and cannot be removed.
func (s *Service) Delete(ctx context.Context, trxNo string) error {
	record, err := s.Get(ctx, trxNo)
	if err != nil {
		return err
	}
	if !record.Placed {
		return domain.ErrRecordNotPlaced
	}

	affected, err := s.repo.DeletePlaced(ctx, s.db, record.TrxNo, s.clock.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRecordNotPlaced
	}
	s.log.Info("transaction.record.deleted", zap.String("trx_no", record.TrxNo))
	return nil
}
