package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/posbridge/internal/transaction/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert inserts the record or refreshes the stored body of an existing one,
// counting the attempt. The placed flag of an existing record is left alone.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, record *domain.TransactionRecord) error {
	return db.WithContext(ctx).
		Unscoped().
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "trx_no"}},
			DoUpdates: clause.Assignments(map[string]any{
				"order_number": record.OrderNumber,
				"body":         record.Body,
				"attempts":     gorm.Expr("transaction_records.attempts + 1"),
				"updated_at":   record.UpdatedAt,
				"deleted_at":   nil,
			}),
		}).
		Create(record).Error
}

func (r *repo) FindByTrxNo(ctx context.Context, db *gorm.DB, trxNo string) (*domain.TransactionRecord, error) {
	var record domain.TransactionRecord
	err := db.WithContext(ctx).
		Where("trx_no = ?", trxNo).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.TrxNo == "" {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.TransactionRecord, error) {
	var records []*domain.TransactionRecord
	stmt := db.WithContext(ctx).Model(&domain.TransactionRecord{})
	if filter.Placed != nil {
		stmt = stmt.Where("placed = ?", *filter.Placed)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("created_at asc, trx_no asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) MarkPlaced(ctx context.Context, db *gorm.DB, trxNo string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transaction_records
		 SET placed = ?, last_error = NULL, updated_at = ?
		 WHERE trx_no = ? AND deleted_at IS NULL`,
		true,
		at,
		trxNo,
	).Error
}

// RecordDocument keeps the last POS document submitted for the record.
func (r *repo) RecordDocument(ctx context.Context, db *gorm.DB, trxNo string, document []byte, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.TransactionRecord{}).
		Where("trx_no = ?", trxNo).
		Updates(map[string]any{
			"pos_document": datatypes.JSON(document),
			"updated_at":   at,
		}).Error
}

func (r *repo) RecordFailure(ctx context.Context, db *gorm.DB, trxNo, message string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE transaction_records
		 SET last_error = ?, updated_at = ?
		 WHERE trx_no = ? AND placed = ? AND deleted_at IS NULL`,
		message,
		at,
		trxNo,
		false,
	).Error
}

// DeletePlaced soft-deletes a record only once it has been placed.
func (r *repo) DeletePlaced(ctx context.Context, db *gorm.DB, trxNo string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE transaction_records
		 SET deleted_at = ?
		 WHERE trx_no = ? AND placed = ? AND deleted_at IS NULL`,
		at,
		trxNo,
		true,
	)
	return res.RowsAffected, res.Error
}
