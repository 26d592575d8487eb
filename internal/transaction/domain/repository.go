package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ListFilter struct {
	Placed *bool
	Limit  int
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, record *TransactionRecord) error
	FindByTrxNo(ctx context.Context, db *gorm.DB, trxNo string) (*TransactionRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*TransactionRecord, error)
	MarkPlaced(ctx context.Context, db *gorm.DB, trxNo string, at time.Time) error
	RecordDocument(ctx context.Context, db *gorm.DB, trxNo string, document []byte, at time.Time) error
	RecordFailure(ctx context.Context, db *gorm.DB, trxNo, message string, at time.Time) error
	DeletePlaced(ctx context.Context, db *gorm.DB, trxNo string, at time.Time) (int64, error)
}
