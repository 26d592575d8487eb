package domain

import (
	"context"
	"errors"
)

type BeginRequest struct {
	TrxNo       string
	OrderNumber string
	Body        []byte
}

type ListRequest struct {
	Placed *bool
	Limit  int
}

type Service interface {
	Begin(ctx context.Context, req BeginRequest) (TransactionRecord, error)
	MarkPlaced(ctx context.Context, trxNo string) error
	MarkFailed(ctx context.Context, trxNo string, cause error) error
	RecordDocument(ctx context.Context, trxNo string, document string) error
	Get(ctx context.Context, trxNo string) (TransactionRecord, error)
	List(ctx context.Context, req ListRequest) ([]TransactionRecord, error)
	ListIncomplete(ctx context.Context) ([]TransactionRecord, error)
	Delete(ctx context.Context, trxNo string) error
}

var (
	ErrInvalidTrxNo    = errors.New("invalid_trx_no")
	ErrInvalidBody     = errors.New("invalid_order_body")
	ErrInvalidDocument = errors.New("invalid_pos_document")
	ErrNotFound        = errors.New("transaction_record_not_found")
	ErrRecordNotPlaced = errors.New("transaction_record_not_placed")
)
