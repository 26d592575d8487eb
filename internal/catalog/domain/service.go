package domain

import (
	"context"
	"errors"
)

type RefreshResult struct {
	Products int `json:"products"`
	Variants int `json:"variants"`
}

type ListRequest struct {
	SKU     string
	Barcode string
	Limit   int
}

type Service interface {
	Refresh(ctx context.Context) (RefreshResult, error)
	FindByVariantID(ctx context.Context, variantID int64) (*Variant, error)
	FindByCode(ctx context.Context, code string) (Variant, error)
	List(ctx context.Context, req ListRequest) ([]Variant, error)
	RecordInventory(ctx context.Context, levels map[string]int) (int64, error)
}

var (
	ErrNotFound       = errors.New("catalog_variant_not_found")
	ErrInvalidCode    = errors.New("invalid_item_code")
	ErrInvalidVariant = errors.New("invalid_variant_id")
)
