package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ListFilter struct {
	SKU     string
	Barcode string
	Limit   int
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, variants []*Variant) error
	FindByVariantID(ctx context.Context, db *gorm.DB, variantID int64) (*Variant, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Variant, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Variant, error)
	UpdateInventoryByCode(ctx context.Context, db *gorm.DB, code string, quantity int, at time.Time) (int64, error)
}
