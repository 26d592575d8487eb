package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/posbridge/internal/catalog/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert writes variants keyed by variant_id in one statement. The inventory
// column belongs to reconciliation and is never overwritten here.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, variants []*domain.Variant) error {
	if len(variants) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Unscoped().
		Omit("last_known_inventory").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "variant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"product_id",
				"product_title",
				"variant_title",
				"inventory_item_id",
				"sku",
				"barcode",
				"updated_at",
			}),
		}).
		Create(&variants).Error
}

func (r *repo) FindByVariantID(ctx context.Context, db *gorm.DB, variantID int64) (*domain.Variant, error) {
	var variant domain.Variant
	err := db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Limit(1).
		Find(&variant).Error
	if err != nil {
		return nil, err
	}
	if variant.VariantID == 0 {
		return nil, nil
	}
	return &variant, nil
}

// FindByCode resolves a POS item code, matching barcodes before SKUs.
func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Variant, error) {
	for _, column := range []string{"barcode", "sku"} {
		var variant domain.Variant
		err := db.WithContext(ctx).
			Where(column+" = ?", code).
			Order("variant_id asc").
			Limit(1).
			Find(&variant).Error
		if err != nil {
			return nil, err
		}
		if variant.VariantID != 0 {
			return &variant, nil
		}
	}
	return nil, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Variant, error) {
	var variants []*domain.Variant
	stmt := db.WithContext(ctx).Model(&domain.Variant{})
	if sku := strings.TrimSpace(filter.SKU); sku != "" {
		stmt = stmt.Where("sku = ?", sku)
	}
	if barcode := strings.TrimSpace(filter.Barcode); barcode != "" {
		stmt = stmt.Where("barcode = ?", barcode)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("variant_id asc").Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *repo) UpdateInventoryByCode(ctx context.Context, db *gorm.DB, code string, quantity int, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE catalog_variants
		 SET last_known_inventory = ?, updated_at = ?
		 WHERE (sku = ? OR barcode = ?) AND deleted_at IS NULL`,
		quantity,
		at,
		code,
		code,
	)
	return res.RowsAffected, res.Error
}
