package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Variant mirrors one storefront product variant.
type Variant struct {
	VariantID          int64          `gorm:"column:variant_id;primaryKey;autoIncrement:false" json:"variant_id"`
	ProductID          int64          `gorm:"column:product_id;not null;index" json:"product_id"`
	ProductTitle       *string        `gorm:"column:product_title" json:"product_title,omitempty"`
	VariantTitle       *string        `gorm:"column:variant_title" json:"variant_title,omitempty"`
	InventoryItemID    int64          `gorm:"column:inventory_item_id;not null" json:"inventory_item_id"`
	SKU                *string        `gorm:"column:sku;size:128;index" json:"sku,omitempty"`
	Barcode            *string        `gorm:"column:barcode;size:128;index" json:"barcode,omitempty"`
	LastKnownInventory *int           `gorm:"column:last_known_inventory" json:"last_known_inventory,omitempty"`
	CreatedAt          time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Variant) TableName() string {
	return "catalog_variants"
}

// ItemCode returns the POS item code for the variant, preferring the barcode.
func (v Variant) ItemCode() string {
	if code := trimmed(v.Barcode); code != "" {
		return code
	}
	return trimmed(v.SKU)
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
