package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TransactionRecord is the durable trace of one storefront order being pushed
// to the POS. It is written before the POS is contacted.
type TransactionRecord struct {
	TrxNo       string         `gorm:"column:trx_no;primaryKey;size:32" json:"trx_no"`
	OrderNumber string         `gorm:"column:order_number;size:64;not null;index" json:"order_number"`
	Body        datatypes.JSON `gorm:"column:body;not null" json:"body"`
	PosDocument datatypes.JSON `gorm:"column:pos_document" json:"pos_document,omitempty"`
	Placed      bool           `gorm:"column:placed;not null;default:false;index" json:"placed"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError   *string        `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (TransactionRecord) TableName() string {
	return "transaction_records"
}
