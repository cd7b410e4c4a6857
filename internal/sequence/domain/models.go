package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Sequence types that are not document kinds.
const (
	TypePayment      = "PAYMENT"
	TypeSalesReturn  = "SALES_RETURN"
	TypeDealerReturn = "DEALER_RETURN"
)

// DocumentSequence is the per (year, type) counter. The row is created at 1 on
// first use and only ever incremented.
type DocumentSequence struct {
	AcademicYearID snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	DocumentType   string       `gorm:"primaryKey;type:varchar(32)"`
	LastNumber     int64        `gorm:"not null"`
	UpdatedAt      time.Time    `gorm:"not null"`
}

func (DocumentSequence) TableName() string { return "document_sequences" }
