package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
)

type Kind string

const (
	KindSalesReturn  Kind = "SALES_RETURN"
	KindDealerReturn Kind = "DEALER_RETURN"
)

// KindForParent maps a parent document kind to the return kind it admits.
func KindForParent(parent documentdomain.Kind) (Kind, bool) {
	switch {
	case parent.IssuesStock():
		return KindSalesReturn, true
	case parent.ReceivesStock():
		return KindDealerReturn, true
	default:
		return "", false
	}
}

// Return books goods coming back against one parent document. Items are valued at
// the unit price of the original line.
type Return struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	AcademicYearID   snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_returns_number,priority:1" json:"academic_year_id"`
	FlowGroupID      snowflake.ID    `gorm:"not null;index" json:"flow_group_id"`
	Kind             Kind            `gorm:"type:varchar(24);not null;uniqueIndex:ux_returns_number,priority:2" json:"kind"`
	ParentDocumentID snowflake.ID    `gorm:"not null;index" json:"parent_document_id"`
	SequenceNumber   int64           `gorm:"not null;uniqueIndex:ux_returns_number,priority:3" json:"sequence_number"`
	ReturnNo         string          `gorm:"type:varchar(64);not null" json:"return_no"`
	ReturnDate       time.Time       `gorm:"not null" json:"return_date"`
	TotalQuantity    int64           `gorm:"not null" json:"total_quantity"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"`
	Notes            string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy        string          `gorm:"type:varchar(64)" json:"created_by,omitempty"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
	Items            []Item          `gorm:"foreignKey:ReturnID" json:"items,omitempty"`
}

func (Return) TableName() string { return "returns" }

type Item struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	ReturnID         snowflake.ID    `gorm:"not null;index" json:"return_id"`
	ParentDocumentID snowflake.ID    `gorm:"not null;index:ix_return_items_parent_textbook,priority:1" json:"parent_document_id"`
	TextbookID       snowflake.ID    `gorm:"not null;index:ix_return_items_parent_textbook,priority:2" json:"textbook_id"`
	QtyReturned      int64           `gorm:"not null" json:"qty_returned"`
	UnitPrice        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Amount           decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
}

func (Item) TableName() string { return "return_items" }

// ReturnExceedsIssuedError carries the returnable remainder for the textbook.
type ReturnExceedsIssuedError struct {
	TextbookID snowflake.ID
	Max        int64
	Requested  int64
}

func (e *ReturnExceedsIssuedError) Error() string {
	return fmt.Sprintf("%s: textbook %s max %d requested %d",
		ErrReturnExceedsIssued, e.TextbookID, e.Max, e.Requested)
}

func (e *ReturnExceedsIssuedError) Unwrap() error { return ErrReturnExceedsIssued }
