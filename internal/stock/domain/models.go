package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

type EventType string

const (
	EventPurchase     EventType = "PURCHASE"
	EventIssue        EventType = "ISSUE"
	EventSalesReturn  EventType = "SALES_RETURN"
	EventDealerReturn EventType = "DEALER_RETURN"
	EventVoidReversal EventType = "VOID_REVERSAL"
)

// ValidChange reports whether qty has the sign required by the event type.
func (t EventType) ValidChange(qty int64) bool {
	switch t {
	case EventPurchase, EventSalesReturn:
		return qty > 0
	case EventIssue, EventDealerReturn:
		return qty < 0
	case EventVoidReversal:
		return qty != 0
	default:
		return false
	}
}

const (
	ReferenceDocument = "document"
	ReferenceReturn   = "return"
)

// Entry is one append-only row of the stock ledger. Available stock is the sum of
// QtyChange per (year, textbook).
type Entry struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	AcademicYearID snowflake.ID `gorm:"not null;index:ix_stock_ledger_year_textbook,priority:1" json:"academic_year_id"`
	TextbookID     snowflake.ID `gorm:"not null;index:ix_stock_ledger_year_textbook,priority:2" json:"textbook_id"`
	QtyChange      int64        `gorm:"not null" json:"qty_change"`
	EventType      EventType    `gorm:"type:varchar(24);not null" json:"event_type"`
	ReferenceType  string       `gorm:"type:varchar(24);not null" json:"reference_type"`
	ReferenceID    snowflake.ID `gorm:"not null;index" json:"reference_id"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (Entry) TableName() string { return "stock_ledger_entries" }

// Balance is the projection of Σ QtyChange kept in step with every append. It is the
// row-lock target for check-then-insert and is never read as truth.
type Balance struct {
	AcademicYearID snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	TextbookID     snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Quantity       int64        `gorm:"not null"`
	UpdatedAt      time.Time    `gorm:"not null"`
}

func (Balance) TableName() string { return "stock_balances" }

// Drift is a projection row that disagrees with the ledger.
type Drift struct {
	TextbookID snowflake.ID `json:"textbook_id"`
	Projected  int64        `json:"projected"`
	Ledger     int64        `json:"ledger"`
}

// InsufficientStockError reports the first textbook whose request exceeds stock.
type InsufficientStockError struct {
	TextbookID snowflake.ID
	Available  int64
	Requested  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: textbook %s available %d requested %d",
		ErrInsufficientStock, e.TextbookID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
