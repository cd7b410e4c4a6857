package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
)

// Direction is seen from the business: RECEIVED from schools and companies, MADE to
// dealers.
type Direction string

const (
	DirectionReceived Direction = "RECEIVED"
	DirectionMade     Direction = "MADE"
)

// DirectionFor derives the payment direction from the partner type.
func DirectionFor(t flowgroupdomain.PartnerType) Direction {
	if t == flowgroupdomain.PartnerDealer {
		return DirectionMade
	}
	return DirectionReceived
}

type Mode string

const (
	ModeCash Mode = "CASH"
	ModeUPI  Mode = "UPI"
	ModeBank Mode = "BANK"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeCash, ModeUPI, ModeBank:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPosted   Status = "POSTED"
	StatusReversed Status = "REVERSED"
)

// Payment amounts are always positive; Direction gives the side.
type Payment struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	AcademicYearID snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_payments_number,priority:1" json:"academic_year_id"`
	FlowGroupID    snowflake.ID    `gorm:"not null;index" json:"flow_group_id"`
	SequenceNumber int64           `gorm:"not null;uniqueIndex:ux_payments_number,priority:2" json:"sequence_number"`
	ReceiptNo      string          `gorm:"type:varchar(64);not null" json:"receipt_no"`
	Direction      Direction       `gorm:"type:varchar(16);not null" json:"direction"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Mode           Mode            `gorm:"type:varchar(8);not null" json:"mode"`
	Status         Status          `gorm:"type:varchar(16);not null" json:"status"`
	Note           string          `gorm:"type:text" json:"note,omitempty"`
	PaidAt         time.Time       `gorm:"not null" json:"paid_at"`
	RecordedBy     string          `gorm:"type:varchar(64)" json:"recorded_by,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	ReversedBy     *string         `gorm:"type:varchar(64)" json:"reversed_by,omitempty"`
	ReversedAt     *time.Time      `json:"reversed_at,omitempty"`
}

func (Payment) TableName() string { return "payments" }

func (p Payment) IsReversed() bool { return p.Status == StatusReversed }

// PaymentExceedsOutstandingError rejects a dealer payment larger than what is owed.
type PaymentExceedsOutstandingError struct {
	Outstanding decimal.Decimal
	Amount      decimal.Decimal
}

func (e *PaymentExceedsOutstandingError) Error() string {
	return fmt.Sprintf("%s: outstanding %s amount %s",
		ErrPaymentExceedsOutstanding, e.Outstanding.StringFixed(2), e.Amount.StringFixed(2))
}

func (e *PaymentExceedsOutstandingError) Unwrap() error { return ErrPaymentExceedsOutstanding }
