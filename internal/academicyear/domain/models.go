package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// OpenSlot is the value held by open_slot while a year is OPEN. The unique index on
// the column admits a single OPEN year; closed years carry NULL.
const OpenSlot = "OPEN"

type AcademicYear struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	StartDate time.Time    `gorm:"not null" json:"start_date"`
	EndDate   time.Time    `gorm:"not null" json:"end_date"`
	Status    Status       `gorm:"type:varchar(16);not null" json:"status"`
	OpenSlot  *string      `gorm:"type:varchar(8);uniqueIndex:ux_academic_years_open_slot" json:"-"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
}

func (AcademicYear) TableName() string { return "academic_years" }

func (y AcademicYear) IsOpen() bool { return y.Status == StatusOpen }

// EnsureCurrent rejects records that belong to a year other than the resolved scope.
func EnsureCurrent(scope AcademicYear, yearID snowflake.ID) error {
	if !scope.IsOpen() || scope.ID != yearID {
		return ErrPeriodClosed
	}
	return nil
}
