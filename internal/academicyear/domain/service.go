package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OpenRequest struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

type Service interface {
	// CurrentScope resolves the single OPEN year. It reads through db so callers can
	// resolve it inside their transaction.
	CurrentScope(ctx context.Context, db *gorm.DB) (AcademicYear, error)
	Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (AcademicYear, error)
	Open(ctx context.Context, req OpenRequest) (AcademicYear, error)
	Close(ctx context.Context, id snowflake.ID) (AcademicYear, error)
}

var (
	ErrNoOpenPeriod      = errors.New("no_open_period")
	ErrPeriodClosed      = errors.New("period_closed")
	ErrPeriodAlreadyOpen = errors.New("period_already_open")
	ErrNotFound          = errors.New("academic_year_not_found")
	ErrInvalidName       = errors.New("invalid_academic_year_name")
	ErrInvalidDateRange  = errors.New("invalid_academic_year_range")
)
