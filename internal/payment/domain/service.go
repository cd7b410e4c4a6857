package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	academicyeardomain "github.com/smallbiznis/bookledger/internal/academicyear/domain"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	"gorm.io/gorm"
)

type RecordInput struct {
	Amount  decimal.Decimal
	Mode    Mode
	Note    string
	PaidAt  time.Time
	ActorID string
}

type ReverseInput struct {
	PaymentID snowflake.ID
	ActorID   string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Payment, error)
	ListByFlowGroup(ctx context.Context, db *gorm.DB, flowGroupID snowflake.ID, status Status) ([]Payment, error)
	MarkReversed(ctx context.Context, tx *gorm.DB, id snowflake.ID, actorID string, at time.Time) (bool, error)
}

type Service interface {
	Record(ctx context.Context, tx *gorm.DB, scope academicyeardomain.AcademicYear, group flowgroupdomain.FlowGroup, in RecordInput) (Payment, error)
	Reverse(ctx context.Context, tx *gorm.DB, scope academicyeardomain.AcademicYear, in ReverseInput) (Payment, error)
	Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (Payment, error)
}

var (
	ErrInvalidAmount             = errors.New("invalid_amount")
	ErrInvalidMode               = errors.New("invalid_payment_mode")
	ErrBankReferenceRequired     = errors.New("bank_reference_required")
	ErrPaymentNotFound           = errors.New("payment_not_found")
	ErrAlreadyReversed           = errors.New("already_reversed")
	ErrPaymentExceedsOutstanding = errors.New("payment_exceeds_outstanding")
)
