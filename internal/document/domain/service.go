package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	academicyeardomain "github.com/smallbiznis/bookledger/internal/academicyear/domain"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	"gorm.io/gorm"
)

type CreateInput struct {
	Kind    Kind
	Date    time.Time
	Items   []ItemInput
	Notes   string
	ActorID string
}

type VoidInput struct {
	DocumentID snowflake.ID
	ActorID    string
	Reason     string
}

type Service interface {
	// Create prices, validates and persists a document with its items and stock
	// events inside tx. Nothing is written when validation fails.
	Create(ctx context.Context, tx *gorm.DB, scope academicyeardomain.AcademicYear, group flowgroupdomain.FlowGroup, in CreateInput) (Document, error)
	Void(ctx context.Context, tx *gorm.DB, scope academicyeardomain.AcademicYear, in VoidInput) (Document, error)
	Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (Document, error)
	// GetForUpdate loads the document with items and locks its row until tx ends.
	GetForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Document, error)
	ListByFlowGroup(ctx context.Context, db *gorm.DB, flowGroupID snowflake.ID) ([]Document, error)
}

var (
	ErrNoItems            = errors.New("no_items")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidUnitPrice   = errors.New("invalid_unit_price")
	ErrInvalidDiscount    = errors.New("invalid_discount")
	ErrTextbookRequired   = errors.New("textbook_required")
	ErrNonPositiveTotal   = errors.New("non_positive_total")
	ErrInvalidKind        = errors.New("invalid_document_kind")
	ErrKindNotAllowed     = errors.New("document_kind_not_allowed_for_partner")
	ErrDocumentNotFound   = errors.New("document_not_found")
	ErrAlreadyVoided      = errors.New("already_voided")
	ErrDocumentHasReturns = errors.New("document_has_returns")
)
