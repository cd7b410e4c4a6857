package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	academicyeardomain "github.com/smallbiznis/bookledger/internal/academicyear/domain"
	"gorm.io/gorm"
)

type ItemInput struct {
	TextbookID snowflake.ID
	Quantity   int64
}

type CreateInput struct {
	ParentDocumentID snowflake.ID
	Date             time.Time
	Items            []ItemInput
	Notes            string
	ActorID          string
}

type Service interface {
	// Create locks the parent document, checks every line against the returnable
	// remainder and persists the return with its stock events inside tx.
	Create(ctx context.Context, tx *gorm.DB, scope academicyeardomain.AcademicYear, in CreateInput) (Return, error)
	Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (Return, error)
	// Returned sums quantities already returned against parent per textbook.
	Returned(ctx context.Context, db *gorm.DB, parentDocumentID snowflake.ID) (map[snowflake.ID]int64, error)
	ListByFlowGroup(ctx context.Context, db *gorm.DB, flowGroupID snowflake.ID) ([]Return, error)
}

var (
	ErrNoItems             = errors.New("no_items")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidTextbook     = errors.New("invalid_textbook")
	ErrParentNotFound      = errors.New("parent_document_not_found")
	ErrInvalidParentKind   = errors.New("invalid_parent_document_kind")
	ErrParentVoided        = errors.New("parent_document_voided")
	ErrReturnNotFound      = errors.New("return_not_found")
	ErrReturnExceedsIssued = errors.New("return_exceeds_issued")
)
