package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Next increments the counter inside tx. The row lock taken by the upsert is held
	// until tx ends and a rollback discards the increment.
	Next(ctx context.Context, tx *gorm.DB, yearID snowflake.ID, docType string) (int64, error)
	// Format renders n with the configured prefix for docType.
	Format(docType string, n int64) (string, error)
	// Peek returns the last issued number without incrementing it.
	Peek(ctx context.Context, db *gorm.DB, yearID snowflake.ID, docType string) (int64, error)
}

var (
	ErrUnknownDocumentType = errors.New("unknown_document_type")
	ErrInvalidAcademicYear = errors.New("invalid_academic_year")
	ErrInvalidNumber       = errors.New("invalid_sequence_number")
)
