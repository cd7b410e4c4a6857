package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookledger/internal/clock"
	"github.com/smallbiznis/bookledger/internal/config"
	"github.com/smallbiznis/bookledger/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Policy *config.PolicyHolder
}

type Service struct {
	log    *zap.Logger
	clock  clock.Clock
	policy *config.PolicyHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("sequence.service"),
		clock:  p.Clock,
		policy: p.Policy,
	}
}

func (s *Service) Next(ctx context.Context, tx *gorm.DB, yearID snowflake.ID, docType string) (int64, error) {
	if yearID == 0 {
		return 0, domain.ErrInvalidAcademicYear
	}
	docType = strings.ToUpper(strings.TrimSpace(docType))
	if _, ok := s.policy.NumberPrefix(docType); !ok {
		return 0, domain.ErrUnknownDocumentType
	}

	now := s.clock.Now().UTC()
	row := domain.DocumentSequence{
		AcademicYearID: yearID,
		DocumentType:   docType,
		LastNumber:     1,
		UpdatedAt:      now,
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "academic_year_id"}, {Name: "document_type"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_number": gorm.Expr("document_sequences.last_number + 1"),
			"updated_at":  now,
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, err
	}

	var current domain.DocumentSequence
	if err := tx.WithContext(ctx).
		Where("academic_year_id = ? AND document_type = ?", yearID, docType).
		Take(&current).Error; err != nil {
		return 0, err
	}
	return current.LastNumber, nil
}

func (s *Service) Peek(ctx context.Context, db *gorm.DB, yearID snowflake.ID, docType string) (int64, error) {
	var current domain.DocumentSequence
	err := db.WithContext(ctx).
		Where("academic_year_id = ? AND document_type = ?", yearID, strings.ToUpper(strings.TrimSpace(docType))).
		Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return current.LastNumber, nil
}

func (s *Service) Format(docType string, n int64) (string, error) {
	if n <= 0 {
		return "", domain.ErrInvalidNumber
	}
	prefix, ok := s.policy.NumberPrefix(docType)
	if !ok {
		return "", domain.ErrUnknownDocumentType
	}
	return prefix + strconv.FormatInt(n, 10), nil
}
