package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookledger/internal/academicyear/domain"
	"github.com/smallbiznis/bookledger/internal/clock"
	pkgdb "github.com/smallbiznis/bookledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("academicyear.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) CurrentScope(ctx context.Context, db *gorm.DB) (domain.AcademicYear, error) {
	var year domain.AcademicYear
	err := db.WithContext(ctx).
		Where("open_slot = ? AND status = ?", domain.OpenSlot, domain.StatusOpen).
		Take(&year).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.AcademicYear{}, domain.ErrNoOpenPeriod
	}
	if err != nil {
		return domain.AcademicYear{}, err
	}
	return year, nil
}

func (s *Service) Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (domain.AcademicYear, error) {
	var year domain.AcademicYear
	err := db.WithContext(ctx).Where("id = ?", id).Take(&year).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.AcademicYear{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AcademicYear{}, err
	}
	return year, nil
}

func (s *Service) Open(ctx context.Context, req domain.OpenRequest) (domain.AcademicYear, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.AcademicYear{}, domain.ErrInvalidName
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() || !req.EndDate.After(req.StartDate) {
		return domain.AcademicYear{}, domain.ErrInvalidDateRange
	}

	slot := domain.OpenSlot
	year := domain.AcademicYear{
		ID:        s.genID.Generate(),
		Name:      name,
		StartDate: req.StartDate.UTC(),
		EndDate:   req.EndDate.UTC(),
		Status:    domain.StatusOpen,
		OpenSlot:  &slot,
		CreatedAt: s.clock.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&year).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.AcademicYear{}, domain.ErrPeriodAlreadyOpen
		}
		return domain.AcademicYear{}, err
	}

	s.log.Info("academic year opened",
		zap.String("academic_year_id", year.ID.String()),
		zap.String("name", year.Name),
	)
	return year, nil
}

func (s *Service) Close(ctx context.Context, id snowflake.ID) (domain.AcademicYear, error) {
	var closed domain.AcademicYear
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		year, err := s.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if !year.IsOpen() {
			return domain.ErrPeriodClosed
		}

		now := s.clock.Now().UTC()
		res := tx.WithContext(ctx).Model(&domain.AcademicYear{}).
			Where("id = ? AND status = ?", id, domain.StatusOpen).
			Updates(map[string]any{
				"status":    domain.StatusClosed,
				"open_slot": nil,
				"closed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrPeriodClosed
		}

		year.Status = domain.StatusClosed
		year.OpenSlot = nil
		year.ClosedAt = &now
		closed = year
		return nil
	})
	if err != nil {
		return domain.AcademicYear{}, err
	}

	s.log.Info("academic year closed", zap.String("academic_year_id", id.String()))
	return closed, nil
}
