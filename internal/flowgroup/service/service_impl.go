package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookledger/internal/clock"
	"github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	pkgdb "github.com/smallbiznis/bookledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("flowgroup.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Open(ctx context.Context, tx *gorm.DB, partner domain.PartnerRef, yearID snowflake.ID) (domain.FlowGroup, error) {
	if err := partner.Validate(); err != nil {
		return domain.FlowGroup{}, err
	}
	if yearID == 0 {
		return domain.FlowGroup{}, domain.ErrInvalidYear
	}

	group, found, err := s.findOpen(ctx, tx, partner, yearID)
	if err != nil || found {
		return group, err
	}

	now := s.clock.Now().UTC()
	key := partner.Key()
	candidate := domain.FlowGroup{
		ID:             s.genID.Generate(),
		AcademicYearID: yearID,
		PartnerType:    partner.Type,
		Status:         domain.StatusOpen,
		OpenKey:        &key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	partnerID := partner.ID
	switch partner.Type {
	case domain.PartnerSchool:
		candidate.SchoolID = &partnerID
	case domain.PartnerCompany:
		candidate.CompanyID = &partnerID
	case domain.PartnerDealer:
		candidate.DealerID = &partnerID
	}

	// A racing request may insert the same open_key first. The savepoint keeps
	// the outer transaction usable after the unique violation.
	err = pkgdb.Savepoint(tx, func(sp *gorm.DB) error {
		return sp.WithContext(ctx).Create(&candidate).Error
	})
	if err == nil {
		s.log.Debug("flow group opened",
			zap.String("flow_group_id", candidate.ID.String()),
			zap.String("partner", key),
		)
		return candidate, nil
	}
	if !pkgdb.IsDuplicateKeyErr(err) {
		return domain.FlowGroup{}, err
	}

	group, found, err = s.findOpen(ctx, tx, partner, yearID)
	if err != nil {
		return domain.FlowGroup{}, err
	}
	if !found {
		return domain.FlowGroup{}, pkgdb.ErrConcurrentConflict
	}
	return group, nil
}

func (s *Service) findOpen(ctx context.Context, db *gorm.DB, partner domain.PartnerRef, yearID snowflake.ID) (domain.FlowGroup, bool, error) {
	var group domain.FlowGroup
	err := db.WithContext(ctx).
		Where("academic_year_id = ? AND open_key = ?", yearID, partner.Key()).
		Take(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.FlowGroup{}, false, nil
	}
	if err != nil {
		return domain.FlowGroup{}, false, err
	}
	return group, true, nil
}

func (s *Service) Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (domain.FlowGroup, error) {
	return s.get(ctx, db.WithContext(ctx), id)
}

func (s *Service) GetForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.FlowGroup, error) {
	return s.get(ctx, tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *Service) get(_ context.Context, stmt *gorm.DB, id snowflake.ID) (domain.FlowGroup, error) {
	var group domain.FlowGroup
	err := stmt.Where("id = ?", id).Take(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.FlowGroup{}, domain.ErrFlowGroupNotFound
	}
	if err != nil {
		return domain.FlowGroup{}, err
	}
	return group, nil
}

func (s *Service) FindLatest(ctx context.Context, db *gorm.DB, partner domain.PartnerRef, yearID snowflake.ID) (domain.FlowGroup, error) {
	if err := partner.Validate(); err != nil {
		return domain.FlowGroup{}, err
	}

	group, found, err := s.findOpen(ctx, db, partner, yearID)
	if err != nil || found {
		return group, err
	}

	err = db.WithContext(ctx).
		Where("academic_year_id = ? AND "+domain.PartnerColumn(partner.Type)+" = ?", yearID, partner.ID).
		Order("created_at desc, id desc").
		Take(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.FlowGroup{}, domain.ErrFlowGroupNotFound
	}
	if err != nil {
		return domain.FlowGroup{}, err
	}
	return group, nil
}

func (s *Service) Settle(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.FlowGroup, error) {
	group, err := s.GetForUpdate(ctx, tx, id)
	if err != nil {
		return domain.FlowGroup{}, err
	}
	if !group.IsOpen() {
		return domain.FlowGroup{}, domain.ErrFlowGroupSettled
	}

	now := s.clock.Now().UTC()
	if err := tx.WithContext(ctx).Model(&domain.FlowGroup{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.StatusSettled,
			"open_key":   nil,
			"settled_at": now,
			"updated_at": now,
		}).Error; err != nil {
		return domain.FlowGroup{}, err
	}

	group.Status = domain.StatusSettled
	group.OpenKey = nil
	group.SettledAt = &now
	group.UpdatedAt = now

	s.log.Info("flow group settled", zap.String("flow_group_id", id.String()))
	return group, nil
}

func (s *Service) Reopen(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.FlowGroup, error) {
	group, err := s.GetForUpdate(ctx, tx, id)
	if err != nil {
		return domain.FlowGroup{}, err
	}
	if group.IsOpen() {
		return group, nil
	}

	key := group.Partner().Key()
	now := s.clock.Now().UTC()
	err = pkgdb.Savepoint(tx, func(sp *gorm.DB) error {
		return sp.WithContext(ctx).Model(&domain.FlowGroup{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":     domain.StatusOpen,
				"open_key":   key,
				"settled_at": nil,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.FlowGroup{}, domain.ErrFlowGroupConflict
		}
		return domain.FlowGroup{}, err
	}

	group.Status = domain.StatusOpen
	group.OpenKey = &key
	group.SettledAt = nil
	group.UpdatedAt = now

	s.log.Info("flow group reopened", zap.String("flow_group_id", id.String()))
	return group, nil
}
