package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookledger/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return r.find(db.WithContext(ctx), id)
}

func (r *repo) FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return r.find(tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repo) find(stmt *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	err := stmt.Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListByFlowGroup(ctx context.Context, db *gorm.DB, flowGroupID snowflake.ID, status domain.Status) ([]domain.Payment, error) {
	var items []domain.Payment
	stmt := db.WithContext(ctx).Where("flow_group_id = ?", flowGroupID)
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	if err := stmt.Order("paid_at asc, created_at asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkReversed flips POSTED to REVERSED. It reports false when the row was not
// POSTED.
func (r *repo) MarkReversed(ctx context.Context, tx *gorm.DB, id snowflake.ID, actorID string, at time.Time) (bool, error) {
	res := tx.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status = ?", id, domain.StatusPosted).
		Updates(map[string]any{
			"status":      domain.StatusReversed,
			"reversed_by": actorID,
			"reversed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
