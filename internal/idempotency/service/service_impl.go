package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookledger/internal/clock"
	"github.com/smallbiznis/bookledger/internal/idempotency/domain"
	pkgdb "github.com/smallbiznis/bookledger/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const maxKeyLength = 128

type Params struct {
	fx.In

	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{genID: p.GenID, clock: p.Clock}
}

func (s *Service) Lookup(ctx context.Context, db *gorm.DB, operation, key string) (snowflake.ID, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, false, nil
	}

	var row domain.Key
	err := db.WithContext(ctx).
		Where("operation = ? AND idempotency_key = ?", operation, key).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.ResourceID, true, nil
}

func (s *Service) Save(ctx context.Context, tx *gorm.DB, operation, key string, resourceID snowflake.ID) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if len(key) > maxKeyLength || operation == "" || resourceID == 0 {
		return domain.ErrInvalidKey
	}

	row := domain.Key{
		ID:         s.genID.Generate(),
		Operation:  operation,
		Key:        key,
		ResourceID: resourceID,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return pkgdb.ErrConcurrentConflict
		}
		return err
	}
	return nil
}
