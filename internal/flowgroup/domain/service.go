package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Open finds the OPEN group for partner in the year or creates it, inside tx.
	Open(ctx context.Context, tx *gorm.DB, partner PartnerRef, yearID snowflake.ID) (FlowGroup, error)
	Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (FlowGroup, error)
	// GetForUpdate locks the group row until tx ends.
	GetForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (FlowGroup, error)
	// FindLatest returns the OPEN group, or the most recently created one.
	FindLatest(ctx context.Context, db *gorm.DB, partner PartnerRef, yearID snowflake.ID) (FlowGroup, error)
	Settle(ctx context.Context, tx *gorm.DB, id snowflake.ID) (FlowGroup, error)
	Reopen(ctx context.Context, tx *gorm.DB, id snowflake.ID) (FlowGroup, error)
}

var (
	ErrFlowGroupNotFound = errors.New("flow_group_not_found")
	ErrFlowGroupSettled  = errors.New("flow_group_settled")
	ErrFlowGroupConflict = errors.New("flow_group_conflict")
	ErrInvalidPartner    = errors.New("invalid_partner")
	ErrInvalidYear       = errors.New("invalid_academic_year")
)
