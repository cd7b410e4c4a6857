package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Key maps a caller supplied key to the resource a mutating call produced.
type Key struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	Operation  string       `gorm:"type:varchar(48);not null;uniqueIndex:ux_idempotency_keys_operation_key,priority:1"`
	Key        string       `gorm:"column:idempotency_key;type:varchar(128);not null;uniqueIndex:ux_idempotency_keys_operation_key,priority:2"`
	ResourceID snowflake.ID `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null"`
}

func (Key) TableName() string { return "idempotency_keys" }

type Service interface {
	// Lookup returns the resource recorded for (operation, key).
	Lookup(ctx context.Context, db *gorm.DB, operation, key string) (snowflake.ID, bool, error)
	// Save records the resource inside tx. A concurrent save of the same key fails
	// with a retryable conflict so the retry observes the winner through Lookup.
	Save(ctx context.Context, tx *gorm.DB, operation, key string, resourceID snowflake.ID) error
}

var (
	ErrInvalidKey = errors.New("invalid_idempotency_key")
)
