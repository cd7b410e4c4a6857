package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog records one ledger mutation. Rows are written in the same transaction
// as the change they describe.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null;index:ix_audit_logs_target,priority:1" json:"target_type"`
	TargetID   string            `gorm:"type:text;not null;index:ix_audit_logs_target,priority:2" json:"target_id"`
	ActorID    *string           `gorm:"type:text;index" json:"actor_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Entry is the input of Service.Record.
type Entry struct {
	Action     string
	TargetType string
	TargetID   snowflake.ID
	ActorID    string
	Metadata   map[string]any
}

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
