// Package domain contains the audit trail written by billing operations.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is an append-only record of a billing action.
type AuditLog struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`

	ActorID *snowflake.ID `gorm:"index"`

	Action     string  `gorm:"type:text;not null;index"`
	TargetType string  `gorm:"type:text;not null"`
	TargetID   *string `gorm:"type:text;index"`

	Metadata datatypes.JSONMap `gorm:"not null;default:'{}'"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListRequest struct {
	Action     string
	TargetType string
	TargetID   string
	Limit      int
}

type Service interface {
	AuditLog(ctx context.Context, actorID *snowflake.ID, action, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListRequest) ([]AuditLog, error)
}

var ErrInvalidAction = errors.New("invalid_action")
