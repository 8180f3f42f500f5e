package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/tempora-hq/tempora/internal/audit/domain"
	"github.com/tempora-hq/tempora/internal/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
	}
}

func (s *Service) AuditLog(ctx context.Context, actorID *snowflake.ID, action, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	if targetType = strings.TrimSpace(targetType); targetType == "" {
		targetType = "unknown"
	}

	payload := map[string]any{}
	for key, value := range metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	tenantID, _ := tenantctx.TenantIDFromContext(ctx)
	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   datatypes.JSONMap(payload),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) ([]auditdomain.AuditLog, error) {
	limit := req.Limit
	if limit <= 0 || limit > 250 {
		limit = 50
	}

	query := s.db.WithContext(ctx).Model(&auditdomain.AuditLog{})
	if req.Action != "" {
		query = query.Where("action = ?", req.Action)
	}
	if req.TargetType != "" {
		query = query.Where("target_type = ?", req.TargetType)
	}
	if req.TargetID != "" {
		query = query.Where("target_id = ?", req.TargetID)
	}

	var logs []auditdomain.AuditLog
	err := query.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
