package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	ratesdomain "github.com/tempora-hq/tempora/internal/rates/domain"
	"github.com/tempora-hq/tempora/internal/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
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

func NewService(p ServiceParam) ratesdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("rates.service"),
		genID: p.GenID,
	}
}

func (s *Service) CreateOverride(ctx context.Context, req ratesdomain.CreateOverrideRequest) (*ratesdomain.RateOverride, error) {
	if err := validateRange(req.EffectiveStart, req.EffectiveEnd); err != nil {
		return nil, err
	}
	if req.BillingRate.IsNegative() || req.CostRate.IsNegative() {
		return nil, ratesdomain.ErrInvalidRate
	}

	tenantID, _ := tenantctx.TenantIDFromContext(ctx)
	override := &ratesdomain.RateOverride{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		ProjectID:      req.ProjectID,
		PersonID:       req.PersonID,
		BillingRate:    req.BillingRate,
		CostRate:       req.CostRate,
		EffectiveStart: req.EffectiveStart,
		EffectiveEnd:   req.EffectiveEnd,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.closePriorOpenRange(ctx, tx, &ratesdomain.RateOverride{}, "project_id = ? AND person_id = ?",
			[]any{req.ProjectID, req.PersonID}, req.EffectiveStart); err != nil {
			return err
		}
		return tx.Create(override).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("rate override created",
		zap.String("project_id", override.ProjectID.String()),
		zap.String("person_id", override.PersonID.String()),
	)
	return override, nil
}

func (s *Service) CreateSchedule(ctx context.Context, req ratesdomain.CreateScheduleRequest) (*ratesdomain.RateSchedule, error) {
	if err := validateRange(req.EffectiveStart, req.EffectiveEnd); err != nil {
		return nil, err
	}
	if req.BillingRate.IsNegative() || req.CostRate.IsNegative() {
		return nil, ratesdomain.ErrInvalidRate
	}

	tenantID, _ := tenantctx.TenantIDFromContext(ctx)
	schedule := &ratesdomain.RateSchedule{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		PersonID:       req.PersonID,
		BillingRate:    req.BillingRate,
		CostRate:       req.CostRate,
		EffectiveStart: req.EffectiveStart,
		EffectiveEnd:   req.EffectiveEnd,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.closePriorOpenRange(ctx, tx, &ratesdomain.RateSchedule{}, "person_id = ?",
			[]any{req.PersonID}, req.EffectiveStart); err != nil {
			return err
		}
		return tx.Create(schedule).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("rate schedule created", zap.String("person_id", schedule.PersonID.String()))
	return schedule, nil
}

func (s *Service) ListOverrides(ctx context.Context, projectID snowflake.ID) ([]ratesdomain.RateOverride, error) {
	var overrides []ratesdomain.RateOverride
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("effective_start DESC").
		Find(&overrides).Error
	return overrides, err
}

func (s *Service) ListSchedules(ctx context.Context, personID snowflake.ID) ([]ratesdomain.RateSchedule, error) {
	var schedules []ratesdomain.RateSchedule
	err := s.db.WithContext(ctx).
		Where("person_id = ?", personID).
		Order("effective_start DESC").
		Find(&schedules).Error
	return schedules, err
}

// closePriorOpenRange closes any open-ended row for the same scope the day
// before the new start, keeping ranges non-overlapping. A prior open range
// starting on or after the new start cannot be closed and is rejected.
func (s *Service) closePriorOpenRange(ctx context.Context, tx *gorm.DB, model any, scope string, args []any, newStart time.Time) error {
	var count int64
	if err := tx.WithContext(ctx).Model(model).
		Where(scope, args...).
		Where("effective_end IS NULL").
		Where("effective_start >= ?", newStart).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ratesdomain.ErrOverlappingRange
	}

	closedAt := newStart.AddDate(0, 0, -1)
	return tx.WithContext(ctx).Model(model).
		Where(scope, args...).
		Where("effective_end IS NULL").
		Where("effective_start < ?", newStart).
		Update("effective_end", closedAt).Error
}

func validateRange(start time.Time, end *time.Time) error {
	if start.IsZero() {
		return ratesdomain.ErrInvalidRange
	}
	if end != nil && end.Before(start) {
		return ratesdomain.ErrInvalidRange
	}
	return nil
}
