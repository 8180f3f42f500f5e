package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	ratesdomain "github.com/tempora-hq/tempora/internal/rates/domain"
	"github.com/tempora-hq/tempora/internal/tenantctx"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Resolver  ratesdomain.Resolver
	Directory directorydomain.Directory
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	resolver  ratesdomain.Resolver
	directory directorydomain.Directory
}

func NewService(p ServiceParam) timesheetdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("timesheet.service"),
		genID:     p.GenID,
		resolver:  p.Resolver,
		directory: p.Directory,
	}
}

func (s *Service) CreateTimeEntry(ctx context.Context, req timesheetdomain.CreateTimeEntryRequest) (*timesheetdomain.TimeEntry, error) {
	if !req.Hours.IsPositive() {
		return nil, timesheetdomain.ErrInvalidHours
	}
	if req.EntryDate.IsZero() {
		return nil, timesheetdomain.ErrInvalidDate
	}

	person, err := s.directory.Person(ctx, req.PersonID)
	if err != nil {
		return nil, err
	}
	if _, err := s.directory.Project(ctx, req.ProjectID); err != nil {
		return nil, err
	}

	resolved, err := s.resolver.Resolve(ctx, req.PersonID, req.ProjectID, req.EntryDate)
	if err != nil {
		return nil, err
	}
	// A billable entry with no positive resolvable rate is rejected here so
	// misconfiguration surfaces at entry time, naming the person.
	if req.Billable && !resolved.HasBillableRate() {
		return nil, fmt.Errorf("%w: no billing rate resolves for %s on %s",
			timesheetdomain.ErrRateUnresolved, person.Name, req.EntryDate.Format("2006-01-02"))
	}

	tenantID, _ := tenantctx.TenantIDFromContext(ctx)
	entry := &timesheetdomain.TimeEntry{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		PersonID:    req.PersonID,
		ProjectID:   req.ProjectID,
		EntryDate:   req.EntryDate,
		Hours:       req.Hours,
		Description: req.Description,
		Billable:    req.Billable,
		BillingRate: resolved.BillingRate,
		CostRate:    resolved.CostRate,
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) CreateExpense(ctx context.Context, req timesheetdomain.CreateExpenseRequest) (*timesheetdomain.Expense, error) {
	if !req.Amount.IsPositive() {
		return nil, timesheetdomain.ErrInvalidAmount
	}
	if req.ExpenseDate.IsZero() {
		return nil, timesheetdomain.ErrInvalidDate
	}
	if _, err := s.directory.Person(ctx, req.PersonID); err != nil {
		return nil, err
	}
	if _, err := s.directory.Project(ctx, req.ProjectID); err != nil {
		return nil, err
	}

	tenantID, _ := tenantctx.TenantIDFromContext(ctx)
	expense := &timesheetdomain.Expense{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		PersonID:    req.PersonID,
		ProjectID:   req.ProjectID,
		ExpenseDate: req.ExpenseDate,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		Billable:    req.Billable,
	}

	if err := s.db.WithContext(ctx).Create(expense).Error; err != nil {
		return nil, err
	}
	return expense, nil
}

// RecalculateRates re-resolves and re-captures rates on unbilled, unlocked
// entries, scoped to one project when given. Returns the number of entries
// updated.
func (s *Service) RecalculateRates(ctx context.Context, projectID *snowflake.ID) (int, error) {
	var entries []timesheetdomain.TimeEntry
	query := s.db.WithContext(ctx).
		Where("billed = ? AND locked = ?", false, false)
	if projectID != nil {
		query = query.Where("project_id = ?", *projectID)
	}
	if err := query.Find(&entries).Error; err != nil {
		return 0, err
	}

	updated := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range entries {
			entry := &entries[i]
			resolved, err := s.resolver.Resolve(ctx, entry.PersonID, entry.ProjectID, entry.EntryDate)
			if err != nil {
				return err
			}
			if resolved.BillingRate.Equal(entry.BillingRate) && resolved.CostRate.Equal(entry.CostRate) {
				continue
			}
			if err := tx.Model(&timesheetdomain.TimeEntry{}).
				Where("id = ?", entry.ID).
				Updates(map[string]any{
					"billing_rate": resolved.BillingRate,
					"cost_rate":    resolved.CostRate,
				}).Error; err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("rates recalculated", zap.Int("entries_updated", updated))
	return updated, nil
}
