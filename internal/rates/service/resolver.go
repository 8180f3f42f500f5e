package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/tempora-hq/tempora/internal/config"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	ratesdomain "github.com/tempora-hq/tempora/internal/rates/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// tierRates is a partial cascade hit; nil fields fall through to the next tier.
type tierRates struct {
	billing *decimal.Decimal
	cost    *decimal.Decimal
}

type tier struct {
	source ratesdomain.RateSource
	lookup func(ctx context.Context, personID, projectID snowflake.ID, date time.Time) (tierRates, error)
}

type ResolverParam struct {
	fx.In

	DB        *gorm.DB
	Directory directorydomain.Directory
	Billing   *config.BillingConfigHolder
}

// Resolver implements the four-tier rate cascade as an ordered pipeline.
// Each tier is independently testable; the pipeline short-circuits per field
// on the first non-nil hit.
type Resolver struct {
	db        *gorm.DB
	directory directorydomain.Directory
	billing   *config.BillingConfigHolder

	tiers []tier
}

func NewResolver(p ResolverParam) ratesdomain.Resolver {
	r := &Resolver{
		db:        p.DB,
		directory: p.Directory,
		billing:   p.Billing,
	}
	r.tiers = []tier{
		{source: ratesdomain.SourceProjectOverride, lookup: r.projectOverride},
		{source: ratesdomain.SourcePersonSchedule, lookup: r.personSchedule},
		{source: ratesdomain.SourcePersonDefault, lookup: r.personDefault},
		{source: ratesdomain.SourceSystemDefault, lookup: r.systemDefault},
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, personID, projectID snowflake.ID, date time.Time) (ratesdomain.Resolved, error) {
	resolved := ratesdomain.Resolved{
		BillingSource: ratesdomain.SourceNone,
		CostSource:    ratesdomain.SourceNone,
	}

	var haveBilling, haveCost bool
	for _, t := range r.tiers {
		if haveBilling && haveCost {
			break
		}
		hit, err := t.lookup(ctx, personID, projectID, date)
		if err != nil {
			return ratesdomain.Resolved{}, err
		}
		if !haveBilling && hit.billing != nil {
			resolved.BillingRate = *hit.billing
			resolved.BillingSource = t.source
			haveBilling = true
		}
		if !haveCost && hit.cost != nil {
			resolved.CostRate = *hit.cost
			resolved.CostSource = t.source
			haveCost = true
		}
	}

	return resolved, nil
}

// projectOverride is tier 1. Ties among matching overrides break toward the
// most recent effective start.
func (r *Resolver) projectOverride(ctx context.Context, personID, projectID snowflake.ID, date time.Time) (tierRates, error) {
	if projectID == 0 {
		return tierRates{}, nil
	}

	var override ratesdomain.RateOverride
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND person_id = ?", projectID, personID).
		Where("effective_start <= ?", date).
		Where("effective_end IS NULL OR effective_end >= ?", date).
		Order("effective_start DESC").
		First(&override).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tierRates{}, nil
		}
		return tierRates{}, err
	}

	return rateFields(override.BillingRate, override.CostRate), nil
}

// personSchedule is tier 2.
func (r *Resolver) personSchedule(ctx context.Context, personID, _ snowflake.ID, date time.Time) (tierRates, error) {
	var schedule ratesdomain.RateSchedule
	err := r.db.WithContext(ctx).
		Where("person_id = ?", personID).
		Where("effective_start <= ?", date).
		Where("effective_end IS NULL OR effective_end >= ?", date).
		Order("effective_start DESC").
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tierRates{}, nil
		}
		return tierRates{}, err
	}

	return rateFields(schedule.BillingRate, schedule.CostRate), nil
}

// personDefault is tier 3, read from the directory.
func (r *Resolver) personDefault(ctx context.Context, personID, _ snowflake.ID, _ time.Time) (tierRates, error) {
	person, err := r.directory.Person(ctx, personID)
	if err != nil {
		if errors.Is(err, directorydomain.ErrPersonNotFound) {
			return tierRates{}, nil
		}
		return tierRates{}, err
	}

	var hit tierRates
	if person.DefaultBillingRate != nil && person.DefaultBillingRate.IsPositive() {
		hit.billing = person.DefaultBillingRate
	}
	if person.DefaultCostRate != nil && person.DefaultCostRate.IsPositive() {
		hit.cost = person.DefaultCostRate
	}
	return hit, nil
}

// systemDefault is tier 4. It always answers; a zero configured default
// surfaces as a zero resolved rate, which callers treat as unresolvable for
// billable work.
func (r *Resolver) systemDefault(_ context.Context, _, _ snowflake.ID, _ time.Time) (tierRates, error) {
	cfg := r.billing.Get()
	billing := decimal.NewFromFloat(cfg.DefaultBillingRate)
	cost := decimal.NewFromFloat(cfg.DefaultCostRate)
	return tierRates{billing: &billing, cost: &cost}, nil
}

func rateFields(billing, cost decimal.Decimal) tierRates {
	var hit tierRates
	if billing.IsPositive() {
		hit.billing = &billing
	}
	if cost.IsPositive() {
		hit.cost = &cost
	}
	return hit
}
