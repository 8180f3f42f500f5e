package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RateSource identifies which cascade tier produced a rate.
type RateSource string

const (
	SourceProjectOverride RateSource = "project_override"
	SourcePersonSchedule  RateSource = "person_schedule"
	SourcePersonDefault   RateSource = "person_default"
	SourceSystemDefault   RateSource = "system_default"
	SourceNone            RateSource = "none"
)

// Resolved carries the outcome of a cascade lookup. Billing and cost rates
// resolve independently and may come from different tiers.
type Resolved struct {
	BillingRate   decimal.Decimal
	CostRate      decimal.Decimal
	BillingSource RateSource
	CostSource    RateSource
}

// HasBillableRate reports whether the billing rate is positive. A zero rate
// for billable work is a misconfiguration signal, never silently defaulted.
func (r Resolved) HasBillableRate() bool {
	return r.BillingRate.IsPositive()
}

// Resolver resolves the applicable rates for a unit of work.
type Resolver interface {
	Resolve(ctx context.Context, personID, projectID snowflake.ID, date time.Time) (Resolved, error)
}

type CreateOverrideRequest struct {
	ProjectID      snowflake.ID
	PersonID       snowflake.ID
	BillingRate    decimal.Decimal
	CostRate       decimal.Decimal
	EffectiveStart time.Time
	EffectiveEnd   *time.Time
}

type CreateScheduleRequest struct {
	PersonID       snowflake.ID
	BillingRate    decimal.Decimal
	CostRate       decimal.Decimal
	EffectiveStart time.Time
	EffectiveEnd   *time.Time
}

type Service interface {
	CreateOverride(ctx context.Context, req CreateOverrideRequest) (*RateOverride, error)
	CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*RateSchedule, error)
	ListOverrides(ctx context.Context, projectID snowflake.ID) ([]RateOverride, error)
	ListSchedules(ctx context.Context, personID snowflake.ID) ([]RateSchedule, error)
}
