// Package domain contains rate override and schedule models for the
// four-tier rate cascade.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RateOverride is a project-scoped rate, tier 1 of the cascade.
// Per (project, person) at most one row may be open-ended; creating a new
// one closes the prior open range the day before the new start.
type RateOverride struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`

	ProjectID snowflake.ID `gorm:"not null;index:idx_rate_overrides_scope"`
	PersonID  snowflake.ID `gorm:"not null;index:idx_rate_overrides_scope"`

	BillingRate decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CostRate    decimal.Decimal `gorm:"type:numeric(10,2);not null"`

	EffectiveStart time.Time  `gorm:"not null"`
	EffectiveEnd   *time.Time `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (RateOverride) TableName() string { return "rate_overrides" }

// RateSchedule is a person-scoped rate, tier 2 of the cascade. Same
// non-overlap and auto-close semantics as RateOverride.
type RateSchedule struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`

	PersonID snowflake.ID `gorm:"not null;index"`

	BillingRate decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CostRate    decimal.Decimal `gorm:"type:numeric(10,2);not null"`

	EffectiveStart time.Time  `gorm:"not null"`
	EffectiveEnd   *time.Time `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (RateSchedule) TableName() string { return "rate_schedules" }

// ActiveOn reports whether the override covers the given date.
func (r RateOverride) ActiveOn(date time.Time) bool {
	return activeOn(r.EffectiveStart, r.EffectiveEnd, date)
}

// ActiveOn reports whether the schedule covers the given date.
func (r RateSchedule) ActiveOn(date time.Time) bool {
	return activeOn(r.EffectiveStart, r.EffectiveEnd, date)
}

func activeOn(start time.Time, end *time.Time, date time.Time) bool {
	if start.After(date) {
		return false
	}
	return end == nil || !end.Before(date)
}
