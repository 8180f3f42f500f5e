package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tempora-hq/tempora/internal/config"
	ratesdomain "github.com/tempora-hq/tempora/internal/rates/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateScheduleClosesPriorOpenRange(t *testing.T) {
	f := newRatesFixture(t, config.BillingConfig{})

	f.addSchedule(t, "150", "90", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	f.addSchedule(t, "175", "95", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), nil)

	schedules, err := f.svc.ListSchedules(f.ctx, f.person.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	// Listed newest first; the older row closed the day before the new start.
	assert.Nil(t, schedules[0].EffectiveEnd)
	require.NotNil(t, schedules[1].EffectiveEnd)
	assert.True(t, schedules[1].EffectiveEnd.Equal(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)))

	// The resolver picks the row covering the date.
	resolved, err := f.resolver.Resolve(f.ctx, f.person.ID, f.project.ID, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, resolved.BillingRate.Equal(decimal.RequireFromString("150")))

	resolved, err = f.resolver.Resolve(f.ctx, f.person.ID, f.project.ID, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, resolved.BillingRate.Equal(decimal.RequireFromString("175")))
}

func TestCreateScheduleRejectsOverlappingOpenRange(t *testing.T) {
	f := newRatesFixture(t, config.BillingConfig{})

	f.addSchedule(t, "150", "90", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), nil)

	// A new range starting before an existing open range cannot close it.
	_, err := f.svc.CreateSchedule(f.ctx, ratesdomain.CreateScheduleRequest{
		PersonID:       f.person.ID,
		BillingRate:    decimal.RequireFromString("175"),
		CostRate:       decimal.RequireFromString("95"),
		EffectiveStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ratesdomain.ErrOverlappingRange)
}

func TestCreateOverrideClosesPriorOpenRangePerScope(t *testing.T) {
	f := newRatesFixture(t, config.BillingConfig{})

	f.addOverride(t, "200", "100", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	// A schedule for the same person is a different scope and must not be
	// touched by override bookkeeping.
	f.addSchedule(t, "150", "90", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	f.addOverride(t, "225", "110", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), nil)

	overrides, err := f.svc.ListOverrides(f.ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Nil(t, overrides[0].EffectiveEnd)
	require.NotNil(t, overrides[1].EffectiveEnd)
	assert.True(t, overrides[1].EffectiveEnd.Equal(time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)))

	schedules, err := f.svc.ListSchedules(f.ctx, f.person.ID)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Nil(t, schedules[0].EffectiveEnd)
}

func TestCreateRateValidation(t *testing.T) {
	f := newRatesFixture(t, config.BillingConfig{})

	_, err := f.svc.CreateSchedule(f.ctx, ratesdomain.CreateScheduleRequest{
		PersonID:    f.person.ID,
		BillingRate: decimal.RequireFromString("150"),
		CostRate:    decimal.RequireFromString("90"),
	})
	assert.ErrorIs(t, err, ratesdomain.ErrInvalidRange)

	end := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.CreateOverride(f.ctx, ratesdomain.CreateOverrideRequest{
		ProjectID:      f.project.ID,
		PersonID:       f.person.ID,
		BillingRate:    decimal.RequireFromString("150"),
		CostRate:       decimal.RequireFromString("90"),
		EffectiveStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EffectiveEnd:   &end,
	})
	assert.ErrorIs(t, err, ratesdomain.ErrInvalidRange)

	_, err = f.svc.CreateSchedule(f.ctx, ratesdomain.CreateScheduleRequest{
		PersonID:       f.person.ID,
		BillingRate:    decimal.RequireFromString("-1"),
		CostRate:       decimal.RequireFromString("90"),
		EffectiveStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ratesdomain.ErrInvalidRate)
}

func TestActiveOn(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	open := ratesdomain.RateSchedule{EffectiveStart: start}
	assert.True(t, open.ActiveOn(start))
	assert.True(t, open.ActiveOn(start.AddDate(1, 0, 0)))
	assert.False(t, open.ActiveOn(start.AddDate(0, 0, -1)))

	closed := ratesdomain.RateOverride{EffectiveStart: start, EffectiveEnd: &end}
	assert.True(t, closed.ActiveOn(end))
	assert.False(t, closed.ActiveOn(end.AddDate(0, 0, 1)))
}
