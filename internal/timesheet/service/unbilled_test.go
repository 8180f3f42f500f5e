package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *timesheetFixture) insertEntry(t *testing.T, hours, rate string, day int, mutate func(*timesheetdomain.TimeEntry)) timesheetdomain.TimeEntry {
	t.Helper()

	entry := timesheetdomain.TimeEntry{
		ID:          f.node.Generate(),
		TenantID:    f.tenantID,
		PersonID:    f.person.ID,
		ProjectID:   f.project.ID,
		EntryDate:   time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC),
		Hours:       decimal.RequireFromString(hours),
		Billable:    true,
		BillingRate: decimal.RequireFromString(rate),
	}
	if mutate != nil {
		mutate(&entry)
	}
	require.NoError(t, f.db.Create(&entry).Error)
	return entry
}

func (f *timesheetFixture) insertExpense(t *testing.T, amount string, day int, mutate func(*timesheetdomain.Expense)) timesheetdomain.Expense {
	t.Helper()

	expense := timesheetdomain.Expense{
		ID:          f.node.Generate(),
		TenantID:    f.tenantID,
		PersonID:    f.person.ID,
		ProjectID:   f.project.ID,
		ExpenseDate: time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString(amount),
		Billable:    true,
	}
	if mutate != nil {
		mutate(&expense)
	}
	require.NoError(t, f.db.Create(&expense).Error)
	return expense
}

func TestFindUnbilledExcludesBilledAndLocked(t *testing.T) {
	f := newTimesheetFixture(t, 0)

	open := f.insertEntry(t, "5", "100", 3, nil)
	f.insertEntry(t, "2", "100", 4, func(e *timesheetdomain.TimeEntry) { e.Billed = true })
	f.insertEntry(t, "3", "100", 5, func(e *timesheetdomain.TimeEntry) { e.Locked = true })
	f.insertEntry(t, "1", "100", 6, func(e *timesheetdomain.TimeEntry) { e.Billable = false })

	f.insertExpense(t, "50", 7, nil)
	f.insertExpense(t, "80", 8, func(e *timesheetdomain.Expense) { e.Billed = true })

	result, err := f.svc.FindUnbilled(f.ctx, timesheetdomain.UnbilledFilters{})
	require.NoError(t, err)

	require.Len(t, result.TimeEntries, 1)
	assert.Equal(t, open.ID, result.TimeEntries[0].Entry.ID)
	assert.True(t, result.TimeEntries[0].CalculatedAmount.Equal(decimal.RequireFromString("500")))

	require.Len(t, result.Expenses, 1)
	assert.True(t, result.Totals.Hours.Equal(decimal.RequireFromString("5")))
	assert.True(t, result.Totals.TimeAmount.Equal(decimal.RequireFromString("500")))
	assert.True(t, result.Totals.ExpenseAmount.Equal(decimal.RequireFromString("50")))
	assert.True(t, result.Totals.TotalAmount.Equal(decimal.RequireFromString("550")))
	assert.True(t, result.RateValidation.Valid)
}

func TestFindUnbilledFlagsUnresolvableRates(t *testing.T) {
	f := newTimesheetFixture(t, 0)

	good := f.insertEntry(t, "5", "100", 3, nil)
	bad := f.insertEntry(t, "2", "0", 4, nil)

	result, err := f.svc.FindUnbilled(f.ctx, timesheetdomain.UnbilledFilters{})
	require.NoError(t, err)

	// Both entries come back, but only the resolvable one counts toward
	// the totals.
	require.Len(t, result.TimeEntries, 2)
	assert.True(t, result.Totals.Hours.Equal(decimal.RequireFromString("5")))
	assert.True(t, result.Totals.TimeAmount.Equal(decimal.RequireFromString("500")))

	for _, annotated := range result.TimeEntries {
		if annotated.Entry.ID == good.ID {
			assert.True(t, annotated.RateResolved)
		} else {
			assert.False(t, annotated.RateResolved)
			assert.True(t, annotated.CalculatedAmount.IsZero())
		}
	}

	assert.False(t, result.RateValidation.Valid)
	require.Len(t, result.RateValidation.Issues, 1)
	assert.Equal(t, bad.ID, result.RateValidation.Issues[0].EntryID)
	assert.Equal(t, "Jordan Reyes", result.RateValidation.Issues[0].PersonName)
}

func TestFindUnbilledFilters(t *testing.T) {
	f := newTimesheetFixture(t, 0)

	otherProject := f.project
	otherProject.ID = f.node.Generate()
	otherProject.Name = "Data Migration"
	otherProject.Code = "ACME-002"
	require.NoError(t, f.db.Create(&otherProject).Error)

	otherPerson := directorydomain.Person{
		ID:       f.node.Generate(),
		TenantID: f.tenantID,
		Name:     "Sam Okafor",
		Active:   true,
	}
	require.NoError(t, f.db.Create(&otherPerson).Error)

	f.insertEntry(t, "5", "100", 3, nil)
	f.insertEntry(t, "2", "100", 4, func(e *timesheetdomain.TimeEntry) { e.ProjectID = otherProject.ID })
	f.insertEntry(t, "3", "100", 5, func(e *timesheetdomain.TimeEntry) { e.PersonID = otherPerson.ID })
	f.insertEntry(t, "4", "100", 25, nil)

	t.Run("by project", func(t *testing.T) {
		result, err := f.svc.FindUnbilled(f.ctx, timesheetdomain.UnbilledFilters{ProjectID: &otherProject.ID})
		require.NoError(t, err)
		require.Len(t, result.TimeEntries, 1)
		assert.True(t, result.Totals.Hours.Equal(decimal.RequireFromString("2")))
	})

	t.Run("by person", func(t *testing.T) {
		result, err := f.svc.FindUnbilled(f.ctx, timesheetdomain.UnbilledFilters{PersonID: &otherPerson.ID})
		require.NoError(t, err)
		require.Len(t, result.TimeEntries, 1)
		assert.Equal(t, otherPerson.ID, result.TimeEntries[0].Entry.PersonID)
	})

	t.Run("by date window", func(t *testing.T) {
		from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
		result, err := f.svc.FindUnbilled(f.ctx, timesheetdomain.UnbilledFilters{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, result.TimeEntries, 3)
		for _, annotated := range result.TimeEntries {
			assert.NotEqual(t, 25, annotated.Entry.EntryDate.Day())
		}
	})

	t.Run("by client", func(t *testing.T) {
		result, err := f.svc.FindUnbilled(f.ctx, timesheetdomain.UnbilledFilters{ClientID: &f.client.ID})
		require.NoError(t, err)
		assert.Len(t, result.TimeEntries, 4)
	})

	t.Run("by unknown client", func(t *testing.T) {
		unknown := f.node.Generate()
		result, err := f.svc.FindUnbilled(f.ctx, timesheetdomain.UnbilledFilters{ClientID: &unknown})
		require.NoError(t, err)
		assert.Empty(t, result.TimeEntries)
		assert.Empty(t, result.Expenses)
	})
}
