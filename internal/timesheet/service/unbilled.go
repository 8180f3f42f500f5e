package service

import (
	"context"

	"github.com/shopspring/decimal"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
	"gorm.io/gorm"
)

// FindUnbilled scans billable, not-yet-billed work matching the filters and
// annotates each time entry with its effective rate. Entries with no
// positive rate are returned flagged but excluded from the amount totals.
// Pure read, no side effects.
func (s *Service) FindUnbilled(ctx context.Context, filters timesheetdomain.UnbilledFilters) (timesheetdomain.UnbilledResult, error) {
	result := timesheetdomain.UnbilledResult{
		TimeEntries:    []timesheetdomain.UnbilledTimeEntry{},
		Expenses:       []timesheetdomain.Expense{},
		RateValidation: timesheetdomain.RateValidation{Valid: true, Issues: []timesheetdomain.RateIssue{}},
	}
	result.Totals = timesheetdomain.UnbilledTotals{
		Hours:         decimal.Zero,
		TimeAmount:    decimal.Zero,
		ExpenseAmount: decimal.Zero,
		TotalAmount:   decimal.Zero,
	}

	projectIDs, restricted, err := s.projectScope(ctx, filters)
	if err != nil {
		return result, err
	}
	if restricted && len(projectIDs) == 0 {
		return result, nil
	}

	var entries []timesheetdomain.TimeEntry
	entryQuery := s.db.WithContext(ctx).
		Where("billable = ? AND billed = ? AND locked = ?", true, false, false)
	entryQuery = applyScanFilters(entryQuery, filters, projectIDs, restricted, "entry_date")
	if err := entryQuery.Order("entry_date ASC").Find(&entries).Error; err != nil {
		return result, err
	}

	for _, entry := range entries {
		annotated, err := s.annotate(ctx, entry)
		if err != nil {
			return result, err
		}
		result.TimeEntries = append(result.TimeEntries, annotated)
		if annotated.RateResolved {
			result.Totals.Hours = result.Totals.Hours.Add(entry.Hours)
			result.Totals.TimeAmount = result.Totals.TimeAmount.Add(annotated.CalculatedAmount)
		} else {
			issue := timesheetdomain.RateIssue{
				EntryID:   entry.ID,
				PersonID:  entry.PersonID,
				EntryDate: entry.EntryDate,
				Reason:    "no positive billing rate resolves",
			}
			if person, perr := s.directory.Person(ctx, entry.PersonID); perr == nil {
				issue.PersonName = person.Name
			}
			result.RateValidation.Valid = false
			result.RateValidation.Issues = append(result.RateValidation.Issues, issue)
		}
	}

	var expenses []timesheetdomain.Expense
	expenseQuery := s.db.WithContext(ctx).
		Where("billable = ? AND billed = ?", true, false)
	expenseQuery = applyScanFilters(expenseQuery, filters, projectIDs, restricted, "expense_date")
	if err := expenseQuery.Order("expense_date ASC").Find(&expenses).Error; err != nil {
		return result, err
	}

	result.Expenses = expenses
	for _, expense := range expenses {
		result.Totals.ExpenseAmount = result.Totals.ExpenseAmount.Add(expense.Amount)
	}

	result.Totals.TotalAmount = result.Totals.TimeAmount.Add(result.Totals.ExpenseAmount)
	return result, nil
}

// annotate applies the captured rate when positive, re-resolving otherwise.
func (s *Service) annotate(ctx context.Context, entry timesheetdomain.TimeEntry) (timesheetdomain.UnbilledTimeEntry, error) {
	rate := entry.BillingRate
	if !rate.IsPositive() {
		resolved, err := s.resolver.Resolve(ctx, entry.PersonID, entry.ProjectID, entry.EntryDate)
		if err != nil {
			return timesheetdomain.UnbilledTimeEntry{}, err
		}
		rate = resolved.BillingRate
	}

	annotated := timesheetdomain.UnbilledTimeEntry{
		Entry:        entry,
		BillingRate:  rate,
		RateResolved: rate.IsPositive(),
	}
	if annotated.RateResolved {
		annotated.CalculatedAmount = entry.Hours.Mul(rate)
	} else {
		annotated.CalculatedAmount = decimal.Zero
	}
	return annotated, nil
}

// projectScope translates a client filter into the client's project IDs.
func (s *Service) projectScope(ctx context.Context, filters timesheetdomain.UnbilledFilters) ([]int64, bool, error) {
	if filters.ClientID == nil {
		return nil, false, nil
	}

	projects, err := s.directory.ProjectsForClient(ctx, *filters.ClientID)
	if err != nil {
		return nil, true, err
	}
	ids := make([]int64, 0, len(projects))
	for _, project := range projects {
		ids = append(ids, int64(project.ID))
	}
	return ids, true, nil
}

func applyScanFilters(query *gorm.DB, filters timesheetdomain.UnbilledFilters, projectIDs []int64, restricted bool, dateColumn string) *gorm.DB {
	if filters.PersonID != nil {
		query = query.Where("person_id = ?", *filters.PersonID)
	}
	if filters.ProjectID != nil {
		query = query.Where("project_id = ?", *filters.ProjectID)
	} else if restricted {
		query = query.Where("project_id IN ?", projectIDs)
	}
	if filters.From != nil {
		query = query.Where(dateColumn+" >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where(dateColumn+" <= ?", *filters.To)
	}
	return query
}
