package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// invoiceUnit is one invoicing target: a single project under mode=project,
// or a client spanning all its projects under mode=client.
type invoiceUnit struct {
	clientID   snowflake.ID
	projectIDs []snowflake.ID
}

// Generate converts unbilled work in the batch's period into invoice lines,
// marking source items billed and locked. The whole invocation is one
// all-or-nothing transaction; a persistence failure rolls back every line
// and every flag mutation. Entries with no resolvable positive rate are
// skipped and reported, never fatal for the batch.
func (s *Service) Generate(ctx context.Context, req billingdomain.GenerateRequest) (billingdomain.GenerateResult, error) {
	result := billingdomain.GenerateResult{
		TotalAmount: decimal.Zero,
		Warnings:    []billingdomain.RateWarning{},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := s.loadBatchForUpdate(ctx, tx, req.BatchID)
		if err != nil {
			return err
		}
		if batch.Status == billingdomain.BatchStatusFinalized {
			return billingdomain.ErrBatchFinalized
		}

		units, err := s.resolveUnits(ctx, batch.Mode, req)
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return billingdomain.ErrMissingUnits
		}

		for _, unit := range units {
			unitLines := 0
			for _, projectID := range unit.projectIDs {
				created, err := s.generateForProject(ctx, tx, batch, unit.clientID, projectID, &result)
				if err != nil {
					return err
				}
				unitLines += created
			}
			if unitLines > 0 {
				result.InvoicesCreated++
			}
		}

		updated, err := s.recalculateBatchTotalsTx(ctx, tx, batch.ID)
		if err != nil {
			return err
		}
		result.TotalAmount = updated.TotalAmount
		return nil
	})
	if err != nil {
		return billingdomain.GenerateResult{}, err
	}

	s.log.Info("invoice batch generated",
		zap.String("batch_id", req.BatchID.String()),
		zap.Int("invoices_created", result.InvoicesCreated),
		zap.Int("time_entries_billed", result.TimeEntriesBilled),
		zap.Int("expenses_billed", result.ExpensesBilled),
		zap.Int("rate_warnings", len(result.Warnings)),
	)
	s.emitAuditByID(ctx, "batch.generated", req.BatchID, map[string]any{
		"time_entries_billed": result.TimeEntriesBilled,
		"expenses_billed":     result.ExpensesBilled,
	})
	return result, nil
}

func (s *Service) resolveUnits(ctx context.Context, mode billingdomain.InvoiceMode, req billingdomain.GenerateRequest) ([]invoiceUnit, error) {
	switch mode {
	case billingdomain.ModeClient:
		units := make([]invoiceUnit, 0, len(req.ClientIDs))
		for _, clientID := range req.ClientIDs {
			projects, err := s.directory.ProjectsForClient(ctx, clientID)
			if err != nil {
				return nil, err
			}
			unit := invoiceUnit{clientID: clientID}
			for _, project := range projects {
				unit.projectIDs = append(unit.projectIDs, project.ID)
			}
			units = append(units, unit)
		}
		return units, nil
	case billingdomain.ModeProject:
		units := make([]invoiceUnit, 0, len(req.ProjectIDs))
		for _, projectID := range req.ProjectIDs {
			project, err := s.directory.Project(ctx, projectID)
			if err != nil {
				return nil, err
			}
			units = append(units, invoiceUnit{
				clientID:   project.ClientID,
				projectIDs: []snowflake.ID{projectID},
			})
		}
		return units, nil
	default:
		return nil, billingdomain.ErrInvalidMode
	}
}

// generateForProject bills one project's unbilled work inside tx. The
// selection predicate (billable, not billed, not locked) and the flag writes
// run in the same transaction, which is what prevents cross-batch races.
func (s *Service) generateForProject(ctx context.Context, tx *gorm.DB, batch *billingdomain.InvoiceBatch, clientID, projectID snowflake.ID, result *billingdomain.GenerateResult) (int, error) {
	created := 0
	now := s.clock.Now()

	var entries []timesheetdomain.TimeEntry
	if err := tx.WithContext(ctx).
		Where("project_id = ? AND billable = ? AND billed = ? AND locked = ?", projectID, true, false, false).
		Where("entry_date >= ? AND entry_date <= ?", batch.PeriodStart, batch.PeriodEnd).
		Order("entry_date ASC").
		Find(&entries).Error; err != nil {
		return 0, err
	}

	for _, entry := range entries {
		rate := entry.BillingRate
		if !rate.IsPositive() {
			resolved, err := s.resolver.Resolve(ctx, entry.PersonID, entry.ProjectID, entry.EntryDate)
			if err != nil {
				return 0, err
			}
			rate = resolved.BillingRate
		}
		if !rate.IsPositive() {
			warning := billingdomain.RateWarning{
				EntryID:   entry.ID,
				PersonID:  entry.PersonID,
				EntryDate: entry.EntryDate,
			}
			if person, perr := s.directory.Person(ctx, entry.PersonID); perr == nil {
				warning.PersonName = person.Name
			}
			result.Warnings = append(result.Warnings, warning)
			continue
		}

		amount := entry.Hours.Mul(rate).Round(2)
		personID := entry.PersonID
		entryID := entry.ID
		line := &billingdomain.InvoiceLine{
			ID:             s.genID.Generate(),
			TenantID:       batch.TenantID,
			BatchID:        batch.ID,
			ProjectID:      projectID,
			ClientID:       clientID,
			PersonID:       &personID,
			Type:           billingdomain.LineTypeTime,
			SourceEntryID:  &entryID,
			Description:    s.timeLineDescription(ctx, entry),
			Quantity:       entry.Hours,
			Rate:           rate,
			OriginalAmount: amount,
			BilledAmount:   amount,
			VarianceAmount: decimal.Zero,
			AdjustmentType: billingdomain.AdjustmentNone,
			Taxable:        true,
			CreatedAt:      now,
		}
		if err := tx.Create(line).Error; err != nil {
			return 0, err
		}

		if err := tx.Model(&timesheetdomain.TimeEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]any{
				"billed":           true,
				"locked":           true,
				"invoice_batch_id": batch.ID,
				"billing_rate":     rate,
			}).Error; err != nil {
			return 0, err
		}

		result.TimeEntriesBilled++
		created++
	}

	var expenses []timesheetdomain.Expense
	if err := tx.WithContext(ctx).
		Where("project_id = ? AND billable = ? AND billed = ?", projectID, true, false).
		Where("expense_date >= ? AND expense_date <= ?", batch.PeriodStart, batch.PeriodEnd).
		Order("expense_date ASC").
		Find(&expenses).Error; err != nil {
		return 0, err
	}

	for _, expense := range expenses {
		expenseID := expense.ID
		personID := expense.PersonID
		line := &billingdomain.InvoiceLine{
			ID:              s.genID.Generate(),
			TenantID:        batch.TenantID,
			BatchID:         batch.ID,
			ProjectID:       projectID,
			ClientID:        clientID,
			PersonID:        &personID,
			Type:            billingdomain.LineTypeExpense,
			SourceExpenseID: &expenseID,
			Description:     expenseLineDescription(expense),
			Quantity:        decimal.NewFromInt(1),
			Rate:            expense.Amount,
			OriginalAmount:  expense.Amount,
			BilledAmount:    expense.Amount,
			VarianceAmount:  decimal.Zero,
			AdjustmentType:  billingdomain.AdjustmentNone,
			Taxable:         false,
			CreatedAt:       now,
		}
		if err := tx.Create(line).Error; err != nil {
			return 0, err
		}

		if err := tx.Model(&timesheetdomain.Expense{}).
			Where("id = ?", expense.ID).
			Updates(map[string]any{
				"billed":           true,
				"invoice_batch_id": batch.ID,
			}).Error; err != nil {
			return 0, err
		}

		result.ExpensesBilled++
		created++
	}

	return created, nil
}

// timeLineDescription embeds person, notes and date for audit traceability.
func (s *Service) timeLineDescription(ctx context.Context, entry timesheetdomain.TimeEntry) string {
	personName := entry.PersonID.String()
	if person, err := s.directory.Person(ctx, entry.PersonID); err == nil {
		personName = person.Name
	}

	description := entry.Description
	if description == "" {
		description = "Professional services"
	}
	return fmt.Sprintf("%s: %s (%s)", personName, description, entry.EntryDate.Format("2006-01-02"))
}

func expenseLineDescription(expense timesheetdomain.Expense) string {
	description := expense.Description
	if description == "" {
		description = "Expense"
	}
	if expense.Category != "" {
		description = expense.Category + ": " + description
	}
	return fmt.Sprintf("%s (%s)", description, expense.ExpenseDate.Format("2006-01-02"))
}

func (s *Service) emitAuditByID(ctx context.Context, action string, batchID snowflake.ID, extra map[string]any) {
	if s.auditSvc == nil {
		return
	}
	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return
	}
	s.emitAudit(ctx, action, batch, extra)
}
