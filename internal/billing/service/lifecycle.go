package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Review moves a draft batch to reviewed and records reviewer notes.
func (s *Service) Review(ctx context.Context, batchID snowflake.ID, notes string) error {
	var batch *billingdomain.InvoiceBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadBatchForUpdate(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if loaded.Status != billingdomain.BatchStatusDraft {
			return billingdomain.ErrBatchNotDraft
		}

		loaded.Status = billingdomain.BatchStatusReviewed
		loaded.ReviewNotes = notes
		loaded.UpdatedAt = s.clock.Now()
		batch = loaded

		return tx.Model(&billingdomain.InvoiceBatch{}).
			Where("id = ?", batchID).
			Updates(map[string]any{
				"status":       loaded.Status,
				"review_notes": notes,
				"updated_at":   loaded.UpdatedAt,
			}).Error
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, "batch.reviewed", batch, nil)
	return nil
}

// Finalize locks the batch for export. Totals and tax are recomputed one last
// time from the lines, so the finalized figures always match what a reviewer
// saw after the most recent edit.
func (s *Service) Finalize(ctx context.Context, batchID, userID snowflake.ID) error {
	var batch *billingdomain.InvoiceBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadBatchForUpdate(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if loaded.Status == billingdomain.BatchStatusFinalized {
			return billingdomain.ErrBatchFinalized
		}

		var lineCount int64
		if err := tx.Model(&billingdomain.InvoiceLine{}).
			Where("batch_id = ?", batchID).
			Count(&lineCount).Error; err != nil {
			return err
		}
		if lineCount == 0 {
			return billingdomain.ErrBatchEmpty
		}

		recalced, err := s.recalculateBatchTotalsTx(ctx, tx, batchID)
		if err != nil {
			return err
		}

		// Source entries were locked at generation, but an unfinalize may
		// have unlocked and detached them since. Re-assert lock and batch
		// reference for every entry the batch's lines came from.
		entryIDs := tx.Model(&billingdomain.InvoiceLine{}).
			Select("source_entry_id").
			Where("batch_id = ? AND source_entry_id IS NOT NULL", batchID)
		if err := tx.Model(&timesheetdomain.TimeEntry{}).
			Where("id IN (?)", entryIDs).
			Updates(map[string]any{
				"locked":           true,
				"invoice_batch_id": batchID,
			}).Error; err != nil {
			return err
		}

		now := s.clock.Now()
		recalced.Status = billingdomain.BatchStatusFinalized
		recalced.FinalizedBy = &userID
		recalced.FinalizedAt = &now
		recalced.UpdatedAt = now
		batch = recalced

		return tx.Model(&billingdomain.InvoiceBatch{}).
			Where("id = ?", batchID).
			Updates(map[string]any{
				"status":       recalced.Status,
				"finalized_by": userID,
				"finalized_at": now,
				"updated_at":   now,
			}).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("invoice batch finalized",
		zap.String("batch_number", batch.BatchNumber),
		zap.String("total_amount", batch.TotalAmount.String()),
	)
	s.emitAudit(ctx, "batch.finalized", batch, map[string]any{
		"finalized_by": userID.String(),
	})
	return nil
}

// Unfinalize reopens a finalized batch for correction: entries unlock and
// detach from the batch, but stay billed. The lines persist, so were the
// billed flag cleared too, a re-run of Generate would bill the same work a
// second time. Exported batches cannot reopen.
func (s *Service) Unfinalize(ctx context.Context, batchID snowflake.ID) error {
	var batch *billingdomain.InvoiceBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadBatchForUpdate(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if loaded.Status != billingdomain.BatchStatusFinalized {
			return billingdomain.ErrBatchNotFinalized
		}
		if loaded.ExportedToQBO {
			return billingdomain.ErrBatchExported
		}

		if err := tx.Model(&timesheetdomain.TimeEntry{}).
			Where("invoice_batch_id = ?", batchID).
			Updates(map[string]any{
				"locked":           false,
				"invoice_batch_id": nil,
			}).Error; err != nil {
			return err
		}

		now := s.clock.Now()
		loaded.Status = billingdomain.BatchStatusDraft
		loaded.FinalizedBy = nil
		loaded.FinalizedAt = nil
		loaded.UpdatedAt = now
		batch = loaded

		return tx.Model(&billingdomain.InvoiceBatch{}).
			Where("id = ?", batchID).
			Updates(map[string]any{
				"status":       billingdomain.BatchStatusDraft,
				"finalized_by": nil,
				"finalized_at": nil,
				"updated_at":   now,
			}).Error
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, "batch.unfinalized", batch, nil)
	return nil
}

// Export marks a finalized batch as handed off to the accounting system.
// Export is terminal: an exported batch can no longer be reopened or deleted.
func (s *Service) Export(ctx context.Context, batchID snowflake.ID) error {
	var batch *billingdomain.InvoiceBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadBatchForUpdate(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if loaded.Status != billingdomain.BatchStatusFinalized {
			return billingdomain.ErrBatchNotFinalized
		}

		loaded.ExportedToQBO = true
		loaded.UpdatedAt = s.clock.Now()
		batch = loaded

		return tx.Model(&billingdomain.InvoiceBatch{}).
			Where("id = ?", batchID).
			Updates(map[string]any{
				"exported_to_qbo": true,
				"updated_at":      loaded.UpdatedAt,
			}).Error
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, "batch.exported", batch, nil)
	return nil
}

// Delete removes a batch and reverses its billing side effects, returning
// every source entry and expense to the unbilled pool. Finalized batches
// require force; exported batches never delete.
func (s *Service) Delete(ctx context.Context, batchID snowflake.ID, force bool) error {
	var batch *billingdomain.InvoiceBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.loadBatchForUpdate(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if loaded.ExportedToQBO {
			return billingdomain.ErrBatchExported
		}
		if loaded.Status == billingdomain.BatchStatusFinalized && !force {
			return billingdomain.ErrBatchFinalized
		}
		batch = loaded

		// Reverse through the lines' source references rather than the
		// entries' batch reference: an unfinalized batch has already
		// detached its entries but they must still become billable again.
		entryIDs := tx.Model(&billingdomain.InvoiceLine{}).
			Select("source_entry_id").
			Where("batch_id = ? AND source_entry_id IS NOT NULL", batchID)
		if err := tx.Model(&timesheetdomain.TimeEntry{}).
			Where("id IN (?) OR invoice_batch_id = ?", entryIDs, batchID).
			Updates(map[string]any{
				"billed":           false,
				"locked":           false,
				"invoice_batch_id": nil,
			}).Error; err != nil {
			return err
		}

		expenseIDs := tx.Model(&billingdomain.InvoiceLine{}).
			Select("source_expense_id").
			Where("batch_id = ? AND source_expense_id IS NOT NULL", batchID)
		if err := tx.Model(&timesheetdomain.Expense{}).
			Where("id IN (?) OR invoice_batch_id = ?", expenseIDs, batchID).
			Updates(map[string]any{
				"billed":           false,
				"invoice_batch_id": nil,
			}).Error; err != nil {
			return err
		}

		if err := tx.Where("batch_id = ?", batchID).
			Delete(&billingdomain.InvoiceAdjustment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("batch_id = ?", batchID).
			Delete(&billingdomain.InvoiceLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&billingdomain.InvoiceBatch{}, "id = ?", batchID).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("invoice batch deleted",
		zap.String("batch_number", batch.BatchNumber),
		zap.Bool("force", force),
	)
	s.emitAudit(ctx, "batch.deleted", batch, map[string]any{"force": force})
	return nil
}
