package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	"gorm.io/gorm"
)

// UpdateLine applies a partial edit to a single line and recomputes batch
// totals. Lines on a finalized batch are immutable.
func (s *Service) UpdateLine(ctx context.Context, lineID snowflake.ID, changes billingdomain.LineChanges, editor snowflake.ID) (*billingdomain.InvoiceLine, error) {
	var updated *billingdomain.InvoiceLine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := s.applyLineChangesTx(ctx, tx, lineID, changes, editor)
		if err != nil {
			return err
		}
		updated = line

		_, err = s.recalculateBatchTotalsTx(ctx, tx, line.BatchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// BulkUpdateLines edits several lines of one batch atomically. Any failing
// edit rolls back the whole set, then totals are recomputed once.
func (s *Service) BulkUpdateLines(ctx context.Context, batchID snowflake.ID, updates []billingdomain.BulkLineUpdate, editor snowflake.ID) error {
	if len(updates) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := s.loadBatchForUpdate(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if batch.Status == billingdomain.BatchStatusFinalized {
			return billingdomain.ErrBatchFinalized
		}

		for _, update := range updates {
			line, err := s.applyLineChangesTx(ctx, tx, update.LineID, update.Changes, editor)
			if err != nil {
				return err
			}
			if line.BatchID != batchID {
				return billingdomain.ErrLineNotFound
			}
		}

		_, err = s.recalculateBatchTotalsTx(ctx, tx, batchID)
		return err
	})
}

func (s *Service) applyLineChangesTx(ctx context.Context, tx *gorm.DB, lineID snowflake.ID, changes billingdomain.LineChanges, editor snowflake.ID) (*billingdomain.InvoiceLine, error) {
	var line billingdomain.InvoiceLine
	if err := tx.WithContext(ctx).First(&line, "id = ?", lineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billingdomain.ErrLineNotFound
		}
		return nil, err
	}

	var batch billingdomain.InvoiceBatch
	if err := tx.WithContext(ctx).First(&batch, "id = ?", line.BatchID).Error; err != nil {
		return nil, err
	}
	if batch.Status == billingdomain.BatchStatusFinalized {
		return nil, billingdomain.ErrBatchFinalized
	}

	fields := map[string]any{}

	if changes.Description != nil {
		line.Description = *changes.Description
		fields["description"] = line.Description
	}
	if changes.Taxable != nil {
		line.Taxable = *changes.Taxable
		fields["taxable"] = line.Taxable
	}
	if changes.MilestoneID != nil {
		line.MilestoneID = changes.MilestoneID
		fields["milestone_id"] = *changes.MilestoneID
	}
	if changes.BilledAmount != nil {
		if changes.BilledAmount.IsNegative() {
			return nil, billingdomain.ErrInvalidTarget
		}
		line.BilledAmount = changes.BilledAmount.Round(2)
		line.VarianceAmount = line.OriginalAmount.Sub(line.BilledAmount)
		if line.BilledAmount.Equal(line.OriginalAmount) {
			line.AdjustmentType = billingdomain.AdjustmentNone
		} else {
			line.AdjustmentType = billingdomain.AdjustmentLine
		}
		fields["billed_amount"] = line.BilledAmount
		fields["variance_amount"] = line.VarianceAmount
		fields["adjustment_type"] = line.AdjustmentType
	}

	if len(fields) == 0 {
		return &line, nil
	}

	now := s.clock.Now()
	line.EditedBy = &editor
	line.EditedAt = &now
	fields["edited_by"] = editor
	fields["edited_at"] = now

	if err := tx.Model(&billingdomain.InvoiceLine{}).
		Where("id = ?", lineID).
		Updates(fields).Error; err != nil {
		return nil, err
	}
	return &line, nil
}
