package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	"gorm.io/gorm"
)

// RecalculateBatchTax recomputes the batch subtotal and tax from its current
// lines and persists both.
func (s *Service) RecalculateBatchTax(ctx context.Context, batchID snowflake.ID) (*billingdomain.InvoiceBatch, error) {
	var updated *billingdomain.InvoiceBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := s.recalculateBatchTotalsTx(ctx, tx, batchID)
		if err != nil {
			return err
		}
		updated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// recalculateBatchTotalsTx derives TotalAmount and TaxAmount from the lines
// inside tx. TotalAmount is the pre-tax sum of billed amounts; TaxAmount is
// the taxable subtotal times the batch rate, unless an explicit override is
// set, in which case the override wins verbatim.
func (s *Service) recalculateBatchTotalsTx(ctx context.Context, tx *gorm.DB, batchID snowflake.ID) (*billingdomain.InvoiceBatch, error) {
	batch, err := s.loadBatchForUpdate(ctx, tx, batchID)
	if err != nil {
		return nil, err
	}

	var lines []billingdomain.InvoiceLine
	if err := tx.WithContext(ctx).Where("batch_id = ?", batchID).Find(&lines).Error; err != nil {
		return nil, err
	}

	total := decimal.Zero
	taxable := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.BilledAmount)
		if line.Taxable {
			taxable = taxable.Add(line.BilledAmount)
		}
	}

	taxAmount := taxable.Mul(batch.TaxRate).Round(2)
	if batch.TaxAmountOverride != nil {
		taxAmount = *batch.TaxAmountOverride
	}

	batch.TotalAmount = total
	batch.TaxAmount = taxAmount
	batch.UpdatedAt = s.clock.Now()

	if err := tx.Model(&billingdomain.InvoiceBatch{}).
		Where("id = ?", batch.ID).
		Updates(map[string]any{
			"total_amount": batch.TotalAmount,
			"tax_amount":   batch.TaxAmount,
			"updated_at":   batch.UpdatedAt,
		}).Error; err != nil {
		return nil, err
	}
	return batch, nil
}
