package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ApplyAggregateAdjustment reallocates the billed amounts of a batch (or one
// project within it) so their sum hits a contracted target. Per-line results
// round to cents with the final line absorbing the rounding remainder, so the
// adjusted subtotal equals the target exactly.
func (s *Service) ApplyAggregateAdjustment(ctx context.Context, req billingdomain.ApplyAdjustmentRequest) (*billingdomain.InvoiceAdjustment, error) {
	if !req.Method.Valid() {
		return nil, billingdomain.ErrInvalidMethod
	}
	if req.TargetAmount.IsNegative() {
		return nil, billingdomain.ErrInvalidTarget
	}
	if req.Method == billingdomain.AllocManual && len(req.Allocation) == 0 {
		return nil, billingdomain.ErrMissingAllocation
	}

	var adjustment *billingdomain.InvoiceAdjustment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := s.loadBatchForUpdate(ctx, tx, req.BatchID)
		if err != nil {
			return err
		}
		if batch.Status == billingdomain.BatchStatusFinalized {
			return billingdomain.ErrBatchFinalized
		}

		query := tx.WithContext(ctx).Where("batch_id = ?", req.BatchID)
		if req.ProjectID != nil {
			query = query.Where("project_id = ?", *req.ProjectID)
		}
		var lines []billingdomain.InvoiceLine
		if err := query.Order("id ASC").Find(&lines).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return billingdomain.ErrBatchEmpty
		}

		currentTotal := decimal.Zero
		for _, line := range lines {
			currentTotal = currentTotal.Add(line.OriginalAmount)
		}

		allocated, err := allocate(req.Method, req.TargetAmount, currentTotal, lines, req.Allocation)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		editor := req.CreatedBy
		allocationMeta := map[string]any{}
		for i, line := range lines {
			newBilled, ok := allocated[line.ID]
			if !ok {
				continue
			}
			lines[i].BilledAmount = newBilled
			lines[i].VarianceAmount = line.OriginalAmount.Sub(newBilled)
			allocationMeta[line.ID.String()] = newBilled.String()

			if err := tx.Model(&billingdomain.InvoiceLine{}).
				Where("id = ?", line.ID).
				Updates(map[string]any{
					"billed_amount":   newBilled,
					"variance_amount": lines[i].VarianceAmount,
					"adjustment_type": billingdomain.AdjustmentAggregate,
					"edited_by":       editor,
					"edited_at":       now,
				}).Error; err != nil {
				return err
			}
		}

		metadata := map[string]any{
			billingdomain.MetaAllocation:       allocationMeta,
			billingdomain.MetaOriginalAmount:   currentTotal.String(),
			billingdomain.MetaAffectedLines:    len(allocationMeta),
			billingdomain.MetaAdjustmentAmount: req.TargetAmount.Sub(currentTotal).String(),
		}
		if currentTotal.IsPositive() {
			metadata[billingdomain.MetaAdjustmentRatio] = req.TargetAmount.Div(currentTotal).Round(6).String()
		}

		adjustment = &billingdomain.InvoiceAdjustment{
			ID:           s.genID.Generate(),
			TenantID:     batch.TenantID,
			BatchID:      req.BatchID,
			ProjectID:    req.ProjectID,
			Method:       req.Method,
			TargetAmount: req.TargetAmount,
			Reason:       req.Reason,
			SOWRef:       req.SOWRef,
			CreatedBy:    req.CreatedBy,
			Metadata:     datatypes.JSONMap(metadata),
			CreatedAt:    now,
		}
		if err := tx.Create(adjustment).Error; err != nil {
			return err
		}

		_, err = s.recalculateBatchTotalsTx(ctx, tx, req.BatchID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("aggregate adjustment applied",
		zap.String("batch_id", req.BatchID.String()),
		zap.String("method", string(req.Method)),
		zap.String("target_amount", req.TargetAmount.String()),
	)
	s.emitAuditByID(ctx, "adjustment.applied", req.BatchID, map[string]any{
		"adjustment_id": adjustment.ID.String(),
		"method":        string(req.Method),
		"target_amount": req.TargetAmount.String(),
	})
	return adjustment, nil
}

// allocate computes the new billed amount per line. Manual touches only the
// mapped lines; the other methods spread the target over every line in scope.
func allocate(method billingdomain.AllocationMethod, target, currentTotal decimal.Decimal, lines []billingdomain.InvoiceLine, manual map[snowflake.ID]decimal.Decimal) (map[snowflake.ID]decimal.Decimal, error) {
	out := make(map[snowflake.ID]decimal.Decimal, len(lines))

	if method == billingdomain.AllocManual {
		for _, line := range lines {
			amount, ok := manual[line.ID]
			if !ok {
				continue
			}
			if amount.IsNegative() {
				amount = decimal.Zero
			}
			out[line.ID] = amount.Round(2)
		}
		if len(out) == 0 {
			return nil, billingdomain.ErrMissingAllocation
		}
		return out, nil
	}

	weights := make([]decimal.Decimal, len(lines))
	totalWeight := decimal.Zero
	for i, line := range lines {
		switch method {
		case billingdomain.AllocProRataAmount:
			weights[i] = line.OriginalAmount
		case billingdomain.AllocProRataHours:
			if line.Type == billingdomain.LineTypeTime {
				weights[i] = line.Quantity
			} else {
				weights[i] = decimal.Zero
			}
		case billingdomain.AllocFlat:
			weights[i] = decimal.NewFromInt(1)
		}
		totalWeight = totalWeight.Add(weights[i])
	}

	// A zero weight base (all-zero lines, or hours weighting over pure
	// expense batches) degrades to an equal split.
	if !totalWeight.IsPositive() {
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
		totalWeight = decimal.NewFromInt(int64(len(lines)))
	}

	running := decimal.Zero
	for i, line := range lines {
		var amount decimal.Decimal
		if i == len(lines)-1 {
			// Last line absorbs the rounding remainder.
			amount = target.Sub(running)
		} else {
			amount = target.Mul(weights[i]).Div(totalWeight).Round(2)
		}
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		out[line.ID] = amount
		running = running.Add(amount)
	}
	return out, nil
}

// RemoveAdjustment reverses an aggregate adjustment by restoring every
// affected line to its original amount, then deletes the adjustment record.
func (s *Service) RemoveAdjustment(ctx context.Context, adjustmentID snowflake.ID) error {
	var batchID snowflake.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var adjustment billingdomain.InvoiceAdjustment
		if err := tx.WithContext(ctx).First(&adjustment, "id = ?", adjustmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return billingdomain.ErrAdjustmentNotFound
			}
			return err
		}
		batchID = adjustment.BatchID

		batch, err := s.loadBatchForUpdate(ctx, tx, adjustment.BatchID)
		if err != nil {
			return err
		}
		if batch.Status == billingdomain.BatchStatusFinalized {
			return billingdomain.ErrBatchFinalized
		}

		allocation, _ := adjustment.Metadata[billingdomain.MetaAllocation].(map[string]any)
		for rawID := range allocation {
			lineID, err := snowflake.ParseString(rawID)
			if err != nil {
				continue
			}
			if err := tx.Model(&billingdomain.InvoiceLine{}).
				Where("id = ? AND batch_id = ?", lineID, adjustment.BatchID).
				Updates(map[string]any{
					"billed_amount":   gorm.Expr("original_amount"),
					"variance_amount": decimal.Zero,
					"adjustment_type": billingdomain.AdjustmentNone,
				}).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&billingdomain.InvoiceAdjustment{}, "id = ?", adjustmentID).Error; err != nil {
			return err
		}

		_, err = s.recalculateBatchTotalsTx(ctx, tx, adjustment.BatchID)
		return err
	})
	if err != nil {
		return err
	}

	s.emitAuditByID(ctx, "adjustment.removed", batchID, map[string]any{
		"adjustment_id": adjustmentID.String(),
	})
	return nil
}

func (s *Service) ListAdjustments(ctx context.Context, batchID snowflake.ID) ([]billingdomain.InvoiceAdjustment, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}

	var adjustments []billingdomain.InvoiceAdjustment
	err := s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at DESC").
		Find(&adjustments).Error
	return adjustments, err
}
