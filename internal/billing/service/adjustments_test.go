package service

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoLineBatch generates a batch with two time lines of 500 and 350.
func twoLineBatch(t *testing.T, f *fixture) (*billingdomain.InvoiceBatch, []billingdomain.InvoiceLine) {
	t.Helper()

	f.createTimeEntry(t, "5", "100", 3)
	f.createTimeEntry(t, "3.5", "100", 5)
	batch := f.generateProjectBatch(t)

	lines := f.batchLines(t, batch.ID)
	require.Len(t, lines, 2)
	return batch, lines
}

func TestApplyProRataAmountAdjustment(t *testing.T) {
	f := newFixture(t)
	batch, _ := twoLineBatch(t, f)

	adjustment, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("765"),
		Method:       billingdomain.AllocProRataAmount,
		Reason:       "SOW cap",
		SOWRef:       "SOW-114",
		CreatedBy:    f.node.Generate(),
	})
	require.NoError(t, err)

	lines := f.batchLines(t, batch.ID)
	require.Len(t, lines, 2)

	// 765 split 500:350 is exactly 450 and 315.
	assert.True(t, lines[0].BilledAmount.Equal(decimal.RequireFromString("450")))
	assert.True(t, lines[1].BilledAmount.Equal(decimal.RequireFromString("315")))
	assert.True(t, lines[0].VarianceAmount.Equal(decimal.RequireFromString("50")))
	assert.True(t, lines[1].VarianceAmount.Equal(decimal.RequireFromString("35")))
	for _, line := range lines {
		assert.Equal(t, billingdomain.AdjustmentAggregate, line.AdjustmentType)
		assert.NotNil(t, line.EditedBy)
		assert.NotNil(t, line.EditedAt)
	}

	reloaded := f.reloadBatch(t, batch.ID)
	assert.True(t, reloaded.TotalAmount.Equal(decimal.RequireFromString("765")))

	assert.Equal(t, "850", adjustment.Metadata[billingdomain.MetaOriginalAmount])
	assert.Equal(t, "-85", adjustment.Metadata[billingdomain.MetaAdjustmentAmount])
	assert.Equal(t, "0.9", adjustment.Metadata[billingdomain.MetaAdjustmentRatio])
}

func TestAdjustmentLastLineAbsorbsRemainder(t *testing.T) {
	f := newFixture(t)

	f.createTimeEntry(t, "1", "100", 3)
	f.createTimeEntry(t, "1", "100", 4)
	f.createTimeEntry(t, "1", "100", 5)
	batch := f.generateProjectBatch(t)

	// 100 over three equal lines rounds to 33.33 + 33.33 + 33.34.
	_, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("100"),
		Method:       billingdomain.AllocFlat,
		CreatedBy:    f.node.Generate(),
	})
	require.NoError(t, err)

	lines := f.batchLines(t, batch.ID)
	require.Len(t, lines, 3)
	assert.True(t, lines[0].BilledAmount.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, lines[1].BilledAmount.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, lines[2].BilledAmount.Equal(decimal.RequireFromString("33.34")))

	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.BilledAmount)
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("100")))
}

func TestProRataHoursIgnoresExpenses(t *testing.T) {
	f := newFixture(t)

	f.createTimeEntry(t, "6", "100", 3)
	f.createTimeEntry(t, "2", "100", 4)
	f.createExpense(t, "80", 5)
	batch := f.generateProjectBatch(t)

	_, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("400"),
		Method:       billingdomain.AllocProRataHours,
		CreatedBy:    f.node.Generate(),
	})
	require.NoError(t, err)

	lines := f.batchLines(t, batch.ID)
	require.Len(t, lines, 3)

	var time6, time2, expense billingdomain.InvoiceLine
	for _, line := range lines {
		switch {
		case line.Type == billingdomain.LineTypeExpense:
			expense = line
		case line.Quantity.Equal(decimal.RequireFromString("6")):
			time6 = line
		default:
			time2 = line
		}
	}

	// Hours weight 6:2:0 over 400 gives 300 and 100; the expense carries no
	// weight but is last in scope and absorbs the zero remainder.
	assert.True(t, time6.BilledAmount.Equal(decimal.RequireFromString("300")))
	assert.True(t, time2.BilledAmount.Equal(decimal.RequireFromString("100")))
	assert.True(t, expense.BilledAmount.IsZero())
}

func TestManualAllocation(t *testing.T) {
	f := newFixture(t)
	batch, lines := twoLineBatch(t, f)

	_, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("420"),
		Method:       billingdomain.AllocManual,
		CreatedBy:    f.node.Generate(),
		Allocation: map[snowflake.ID]decimal.Decimal{
			lines[0].ID: decimal.RequireFromString("420"),
		},
	})
	require.NoError(t, err)

	updated := f.batchLines(t, batch.ID)
	assert.True(t, updated[0].BilledAmount.Equal(decimal.RequireFromString("420")))
	assert.Equal(t, billingdomain.AdjustmentAggregate, updated[0].AdjustmentType)

	// Unmapped lines are untouched.
	assert.True(t, updated[1].BilledAmount.Equal(decimal.RequireFromString("350")))
	assert.Equal(t, billingdomain.AdjustmentNone, updated[1].AdjustmentType)

	reloaded := f.reloadBatch(t, batch.ID)
	assert.True(t, reloaded.TotalAmount.Equal(decimal.RequireFromString("770")))
}

func TestManualAllocationClampsNegative(t *testing.T) {
	f := newFixture(t)
	batch, lines := twoLineBatch(t, f)

	_, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.Zero,
		Method:       billingdomain.AllocManual,
		CreatedBy:    f.node.Generate(),
		Allocation: map[snowflake.ID]decimal.Decimal{
			lines[0].ID: decimal.RequireFromString("-10"),
		},
	})
	require.NoError(t, err)

	updated := f.batchLines(t, batch.ID)
	assert.True(t, updated[0].BilledAmount.IsZero())
}

func TestManualAllocationRequiresMappedLines(t *testing.T) {
	f := newFixture(t)
	batch, _ := twoLineBatch(t, f)

	_, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("100"),
		Method:       billingdomain.AllocManual,
		CreatedBy:    f.node.Generate(),
		Allocation: map[snowflake.ID]decimal.Decimal{
			f.node.Generate(): decimal.RequireFromString("100"),
		},
	})
	assert.ErrorIs(t, err, billingdomain.ErrMissingAllocation)

	_, err = f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("100"),
		Method:       billingdomain.AllocManual,
		CreatedBy:    f.node.Generate(),
	})
	assert.ErrorIs(t, err, billingdomain.ErrMissingAllocation)
}

func TestAdjustmentValidation(t *testing.T) {
	f := newFixture(t)
	batch, _ := twoLineBatch(t, f)

	_, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("100"),
		Method:       "percentage",
		CreatedBy:    f.node.Generate(),
	})
	assert.ErrorIs(t, err, billingdomain.ErrInvalidMethod)

	_, err = f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("-1"),
		Method:       billingdomain.AllocFlat,
		CreatedBy:    f.node.Generate(),
	})
	assert.ErrorIs(t, err, billingdomain.ErrInvalidTarget)
}

func TestAdjustmentRejectsFinalizedBatch(t *testing.T) {
	f := newFixture(t)
	batch, _ := twoLineBatch(t, f)

	adjustment, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("765"),
		Method:       billingdomain.AllocProRataAmount,
		CreatedBy:    f.node.Generate(),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Finalize(f.ctx, batch.ID, f.node.Generate()))

	_, err = f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("700"),
		Method:       billingdomain.AllocProRataAmount,
		CreatedBy:    f.node.Generate(),
	})
	assert.ErrorIs(t, err, billingdomain.ErrBatchFinalized)

	assert.ErrorIs(t, f.svc.RemoveAdjustment(f.ctx, adjustment.ID), billingdomain.ErrBatchFinalized)
}

func TestAdjustmentRejectsEmptyScope(t *testing.T) {
	f := newFixture(t)

	batch := f.createBatch(t, billingdomain.ModeProject)
	_, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("100"),
		Method:       billingdomain.AllocFlat,
		CreatedBy:    f.node.Generate(),
	})
	assert.ErrorIs(t, err, billingdomain.ErrBatchEmpty)
}

func TestRemoveAdjustmentRestoresLines(t *testing.T) {
	f := newFixture(t)
	batch, _ := twoLineBatch(t, f)

	adjustment, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("765"),
		Method:       billingdomain.AllocProRataAmount,
		CreatedBy:    f.node.Generate(),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveAdjustment(f.ctx, adjustment.ID))

	lines := f.batchLines(t, batch.ID)
	for _, line := range lines {
		assert.True(t, line.BilledAmount.Equal(line.OriginalAmount))
		assert.True(t, line.VarianceAmount.IsZero())
		assert.Equal(t, billingdomain.AdjustmentNone, line.AdjustmentType)
	}

	reloaded := f.reloadBatch(t, batch.ID)
	assert.True(t, reloaded.TotalAmount.Equal(decimal.RequireFromString("850")))

	remaining, err := f.svc.ListAdjustments(f.ctx, batch.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	assert.ErrorIs(t, f.svc.RemoveAdjustment(f.ctx, adjustment.ID), billingdomain.ErrAdjustmentNotFound)
}

func TestAdjustmentScopedToProject(t *testing.T) {
	f := newFixture(t)

	second := f.project
	second.ID = f.node.Generate()
	second.Name = "Data Migration"
	second.Code = "ACME-002"
	require.NoError(t, f.db.Create(&second).Error)

	f.createTimeEntry(t, "5", "100", 3)
	other := f.createTimeEntry(t, "4", "100", 4)
	require.NoError(t, f.db.Model(&other).Update("project_id", second.ID).Error)

	batch := f.createBatch(t, billingdomain.ModeClient)
	_, err := f.svc.Generate(f.ctx, billingdomain.GenerateRequest{
		BatchID:   batch.ID,
		ClientIDs: []snowflake.ID{f.client.ID},
	})
	require.NoError(t, err)

	_, err = f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		ProjectID:    &second.ID,
		TargetAmount: decimal.RequireFromString("300"),
		Method:       billingdomain.AllocProRataAmount,
		CreatedBy:    f.node.Generate(),
	})
	require.NoError(t, err)

	lines := f.batchLines(t, batch.ID)
	for _, line := range lines {
		if line.ProjectID == second.ID {
			assert.True(t, line.BilledAmount.Equal(decimal.RequireFromString("300")))
		} else {
			assert.True(t, line.BilledAmount.Equal(line.OriginalAmount))
		}
	}

	reloaded := f.reloadBatch(t, batch.ID)
	assert.True(t, reloaded.TotalAmount.Equal(decimal.RequireFromString("800")))
}

func TestFlatAllocationOnZeroValueLines(t *testing.T) {
	f := newFixture(t)
	batch, lines := twoLineBatch(t, f)

	// Zero out the originals so pro-rata weights collapse, then verify the
	// equal-split fallback.
	for _, line := range lines {
		require.NoError(t, f.db.Model(&billingdomain.InvoiceLine{}).
			Where("id = ?", line.ID).
			Update("original_amount", decimal.Zero).Error)
	}

	_, err := f.svc.ApplyAggregateAdjustment(f.ctx, billingdomain.ApplyAdjustmentRequest{
		BatchID:      batch.ID,
		TargetAmount: decimal.RequireFromString("100"),
		Method:       billingdomain.AllocProRataAmount,
		CreatedBy:    f.node.Generate(),
	})
	require.NoError(t, err)

	updated := f.batchLines(t, batch.ID)
	assert.True(t, updated[0].BilledAmount.Equal(decimal.RequireFromString("50")))
	assert.True(t, updated[1].BilledAmount.Equal(decimal.RequireFromString("50")))
}
