package service

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateLineBilledAmount(t *testing.T) {
	f := newFixture(t)

	f.createTimeEntry(t, "5", "100", 3)
	batch := f.generateProjectBatch(t)
	lines := f.batchLines(t, batch.ID)
	require.Len(t, lines, 1)

	editor := f.node.Generate()
	amount := decimal.RequireFromString("450")
	updated, err := f.svc.UpdateLine(f.ctx, lines[0].ID, billingdomain.LineChanges{
		BilledAmount: &amount,
	}, editor)
	require.NoError(t, err)

	assert.True(t, updated.BilledAmount.Equal(amount))
	assert.True(t, updated.VarianceAmount.Equal(decimal.RequireFromString("50")))
	assert.Equal(t, billingdomain.AdjustmentLine, updated.AdjustmentType)
	require.NotNil(t, updated.EditedBy)
	assert.Equal(t, editor, *updated.EditedBy)
	require.NotNil(t, updated.EditedAt)

	// Original amount is immutable; totals follow the billed amount.
	assert.True(t, updated.OriginalAmount.Equal(decimal.RequireFromString("500")))
	reloaded := f.reloadBatch(t, batch.ID)
	assert.True(t, reloaded.TotalAmount.Equal(amount))
}

func TestUpdateLineBackToOriginalClearsAdjustment(t *testing.T) {
	f := newFixture(t)

	f.createTimeEntry(t, "5", "100", 3)
	batch := f.generateProjectBatch(t)
	lines := f.batchLines(t, batch.ID)

	editor := f.node.Generate()
	lowered := decimal.RequireFromString("450")
	_, err := f.svc.UpdateLine(f.ctx, lines[0].ID, billingdomain.LineChanges{BilledAmount: &lowered}, editor)
	require.NoError(t, err)

	restored := decimal.RequireFromString("500")
	updated, err := f.svc.UpdateLine(f.ctx, lines[0].ID, billingdomain.LineChanges{BilledAmount: &restored}, editor)
	require.NoError(t, err)

	assert.Equal(t, billingdomain.AdjustmentNone, updated.AdjustmentType)
	assert.True(t, updated.VarianceAmount.IsZero())
}

func TestUpdateLineRejectsNegativeAmount(t *testing.T) {
	f := newFixture(t)

	f.createTimeEntry(t, "5", "100", 3)
	batch := f.generateProjectBatch(t)
	lines := f.batchLines(t, batch.ID)

	amount := decimal.RequireFromString("-1")
	_, err := f.svc.UpdateLine(f.ctx, lines[0].ID, billingdomain.LineChanges{
		BilledAmount: &amount,
	}, f.node.Generate())
	assert.ErrorIs(t, err, billingdomain.ErrInvalidTarget)
}

func TestUpdateLineDescriptionAndTaxable(t *testing.T) {
	f := newFixture(t)

	f.createTimeEntry(t, "5", "100", 3)
	batch := f.generateProjectBatch(t)
	lines := f.batchLines(t, batch.ID)

	description := "Discovery workshop"
	taxable := false
	updated, err := f.svc.UpdateLine(f.ctx, lines[0].ID, billingdomain.LineChanges{
		Description: &description,
		Taxable:     &taxable,
	}, f.node.Generate())
	require.NoError(t, err)

	assert.Equal(t, description, updated.Description)
	assert.False(t, updated.Taxable)
	assert.True(t, updated.BilledAmount.Equal(updated.OriginalAmount))
}

func TestUpdateLineRejectsFinalizedBatch(t *testing.T) {
	f := newFixture(t)

	f.createTimeEntry(t, "5", "100", 3)
	batch := f.generateProjectBatch(t)
	lines := f.batchLines(t, batch.ID)
	require.NoError(t, f.svc.Finalize(f.ctx, batch.ID, f.node.Generate()))

	amount := decimal.RequireFromString("450")
	_, err := f.svc.UpdateLine(f.ctx, lines[0].ID, billingdomain.LineChanges{
		BilledAmount: &amount,
	}, f.node.Generate())
	assert.ErrorIs(t, err, billingdomain.ErrBatchFinalized)
}

func TestUpdateLineNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateLine(f.ctx, f.node.Generate(), billingdomain.LineChanges{}, f.node.Generate())
	assert.ErrorIs(t, err, billingdomain.ErrLineNotFound)
}

func TestBulkUpdateLines(t *testing.T) {
	f := newFixture(t)
	batch, lines := twoLineBatch(t, f)

	a := decimal.RequireFromString("480")
	b := decimal.RequireFromString("320")
	err := f.svc.BulkUpdateLines(f.ctx, batch.ID, []billingdomain.BulkLineUpdate{
		{LineID: lines[0].ID, Changes: billingdomain.LineChanges{BilledAmount: &a}},
		{LineID: lines[1].ID, Changes: billingdomain.LineChanges{BilledAmount: &b}},
	}, f.node.Generate())
	require.NoError(t, err)

	updated := f.batchLines(t, batch.ID)
	assert.True(t, updated[0].BilledAmount.Equal(a))
	assert.True(t, updated[1].BilledAmount.Equal(b))

	reloaded := f.reloadBatch(t, batch.ID)
	assert.True(t, reloaded.TotalAmount.Equal(decimal.RequireFromString("800")))
}

func TestBulkUpdateRollsBackOnBadLine(t *testing.T) {
	f := newFixture(t)
	batch, lines := twoLineBatch(t, f)

	a := decimal.RequireFromString("480")
	err := f.svc.BulkUpdateLines(f.ctx, batch.ID, []billingdomain.BulkLineUpdate{
		{LineID: lines[0].ID, Changes: billingdomain.LineChanges{BilledAmount: &a}},
		{LineID: f.node.Generate(), Changes: billingdomain.LineChanges{BilledAmount: &a}},
	}, f.node.Generate())
	assert.ErrorIs(t, err, billingdomain.ErrLineNotFound)

	// The first edit must not survive the failed set.
	untouched := f.batchLines(t, batch.ID)
	assert.True(t, untouched[0].BilledAmount.Equal(decimal.RequireFromString("500")))
}

func TestBulkUpdateRejectsCrossBatchLine(t *testing.T) {
	f := newFixture(t)

	f.createTimeEntry(t, "5", "100", 3)
	first := f.generateProjectBatch(t)
	firstLines := f.batchLines(t, first.ID)

	f.createTimeEntry(t, "2", "100", 10)
	second := f.createBatch(t, billingdomain.ModeProject)
	_, err := f.svc.Generate(f.ctx, billingdomain.GenerateRequest{
		BatchID:    second.ID,
		ProjectIDs: []snowflake.ID{f.project.ID},
	})
	require.NoError(t, err)

	amount := decimal.RequireFromString("100")
	err = f.svc.BulkUpdateLines(f.ctx, second.ID, []billingdomain.BulkLineUpdate{
		{LineID: firstLines[0].ID, Changes: billingdomain.LineChanges{BilledAmount: &amount}},
	}, f.node.Generate())
	assert.ErrorIs(t, err, billingdomain.ErrLineNotFound)
}

func TestBulkUpdateEmptySetIsNoop(t *testing.T) {
	f := newFixture(t)

	err := f.svc.BulkUpdateLines(f.ctx, f.node.Generate(), nil, f.node.Generate())
	assert.NoError(t, err)
}
