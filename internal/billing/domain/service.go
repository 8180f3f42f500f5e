package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateBatchRequest struct {
	PeriodStart     time.Time
	PeriodEnd       time.Time
	Mode            InvoiceMode
	DiscountPercent decimal.Decimal
	DiscountFlat    decimal.Decimal
	TaxRate         *decimal.Decimal // nil uses the configured default
}

type GenerateRequest struct {
	BatchID    snowflake.ID
	ClientIDs  []snowflake.ID // mode=client
	ProjectIDs []snowflake.ID // mode=project
}

// RateWarning reports a time entry skipped during generation because no
// positive rate resolved. The entry stays unbilled.
type RateWarning struct {
	EntryID    snowflake.ID `json:"entry_id"`
	PersonID   snowflake.ID `json:"person_id"`
	PersonName string       `json:"person_name"`
	EntryDate  time.Time    `json:"entry_date"`
}

type GenerateResult struct {
	InvoicesCreated   int             `json:"invoices_created"`
	TimeEntriesBilled int             `json:"time_entries_billed"`
	ExpensesBilled    int             `json:"expenses_billed"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Warnings          []RateWarning   `json:"warnings"`
}

// LineChanges carries a partial line edit. Nil fields are untouched.
type LineChanges struct {
	Description  *string
	BilledAmount *decimal.Decimal
	Taxable      *bool
	MilestoneID  *snowflake.ID
}

type BulkLineUpdate struct {
	LineID  snowflake.ID
	Changes LineChanges
}

type ApplyAdjustmentRequest struct {
	BatchID      snowflake.ID
	ProjectID    *snowflake.ID // narrows scope to one project's lines
	TargetAmount decimal.Decimal
	Method       AllocationMethod
	Reason       string
	SOWRef       string
	CreatedBy    snowflake.ID
	// Allocation is required for the manual method: explicit amounts keyed
	// by line ID.
	Allocation map[snowflake.ID]decimal.Decimal
}

type Service interface {
	CreateBatch(ctx context.Context, req CreateBatchRequest) (*InvoiceBatch, error)
	PreviewBatchID(ctx context.Context, periodStart time.Time) (string, error)
	GetBatch(ctx context.Context, id snowflake.ID) (*InvoiceBatch, error)
	ListBatches(ctx context.Context) ([]InvoiceBatch, error)
	Lines(ctx context.Context, batchID snowflake.ID) ([]InvoiceLine, error)

	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)

	Review(ctx context.Context, batchID snowflake.ID, notes string) error
	Finalize(ctx context.Context, batchID, userID snowflake.ID) error
	Unfinalize(ctx context.Context, batchID snowflake.ID) error
	Export(ctx context.Context, batchID snowflake.ID) error
	Delete(ctx context.Context, batchID snowflake.ID, force bool) error

	UpdateLine(ctx context.Context, lineID snowflake.ID, changes LineChanges, editor snowflake.ID) (*InvoiceLine, error)
	BulkUpdateLines(ctx context.Context, batchID snowflake.ID, updates []BulkLineUpdate, editor snowflake.ID) error
	RecalculateBatchTax(ctx context.Context, batchID snowflake.ID) (*InvoiceBatch, error)

	ApplyAggregateAdjustment(ctx context.Context, req ApplyAdjustmentRequest) (*InvoiceAdjustment, error)
	RemoveAdjustment(ctx context.Context, adjustmentID snowflake.ID) error
	ListAdjustments(ctx context.Context, batchID snowflake.ID) ([]InvoiceAdjustment, error)
}
