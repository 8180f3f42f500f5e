// Package domain contains invoice batch, line and adjustment models for the
// billing engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BatchStatus represents batch lifecycle states.
type BatchStatus string

const (
	BatchStatusDraft     BatchStatus = "draft"
	BatchStatusReviewed  BatchStatus = "reviewed"
	BatchStatusFinalized BatchStatus = "finalized"
)

// InvoiceMode selects the unit of invoicing for generation.
type InvoiceMode string

const (
	ModeClient  InvoiceMode = "client"
	ModeProject InvoiceMode = "project"
)

// LineType distinguishes time work from expenses.
type LineType string

const (
	LineTypeTime    LineType = "time"
	LineTypeExpense LineType = "expense"
)

// AdjustmentType records how a line's billed amount last diverged from its
// original amount.
type AdjustmentType string

const (
	AdjustmentNone      AdjustmentType = "none"
	AdjustmentLine      AdjustmentType = "line"
	AdjustmentAggregate AdjustmentType = "aggregate"
)

// AllocationMethod selects how an aggregate adjustment distributes the
// target amount across lines.
type AllocationMethod string

const (
	AllocProRataAmount AllocationMethod = "pro_rata_amount"
	AllocProRataHours  AllocationMethod = "pro_rata_hours"
	AllocFlat          AllocationMethod = "flat"
	AllocManual        AllocationMethod = "manual"
)

func (m AllocationMethod) Valid() bool {
	switch m {
	case AllocProRataAmount, AllocProRataHours, AllocFlat, AllocManual:
		return true
	}
	return false
}

// InvoiceBatch groups invoice lines for a billing period. TotalAmount always
// equals the sum of its lines' billed amounts; tax and discount are carried
// alongside, never folded into it.
type InvoiceBatch struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`

	BatchNumber string `gorm:"type:text;not null;uniqueIndex:ux_invoice_batches_number"`

	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"`

	Status BatchStatus `gorm:"type:text;not null;default:'draft'"`
	Mode   InvoiceMode `gorm:"type:text;not null"`

	DiscountPercent decimal.Decimal `gorm:"type:numeric(6,3);not null;default:0"`
	DiscountFlat    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	TaxRate           decimal.Decimal  `gorm:"type:numeric(6,4);not null;default:0"`
	TaxAmount         decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	TaxAmountOverride *decimal.Decimal `gorm:"type:numeric(12,2)"`

	TotalAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	ExportedToQBO bool `gorm:"not null;default:false"`

	FinalizedBy *snowflake.ID `gorm:""`
	FinalizedAt *time.Time    `gorm:""`
	ReviewNotes string        `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InvoiceBatch) TableName() string { return "invoice_batches" }

// GrandTotal derives the invoiced amount after discount and tax.
func (b InvoiceBatch) GrandTotal() decimal.Decimal {
	discounted := b.TotalAmount.Sub(b.DiscountFlat)
	if b.DiscountPercent.IsPositive() {
		discounted = discounted.Sub(b.TotalAmount.Mul(b.DiscountPercent).Div(decimal.NewFromInt(100)))
	}
	if discounted.IsNegative() {
		discounted = decimal.Zero
	}
	return discounted.Add(b.TaxAmount).Round(2)
}

// InvoiceLine is an immutable record of billed work. OriginalAmount is the
// snapshot at generation; BilledAmount is the current, possibly adjusted,
// value. VarianceAmount = OriginalAmount − BilledAmount after every edit.
type InvoiceLine struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`

	BatchID   snowflake.ID `gorm:"not null;index"`
	ProjectID snowflake.ID `gorm:"not null;index"`
	ClientID  snowflake.ID `gorm:"not null;index"`
	PersonID  *snowflake.ID

	Type LineType `gorm:"type:text;not null"`

	SourceEntryID   *snowflake.ID `gorm:"index"`
	SourceExpenseID *snowflake.ID `gorm:"index"`

	Description string `gorm:"type:text"`

	Quantity decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	Rate     decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`

	OriginalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	BilledAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	VarianceAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	AdjustmentType AdjustmentType `gorm:"type:text;not null;default:'none'"`

	Taxable bool `gorm:"not null;default:true"`

	EditedBy    *snowflake.ID
	EditedAt    *time.Time
	MilestoneID *snowflake.ID

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }

// InvoiceAdjustment records an aggregate reallocation against a contracted
// target. Immutable once created; reversal restores lines from the metadata
// snapshot and deletes the row, never negates it.
type InvoiceAdjustment struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`

	BatchID   snowflake.ID  `gorm:"not null;index"`
	ProjectID *snowflake.ID `gorm:"index"`

	Method       AllocationMethod `gorm:"type:text;not null"`
	TargetAmount decimal.Decimal  `gorm:"type:numeric(14,2);not null"`

	Reason string `gorm:"type:text"`
	SOWRef string `gorm:"type:text"`

	CreatedBy snowflake.ID `gorm:"not null"`

	Metadata datatypes.JSONMap `gorm:"not null;default:'{}'"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InvoiceAdjustment) TableName() string { return "invoice_adjustments" }

// Metadata keys persisted on InvoiceAdjustment.
const (
	MetaAllocation       = "allocation"
	MetaOriginalAmount   = "original_amount"
	MetaAffectedLines    = "affected_lines"
	MetaAdjustmentAmount = "adjustment_amount"
	MetaAdjustmentRatio  = "adjustment_ratio"
)
