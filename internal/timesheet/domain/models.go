// Package domain contains time entry and expense models. Time tracking owns
// these rows; billing exclusively owns the billed/locked fields while an
// entry is inside an invoicing window.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TimeEntry is a unit of tracked work. Billing and cost rates are captured
// at creation time and are not recomputed retroactively unless explicitly
// recalculated. A locked entry belongs to an active invoice batch and may
// only be mutated by the batch lifecycle.
type TimeEntry struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`

	PersonID  snowflake.ID `gorm:"not null;index"`
	ProjectID snowflake.ID `gorm:"not null;index"`

	EntryDate   time.Time       `gorm:"not null;index"`
	Hours       decimal.Decimal `gorm:"type:numeric(8,2);not null"`
	Description string          `gorm:"type:text"`

	Billable bool `gorm:"not null;default:true"`
	Billed   bool `gorm:"not null;default:false;index"`
	Locked   bool `gorm:"not null;default:false"`

	BillingRate decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`
	CostRate    decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"`

	InvoiceBatchID *snowflake.ID `gorm:"index"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TimeEntry) TableName() string { return "time_entries" }

// Expense is a reimbursable cost. No rate resolution; the amount is fixed at
// entry time.
type Expense struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;index"`

	PersonID  snowflake.ID `gorm:"not null;index"`
	ProjectID snowflake.ID `gorm:"not null;index"`

	ExpenseDate time.Time       `gorm:"not null;index"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Description string          `gorm:"type:text"`
	Category    string          `gorm:"type:text"`

	Billable bool `gorm:"not null;default:true"`
	Billed   bool `gorm:"not null;default:false;index"`

	InvoiceBatchID *snowflake.ID `gorm:"index"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Expense) TableName() string { return "expenses" }
