package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CreateTimeEntryRequest struct {
	PersonID    snowflake.ID
	ProjectID   snowflake.ID
	EntryDate   time.Time
	Hours       decimal.Decimal
	Description string
	Billable    bool
}

type CreateExpenseRequest struct {
	PersonID    snowflake.ID
	ProjectID   snowflake.ID
	ExpenseDate time.Time
	Amount      decimal.Decimal
	Description string
	Category    string
	Billable    bool
}

// UnbilledFilters narrows the unbilled-item scan. Nil fields match all.
type UnbilledFilters struct {
	PersonID  *snowflake.ID
	ProjectID *snowflake.ID
	ClientID  *snowflake.ID
	From      *time.Time
	To        *time.Time
}

// UnbilledTimeEntry annotates an entry with its effective rate and the
// amount it would bill at.
type UnbilledTimeEntry struct {
	Entry            TimeEntry       `json:"entry"`
	BillingRate      decimal.Decimal `json:"billing_rate"`
	CalculatedAmount decimal.Decimal `json:"calculated_amount"`
	RateResolved     bool            `json:"rate_resolved"`
}

// RateIssue flags an entry whose billable rate could not be resolved so
// callers can surface remediation instead of silently dropping it.
type RateIssue struct {
	EntryID    snowflake.ID `json:"entry_id"`
	PersonID   snowflake.ID `json:"person_id"`
	PersonName string       `json:"person_name"`
	EntryDate  time.Time    `json:"entry_date"`
	Reason     string       `json:"reason"`
}

type RateValidation struct {
	Valid  bool        `json:"valid"`
	Issues []RateIssue `json:"issues"`
}

type UnbilledTotals struct {
	Hours         decimal.Decimal `json:"hours"`
	TimeAmount    decimal.Decimal `json:"time_amount"`
	ExpenseAmount decimal.Decimal `json:"expense_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

type UnbilledResult struct {
	TimeEntries    []UnbilledTimeEntry `json:"time_entries"`
	Expenses       []Expense           `json:"expenses"`
	Totals         UnbilledTotals      `json:"totals"`
	RateValidation RateValidation      `json:"rate_validation"`
}

type Service interface {
	CreateTimeEntry(ctx context.Context, req CreateTimeEntryRequest) (*TimeEntry, error)
	CreateExpense(ctx context.Context, req CreateExpenseRequest) (*Expense, error)
	FindUnbilled(ctx context.Context, filters UnbilledFilters) (UnbilledResult, error)
	RecalculateRates(ctx context.Context, projectID *snowflake.ID) (int, error)
}
