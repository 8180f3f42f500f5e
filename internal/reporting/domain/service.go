// Package domain defines read-only billing summary shapes. The reporter
// derives everything by re-reading directory, timesheet and billing rows;
// it never mutates.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ProjectSummary aggregates a project's unbilled position. BudgetUtilization
// is unbilled hours over budget hours; nil when the project has no budget.
type ProjectSummary struct {
	ProjectID   snowflake.ID `json:"project_id"`
	ProjectName string       `json:"project_name"`
	ProjectCode string       `json:"project_code"`
	ClientID    snowflake.ID `json:"client_id"`
	ClientName  string       `json:"client_name"`
	Currency    string       `json:"currency"`

	UnbilledHours         decimal.Decimal  `json:"unbilled_hours"`
	UnbilledTimeAmount    decimal.Decimal  `json:"unbilled_time_amount"`
	UnbilledExpenseAmount decimal.Decimal  `json:"unbilled_expense_amount"`
	UnbilledTotal         decimal.Decimal  `json:"unbilled_total"`
	RateIssueCount        int              `json:"rate_issue_count"`
	BudgetHours           *decimal.Decimal `json:"budget_hours,omitempty"`
	BudgetUtilization     *decimal.Decimal `json:"budget_utilization,omitempty"`
}

// BatchRollup summarizes a batch across its lines.
type BatchRollup struct {
	BatchID     snowflake.ID `json:"batch_id"`
	BatchNumber string       `json:"batch_number"`
	Status      string       `json:"status"`

	ClientCount  int `json:"client_count"`
	ProjectCount int `json:"project_count"`
	LineCount    int `json:"line_count"`

	TimeAmount    decimal.Decimal `json:"time_amount"`
	ExpenseAmount decimal.Decimal `json:"expense_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

type Service interface {
	ProjectSummaries(ctx context.Context) ([]ProjectSummary, error)
	BatchRollup(ctx context.Context, batchID snowflake.ID) (*BatchRollup, error)
}
