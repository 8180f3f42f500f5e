package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	reportingdomain "github.com/tempora-hq/tempora/internal/reporting/domain"
	"github.com/tempora-hq/tempora/internal/tenantctx"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Directory directorydomain.Directory
	Timesheet timesheetdomain.Service
	Billing   billingdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	directory directorydomain.Directory
	timesheet timesheetdomain.Service
	billing   billingdomain.Service
}

func NewService(p Params) reportingdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("reporting.service"),
		directory: p.Directory,
		timesheet: p.Timesheet,
		billing:   p.Billing,
	}
}

// ProjectSummaries reports each active project's unbilled position. Entries
// with unresolvable rates show up in the issue count but not in the amounts,
// matching the unbilled locator's totals.
func (s *Service) ProjectSummaries(ctx context.Context) ([]reportingdomain.ProjectSummary, error) {
	tenantID, _ := tenantctx.TenantIDFromContext(ctx)

	projects, err := s.directory.Projects(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	clientNames := map[snowflake.ID]string{}
	summaries := make([]reportingdomain.ProjectSummary, 0, len(projects))
	for _, project := range projects {
		projectID := project.ID
		unbilled, err := s.timesheet.FindUnbilled(ctx, timesheetdomain.UnbilledFilters{ProjectID: &projectID})
		if err != nil {
			return nil, err
		}

		clientName, ok := clientNames[project.ClientID]
		if !ok {
			if client, cerr := s.directory.Client(ctx, project.ClientID); cerr == nil {
				clientName = client.Name
			}
			clientNames[project.ClientID] = clientName
		}

		summary := reportingdomain.ProjectSummary{
			ProjectID:             project.ID,
			ProjectName:           project.Name,
			ProjectCode:           project.Code,
			ClientID:              project.ClientID,
			ClientName:            clientName,
			Currency:              project.Currency,
			UnbilledHours:         unbilled.Totals.Hours,
			UnbilledTimeAmount:    unbilled.Totals.TimeAmount,
			UnbilledExpenseAmount: unbilled.Totals.ExpenseAmount,
			UnbilledTotal:         unbilled.Totals.TotalAmount,
			RateIssueCount:        len(unbilled.RateValidation.Issues),
			BudgetHours:           project.BudgetHours,
		}
		if project.BudgetHours != nil && project.BudgetHours.IsPositive() {
			utilization := unbilled.Totals.Hours.Div(*project.BudgetHours).Round(4)
			summary.BudgetUtilization = &utilization
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// BatchRollup aggregates a batch's lines by client and project.
func (s *Service) BatchRollup(ctx context.Context, batchID snowflake.ID) (*reportingdomain.BatchRollup, error) {
	batch, err := s.billing.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	lines, err := s.billing.Lines(ctx, batchID)
	if err != nil {
		return nil, err
	}

	clients := map[snowflake.ID]struct{}{}
	projects := map[snowflake.ID]struct{}{}
	timeAmount := decimal.Zero
	expenseAmount := decimal.Zero
	for _, line := range lines {
		clients[line.ClientID] = struct{}{}
		projects[line.ProjectID] = struct{}{}
		switch line.Type {
		case billingdomain.LineTypeTime:
			timeAmount = timeAmount.Add(line.BilledAmount)
		case billingdomain.LineTypeExpense:
			expenseAmount = expenseAmount.Add(line.BilledAmount)
		}
	}

	return &reportingdomain.BatchRollup{
		BatchID:       batch.ID,
		BatchNumber:   batch.BatchNumber,
		Status:        string(batch.Status),
		ClientCount:   len(clients),
		ProjectCount:  len(projects),
		LineCount:     len(lines),
		TimeAmount:    timeAmount,
		ExpenseAmount: expenseAmount,
		TotalAmount:   batch.TotalAmount,
		TaxAmount:     batch.TaxAmount,
		GrandTotal:    batch.GrandTotal(),
	}, nil
}
