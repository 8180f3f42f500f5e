package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	"github.com/tempora-hq/tempora/internal/clock"
	"github.com/tempora-hq/tempora/internal/config"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	directoryrepo "github.com/tempora-hq/tempora/internal/directory/repository"
	"github.com/tempora-hq/tempora/internal/migration"
	ratesservice "github.com/tempora-hq/tempora/internal/rates/service"
	"github.com/tempora-hq/tempora/internal/tenantctx"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   billingdomain.Service
	clock *clock.FakeClock
	node  *snowflake.Node
	ctx   context.Context

	tenantID snowflake.ID
	client   directorydomain.Client
	project  directorydomain.Project
	person   directorydomain.Person
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := openTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))
	holder := config.NewStaticBillingConfigHolder(config.BillingConfig{
		DefaultBillingRate:  0,
		DefaultCostRate:     0,
		DefaultTaxRate:      0,
		BatchNumberTemplate: "INV-{YYYY}{MM}-{SEQ4}",
		BatchNumberSequence: true,
	})

	directory := directoryrepo.NewDirectory(directoryrepo.Params{DB: db})
	resolver := ratesservice.NewResolver(ratesservice.ResolverParam{
		DB:        db,
		Directory: directory,
		Billing:   holder,
	})

	f := &fixture{
		db:       db,
		clock:    fakeClock,
		node:     node,
		tenantID: node.Generate(),
	}
	f.ctx = tenantctx.WithTenantID(context.Background(), f.tenantID)

	f.client = directorydomain.Client{
		ID:       node.Generate(),
		TenantID: f.tenantID,
		Name:     "Acme Consulting Co",
		Currency: "USD",
		Active:   true,
	}
	require.NoError(t, db.Create(&f.client).Error)

	budget := decimal.NewFromInt(400)
	f.project = directorydomain.Project{
		ID:          node.Generate(),
		TenantID:    f.tenantID,
		ClientID:    f.client.ID,
		Name:        "Platform Buildout",
		Code:        "ACME-001",
		Currency:    "USD",
		BudgetHours: &budget,
		Active:      true,
	}
	require.NoError(t, db.Create(&f.project).Error)

	f.person = directorydomain.Person{
		ID:       node.Generate(),
		TenantID: f.tenantID,
		Name:     "Jordan Reyes",
		Email:    "jordan@example.com",
		Active:   true,
	}
	require.NoError(t, db.Create(&f.person).Error)

	f.svc = NewService(ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fakeClock,
		Resolver:  resolver,
		Directory: directory,
		Billing:   holder,
	})
	return f
}

func (f *fixture) createTimeEntry(t *testing.T, hours, rate string, day int) timesheetdomain.TimeEntry {
	t.Helper()

	entry := timesheetdomain.TimeEntry{
		ID:          f.node.Generate(),
		TenantID:    f.tenantID,
		PersonID:    f.person.ID,
		ProjectID:   f.project.ID,
		EntryDate:   time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC),
		Hours:       decimal.RequireFromString(hours),
		Description: "Architecture review",
		Billable:    true,
		BillingRate: decimal.RequireFromString(rate),
	}
	require.NoError(t, f.db.Create(&entry).Error)
	return entry
}

func (f *fixture) createExpense(t *testing.T, amount string, day int) timesheetdomain.Expense {
	t.Helper()

	expense := timesheetdomain.Expense{
		ID:          f.node.Generate(),
		TenantID:    f.tenantID,
		PersonID:    f.person.ID,
		ProjectID:   f.project.ID,
		ExpenseDate: time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString(amount),
		Description: "Client site travel",
		Category:    "Travel",
		Billable:    true,
	}
	require.NoError(t, f.db.Create(&expense).Error)
	return expense
}

func (f *fixture) createBatch(t *testing.T, mode billingdomain.InvoiceMode) *billingdomain.InvoiceBatch {
	t.Helper()

	batch, err := f.svc.CreateBatch(f.ctx, billingdomain.CreateBatchRequest{
		PeriodStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		Mode:        mode,
	})
	require.NoError(t, err)
	return batch
}

func (f *fixture) generateProjectBatch(t *testing.T) *billingdomain.InvoiceBatch {
	t.Helper()

	batch := f.createBatch(t, billingdomain.ModeProject)
	_, err := f.svc.Generate(f.ctx, billingdomain.GenerateRequest{
		BatchID:    batch.ID,
		ProjectIDs: []snowflake.ID{f.project.ID},
	})
	require.NoError(t, err)
	return batch
}

func (f *fixture) reloadBatch(t *testing.T, id snowflake.ID) *billingdomain.InvoiceBatch {
	t.Helper()

	batch, err := f.svc.GetBatch(f.ctx, id)
	require.NoError(t, err)
	return batch
}

func (f *fixture) reloadEntry(t *testing.T, id snowflake.ID) timesheetdomain.TimeEntry {
	t.Helper()

	var entry timesheetdomain.TimeEntry
	require.NoError(t, f.db.First(&entry, "id = ?", id).Error)
	return entry
}

func (f *fixture) reloadExpense(t *testing.T, id snowflake.ID) timesheetdomain.Expense {
	t.Helper()

	var expense timesheetdomain.Expense
	require.NoError(t, f.db.First(&expense, "id = ?", id).Error)
	return expense
}

func (f *fixture) batchLines(t *testing.T, batchID snowflake.ID) []billingdomain.InvoiceLine {
	t.Helper()

	lines, err := f.svc.Lines(f.ctx, batchID)
	require.NoError(t, err)
	return lines
}
