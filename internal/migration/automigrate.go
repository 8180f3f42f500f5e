package migration

import (
	auditdomain "github.com/tempora-hq/tempora/internal/audit/domain"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	ratesdomain "github.com/tempora-hq/tempora/internal/rates/domain"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
	"gorm.io/gorm"
)

// AutoMigrate builds the schema from the models. The embedded SQL
// migrations are authoritative for postgres; this covers sqlite, which the
// golang-migrate postgres driver cannot serve.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&directorydomain.Person{},
		&directorydomain.Client{},
		&directorydomain.Project{},
		&ratesdomain.RateOverride{},
		&ratesdomain.RateSchedule{},
		&timesheetdomain.TimeEntry{},
		&timesheetdomain.Expense{},
		&billingdomain.InvoiceBatch{},
		&billingdomain.InvoiceLine{},
		&billingdomain.InvoiceAdjustment{},
		&auditdomain.AuditLog{},
	)
}
