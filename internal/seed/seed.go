// Package seed bootstraps a usable local environment: a default tenant and
// a small demo directory to bill against.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	"gorm.io/gorm"
)

// EnsureDefaultTenant seeds demo directory rows for the tenant when the
// directory is empty. Idempotent across restarts.
func EnsureDefaultTenant(db *gorm.DB, tenantID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&directorydomain.Client{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		tenant := snowflake.ID(tenantID)

		client := directorydomain.Client{
			ID:        node.Generate(),
			TenantID:  tenant,
			Name:      "Acme Consulting Co",
			Currency:  "USD",
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&client).Error; err != nil {
			return err
		}

		budget := decimal.NewFromInt(400)
		project := directorydomain.Project{
			ID:          node.Generate(),
			TenantID:    tenant,
			ClientID:    client.ID,
			Name:        "Platform Buildout",
			Code:        "ACME-001",
			Currency:    "USD",
			BudgetHours: &budget,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		rate := decimal.NewFromInt(150)
		cost := decimal.NewFromInt(90)
		person := directorydomain.Person{
			ID:                 node.Generate(),
			TenantID:           tenant,
			Name:               "Jordan Reyes",
			Email:              "jordan@example.com",
			DefaultBillingRate: &rate,
			DefaultCostRate:    &cost,
			Active:             true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return tx.Create(&person).Error
	})
}
