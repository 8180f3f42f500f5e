package migration

import (
	"github.com/tempora-hq/tempora/internal/config"
	"github.com/tempora-hq/tempora/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			if err := AutoMigrate(conn); err != nil {
				return err
			}
			return seed.EnsureDefaultTenant(conn, cfg.DefaultTenantID)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		return seed.EnsureDefaultTenant(conn, cfg.DefaultTenantID)
	}),
)
