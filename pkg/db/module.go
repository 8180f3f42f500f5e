package db

import (
	"time"

	"github.com/tempora-hq/tempora/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Module provides the gorm handle for the configured dialect.
var Module = fx.Provide(Open)

func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Minute)

	log.Info("database connected", zap.String("type", cfg.DBType))
	return gdb, nil
}

// SupportsRowLocking reports whether the underlying dialect understands
// SELECT ... FOR UPDATE. SQLite serializes writers, so skipping the clause
// there is safe.
func SupportsRowLocking(gdb *gorm.DB) bool {
	return gdb.Dialector.Name() == "postgres"
}
