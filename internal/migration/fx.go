package migration

import (
	"github.com/boothworks/prizebooth/internal/config"
	"github.com/boothworks/prizebooth/internal/prize/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunPostgresMigrations(sqlDB)
		}
		return conn.AutoMigrate(domain.Models()...)
	}),
)
