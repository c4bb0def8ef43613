package database

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/rmitchellscott/binder/internal/logging"
)

// RunMigrations runs any pending database migrations using gormigrate
func RunMigrations(logPrefix string) error {
	logging.Logf("[%s] Running database migrations...", logPrefix)

	m := gormigrate.New(DB, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202609010001_document_source",
			Migrate: func(tx *gorm.DB) error {
				// databases created before documents carried a source
				if tx.Migrator().HasColumn(&Document{}, "Source") {
					return nil
				}
				return tx.Migrator().AddColumn(&Document{}, "Source")
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropColumn(&Document{}, "Source")
			},
		},
	})

	// fresh databases get the current schema directly
	m.InitSchema(func(tx *gorm.DB) error {
		for _, model := range GetAllModels() {
			if err := tx.AutoMigrate(model); err != nil {
				return fmt.Errorf("failed to migrate %T: %w", model, err)
			}
		}
		return nil
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.Logf("[%s] Migrations completed successfully", logPrefix)
	return nil
}
