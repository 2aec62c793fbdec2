// Package datastore opens the backing database and owns schema migration.
package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/oceanobs/streamwatch/internal/conf"
	"github.com/oceanobs/streamwatch/internal/datastore/entities"
)

// Open connects to the configured database. TranslateError is enabled so
// unique-constraint violations surface as gorm.ErrDuplicatedKey across
// both drivers; the identity resolver's get-or-create depends on it.
func Open(settings *conf.DatabaseSettings) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger:         gorm_logger.Default.LogMode(gorm_logger.Silent),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch settings.Driver {
	case "sqlite":
		dialector = sqlite.Open(settings.DSN)
	case "mysql":
		dialector = mysql.Open(settings.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", settings.Driver)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", settings.Driver, err)
	}
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entities.ReferenceDesignator{},
		&entities.ExpectedStream{},
		&entities.DeployedStream{},
		&entities.StreamCount{},
		&entities.PortCount{},
		&entities.StreamCondition{},
		&entities.PendingUpdate{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
