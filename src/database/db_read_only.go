package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolioexecutor/src/externalmodel"
)

// ReadOnlyDB is the connection used to poll the external signal inbox.
// The database user for this connection should have SELECT-only permissions.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB connects to the signal inbox. It runs no migrations and
// fails if the inbox table is not reachable.
func InitReadOnlyDB(config Config) error {
	if config.DatabaseURLReadOnly == "" {
		return fmt.Errorf("DATABASE_URL_READONLY is not set")
	}

	db, err := Open(config, config.DatabaseURLReadOnly)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	var count int64
	if err := db.Model(&externalmodel.StrategySignal{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access %s: %w", externalmodel.StrategySignal{}.TableName(), err)
	}

	logrus.WithField("count", count).Info("[ReadOnlyDB] strategy_signals reachable")

	ReadOnlyDB = db
	return nil
}
