package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolioexecutor/src/database"
	"portfolioexecutor/src/externalmodel"
)

// SignalRepository reads the external signal inbox from the read-only
// database.
type SignalRepository struct {
	db *gorm.DB
}

func NewSignalRepository() *SignalRepository {
	logger.WithField("component", "SignalRepository").
		Info("Creating new SignalRepository with ReadOnlyDB")

	return &SignalRepository{db: database.ReadOnlyDB}
}

func (r *SignalRepository) WithDB(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// FindAfterID returns up to limit signals with id > lastID in ascending id
// order.
func (r *SignalRepository) FindAfterID(ctx context.Context, lastID uint, limit int) ([]externalmodel.StrategySignal, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var out []externalmodel.StrategySignal
	err := r.db.WithContext(ctx).
		Where("id > ?", lastID).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "SignalRepository",
			"op":      "FindAfterID",
			"last_id": lastID,
		}).WithError(err).Error("Failed to fetch signals")
		return nil, err
	}
	return out, nil
}

// LatestID is the highest signal id in the inbox, zero when empty.
func (r *SignalRepository) LatestID(ctx context.Context) (uint, error) {
	var id uint
	err := r.db.WithContext(ctx).
		Model(&externalmodel.StrategySignal{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&id).Error
	return id, err
}
