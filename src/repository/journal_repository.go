package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portfolioexecutor/src/database"
	"portfolioexecutor/src/events"
	"portfolioexecutor/src/model"
)

const defaultListLimit = 100

// JournalRepository persists ledger events: positions, the execution that
// opened them and blocked trades. It implements events.Journal.
type JournalRepository struct {
	db *gorm.DB
}

// NewJournalRepository uses the main read/write database.
func NewJournalRepository() *JournalRepository {
	logger.WithField("component", "JournalRepository").
		Info("Creating new JournalRepository with MainDB")

	return &JournalRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *JournalRepository) WithDB(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

var _ events.Journal = (*JournalRepository)(nil)

// RecordOpened stores the new position and its execution log in one
// transaction.
func (r *JournalRepository) RecordOpened(ctx context.Context, eventID uuid.UUID, at time.Time, ev events.PositionOpened) error {
	log := logger.WithFields(map[string]interface{}{
		"repo":        "JournalRepository",
		"op":          "RecordOpened",
		"position_id": ev.ID,
	})

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos := &model.Position{
			PositionID:    ev.ID,
			Strategy:      ev.Strategy,
			Symbol:        ev.Symbol,
			Side:          "LONG",
			Quantity:      ev.Quantity,
			EntryPrice:    decimal.NewFromFloat(ev.AvgPrice),
			StopLoss:      decimal.NewFromFloat(ev.StopLoss),
			Target:        decimal.NewFromFloat(ev.Target),
			Algorithm:     ev.Algorithm,
			Slippage:      decimal.NewFromFloat(ev.Slippage),
			Status:        model.PositionStatusOpen,
			OpenedEventID: eventID.String(),
			OpenedAt:      at,
		}
		if err := tx.Create(pos).Error; err != nil {
			return err
		}

		exec := &model.ExecutionLog{
			EventID:    eventID.String(),
			PositionID: ev.ID,
			Symbol:     ev.Symbol,
			Side:       "BUY",
			Algorithm:  ev.Algorithm,
			Quantity:   ev.Quantity,
			AvgPrice:   decimal.NewFromFloat(ev.AvgPrice),
			Slippage:   decimal.NewFromFloat(ev.Slippage),
			Slices:     ev.Slices,
			Degraded:   ev.Degraded,
			ExecutedAt: at,
		}
		return tx.Create(exec).Error
	})
	if err != nil {
		log.WithError(err).Error("Failed to journal opened position")
		return err
	}

	log.Debug("Opened position journaled")
	return nil
}

// RecordClosed marks the journaled position closed. When the open event
// never made it to the journal a closed row is inserted instead.
func (r *JournalRepository) RecordClosed(ctx context.Context, eventID uuid.UUID, at time.Time, ev events.PositionClosed) error {
	log := logger.WithFields(map[string]interface{}{
		"repo":        "JournalRepository",
		"op":          "RecordClosed",
		"position_id": ev.ID,
	})

	exit := decimal.NewFromFloat(ev.ExitPrice)
	closedAt := at

	res := r.db.WithContext(ctx).
		Model(&model.Position{}).
		Where("position_id = ?", ev.ID).
		Updates(map[string]interface{}{
			"status":          model.PositionStatusClosed,
			"exit_price":      exit,
			"exit_reason":     ev.Reason,
			"pnl":             decimal.NewFromFloat(ev.PnL),
			"pnl_pct":         decimal.NewFromFloat(ev.PnLPct),
			"closed_event_id": eventID.String(),
			"closed_at":       closedAt,
		})
	if res.Error != nil {
		log.WithError(res.Error).Error("Failed to journal closed position")
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	log.Warn("Closed position was never journaled as open, inserting closed row")
	pos := &model.Position{
		PositionID:    ev.ID,
		Strategy:      ev.Strategy,
		Symbol:        ev.Symbol,
		Side:          "LONG",
		Quantity:      ev.Quantity,
		EntryPrice:    decimal.NewFromFloat(ev.EntryPrice),
		ExitPrice:     &exit,
		ExitReason:    ev.Reason,
		PnL:           decimal.NewFromFloat(ev.PnL),
		PnLPct:        decimal.NewFromFloat(ev.PnLPct),
		Status:        model.PositionStatusClosed,
		ClosedEventID: eventID.String(),
		ClosedAt:      &closedAt,
	}
	if err := r.db.WithContext(ctx).Create(pos).Error; err != nil {
		log.WithError(err).Error("Failed to insert closed position")
		return err
	}
	return nil
}

func (r *JournalRepository) RecordBlocked(ctx context.Context, eventID uuid.UUID, at time.Time, ev events.TradeBlocked) error {
	block := &model.TradeBlock{
		EventID:    eventID.String(),
		Strategy:   ev.Strategy,
		Symbol:     ev.Symbol,
		Reason:     ev.Reason,
		Detail:     truncate(ev.Detail, 500),
		OccurredAt: at,
	}

	if err := r.db.WithContext(ctx).Create(block).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "JournalRepository",
			"op":       "RecordBlocked",
			"strategy": ev.Strategy,
		}).WithError(err).Error("Failed to journal blocked trade")
		return err
	}
	return nil
}

// ListPositions returns the newest journaled positions, optionally filtered
// by status.
func (r *JournalRepository) ListPositions(ctx context.Context, status string, limit int) ([]model.Position, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := r.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var out []model.Position
	if err := q.Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListBlocks returns blocked trades since the given time, newest first.
func (r *JournalRepository) ListBlocks(ctx context.Context, since time.Time, limit int) ([]model.TradeBlock, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var out []model.TradeBlock
	err := r.db.WithContext(ctx).
		Where("occurred_at >= ?", since).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
