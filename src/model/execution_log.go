package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionLog records how a parent order was filled.
type ExecutionLog struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	EventID    string `gorm:"size:36;uniqueIndex" json:"event_id"`
	PositionID string `gorm:"size:200;index" json:"position_id"`

	Symbol    string          `gorm:"size:100" json:"symbol"`
	Side      string          `gorm:"size:20" json:"side"`
	Algorithm string          `gorm:"size:20;index" json:"algorithm"`
	Quantity  int64           `json:"quantity"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric(24,8)" json:"avg_price"`
	Slippage  decimal.Decimal `gorm:"type:numeric(24,8)" json:"slippage"`
	Slices    int             `json:"slices"`
	Degraded  bool            `json:"degraded"`

	ExecutedAt time.Time `json:"executed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ExecutionLog) TableName() string {
	return "execution_logs"
}
