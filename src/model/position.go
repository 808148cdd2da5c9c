package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Position is the journal row for one ledger position. It is written when
// the position opens and updated when it closes.
type Position struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	PositionID string          `gorm:"size:200;uniqueIndex;not null" json:"position_id"`
	Strategy   string          `gorm:"size:100;index" json:"strategy"`
	Symbol     string          `gorm:"size:100;index" json:"symbol"`
	Side       string          `gorm:"size:20" json:"side"`
	Quantity   int64           `json:"quantity"`
	EntryPrice decimal.Decimal `gorm:"type:numeric(24,8)" json:"entry_price"`
	StopLoss   decimal.Decimal `gorm:"type:numeric(24,8)" json:"stop_loss"`
	Target     decimal.Decimal `gorm:"type:numeric(24,8)" json:"target"`
	Algorithm  string          `gorm:"size:20" json:"algorithm"`
	Slippage   decimal.Decimal `gorm:"type:numeric(24,8)" json:"slippage"`

	ExitPrice  *decimal.Decimal `gorm:"type:numeric(24,8)" json:"exit_price,omitempty"`
	ExitReason string           `gorm:"size:50" json:"exit_reason,omitempty"`
	PnL        decimal.Decimal  `gorm:"type:numeric(24,8)" json:"pnl"`
	PnLPct     decimal.Decimal  `gorm:"type:numeric(12,6)" json:"pnl_pct"`

	Status        string     `gorm:"size:50;not null;default:open" json:"status"`
	OpenedEventID string     `gorm:"size:36" json:"opened_event_id"`
	ClosedEventID string     `gorm:"size:36" json:"closed_event_id,omitempty"`
	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}
