package model

import "time"

// TradeBlock is a signal the ledger refused, with the refusal code.
type TradeBlock struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    string    `gorm:"size:36;uniqueIndex" json:"event_id"`
	Strategy   string    `gorm:"size:100;index" json:"strategy"`
	Symbol     string    `gorm:"size:100" json:"symbol"`
	Reason     string    `gorm:"size:50;index" json:"reason"`
	Detail     string    `gorm:"size:500" json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (TradeBlock) TableName() string {
	return "trade_blocks"
}
