package externalmodel

import "time"

// StrategySignal is a row written by the signal generators into the shared
// signal inbox. The executor only ever reads this table.
type StrategySignal struct {
	ID             uint       `gorm:"primaryKey;column:id" json:"id"`
	Strategy       string     `gorm:"column:strategy" json:"strategy"`
	Symbol         string     `gorm:"column:symbol" json:"symbol"`
	Side           string     `gorm:"column:side" json:"side"`
	ReferencePrice float64    `gorm:"column:reference_price" json:"reference_price"`
	StopLoss       float64    `gorm:"column:stop_loss" json:"stop_loss"`
	Target         float64    `gorm:"column:target" json:"target"`
	Urgency        string     `gorm:"column:urgency" json:"urgency"`
	Comment        string     `gorm:"column:comment" json:"comment"`
	ReceivedAt     *time.Time `gorm:"column:received_at" json:"received_at,omitempty"`
}

// TableName Ensures that GORM uses the exact table name from the database.
func (StrategySignal) TableName() string {
	return "strategy_signals"
}
