package entities

import "time"

// StreamCondition is the single persisted classification state for one
// deployed stream. Exactly one row per monitored stream; updated in the
// same transaction as the pending update that announces the change.
type StreamCondition struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	DeployedStreamID uint      `gorm:"not null;uniqueIndex" json:"deployed_stream_id"`
	LastStatus       string    `gorm:"size:20;not null" json:"last_status"`
	LastStatusTime   time.Time `gorm:"not null" json:"last_status_time"`
}

// TableName returns the table name for GORM.
func (StreamCondition) TableName() string {
	return "stream_conditions"
}
