package entities

import "time"

// PendingUpdate is one row of the notification outbox. The payload is an
// opaque JSON document delivered to the external event service; rows are
// deleted on confirmed delivery or once ErrorCount exceeds the retry
// budget after repeated client-error rejections.
type PendingUpdate struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AssetUID   string    `gorm:"size:100;not null" json:"asset_uid"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	ErrorCount int       `gorm:"not null;default:0" json:"error_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (PendingUpdate) TableName() string {
	return "pending_updates"
}
