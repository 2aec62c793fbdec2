package entities

// ExpectedStream holds the default rate and latency thresholds for one
// (stream name, delivery method) pair. A rate of 0 with both intervals 0
// means the stream is untracked by default.
type ExpectedStream struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Name         string  `gorm:"size:255;not null;uniqueIndex:idx_expected_name_method,priority:1" json:"name"`
	Method       string  `gorm:"size:100;not null;uniqueIndex:idx_expected_name_method,priority:2" json:"method"`
	Rate         float64 `gorm:"not null;default:0" json:"rate"`
	WarnInterval int     `gorm:"not null;default:0" json:"warn_interval"`
	FailInterval int     `gorm:"not null;default:0" json:"fail_interval"`
}

// TableName returns the table name for GORM.
func (ExpectedStream) TableName() string {
	return "expected_streams"
}
