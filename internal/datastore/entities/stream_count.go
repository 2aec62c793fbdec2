package entities

import "time"

// StreamCount is one bucket of the particle counter time series:
// ParticleCount particles arrived over SecondsElapsed seconds ending at
// CollectedTime. Buckets for one stream are non-overlapping and ordered
// by CollectedTime; ParticleCount / SecondsElapsed is the bucket's rate.
type StreamCount struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	DeployedStreamID uint           `gorm:"not null;index:idx_stream_counts_stream_time,priority:1" json:"deployed_stream_id"`
	DeployedStream   DeployedStream `gorm:"foreignKey:DeployedStreamID" json:"-"`
	CollectedTime    time.Time      `gorm:"not null;index:idx_stream_counts_stream_time,priority:2" json:"collected_time"`
	ParticleCount    int64          `gorm:"not null" json:"particle_count"`
	SecondsElapsed   float64        `gorm:"not null" json:"seconds_elapsed"`
}

// TableName returns the table name for GORM.
func (StreamCount) TableName() string {
	return "stream_counts"
}

// Rate returns particles per second for this bucket, or 0 when the
// bucket spans no time.
func (c *StreamCount) Rate() float64 {
	if c.SecondsElapsed <= 0 {
		return 0
	}
	return float64(c.ParticleCount) / c.SecondsElapsed
}
