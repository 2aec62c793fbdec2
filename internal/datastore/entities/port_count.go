package entities

import "time"

// PortCount is the byte-counter analog of StreamCount, tracking traffic
// through one instrument port rather than particles in one stream.
type PortCount struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	RefDesID       uint                `gorm:"not null;index:idx_port_counts_refdes_time,priority:1" json:"ref_des_id"`
	RefDes         ReferenceDesignator `gorm:"foreignKey:RefDesID" json:"-"`
	CollectedTime  time.Time           `gorm:"not null;index:idx_port_counts_refdes_time,priority:2" json:"collected_time"`
	ByteCount      int64               `gorm:"not null" json:"byte_count"`
	SecondsElapsed float64             `gorm:"not null" json:"seconds_elapsed"`
}

// TableName returns the table name for GORM.
func (PortCount) TableName() string {
	return "port_counts"
}

// Rate returns bytes per second for this bucket, or 0 when the bucket
// spans no time.
func (c *PortCount) Rate() float64 {
	if c.SecondsElapsed <= 0 {
		return 0
	}
	return float64(c.ByteCount) / c.SecondsElapsed
}
