package entities

import "time"

// DeployedStream is the live monitoring record for one stream on one
// instrument. The nullable override fields shadow the ExpectedStream
// defaults per field: nil inherits, an explicit value overrides. All
// three set to zero marks the stream disabled by an operator.
type DeployedStream struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	RefDesID         uint                `gorm:"not null;uniqueIndex:idx_deployed_refdes_expected,priority:1" json:"ref_des_id"`
	RefDes           ReferenceDesignator `gorm:"foreignKey:RefDesID" json:"ref_des"`
	ExpectedStreamID uint                `gorm:"not null;uniqueIndex:idx_deployed_refdes_expected,priority:2" json:"expected_stream_id"`
	ExpectedStream   ExpectedStream      `gorm:"foreignKey:ExpectedStreamID" json:"expected_stream"`

	// Last observed cumulative particle count and when it was seen.
	LastParticleCount uint64     `gorm:"not null;default:0" json:"last_particle_count"`
	LastSeen          *time.Time `json:"last_seen"`
	CollectedTime     *time.Time `json:"collected_time"`

	// Per-instance threshold overrides; nil inherits the expected
	// stream's value.
	RateOverride *float64 `json:"rate_override"`
	WarnOverride *int     `json:"warn_override"`
	FailOverride *int     `json:"fail_override"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (DeployedStream) TableName() string {
	return "deployed_streams"
}

// Disabled reports whether an operator has explicitly excluded this
// stream from monitoring: all three overrides present and zero.
func (d *DeployedStream) Disabled() bool {
	return d.RateOverride != nil && *d.RateOverride == 0 &&
		d.WarnOverride != nil && *d.WarnOverride == 0 &&
		d.FailOverride != nil && *d.FailOverride == 0
}
