package entities

// ReferenceDesignator identifies one physical instrument by its
// hierarchical site-node-sensor name.
type ReferenceDesignator struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null;uniqueIndex" json:"name"`
}

// TableName returns the table name for GORM.
func (ReferenceDesignator) TableName() string {
	return "reference_designators"
}
