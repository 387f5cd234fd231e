package models

// Species catalog entry; maintained independently of checklists.
type Species struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	ScientificName string `gorm:"column:scientific_name" json:"scientific_name"`
	VernacularName string `gorm:"column:vernacular_name" json:"vernacular_name"`
}

func (Species) TableName() string { return "species" }

// SpeciesCount is the GET /api/species row: catalog metadata (when known)
// plus the aggregate observation count.
type SpeciesCount struct {
	Name             string `gorm:"column:name" json:"name"`
	ScientificName   string `gorm:"column:scientific_name" json:"scientific_name,omitempty"`
	VernacularName   string `gorm:"column:vernacular_name" json:"vernacular_name,omitempty"`
	ObservationCount int64  `gorm:"column:observation_count" json:"observation_count"`
}
