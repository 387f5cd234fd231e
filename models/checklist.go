package models

import (
	"gorm.io/gorm"
)

// Habitat types are a fixed vocabulary; "urban" is accepted from clients as
// an alias for anthropogenous and normalized before anything is stored.
const (
	HabitatForest        = "forest"
	HabitatSwamp         = "swamp"
	HabitatAnthropogenic = "anthropogenous"
)

// One Checklist per survey visit to a grid cell.
type Checklist struct {
	gorm.Model
	UserID           string `gorm:"index;size:64;not null"`
	GridCellID       string `gorm:"index;not null"`
	TimeSpentMinutes int    `gorm:"not null"`
	Locations        []ChecklistLocation
	Observations     []SpeciesObservation
}

// ChecklistLocation stores one sampling point per habitat type.
// X/Y are Belgian Lambert 72 (EPSG:31370) meters, not lat/lng.
type ChecklistLocation struct {
	gorm.Model
	ChecklistID uint    `gorm:"index;not null"`
	HabitatType string  `gorm:"size:20;not null"`
	X           float64 `gorm:"not null"`
	Y           float64 `gorm:"not null"`
}

// SpeciesObservation rows only exist for counts > 0.
type SpeciesObservation struct {
	gorm.Model
	ChecklistID uint   `gorm:"index;not null"`
	SpeciesName string `gorm:"size:255;not null"`
	Count       int    `gorm:"not null"`
}
