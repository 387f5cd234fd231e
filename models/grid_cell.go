package models

import "encoding/json"

// GridCell is read-only from this service's perspective; the grid_cells table
// is populated by an offline import. Geometry is selected as GeoJSON text
// (ST_AsGeoJSON on the relational path, a jsonb column on the managed one).
type GridCell struct {
	ID             string `gorm:"primaryKey"`
	GeometryJSON   string `gorm:"column:geometry_json"`
	PropertiesJSON string `gorm:"column:properties"`
	ChecklistCount int64  `gorm:"column:checklist_count"`
}

func (GridCell) TableName() string { return "grid_cells" }

// GeoJSON response shapes for GET /api/grid-cells.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}
