package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/yolan2/tandonia/config"
	"github.com/yolan2/tandonia/models"
)

type GridCellService struct {
	b     *config.Backends
	cache *ResponseCache
}

func NewGridCellService(b *config.Backends, cache *ResponseCache) *GridCellService {
	return &GridCellService{b: b, cache: cache}
}

// List returns every grid cell as a GeoJSON feature annotated with its
// checklist count. Rows with unparsable geometry are dropped; an empty
// collection after trying both stores means no data source is usable, which
// is answered as unavailable rather than an empty success.
func (s *GridCellService) List(ctx context.Context) (*models.FeatureCollection, error) {
	if cached, ok := s.cache.Get(cacheKeyGridCells); ok {
		return cached.(*models.FeatureCollection), nil
	}

	var features []models.Feature
	if s.b.HasDB() {
		rows, err := s.listDB(ctx)
		if err != nil {
			markIfConnDown(s.b, err)
			if !missingTable(err) && s.b.HasDB() {
				return nil, err
			}
		}
		features = rows
	}
	if len(features) == 0 && s.b.HasSupabase() {
		rows, err := s.listSupabase(ctx)
		if err != nil {
			log.Printf("grid cells: supabase fallback failed: %v", err)
		}
		features = rows
	}

	if len(features) == 0 {
		return nil, ErrUnavailable
	}

	fc := &models.FeatureCollection{Type: "FeatureCollection", Features: features}
	s.cache.Set(cacheKeyGridCells, fc)
	return fc, nil
}

func (s *GridCellService) listDB(ctx context.Context) ([]models.Feature, error) {
	var cells []models.GridCell
	err := s.b.DB.WithContext(ctx).Raw(`
		SELECT g.id,
		       ST_AsGeoJSON(g.geom) AS geometry_json,
		       COALESCE(g.properties::text, '{}') AS properties,
		       (SELECT count(*) FROM checklists c
		         WHERE c.grid_cell_id = g.id AND c.deleted_at IS NULL) AS checklist_count
		FROM grid_cells g`).Scan(&cells).Error
	if err != nil {
		return nil, err
	}

	features := make([]models.Feature, 0, len(cells))
	for _, cell := range cells {
		feature, ok := buildFeature(cell.ID, []byte(cell.GeometryJSON), []byte(cell.PropertiesJSON), cell.ChecklistCount)
		if !ok {
			log.Printf("grid cells: dropping %s: bad geometry", cell.ID)
			continue
		}
		features = append(features, feature)
	}
	return features, nil
}

func (s *GridCellService) listSupabase(ctx context.Context) ([]models.Feature, error) {
	var rows []struct {
		ID         string          `json:"id"`
		Geometry   json.RawMessage `json:"geometry"`
		Properties json.RawMessage `json:"properties"`
	}
	err := s.b.Supa.From("grid_cells").Select("id,geometry,properties").ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, err
	}

	// PostgREST cannot aggregate, so checklist counts come from a second
	// select tallied here.
	counts := make(map[string]int64)
	var refs []struct {
		GridCellID string `json:"grid_cell_id"`
	}
	if err := s.b.Supa.From("checklists").Select("grid_cell_id").ExecuteInto(ctx, &refs); err == nil {
		for _, ref := range refs {
			counts[ref.GridCellID]++
		}
	} else {
		log.Printf("grid cells: checklist counts unavailable: %v", err)
	}

	features := make([]models.Feature, 0, len(rows))
	for _, row := range rows {
		feature, ok := buildFeature(row.ID, row.Geometry, row.Properties, counts[row.ID])
		if !ok {
			log.Printf("grid cells: dropping %s: bad geometry", row.ID)
			continue
		}
		features = append(features, feature)
	}
	return features, nil
}

// buildFeature re-expresses one row as a GeoJSON feature, whatever encoding
// the store answered with. Bad geometry disqualifies the row, not the request.
func buildFeature(id string, geometry, properties []byte, checklistCount int64) (models.Feature, bool) {
	var geom json.RawMessage
	if err := json.Unmarshal(geometry, &geom); err != nil || len(geom) == 0 || string(geom) == "null" {
		return models.Feature{}, false
	}
	var check struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(geom, &check); err != nil || check.Type == "" || len(check.Coordinates) == 0 {
		return models.Feature{}, false
	}

	props := make(map[string]any)
	if len(properties) > 0 {
		// Property map is free-form; a broken one degrades to empty.
		_ = json.Unmarshal(properties, &props)
	}
	props["checklist_count"] = checklistCount
	props["has_checklist"] = checklistCount > 0

	return models.Feature{
		Type:       "Feature",
		ID:         id,
		Geometry:   geom,
		Properties: props,
	}, true
}
