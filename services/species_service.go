package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"

	"github.com/yolan2/tandonia/config"
	"github.com/yolan2/tandonia/models"
)

// Table names arrive from the environment; anything that is not a plain
// identifier is refused before it gets near a query.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type SpeciesService struct {
	b     *config.Backends
	cfg   config.Settings
	cache *ResponseCache
}

func NewSpeciesService(b *config.Backends, cfg config.Settings, cache *ResponseCache) *SpeciesService {
	return &SpeciesService{b: b, cfg: cfg, cache: cache}
}

// List returns species with their observation counts, descending. Chain:
// denormalized per-species tables first, then the catalog joined against
// aggregated observations, then a bare aggregation with no catalog metadata.
// Only when every source yields nothing is the listing unavailable.
func (s *SpeciesService) List(ctx context.Context) ([]models.SpeciesCount, error) {
	if cached, ok := s.cache.Get(cacheKeySpecies); ok {
		return cached.([]models.SpeciesCount), nil
	}

	var rows []models.SpeciesCount
	if s.b.HasDB() {
		rows = s.listDB(ctx)
	}
	if len(rows) == 0 && s.b.HasSupabase() {
		rows = s.listSupabase(ctx)
	}
	if len(rows) == 0 {
		return nil, ErrUnavailable
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ObservationCount > rows[j].ObservationCount
	})
	s.cache.Set(cacheKeySpecies, rows)
	return rows, nil
}

func (s *SpeciesService) listDB(ctx context.Context) []models.SpeciesCount {
	db := s.b.DB.WithContext(ctx)

	for _, table := range s.cfg.SpeciesTables {
		if !identPattern.MatchString(table) {
			log.Printf("species: skipping invalid table name %q", table)
			continue
		}
		var rows []models.SpeciesCount
		query := fmt.Sprintf(`SELECT name, scientific_name, vernacular_name, observation_count FROM %s`, table)
		if err := db.Raw(query).Scan(&rows).Error; err != nil {
			markIfConnDown(s.b, err)
			if !missingTable(err) {
				log.Printf("species: %s query failed: %v", table, err)
			}
			continue
		}
		if len(rows) > 0 {
			return rows
		}
	}

	// Catalog joined against aggregated observations, matching either name.
	var rows []models.SpeciesCount
	err := db.Raw(`
		SELECT s.scientific_name AS name,
		       s.scientific_name,
		       s.vernacular_name,
		       COALESCE((SELECT SUM(o.count) FROM species_observations o
		                  WHERE (o.species_name = s.scientific_name OR o.species_name = s.vernacular_name)
		                    AND o.deleted_at IS NULL), 0) AS observation_count
		FROM species s`).Scan(&rows).Error
	if err != nil {
		markIfConnDown(s.b, err)
		if !missingTable(err) {
			log.Printf("species: catalog join failed: %v", err)
		}
	} else if len(rows) > 0 {
		return rows
	}

	// No catalog either; aggregate raw observations by name.
	rows = nil
	err = db.Raw(`
		SELECT species_name AS name, SUM(count) AS observation_count
		FROM species_observations
		WHERE deleted_at IS NULL
		GROUP BY species_name`).Scan(&rows).Error
	if err != nil {
		markIfConnDown(s.b, err)
		log.Printf("species: aggregation failed: %v", err)
		return nil
	}
	return rows
}

func (s *SpeciesService) listSupabase(ctx context.Context) []models.SpeciesCount {
	for _, table := range s.cfg.SpeciesTables {
		if !identPattern.MatchString(table) {
			continue
		}
		var rows []models.SpeciesCount
		err := s.b.Supa.From(table).Select("name,scientific_name,vernacular_name,observation_count").
			Order("observation_count", "desc").
			ExecuteInto(ctx, &rows)
		if err != nil {
			if !missingTable(err) {
				log.Printf("species: supabase %s failed: %v", table, err)
			}
			continue
		}
		if len(rows) > 0 {
			return rows
		}
	}

	// PostgREST cannot join or aggregate, so the catalog and the embedded
	// checklist species maps are combined here.
	totals := make(map[string]int64)
	var records []supabaseChecklist
	if err := s.b.Supa.From("checklists").Select("species").ExecuteInto(ctx, &records); err != nil {
		if !missingTable(err) {
			log.Printf("species: supabase checklists failed: %v", err)
		}
		return nil
	}
	for _, r := range records {
		for name, count := range r.Species {
			if count > 0 {
				totals[name] += int64(count)
			}
		}
	}

	var catalog []models.Species
	if err := s.b.Supa.From("species").Select("id,scientific_name,vernacular_name").ExecuteInto(ctx, &catalog); err == nil && len(catalog) > 0 {
		rows := make([]models.SpeciesCount, 0, len(catalog))
		for _, sp := range catalog {
			rows = append(rows, models.SpeciesCount{
				Name:             sp.ScientificName,
				ScientificName:   sp.ScientificName,
				VernacularName:   sp.VernacularName,
				ObservationCount: totals[sp.ScientificName] + totals[sp.VernacularName],
			})
		}
		return rows
	}

	rows := make([]models.SpeciesCount, 0, len(totals))
	for name, count := range totals {
		rows = append(rows, models.SpeciesCount{Name: name, ObservationCount: count})
	}
	return rows
}
