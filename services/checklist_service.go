package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/yolan2/tandonia/config"
	"github.com/yolan2/tandonia/models"
	"github.com/yolan2/tandonia/supabase"
	"github.com/yolan2/tandonia/utils"
)

type ChecklistService struct {
	b     *config.Backends
	cfg   config.Settings
	cache *ResponseCache
}

func NewChecklistService(b *config.Backends, cfg config.Settings, cache *ResponseCache) *ChecklistService {
	return &ChecklistService{b: b, cfg: cfg, cache: cache}
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type SubmitChecklistInput struct {
	GridCellID string            `json:"gridCellId"`
	Locations  map[string]LatLng `json:"locations"`
	Species    map[string]int    `json:"species"`
	TimeSpent  int               `json:"timeSpent"`
}

// NormalizeHabitats copies the client-side "urban" alias into anthropogenous
// (when the latter is absent) and drops keys outside the fixed vocabulary.
func NormalizeHabitats(locations map[string]LatLng) map[string]LatLng {
	out := make(map[string]LatLng, 3)
	for _, ht := range []string{models.HabitatForest, models.HabitatSwamp, models.HabitatAnthropogenic} {
		if ll, ok := locations[ht]; ok {
			out[ht] = ll
		}
	}
	if _, ok := out[models.HabitatAnthropogenic]; !ok {
		if ll, ok := locations["urban"]; ok {
			out[models.HabitatAnthropogenic] = ll
		}
	}
	return out
}

// Submit persists one checklist with its locations and species counts.
// Relational path is a single transaction: all rows or none. The managed
// path is a best-effort denormalized insert, used only when no relational
// store is usable.
func (s *ChecklistService) Submit(ctx context.Context, userID string, in SubmitChecklistInput) (int64, error) {
	if userID == "" {
		return 0, badRequest("missing user")
	}
	if in.GridCellID == "" {
		return 0, badRequest("gridCellId is required")
	}
	if in.TimeSpent <= 0 {
		return 0, badRequest("timeSpent must be a positive number of minutes")
	}
	locations := NormalizeHabitats(in.Locations)

	var id int64
	var err error
	switch {
	case s.b.HasDB():
		id, err = s.submitDB(ctx, userID, in, locations)
		markIfConnDown(s.b, err)
	case s.b.HasSupabase():
		id, err = s.submitSupabase(ctx, userID, in, locations)
	default:
		return 0, ErrUnavailable
	}
	if err != nil {
		return 0, err
	}

	// The grid-cell collection embeds checklist counts and the species
	// listing aggregates observations; drop both cached copies so the new
	// submission shows up.
	s.cache.Delete(cacheKeyGridCells)
	s.cache.Delete(cacheKeySpecies)
	return id, nil
}

func (s *ChecklistService) submitDB(ctx context.Context, userID string, in SubmitChecklistInput, locations map[string]LatLng) (int64, error) {
	if s.cfg.DedupWindowHours > 0 {
		var n int64
		since := time.Now().Add(-time.Duration(s.cfg.DedupWindowHours) * time.Hour)
		err := s.b.DB.WithContext(ctx).Model(&models.Checklist{}).
			Where("user_id = ? AND grid_cell_id = ? AND created_at > ?", userID, in.GridCellID, since).
			Count(&n).Error
		if err != nil {
			return 0, fmt.Errorf("submission failed: %w", err)
		}
		if n > 0 {
			return 0, ErrDuplicateChecklist
		}
	}

	var id int64
	err := s.b.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		checklist := models.Checklist{
			UserID:           userID,
			GridCellID:       in.GridCellID,
			TimeSpentMinutes: in.TimeSpent,
		}
		if err := tx.Create(&checklist).Error; err != nil {
			return err
		}

		for _, ht := range []string{models.HabitatForest, models.HabitatSwamp, models.HabitatAnthropogenic} {
			ll, ok := locations[ht]
			if !ok {
				continue
			}
			x, y := utils.Lambert72Forward(ll.Lat, ll.Lng)
			loc := models.ChecklistLocation{
				ChecklistID: checklist.ID,
				HabitatType: ht,
				X:           x,
				Y:           y,
			}
			if err := tx.Create(&loc).Error; err != nil {
				return err
			}
		}

		for name, count := range in.Species {
			if count <= 0 {
				continue
			}
			obs := models.SpeciesObservation{
				ChecklistID: checklist.ID,
				SpeciesName: name,
				Count:       count,
			}
			if err := tx.Create(&obs).Error; err != nil {
				return err
			}
		}

		id = int64(checklist.ID)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("submission failed: %w", err)
	}
	return id, nil
}

// submitSupabase writes one denormalized record with the raw locations and
// species maps embedded. Non-transactional by design; it only exists to keep
// submissions working when the relational store is absent.
func (s *ChecklistService) submitSupabase(ctx context.Context, userID string, in SubmitChecklistInput, locations map[string]LatLng) (int64, error) {
	if s.cfg.DedupWindowHours > 0 {
		since := time.Now().Add(-time.Duration(s.cfg.DedupWindowHours) * time.Hour).UTC().Format(time.RFC3339)
		var existing []struct {
			ID int64 `json:"id"`
		}
		err := s.b.Supa.From("checklists").Select("id").
			Eq("user_id", userID).
			Eq("grid_cell_id", in.GridCellID).
			Gte("created_at", since).
			Limit(1).
			ExecuteInto(ctx, &existing)
		if err != nil {
			return 0, fmt.Errorf("submission failed: %w", err)
		}
		if len(existing) > 0 {
			return 0, ErrDuplicateChecklist
		}
	}

	species := make(map[string]int, len(in.Species))
	for name, count := range in.Species {
		if count > 0 {
			species[name] = count
		}
	}

	record := map[string]interface{}{
		"user_id":            userID,
		"grid_cell_id":       in.GridCellID,
		"time_spent_minutes": in.TimeSpent,
		"locations":          locations,
		"species":            species,
	}

	var created []struct {
		ID int64 `json:"id"`
	}
	err := s.b.Supa.From("checklists").Insert([]map[string]interface{}{record}).ExecuteInto(ctx, &created)
	if err != nil {
		return 0, fmt.Errorf("submission failed: %w", err)
	}
	if len(created) == 0 {
		return 0, fmt.Errorf("submission failed: no record returned")
	}
	return created[0].ID, nil
}

type ChecklistSummary struct {
	ID               int64     `gorm:"column:id" json:"id"`
	GridCellID       string    `gorm:"column:grid_cell_id" json:"grid_cell_id"`
	TimeSpentMinutes int       `gorm:"column:time_spent_minutes" json:"time_spent_minutes"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"created_at"`
	LocationCount    int64     `gorm:"column:location_count" json:"location_count"`
	SpeciesCount     int64     `gorm:"column:species_count" json:"species_count"`
}

// List returns the caller's checklists, newest first, annotated with child
// row counts.
func (s *ChecklistService) List(ctx context.Context, userID string) ([]ChecklistSummary, error) {
	if s.b.HasDB() {
		rows, err := s.listDB(ctx, userID)
		if err == nil {
			return rows, nil
		}
		markIfConnDown(s.b, err)
		if !missingTable(err) && s.b.HasDB() {
			return nil, err
		}
	}
	if s.b.HasSupabase() {
		return s.listSupabase(ctx, userID)
	}
	return nil, ErrUnavailable
}

func (s *ChecklistService) listDB(ctx context.Context, userID string) ([]ChecklistSummary, error) {
	var rows []ChecklistSummary
	err := s.b.DB.WithContext(ctx).Table("checklists").
		Select(`checklists.id, checklists.grid_cell_id, checklists.time_spent_minutes, checklists.created_at,
			(SELECT count(*) FROM checklist_locations l WHERE l.checklist_id = checklists.id AND l.deleted_at IS NULL) AS location_count,
			(SELECT count(*) FROM species_observations o WHERE o.checklist_id = checklists.id AND o.deleted_at IS NULL) AS species_count`).
		Where("checklists.user_id = ? AND checklists.deleted_at IS NULL", userID).
		Order("checklists.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []ChecklistSummary{}
	}
	return rows, nil
}

type supabaseChecklist struct {
	ID               int64             `json:"id"`
	UserID           string            `json:"user_id"`
	GridCellID       string            `json:"grid_cell_id"`
	TimeSpentMinutes int               `json:"time_spent_minutes"`
	CreatedAt        time.Time         `json:"created_at"`
	Locations        map[string]LatLng `json:"locations"`
	Species          map[string]int    `json:"species"`
}

func (s *ChecklistService) listSupabase(ctx context.Context, userID string) ([]ChecklistSummary, error) {
	var records []supabaseChecklist
	err := s.b.Supa.From("checklists").Select("*").
		Eq("user_id", userID).
		Order("created_at", "desc").
		ExecuteInto(ctx, &records)
	if err != nil {
		return nil, err
	}

	rows := make([]ChecklistSummary, 0, len(records))
	for _, r := range records {
		rows = append(rows, ChecklistSummary{
			ID:               r.ID,
			GridCellID:       r.GridCellID,
			TimeSpentMinutes: r.TimeSpentMinutes,
			CreatedAt:        r.CreatedAt,
			LocationCount:    int64(len(r.Locations)),
			SpeciesCount:     int64(len(r.Species)),
		})
	}
	return rows, nil
}

type LocationDetail struct {
	HabitatType string  `json:"habitat_type"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

type SpeciesEntry struct {
	SpeciesName string `json:"species_name"`
	Count       int    `json:"count"`
}

type ChecklistDetail struct {
	ID               int64            `json:"id"`
	GridCellID       string           `json:"grid_cell_id"`
	TimeSpentMinutes int              `json:"time_spent_minutes"`
	CreatedAt        time.Time        `json:"created_at"`
	Locations        []LocationDetail `json:"locations"`
	Species          []SpeciesEntry   `json:"species"`
}

// Get returns one checklist with its full child lists. The query filters by
// id and owner together, so a checklist belonging to someone else is
// indistinguishable from one that does not exist.
func (s *ChecklistService) Get(ctx context.Context, userID string, checklistID int64) (*ChecklistDetail, error) {
	if s.b.HasDB() {
		detail, err := s.getDB(ctx, userID, checklistID)
		if err == nil || errors.Is(err, ErrNotFound) {
			return detail, err
		}
		markIfConnDown(s.b, err)
		if !missingTable(err) && s.b.HasDB() {
			return nil, err
		}
	}
	if s.b.HasSupabase() {
		return s.getSupabase(ctx, userID, checklistID)
	}
	return nil, ErrUnavailable
}

func (s *ChecklistService) getDB(ctx context.Context, userID string, checklistID int64) (*ChecklistDetail, error) {
	var checklist models.Checklist
	err := s.b.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", checklistID, userID).
		Preload("Locations").
		Preload("Observations", func(db *gorm.DB) *gorm.DB {
			return db.Order("species_name ASC")
		}).
		First(&checklist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := &ChecklistDetail{
		ID:               int64(checklist.ID),
		GridCellID:       checklist.GridCellID,
		TimeSpentMinutes: checklist.TimeSpentMinutes,
		CreatedAt:        checklist.CreatedAt,
		Locations:        make([]LocationDetail, 0, len(checklist.Locations)),
		Species:          make([]SpeciesEntry, 0, len(checklist.Observations)),
	}
	for _, loc := range checklist.Locations {
		lat, lng := utils.Lambert72Inverse(loc.X, loc.Y)
		detail.Locations = append(detail.Locations, LocationDetail{
			HabitatType: loc.HabitatType,
			X:           loc.X,
			Y:           loc.Y,
			Lat:         lat,
			Lng:         lng,
		})
	}
	for _, obs := range checklist.Observations {
		detail.Species = append(detail.Species, SpeciesEntry{
			SpeciesName: obs.SpeciesName,
			Count:       obs.Count,
		})
	}
	return detail, nil
}

func (s *ChecklistService) getSupabase(ctx context.Context, userID string, checklistID int64) (*ChecklistDetail, error) {
	var r supabaseChecklist
	err := s.b.Supa.From("checklists").Select("*").
		Eq("id", checklistID).
		Eq("user_id", userID).
		Single().
		ExecuteInto(ctx, &r)
	if err != nil {
		// PostgREST answers a zero-row single-object request with 406.
		var se *supabase.Error
		if errors.As(err, &se) && (se.StatusCode == http.StatusNotAcceptable || se.StatusCode == http.StatusNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	detail := &ChecklistDetail{
		ID:               r.ID,
		GridCellID:       r.GridCellID,
		TimeSpentMinutes: r.TimeSpentMinutes,
		CreatedAt:        r.CreatedAt,
		Locations:        make([]LocationDetail, 0, len(r.Locations)),
		Species:          make([]SpeciesEntry, 0, len(r.Species)),
	}
	for _, ht := range []string{models.HabitatForest, models.HabitatSwamp, models.HabitatAnthropogenic} {
		ll, ok := r.Locations[ht]
		if !ok {
			continue
		}
		x, y := utils.Lambert72Forward(ll.Lat, ll.Lng)
		detail.Locations = append(detail.Locations, LocationDetail{
			HabitatType: ht,
			X:           x,
			Y:           y,
			Lat:         ll.Lat,
			Lng:         ll.Lng,
		})
	}
	for name, count := range r.Species {
		detail.Species = append(detail.Species, SpeciesEntry{SpeciesName: name, Count: count})
	}
	sort.Slice(detail.Species, func(i, j int) bool {
		return detail.Species[i].SpeciesName < detail.Species[j].SpeciesName
	})
	return detail, nil
}

// SubmissionEvent is broadcast on the live feed after an accepted submission.
type SubmissionEvent struct {
	ChecklistID int64     `json:"checklist_id"`
	GridCellID  string    `json:"grid_cell_id"`
	Species     int       `json:"species"`
	ObservedAt  time.Time `json:"observed_at"`
}
