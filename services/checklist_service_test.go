package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yolan2/tandonia/config"
	"github.com/yolan2/tandonia/models"
	"github.com/yolan2/tandonia/supabase"
	"github.com/yolan2/tandonia/utils"
)

func newMockBackends(t *testing.T) (*config.Backends, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return &config.Backends{DB: gdb}, mock
}

func newChecklistService(b *config.Backends, cfg config.Settings) *ChecklistService {
	return NewChecklistService(b, cfg, NewResponseCache())
}

func newSupabaseBackends(t *testing.T) (*config.Backends, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	client, err := supabase.New(supabase.Config{
		ProjectURL: "https://proj.supabase.co",
		APIKey:     "anon-key",
		HTTPClient: &http.Client{Transport: mt},
	})
	require.NoError(t, err)
	return &config.Backends{Supa: client}, mt
}

func TestNormalizeHabitats(t *testing.T) {
	t.Run("urban aliases to anthropogenous", func(t *testing.T) {
		out := NormalizeHabitats(map[string]LatLng{
			"forest": {Lat: 50.1, Lng: 4.2},
			"urban":  {Lat: 50.12, Lng: 4.22},
		})
		assert.Len(t, out, 2)
		assert.Equal(t, LatLng{Lat: 50.12, Lng: 4.22}, out[models.HabitatAnthropogenic])
		assert.NotContains(t, out, "urban")
	})

	t.Run("explicit anthropogenous wins over alias", func(t *testing.T) {
		out := NormalizeHabitats(map[string]LatLng{
			"anthropogenous": {Lat: 51.0, Lng: 4.0},
			"urban":          {Lat: 50.0, Lng: 3.0},
		})
		assert.Equal(t, LatLng{Lat: 51.0, Lng: 4.0}, out[models.HabitatAnthropogenic])
	})

	t.Run("unknown keys dropped", func(t *testing.T) {
		out := NormalizeHabitats(map[string]LatLng{
			"swamp":  {Lat: 50.0, Lng: 4.0},
			"desert": {Lat: 50.0, Lng: 4.0},
		})
		assert.Len(t, out, 1)
		assert.Contains(t, out, models.HabitatSwamp)
	})
}

func TestSubmitValidation(t *testing.T) {
	b, mock := newMockBackends(t)
	svc := newChecklistService(b, config.Settings{})

	cases := []struct {
		name   string
		userID string
		input  SubmitChecklistInput
	}{
		{"missing grid cell", "1", SubmitChecklistInput{TimeSpent: 15}},
		{"zero minutes", "1", SubmitChecklistInput{GridCellID: "cell-7"}},
		{"negative minutes", "1", SubmitChecklistInput{GridCellID: "cell-7", TimeSpent: -3}},
		{"missing user", "", SubmitChecklistInput{GridCellID: "cell-7", TimeSpent: 15}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tc.userID, tc.input)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	// No SQL expectations were registered: rejected submissions must not
	// touch any table.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitTransaction(t *testing.T) {
	b, mock := newMockBackends(t)
	svc := newChecklistService(b, config.Settings{})

	idRow := func(id int64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id"}).AddRow(id)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "checklists"`).WillReturnRows(idRow(7))
	mock.ExpectQuery(`INSERT INTO "checklist_locations"`).WillReturnRows(idRow(1))
	mock.ExpectQuery(`INSERT INTO "checklist_locations"`).WillReturnRows(idRow(2))
	mock.ExpectQuery(`INSERT INTO "checklist_locations"`).WillReturnRows(idRow(3))
	mock.ExpectQuery(`INSERT INTO "species_observations"`).WillReturnRows(idRow(1))
	mock.ExpectCommit()

	id, err := svc.Submit(context.Background(), "1", SubmitChecklistInput{
		GridCellID: "cell-7",
		TimeSpent:  15,
		Locations: map[string]LatLng{
			"forest": {Lat: 50.1, Lng: 4.2},
			"swamp":  {Lat: 50.11, Lng: 4.21},
			"urban":  {Lat: 50.12, Lng: 4.22},
		},
		Species: map[string]int{
			"Arion ater":       3,
			"Limax maximus":    0,  // dropped, count not positive
			"Tandonia rustica": -1, // dropped
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitRollsBackOnChildFailure(t *testing.T) {
	b, mock := newMockBackends(t)
	svc := newChecklistService(b, config.Settings{})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "checklists"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectQuery(`INSERT INTO "checklist_locations"`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := svc.Submit(context.Background(), "1", SubmitChecklistInput{
		GridCellID: "cell-7",
		TimeSpent:  15,
		Locations:  map[string]LatLng{"forest": {Lat: 50.1, Lng: 4.2}},
		Species:    map[string]int{"Arion ater": 3},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitDedupWindow(t *testing.T) {
	b, mock := newMockBackends(t)
	svc := newChecklistService(b, config.Settings{DedupWindowHours: 24})

	mock.ExpectQuery(`SELECT count\(\*\) FROM "checklists"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := svc.Submit(context.Background(), "1", SubmitChecklistInput{
		GridCellID: "cell-7",
		TimeSpent:  15,
	})
	assert.ErrorIs(t, err, ErrDuplicateChecklist)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitUnavailableWithoutStores(t *testing.T) {
	svc := newChecklistService(&config.Backends{}, config.Settings{})

	_, err := svc.Submit(context.Background(), "1", SubmitChecklistInput{
		GridCellID: "cell-7",
		TimeSpent:  15,
	})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestListChecklistsNewestFirst(t *testing.T) {
	b, mock := newMockBackends(t)
	svc := newChecklistService(b, config.Settings{})

	newer := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	older := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "grid_cell_id", "time_spent_minutes", "created_at", "location_count", "species_count"}).
		AddRow(2, "cell-8", 20, newer, 3, 2).
		AddRow(1, "cell-7", 15, older, 2, 1)
	mock.ExpectQuery(`FROM "checklists"`).WillReturnRows(rows)

	out, err := svc.List(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].ID)
	assert.Equal(t, int64(3), out[0].LocationCount)
	assert.Equal(t, int64(1), out[1].SpeciesCount)
}

func TestSubmitInvalidatesReadCaches(t *testing.T) {
	b, mock := newMockBackends(t)
	cache := NewResponseCache()
	svc := NewChecklistService(b, config.Settings{}, cache)

	cache.Set(cacheKeyGridCells, &models.FeatureCollection{})
	cache.Set(cacheKeySpecies, []models.SpeciesCount{})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "checklists"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	_, err := svc.Submit(context.Background(), "1", SubmitChecklistInput{
		GridCellID: "cell-7",
		TimeSpent:  15,
	})
	require.NoError(t, err)

	// Both listings embed submission-derived numbers, so a fresh submission
	// evicts both cached copies.
	_, ok := cache.Get(cacheKeyGridCells)
	assert.False(t, ok)
	_, ok = cache.Get(cacheKeySpecies)
	assert.False(t, ok)
}

func TestSubmitSupabaseDedupWindow(t *testing.T) {
	b, mt := newSupabaseBackends(t)
	svc := newChecklistService(b, config.Settings{DedupWindowHours: 24})

	mt.RegisterResponder(http.MethodGet, `=~^https://proj\.supabase\.co/rest/v1/checklists`,
		httpmock.NewStringResponder(200, `[{"id":3}]`))

	_, err := svc.Submit(context.Background(), "u-1", SubmitChecklistInput{
		GridCellID: "cell-7",
		TimeSpent:  15,
	})
	assert.ErrorIs(t, err, ErrDuplicateChecklist)
}

func TestSubmitSupabaseInsert(t *testing.T) {
	b, mt := newSupabaseBackends(t)
	svc := newChecklistService(b, config.Settings{})

	mt.RegisterResponder(http.MethodPost, `=~^https://proj\.supabase\.co/rest/v1/checklists`,
		httpmock.NewStringResponder(201, `[{"id":11}]`))

	id, err := svc.Submit(context.Background(), "u-1", SubmitChecklistInput{
		GridCellID: "cell-7",
		TimeSpent:  15,
		Species:    map[string]int{"Arion ater": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
}

func TestGetChecklistDetail(t *testing.T) {
	b, mock := newMockBackends(t)
	svc := newChecklistService(b, config.Settings{})

	created := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	fx, fy := utils.Lambert72Forward(50.1, 4.2)
	sx, sy := utils.Lambert72Forward(50.12, 4.22)

	mock.ExpectQuery(`SELECT \* FROM "checklists"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "grid_cell_id", "time_spent_minutes", "created_at"}).
			AddRow(7, "1", "cell-7", 15, created))
	mock.ExpectQuery(`SELECT \* FROM "checklist_locations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "checklist_id", "habitat_type", "x", "y"}).
			AddRow(1, 7, "forest", fx, fy).
			AddRow(2, 7, "swamp", sx, sy))
	mock.ExpectQuery(`SELECT \* FROM "species_observations".*ORDER BY species_name`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "checklist_id", "species_name", "count"}).
			AddRow(1, 7, "Arion ater", 3).
			AddRow(2, 7, "Limax maximus", 1))

	detail, err := svc.Get(context.Background(), "1", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), detail.ID)
	assert.Equal(t, "cell-7", detail.GridCellID)
	assert.Equal(t, created, detail.CreatedAt)

	// Stored Lambert coordinates come back alongside the decoded lat/lng.
	require.Len(t, detail.Locations, 2)
	assert.Equal(t, "forest", detail.Locations[0].HabitatType)
	assert.Equal(t, fx, detail.Locations[0].X)
	assert.InDelta(t, 50.1, detail.Locations[0].Lat, 1e-6)
	assert.InDelta(t, 4.2, detail.Locations[0].Lng, 1e-6)
	assert.Equal(t, sy, detail.Locations[1].Y)
	assert.InDelta(t, 50.12, detail.Locations[1].Lat, 1e-6)

	require.Len(t, detail.Species, 2)
	assert.Equal(t, "Arion ater", detail.Species[0].SpeciesName)
	assert.Equal(t, 3, detail.Species[0].Count)
	assert.Equal(t, "Limax maximus", detail.Species[1].SpeciesName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChecklistSupabaseDetail(t *testing.T) {
	b, mt := newSupabaseBackends(t)
	svc := newChecklistService(b, config.Settings{})

	mt.RegisterResponder(http.MethodGet, `=~^https://proj\.supabase\.co/rest/v1/checklists`,
		httpmock.NewStringResponder(200, `{
			"id": 5, "user_id": "u-1", "grid_cell_id": "cell-7",
			"time_spent_minutes": 20, "created_at": "2024-06-02T10:00:00Z",
			"locations": {"forest": {"lat": 50.1, "lng": 4.2}},
			"species": {"Limax maximus": 1, "Arion ater": 3}
		}`))

	detail, err := svc.Get(context.Background(), "u-1", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), detail.ID)
	require.Len(t, detail.Locations, 1)
	assert.InDelta(t, 50.1, detail.Locations[0].Lat, 1e-9)
	assert.Greater(t, detail.Locations[0].X, 0.0)
	require.Len(t, detail.Species, 2)
	assert.Equal(t, "Arion ater", detail.Species[0].SpeciesName)
	assert.Equal(t, "Limax maximus", detail.Species[1].SpeciesName)
}

func TestGetChecklistSupabaseNotFound(t *testing.T) {
	b, mt := newSupabaseBackends(t)
	svc := newChecklistService(b, config.Settings{})

	mt.RegisterResponder(http.MethodGet, `=~^https://proj\.supabase\.co/rest/v1/checklists`,
		httpmock.NewStringResponder(406, `{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`))

	_, err := svc.Get(context.Background(), "u-1", 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetChecklistNotFoundForOtherOwner(t *testing.T) {
	b, mock := newMockBackends(t)
	svc := newChecklistService(b, config.Settings{})

	// Detail lookup filters by id and owner together, so someone else's
	// checklist comes back as an empty result set.
	mock.ExpectQuery(`SELECT \* FROM "checklists"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Get(context.Background(), "other-user", 7)
	assert.ErrorIs(t, err, ErrNotFound)
}
