package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yolan2/tandonia/models"
	"github.com/yolan2/tandonia/supabase"
)

// Settings holds the environment-driven configuration read once at startup.
type Settings struct {
	Port             string
	Debug            bool
	AllowedOrigins   []string
	SpeciesTables    []string
	DedupWindowHours int
}

func LoadSettings() Settings {
	// .env is optional; in deployment the environment is set directly.
	_ = godotenv.Load()

	s := Settings{
		Port:             getenv("PORT", "8080"),
		Debug:            os.Getenv("DEBUG") == "true",
		AllowedOrigins:   splitList(os.Getenv("ALLOWED_ORIGINS")),
		SpeciesTables:    splitList(getenv("SPECIES_TABLES", "species_counts")),
		DedupWindowHours: 0,
	}
	if v := os.Getenv("CHECKLIST_DEDUP_WINDOW_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.DedupWindowHours = n
		}
	}
	return s
}

// Backends records which data stores answered the startup probe. Every
// data-access service consults it to pick a primary/fallback path; a store
// that dies after the probe is marked down and skipped from then on.
type Backends struct {
	DB   *gorm.DB
	Supa *supabase.Client

	dbDown atomic.Bool
}

func (b *Backends) HasDB() bool       { return b.DB != nil && !b.dbDown.Load() }
func (b *Backends) HasSupabase() bool { return b.Supa != nil }

// MarkDBDown flags the relational store as unavailable after a fatal
// connection error. Degraded responses, never a crash.
func (b *Backends) MarkDBDown(err error) {
	if b.dbDown.CompareAndSwap(false, true) {
		log.Printf("relational store marked unavailable: %v", err)
	}
}

// InitBackends probes the configured stores. Running with only one of the two
// (or, for a liveness-only deployment, neither) is supported; data endpoints
// answer 503 when nothing can serve them.
func InitBackends() *Backends {
	b := &Backends{}

	if dsn := postgresDSN(); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			log.Printf("postgres unavailable: %v", err)
		} else if sqlDB, err := db.DB(); err != nil {
			log.Printf("postgres unavailable: %v", err)
		} else if err := sqlDB.Ping(); err != nil {
			log.Printf("postgres probe failed: %v", err)
		} else {
			b.DB = db
		}
	}

	if b.DB != nil {
		// Only the four runtime-owned tables; grid_cells and news are
		// maintained by the offline import, outside this service.
		err := b.DB.AutoMigrate(
			&models.User{},
			&models.Checklist{},
			&models.ChecklistLocation{},
			&models.SpeciesObservation{},
		)
		if err != nil {
			log.Fatalf("AutoMigrate failed: %v", err)
		}
	}

	if url := os.Getenv("SUPABASE_URL"); url != "" {
		client, err := supabase.New(supabase.Config{
			ProjectURL: url,
			APIKey:     os.Getenv("SUPABASE_KEY"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		})
		if err != nil {
			log.Printf("supabase unavailable: %v", err)
		} else {
			b.Supa = client
		}
	}

	if b.DB == nil && b.Supa == nil {
		log.Printf("no data store configured; data endpoints will answer 503")
	}
	return b
}

func postgresDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	if os.Getenv("DB_HOST") == "" {
		return ""
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		getenv("DB_PORT", "5432"),
	)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
