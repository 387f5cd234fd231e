package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/yolan2/tandonia/config"
	"github.com/yolan2/tandonia/models"
)

const defaultNewsLimit = 50

type NewsService struct {
	b *config.Backends
}

func NewNewsService(b *config.Backends) *NewsService {
	return &NewsService{b: b}
}

// List returns the most recent news items, newest first. Whichever store
// answers, rows come back as raw records and are normalized into the
// canonical shape before leaving this service.
func (s *NewsService) List(ctx context.Context, limit int) ([]models.NewsItem, error) {
	if limit <= 0 || limit > defaultNewsLimit {
		limit = defaultNewsLimit
	}

	var raw []map[string]interface{}
	if s.b.HasDB() {
		err := s.b.DB.WithContext(ctx).Table("news").Find(&raw).Error
		if err != nil {
			markIfConnDown(s.b, err)
			if !missingTable(err) && s.b.HasDB() {
				return nil, err
			}
		}
	}
	if len(raw) == 0 && s.b.HasSupabase() {
		if err := s.b.Supa.From("news").Select("*").ExecuteInto(ctx, &raw); err != nil {
			log.Printf("news: supabase fallback failed: %v", err)
		}
	}
	if len(raw) == 0 {
		return nil, ErrUnavailable
	}

	items := make([]models.NewsItem, 0, len(raw))
	for _, record := range raw {
		items = append(items, NormalizeNewsRecord(record))
	}
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].PublishedAt, items[j].PublishedAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Field aliases seen across the stores, in preference order.
var (
	newsTitleKeys   = []string{"title", "titel", "name", "headline"}
	newsBodyKeys    = []string{"body", "content", "text", "tekst", "description"}
	newsDateKeys    = []string{"published_at", "publishedAt", "date", "datum", "created_at"}
	newsImageKeys   = []string{"image_url", "imageUrl", "image", "photo_url", "img"}
	newsAuthorKeys  = []string{"author", "auteur"}
	newsLicenseKeys = []string{"license", "licence"}
)

// NormalizeNewsRecord maps one raw untyped row onto the canonical news shape,
// tolerating the field-name drift between backends.
func NormalizeNewsRecord(record map[string]interface{}) models.NewsItem {
	item := models.NewsItem{
		ID:       stringField(record, "id", "uuid"),
		Title:    stringField(record, newsTitleKeys...),
		Body:     stringField(record, newsBodyKeys...),
		ImageURL: stringField(record, newsImageKeys...),
		Author:   stringField(record, newsAuthorKeys...),
		License:  stringField(record, newsLicenseKeys...),
	}
	if t, ok := timeField(record, newsDateKeys...); ok {
		item.PublishedAt = &t
	}
	return item
}

func stringField(record map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		v, ok := lookupFold(record, key)
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%v", s)
		case int64:
			return fmt.Sprintf("%d", s)
		}
	}
	return ""
}

func timeField(record map[string]interface{}, keys ...string) (time.Time, bool) {
	for _, key := range keys {
		v, ok := lookupFold(record, key)
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			return t, true
		case string:
			for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if parsed, err := time.Parse(layout, t); err == nil {
					return parsed, true
				}
			}
		}
	}
	return time.Time{}, false
}

// lookupFold matches keys case-insensitively; stores disagree on casing too.
func lookupFold(record map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := record[key]; ok {
		return v, true
	}
	for k, v := range record {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
