package models

import "time"

// NewsItem is the canonical shape returned by GET /api/news. Stores disagree
// on column names, so rows are normalized from raw records in the news
// service rather than scanned into this struct directly.
type NewsItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Author      string     `json:"author,omitempty"`
	License     string     `json:"license,omitempty"`
}
