package services

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	cacheKeyGridCells = "grid-cells"
	cacheKeySpecies   = "species"

	cacheTTL = 5 * time.Minute
)

// ResponseCache is a small read-through cache for the public read endpoints.
// Submissions invalidate the grid-cell entry so checklist counts stay fresh.
type ResponseCache struct {
	c *gocache.Cache
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{c: gocache.New(cacheTTL, 10*time.Minute)}
}

func (r *ResponseCache) Get(key string) (interface{}, bool) {
	return r.c.Get(key)
}

func (r *ResponseCache) Set(key string, value interface{}) {
	r.c.Set(key, value, gocache.DefaultExpiration)
}

func (r *ResponseCache) Delete(key string) {
	r.c.Delete(key)
}
