package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yolan2/tandonia/config"
)

// DevController serves the debug-only introspection endpoints. The routes are
// only registered when the debug flag is on, so without it they 404.
type DevController struct {
	Backends *config.Backends
}

func NewDevController(b *config.Backends) *DevController {
	return &DevController{Backends: b}
}

// Headers echoes the request headers back, for diagnosing proxy/CORS setups.
func (d *DevController) Headers(c *gin.Context) {
	headers := make(map[string]string, len(c.Request.Header))
	for name, values := range c.Request.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	c.JSON(http.StatusOK, gin.H{"headers": headers})
}

// Stores reports which backends answered the startup probe plus a live ping.
func (d *DevController) Stores(c *gin.Context) {
	status := gin.H{
		"postgres": d.Backends.HasDB(),
		"supabase": d.Backends.HasSupabase(),
	}

	if d.Backends.HasDB() {
		ping := "ok"
		if sqlDB, err := d.Backends.DB.DB(); err != nil {
			ping = err.Error()
		} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			ping = err.Error()
		}
		status["postgres_ping"] = ping
	}

	if d.Backends.HasSupabase() {
		ping := "ok"
		if err := d.Backends.Supa.Ping(c.Request.Context()); err != nil {
			ping = err.Error()
		}
		status["supabase_ping"] = ping
	}

	c.JSON(http.StatusOK, status)
}
