package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/yolan2/tandonia/config"
	"github.com/yolan2/tandonia/controllers"
	"github.com/yolan2/tandonia/middlewares"
	"github.com/yolan2/tandonia/services"
)

func SetupRouter(settings config.Settings, b *config.Backends) *gin.Engine {
	r := gin.Default()
	r.Use(middlewares.CORS(settings.AllowedOrigins))
	r.Use(middlewares.ErrorHandler(settings.Debug))

	cache := services.NewResponseCache()
	hub := services.NewRealtimeHub()

	authSvc := services.NewAuthService(b)
	checklistSvc := services.NewChecklistService(b, settings, cache)
	gridCellSvc := services.NewGridCellService(b, cache)
	speciesSvc := services.NewSpeciesService(b, settings, cache)
	newsSvc := services.NewNewsService(b)

	authCtl := controllers.NewAuthController(authSvc)
	checklistCtl := controllers.NewChecklistController(checklistSvc, hub)
	gridCellCtl := controllers.NewGridCellController(gridCellSvc)
	speciesCtl := controllers.NewSpeciesController(speciesSvc)
	newsCtl := controllers.NewNewsController(newsSvc)
	realtimeCtl := controllers.NewRealtimeController(hub, settings.AllowedOrigins)

	r.GET("/health", controllers.Health)

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authCtl.Register)
		auth.POST("/login", authCtl.Login)
	}

	// Public reads
	api.GET("/grid-cells", gridCellCtl.List)
	api.GET("/news", newsCtl.List)
	api.GET("/species", speciesCtl.List)

	// Protected checklist routes
	checklists := api.Group("/checklists")
	checklists.Use(middlewares.AuthMiddleware(b))
	{
		checklists.POST("", checklistCtl.Submit)
		checklists.GET("", checklistCtl.List)
		checklists.GET("/:id", checklistCtl.Get)
	}

	ws := api.Group("/ws")
	ws.Use(middlewares.AuthMiddleware(b))
	{
		ws.GET("/submissions", realtimeCtl.SubmissionsWS)
	}

	if settings.Debug {
		devCtl := controllers.NewDevController(b)
		dbg := api.Group("/debug")
		{
			dbg.GET("/headers", devCtl.Headers)
			dbg.GET("/stores", devCtl.Stores)
		}
	}

	return r
}
