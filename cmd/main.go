package main

import (
	"log"

	"github.com/yolan2/tandonia/config"
	"github.com/yolan2/tandonia/routes"
)

func main() {
	settings := config.LoadSettings()
	backends := config.InitBackends()

	r := routes.SetupRouter(settings, backends)
	if err := r.Run(":" + settings.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
