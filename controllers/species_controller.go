package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yolan2/tandonia/services"
)

type SpeciesController struct {
	Species *services.SpeciesService
}

func NewSpeciesController(sp *services.SpeciesService) *SpeciesController {
	return &SpeciesController{Species: sp}
}

func (s *SpeciesController) List(c *gin.Context) {
	rows, err := s.Species.List(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "data unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load species"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"species": rows})
}
