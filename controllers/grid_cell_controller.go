package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yolan2/tandonia/services"
)

type GridCellController struct {
	GridCells *services.GridCellService
}

func NewGridCellController(gc *services.GridCellService) *GridCellController {
	return &GridCellController{GridCells: gc}
}

func (g *GridCellController) List(c *gin.Context) {
	fc, err := g.GridCells.List(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "data unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load grid cells"})
		return
	}
	c.JSON(http.StatusOK, fc)
}
