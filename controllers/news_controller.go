package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yolan2/tandonia/services"
)

type NewsController struct {
	News *services.NewsService
}

func NewNewsController(news *services.NewsService) *NewsController {
	return &NewsController{News: news}
}

func (n *NewsController) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := n.News.List(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, services.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "data unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load news"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"news": items})
}
