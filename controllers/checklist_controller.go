package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yolan2/tandonia/services"
)

type ChecklistController struct {
	Checklists *services.ChecklistService
	Hub        *services.RealtimeHub
}

func NewChecklistController(cl *services.ChecklistService, hub *services.RealtimeHub) *ChecklistController {
	return &ChecklistController{Checklists: cl, Hub: hub}
}

func (cc *ChecklistController) Submit(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input services.SubmitChecklistInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := cc.Checklists.Submit(c.Request.Context(), userID, input)
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
		case errors.Is(err, services.ErrDuplicateChecklist):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "data unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	speciesCount := 0
	for _, n := range input.Species {
		if n > 0 {
			speciesCount++
		}
	}
	cc.Hub.BroadcastSubmission(services.SubmissionEvent{
		ChecklistID: id,
		GridCellID:  input.GridCellID,
		Species:     speciesCount,
		ObservedAt:  time.Now().UTC(),
	})

	c.JSON(http.StatusOK, gin.H{"checklistId": id})
}

func (cc *ChecklistController) List(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, err := cc.Checklists.List(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "data unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list checklists"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"checklists": rows})
}

func (cc *ChecklistController) Get(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid checklist id"})
		return
	}

	detail, err := cc.Checklists.Get(c.Request.Context(), userID, id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "checklist not found"})
		case errors.Is(err, services.ErrUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "data unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load checklist"})
		}
		return
	}
	c.JSON(http.StatusOK, detail)
}
