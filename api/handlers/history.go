package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opspulse/pulsefeed/internal/history"
	"github.com/opspulse/pulsefeed/internal/relay"
)

// HistoryHandler serves persisted events and the per-room recent cache.
type HistoryHandler struct {
	repo *history.Repository
	hub  *relay.Hub
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(repo *history.Repository, hub *relay.Hub) *HistoryHandler {
	return &HistoryHandler{repo: repo, hub: hub}
}

// List handles GET /api/history?room=&event=&limit= - lists persisted
// events, newest first.
func (h *HistoryHandler) List(c *gin.Context) {
	if h.repo == nil {
		sendError(c, http.StatusNotImplemented, "HISTORY_DISABLED", "Event history is not enabled")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := h.repo.List(c.Request.Context(), history.Query{
		Room:  c.Query("room"),
		Event: c.Query("event"),
		Limit: limit,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list events: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": records})
}

// Recent handles GET /api/rooms/:room/recent - returns the in-memory
// recent-frame cache for a room, oldest first.
func (h *HistoryHandler) Recent(c *gin.Context) {
	room := c.Param("room")
	if room == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Room is required")
		return
	}

	c.JSON(http.StatusOK, gin.H{"frames": h.hub.Recent(room)})
}

// RegisterRoutes registers the history routes on a Gin router group.
func (h *HistoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/history", h.List)
	rg.GET("/rooms/:room/recent", h.Recent)
}

// sendError writes a structured error response.
func sendError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
