// Package handlers provides the relay's HTTP API request handlers.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/opspulse/pulsefeed/internal/relay"
)

// AttachHandler upgrades websocket attach requests.
type AttachHandler struct {
	relayHandler *relay.Handler
}

// NewAttachHandler creates a new AttachHandler.
func NewAttachHandler(relayHandler *relay.Handler) *AttachHandler {
	return &AttachHandler{relayHandler: relayHandler}
}

// Attach handles GET /api/attach - upgrades the connection and hands it to
// the relay. Authentication and error responses are handled inside.
func (h *AttachHandler) Attach(c *gin.Context) {
	if err := h.relayHandler.HandleConnection(c.Writer, c.Request); err != nil {
		// Response already written by the relay handler.
		return
	}
}

// RegisterRoutes registers the attach route on a Gin router group.
func (h *AttachHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/attach", h.Attach)
}
