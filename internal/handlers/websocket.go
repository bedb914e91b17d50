package handlers

import (
	"github.com/chachabrian/wastepickup-backend/internal/dispatch"
	"github.com/chachabrian/wastepickup-backend/internal/middleware"
	"github.com/chachabrian/wastepickup-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler upgrades an authenticated request and joins the rooms the
// principal is entitled to
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := middleware.GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(401, gin.H{"error": "Unauthenticated"})
			return
		}

		services.HandleWebSocket(hub, c.Writer, c.Request, principal.ID, string(principal.Role), dispatch.RoomsFor(principal))
	}
}
