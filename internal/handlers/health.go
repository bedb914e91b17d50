package handlers

import (
	"net/http"

	"github.com/chachabrian/wastepickup-backend/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Health reports database reachability and the number of live sockets
func Health(db *gorm.DB, hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unreachable"
		}
		c.JSON(status, gin.H{
			"database":         dbStatus,
			"connectedClients": hub.GetConnectedClients(),
		})
	}
}
