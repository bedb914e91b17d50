package handlers

import (
	"log/slog"

	"github.com/chachabrian/wastepickup-backend/internal/dispatch"
	"github.com/chachabrian/wastepickup-backend/internal/middleware"
	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/chachabrian/wastepickup-backend/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RouterDeps struct {
	DB          *gorm.DB
	Coordinator *dispatch.Coordinator
	Drivers     DriverDirectory
	Hub         *services.Hub
	Tokens      middleware.TokenValidator
	Logger      *slog.Logger
	CORSOrigins []string
}

// NewRouter wires every route of the API
func NewRouter(d RouterDeps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))

	config := cors.DefaultConfig()
	if len(d.CORSOrigins) == 0 || (len(d.CORSOrigins) == 1 && d.CORSOrigins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = d.CORSOrigins
	}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	r.GET("/health", Health(d.DB, d.Hub))

	api := r.Group("/api")
	auth := middleware.AuthMiddleware(d.Tokens)
	{
		// the token is checked before the upgrade, so a bad one never joins a room
		api.GET("/ws", auth, WebSocketHandler(d.Hub))

		drivers := middleware.RequireRole(models.RoleDriver)
		staff := middleware.RequireRole(models.RoleDriver, models.RoleOrgAdmin, models.RoleSuperAdmin)
		admins := middleware.RequireRole(models.RoleOrgAdmin, models.RoleSuperAdmin)

		pickups := api.Group("/pickups")
		pickups.Use(auth)
		{
			pickups.POST("", middleware.RequireRole(models.RoleCustomer), CreatePickup(d.Coordinator))
			pickups.GET("", GetMyPickups(d.Coordinator))
			pickups.GET("/pending", staff, GetPendingPickups(d.Coordinator))
			pickups.GET("/:id", GetPickup(d.Coordinator))
			pickups.POST("/:id/accept", drivers, AcceptPickup(d.Coordinator, d.Drivers))
			pickups.POST("/:id/cancel", CancelPickup(d.Coordinator))
			pickups.POST("/:id/complete", drivers, CompletePickup(d.Coordinator))
			pickups.POST("/:id/reject", admins, RejectPickup(d.Coordinator))
		}
	}

	return r
}
