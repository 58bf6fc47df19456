package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/schoolbell-dev/schoolbell/internal/handlers"
	"github.com/schoolbell-dev/schoolbell/internal/middleware"
	"github.com/schoolbell-dev/schoolbell/internal/types"
)

func NewRouter() *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws", middleware.AuthMiddleware(), handlers.HandleWebSocket)

		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register)
			auth.POST("/login", handlers.Login)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
			auth.POST("/logout", handlers.Logout)
		}

		notifications := api.Group("/notifications", middleware.AuthMiddleware())
		{
			// Inbox endpoints for any authenticated user.
			notifications.GET("/my", handlers.MyNotifications)
			notifications.PATCH("/my", handlers.MarkNotificationsRead)

			// Operator endpoints.
			admin := middleware.RequireRoles(types.RoleAdmin)
			notifications.POST("", admin, handlers.CreateNotification)
			notifications.GET("", admin, handlers.ListNotifications)
			notifications.GET("/:notification_id/status", admin, handlers.GetDeliveryStatus)
			notifications.DELETE("/:notification_id", admin, handlers.DeleteNotification)
			notifications.POST("/:notification_id/resend", admin, handlers.ResendDelivery)
		}

		api.POST("/devices", middleware.AuthMiddleware(), handlers.RegisterDevice)

		// Authenticated by CRON_SECRET, not a user token.
		api.POST("/cron/retry-notifications", handlers.RetryNotifications)
	}

	return r
}
