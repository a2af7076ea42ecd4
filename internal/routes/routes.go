package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/shelfwise/catalog-backend/internal/controllers"
	"github.com/shelfwise/catalog-backend/internal/middleware"
	"github.com/shelfwise/catalog-backend/internal/services"
)

// SetupRoutes registers the error-tracking and notification surface. The
// broker, queue and store are constructed once in main and handed in; they
// live for the whole process.
func SetupRoutes(r *gin.Engine, store services.ErrorLogStore, queue *services.IngestQueue, broker *services.NotificationBroker) {
	errorController := controllers.NewErrorController(store, queue, broker)
	notificationController := controllers.NewNotificationController(broker)

	api := r.Group("/api/v1")
	{
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// Error ingest and the reporting query surface
			errs := protected.Group("/errors")
			{
				errs.POST("", errorController.ReportError)
				errs.GET("", errorController.GetErrorLogs)
				errs.GET("/stats", errorController.GetErrorStats)
				errs.GET("/fingerprint/:fingerprint", errorController.GetErrorLogsByFingerprint)
				errs.GET("/:id", errorController.GetErrorLog)
			}

			// Live notifications
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", notificationController.GetNotifications)
				notifications.GET("/stream", notificationController.Stream)
				notifications.GET("/ws", notificationController.StreamWebSocket)

				admin := notifications.Group("/")
				admin.Use(middleware.RequireRole("ADMIN", "MANAGER"))
				{
					admin.POST("/:id/acknowledge", notificationController.Acknowledge)
					admin.POST("/acknowledge-all", notificationController.AcknowledgeAll)
				}
			}
		}
	}
}
