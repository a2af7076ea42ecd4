package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/shelfwise/catalog-backend/internal/db"
	"github.com/shelfwise/catalog-backend/internal/logger"
	"github.com/shelfwise/catalog-backend/internal/middleware"
	"github.com/shelfwise/catalog-backend/internal/routes"
	"github.com/shelfwise/catalog-backend/internal/services"
)

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := "http://localhost:5173"
		if os.Getenv("ENV") != "local" && os.Getenv("ENV") != "" {
			if corsOrigin := os.Getenv("CORS_ORIGIN"); corsOrigin != "" {
				origin = corsOrigin
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func main() {
	logger.Initialize()

	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables", nil)
	}

	db.Connect()
	db.AutoMigrate()

	// The error-tracking subsystem: one registry, one broker, one store and
	// one ingest queue for the whole process.
	registry := services.NewSubscriberRegistry(0)
	broker := services.NewNotificationBroker(
		registry,
		envDuration("NOTIFY_COOLDOWN", 0),
		envInt("NOTIFY_RETENTION", 0),
	)
	store := services.NewGormErrorLogStore(db.DB, envDuration("ERRORLOG_DEDUP_WINDOW", 0))
	queue := services.NewIngestQueue(
		store,
		envInt("ERRORLOG_BATCH_SIZE", 0),
		envDuration("ERRORLOG_BATCH_DELAY", 0),
	)
	queue.Start()

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.RequestLoggerMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		dbStatus := "ok"
		var dbError string
		if db.DB != nil {
			sqlDB, err := db.DB.DB()
			if err == nil {
				err = sqlDB.Ping()
			}
			if err != nil {
				dbStatus = "error"
				dbError = err.Error()
			}
		} else {
			dbStatus = "error"
			dbError = "database connection not initialized"
		}

		overallStatus := "ok"
		statusCode := http.StatusOK
		if dbStatus != "ok" {
			overallStatus = "error"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, gin.H{
			"status":    overallStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   "1.0.0",
			"services": gin.H{
				"database": gin.H{
					"status": dbStatus,
					"error":  dbError,
				},
				"notifications": gin.H{
					"status":      "ok",
					"subscribers": registry.Count(),
					"pending":     broker.PendingCount(),
				},
				"ingest": gin.H{
					"status":  "ok",
					"pending": queue.PendingCount(),
				},
			},
		})
	})

	routes.SetupRoutes(r, store, queue, broker)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	logger.Info("Starting catalog backend server", map[string]interface{}{
		"port":     port,
		"gin_mode": gin.Mode(),
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	logger.Info("Shutting down server gracefully...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Drain the subsystem: final flush of queued events, then drop all live
	// subscribers. Pending notifications and cooldown state are ephemeral by
	// design and are simply lost.
	queue.Stop()
	registry.CloseAll()

	logger.Info("Server exited gracefully", nil)
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			return value
		}
		logger.Warn("Invalid integer env value, using default", map[string]interface{}{
			"key": key, "value": raw,
		})
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if value, err := time.ParseDuration(raw); err == nil {
			return value
		}
		logger.Warn("Invalid duration env value, using default", map[string]interface{}{
			"key": key, "value": raw,
		})
	}
	return fallback
}
