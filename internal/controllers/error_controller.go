package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shelfwise/catalog-backend/internal/logger"
	"github.com/shelfwise/catalog-backend/internal/models"
	"github.com/shelfwise/catalog-backend/internal/services"
)

type ErrorController struct {
	store  services.ErrorLogStore
	queue  *services.IngestQueue
	broker *services.NotificationBroker
}

func NewErrorController(store services.ErrorLogStore, queue *services.IngestQueue, broker *services.NotificationBroker) *ErrorController {
	return &ErrorController{
		store:  store,
		queue:  queue,
		broker: broker,
	}
}

// ReportErrorRequest is the ingest payload sent by application error handlers.
type ReportErrorRequest struct {
	Level      string                `json:"level"`
	Message    string                `json:"message" binding:"required"`
	Endpoint   string                `json:"endpoint"`
	Context    map[string]any        `json:"context"`
	Cause      *models.CauseSnapshot `json:"cause"`
	Timestamp  *time.Time            `json:"timestamp"`
	NotifyOnly bool                  `json:"notifyOnly"`
	Notify     *bool                 `json:"notify"`
}

// ReportError ingests a failure: classify, fingerprint, enqueue for the dedup
// store and, for error-level events, hand to the notification broker.
// Fire-and-forget: always 202 once the payload parses; internal failures are
// logged, never returned to the reporting caller.
func (ec *ErrorController) ReportError(c *gin.Context) {
	var req ReportErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid error report payload"})
		return
	}

	level := models.ErrorLevel(req.Level)
	if level != models.ErrorLevelWarn && level != models.ErrorLevelError {
		level = models.ErrorLevelError
	}

	timestamp := time.Now()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	classification := services.Classify(req.Message, req.Endpoint, req.Context)
	fingerprint := services.Fingerprint(classification.Category, req.Message, req.Endpoint, req.Context)

	event := models.ErrorEvent{
		Timestamp:      timestamp,
		Level:          level,
		Message:        req.Message,
		Endpoint:       req.Endpoint,
		Context:        req.Context,
		Cause:          req.Cause,
		Classification: classification,
		Fingerprint:    fingerprint,
	}

	if !req.NotifyOnly {
		if !ec.queue.Submit(event) {
			logger.WithFingerprint(fingerprint).Warn("Ingest queue stopped, dropping error event")
		}
	}

	// Error-level events reach the live broker by default; warn-level only on
	// explicit request.
	shouldNotify := level == models.ErrorLevelError
	if req.Notify != nil {
		shouldNotify = *req.Notify
	}

	var notification *models.AdminNotification
	if shouldNotify {
		notification = ec.broker.Notify(classification, req.Message, req.Context)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":      "accepted",
		"fingerprint": fingerprint,
		"category":    classification.Category,
		"severity":    classification.Severity,
		"notified":    notification != nil,
	})
}

// GetErrorLogs returns a filtered, paginated page of deduplicated records.
// A storage failure yields an empty result set with an error indicator
// instead of a 5xx, so the reporting UI always has something to render.
func (ec *ErrorController) GetErrorLogs(c *gin.Context) {
	filter := services.ErrorLogFilter{
		Category: models.ErrorCategory(c.Query("category")),
		Severity: models.Severity(c.Query("severity")),
		Search:   c.Query("search"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = t
		}
	}

	records, total, err := ec.store.List(filter)
	if err != nil {
		logger.WithError(err, "error_controller").Error("Failed to list error logs")
		c.JSON(http.StatusOK, gin.H{
			"errorLogs": []models.ErrorLog{},
			"total":     0,
			"error":     "Failed to query error logs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"errorLogs": records,
		"total":     total,
		"page":      filter.Page,
		"limit":     filter.Limit,
	})
}

// GetErrorLog returns one record by storage id.
func (ec *ErrorController) GetErrorLog(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid error log ID"})
		return
	}

	record, err := ec.store.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Error log not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetErrorLogsByFingerprint returns all windows of one fingerprint.
func (ec *ErrorController) GetErrorLogsByFingerprint(c *gin.Context) {
	fingerprint := c.Param("fingerprint")
	records, err := ec.store.GetByFingerprint(fingerprint)
	if err != nil {
		logger.WithFingerprint(fingerprint).WithField("error", err.Error()).
			Error("Failed to list error logs by fingerprint")
		c.JSON(http.StatusOK, gin.H{
			"errorLogs": []models.ErrorLog{},
			"error":     "Failed to query error logs",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"errorLogs": records})
}

// GetErrorStats serves the aggregate view for the reporting dashboard.
func (ec *ErrorController) GetErrorStats(c *gin.Context) {
	stats, err := ec.store.Stats()
	if err != nil {
		logger.WithError(err, "error_controller").Error("Failed to compute error log stats")
		c.JSON(http.StatusOK, gin.H{
			"stats": services.ErrorLogStats{},
			"error": "Failed to compute stats",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
