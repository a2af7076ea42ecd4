package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shelfwise/catalog-backend/internal/models"
)

// DefaultDedupWindow is the rolling window inside which repeated occurrences
// of one fingerprint merge into a single record.
const DefaultDedupWindow = 24 * time.Hour

// ErrorLogFilter narrows the List query. Zero fields are ignored.
type ErrorLogFilter struct {
	Category models.ErrorCategory
	Severity models.Severity
	From     time.Time
	To       time.Time
	Search   string
	Page     int
	Limit    int
}

// ErrorLogStats is the aggregate view served to the reporting UI.
type ErrorLogStats struct {
	Total              int64                `json:"total"`
	CriticalCount      int64                `json:"criticalCount"`
	WarningCount       int64                `json:"warningCount"`
	InfoCount          int64                `json:"infoCount"`
	UniqueFingerprints int64                `json:"uniqueFingerprints"`
	MostCommonCategory models.ErrorCategory `json:"mostCommonCategory"`
	CountLast24h       int64                `json:"countLast24h"`
}

// ErrorLogStore persists deduplicated error records and serves the read-only
// query surface.
type ErrorLogStore interface {
	// Record merges the event into an open record for its fingerprint, or
	// inserts a fresh one if none is inside the dedup window.
	Record(event models.ErrorEvent) error
	List(filter ErrorLogFilter) ([]models.ErrorLog, int64, error)
	GetByID(id uint) (*models.ErrorLog, error)
	GetByFingerprint(fingerprint string) ([]models.ErrorLog, error)
	Stats() (*ErrorLogStats, error)
}

// GormErrorLogStore is the postgres-backed store.
type GormErrorLogStore struct {
	db     *gorm.DB
	window time.Duration
}

// NewGormErrorLogStore creates a store with the given dedup window; zero
// selects the 24h default.
func NewGormErrorLogStore(db *gorm.DB, window time.Duration) *GormErrorLogStore {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &GormErrorLogStore{db: db, window: window}
}

// Record implements the merge-or-insert dedup semantics. Callers must not run
// Record concurrently for overlapping fingerprints; the ingest queue's single
// flush worker provides that serialization.
func (s *GormErrorLogStore) Record(event models.ErrorEvent) error {
	cutoff := event.Timestamp.Add(-s.window)

	var existing models.ErrorLog
	err := s.db.
		Where("fingerprint = ? AND last_seen >= ?", event.Fingerprint, cutoff).
		Order("last_seen DESC").
		First(&existing).Error

	if err == nil {
		updates := map[string]interface{}{
			"occurrence_count": gorm.Expr("occurrence_count + 1"),
			"last_seen":        event.Timestamp,
		}
		if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
			return fmt.Errorf("update error log %d: %w", existing.ID, err)
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup error log for fingerprint %s: %w", event.Fingerprint, err)
	}

	record := models.ErrorLog{
		Fingerprint:     event.Fingerprint,
		Category:        event.Classification.Category,
		Severity:        event.Classification.Severity,
		Message:         event.Message,
		Endpoint:        event.Endpoint,
		Context:         event.Context,
		Cause:           event.Cause,
		UserImpact:      event.Classification.UserImpact,
		SuggestedAction: event.Classification.SuggestedAction,
		OccurrenceCount: 1,
		FirstSeen:       event.Timestamp,
		LastSeen:        event.Timestamp,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("insert error log for fingerprint %s: %w", event.Fingerprint, err)
	}
	return nil
}

// List returns a page of records plus the total match count.
func (s *GormErrorLogStore) List(filter ErrorLogFilter) ([]models.ErrorLog, int64, error) {
	query := s.db.Model(&models.ErrorLog{})

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if !filter.From.IsZero() {
		query = query.Where("last_seen >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("last_seen <= ?", filter.To)
	}
	if filter.Search != "" {
		query = query.Where("message ILIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count error logs: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	var records []models.ErrorLog
	err := query.
		Order("last_seen DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list error logs: %w", err)
	}
	return records, total, nil
}

func (s *GormErrorLogStore) GetByID(id uint) (*models.ErrorLog, error) {
	var record models.ErrorLog
	if err := s.db.First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByFingerprint returns every record for a fingerprint across all windows,
// newest first.
func (s *GormErrorLogStore) GetByFingerprint(fingerprint string) ([]models.ErrorLog, error) {
	var records []models.ErrorLog
	err := s.db.
		Where("fingerprint = ?", fingerprint).
		Order("last_seen DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list error logs for fingerprint %s: %w", fingerprint, err)
	}
	return records, nil
}

func (s *GormErrorLogStore) Stats() (*ErrorLogStats, error) {
	stats := &ErrorLogStats{}

	if err := s.db.Model(&models.ErrorLog{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("count total: %w", err)
	}

	type severityCount struct {
		Severity models.Severity
		Count    int64
	}
	var bySeverity []severityCount
	err := s.db.Model(&models.ErrorLog{}).
		Select("severity, count(*) as count").
		Group("severity").
		Scan(&bySeverity).Error
	if err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	for _, sc := range bySeverity {
		switch sc.Severity {
		case models.SeverityCritical:
			stats.CriticalCount = sc.Count
		case models.SeverityWarning:
			stats.WarningCount = sc.Count
		case models.SeverityInfo:
			stats.InfoCount = sc.Count
		}
	}

	err = s.db.Model(&models.ErrorLog{}).
		Distinct("fingerprint").
		Count(&stats.UniqueFingerprints).Error
	if err != nil {
		return nil, fmt.Errorf("count unique fingerprints: %w", err)
	}

	type categoryCount struct {
		Category models.ErrorCategory
		Count    int64
	}
	var topCategory categoryCount
	err = s.db.Model(&models.ErrorLog{}).
		Select("category, count(*) as count").
		Group("category").
		Order("count DESC").
		Limit(1).
		Scan(&topCategory).Error
	if err != nil {
		return nil, fmt.Errorf("most common category: %w", err)
	}
	stats.MostCommonCategory = topCategory.Category

	err = s.db.Model(&models.ErrorLog{}).
		Where("last_seen >= ?", time.Now().Add(-24*time.Hour)).
		Count(&stats.CountLast24h).Error
	if err != nil {
		return nil, fmt.Errorf("count last 24h: %w", err)
	}

	return stats, nil
}
