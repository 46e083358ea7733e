package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDeadLetterRepository implements integration.DeadLetterRepository using GORM
type GormDeadLetterRepository struct {
	db *gorm.DB
}

// NewGormDeadLetterRepository creates a new GormDeadLetterRepository
func NewGormDeadLetterRepository(db *gorm.DB) *GormDeadLetterRepository {
	return &GormDeadLetterRepository{db: db}
}

// Create inserts a dead letter entry
func (r *GormDeadLetterRepository) Create(ctx context.Context, e *integration.DeadLetterEntry) error {
	return r.db.WithContext(ctx).Create(models.DeadLetterModelFromDomain(e)).Error
}

// Save writes every column of an existing entry
func (r *GormDeadLetterRepository) Save(ctx context.Context, e *integration.DeadLetterEntry) error {
	result := r.db.WithContext(ctx).
		Model(&models.DeadLetterModel{}).
		Where("id = ?", e.ID).
		Select("*").
		Updates(models.DeadLetterModelFromDomain(e))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrDeadLetterNotFound
	}
	return nil
}

// ClaimReprocess stamps the entry only while reprocessed_at is still NULL, so
// concurrent callers cannot both claim it
func (r *GormDeadLetterRepository) ClaimReprocess(ctx context.Context, id uuid.UUID, actor string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.DeadLetterModel{}).
		Where("id = ? AND reprocessed_at IS NULL", id).
		Updates(map[string]any{
			"reprocessed_at": at,
			"reprocessed_by": actor,
			"updated_at":     at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return integration.ErrDeadLetterAlreadyReprocessed
}

// FindByID finds an entry by id
func (r *GormDeadLetterRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.DeadLetterEntry, error) {
	var m models.DeadLetterModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrDeadLetterNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindOpenByMessageID returns the unreprocessed entry of a message
func (r *GormDeadLetterRepository) FindOpenByMessageID(ctx context.Context, messageID uuid.UUID) (*integration.DeadLetterEntry, error) {
	var m models.DeadLetterModel
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND reprocessed_at IS NULL", messageID).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrDeadLetterNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists entries by creation time, oldest first unless desc is requested
func (r *GormDeadLetterRepository) FindAll(ctx context.Context, filter integration.DeadLetterFilter) ([]integration.DeadLetterEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DeadLetterModel{})
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Connector != "" {
		query = query.Where("connector = ?", filter.Connector)
	}
	if filter.Reason != "" {
		query = query.Where("reason = ?", filter.Reason)
	}
	if filter.Retryable != nil {
		query = query.Where("retryable = ?", *filter.Retryable)
	}
	if filter.Reprocessed != nil {
		if *filter.Reprocessed {
			query = query.Where("reprocessed_at IS NOT NULL")
		} else {
			query = query.Where("reprocessed_at IS NULL")
		}
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.DeadLetterModel
	order := "created_at " + ValidateSortOrder(filter.OrderDir, "ASC")
	if err := applyPage(query.Session(&gorm.Session{}).Order(order), filter.Filter).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]integration.DeadLetterEntry, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

type groupCount struct {
	GroupKey string
	Count    int64
}

// Stats aggregates the queue in three grouped queries
func (r *GormDeadLetterRepository) Stats(ctx context.Context) (*integration.DeadLetterStats, error) {
	db := r.db.WithContext(ctx).Model(&models.DeadLetterModel{})

	var totals struct {
		Total       int64
		Retryable   int64
		Reprocessed int64
	}
	if err := db.Session(&gorm.Session{}).
		Select("COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN retryable THEN 1 ELSE 0 END), 0) AS retryable, " +
			"COALESCE(SUM(CASE WHEN reprocessed_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS reprocessed").
		Scan(&totals).Error; err != nil {
		return nil, err
	}

	stats := integration.NewDeadLetterStats()
	stats.Total = totals.Total
	stats.Retryable = totals.Retryable
	stats.Reprocessed = totals.Reprocessed
	stats.Pending = totals.Total - totals.Reprocessed

	var byConnector []groupCount
	if err := db.Session(&gorm.Session{}).
		Select("connector AS group_key, COUNT(*) AS count").
		Group("connector").
		Scan(&byConnector).Error; err != nil {
		return nil, err
	}
	for _, g := range byConnector {
		stats.ByConnector[g.GroupKey] = g.Count
	}

	var byReason []groupCount
	if err := db.Session(&gorm.Session{}).
		Select("reason AS group_key, COUNT(*) AS count").
		Group("reason").
		Scan(&byReason).Error; err != nil {
		return nil, err
	}
	for _, g := range byReason {
		stats.ByReason[integration.DeadLetterReason(g.GroupKey)] = g.Count
	}
	return stats, nil
}
