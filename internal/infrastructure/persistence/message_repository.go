package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMessageRepository implements integration.MessageRepository using GORM
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GormMessageRepository
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create inserts a new message
func (r *GormMessageRepository) Create(ctx context.Context, m *integration.IntegrationMessage) error {
	return r.db.WithContext(ctx).Create(models.MessageModelFromDomain(m)).Error
}

// Save writes every column of an existing message
func (r *GormMessageRepository) Save(ctx context.Context, m *integration.IntegrationMessage) error {
	result := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("id = ?", m.ID).
		Select("*").
		Updates(models.MessageModelFromDomain(m))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrMessageNotFound
	}
	return nil
}

// FindByID finds a message by its internal id
func (r *GormMessageRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.IntegrationMessage, error) {
	var m models.MessageModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMessageNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindLatestByIdempotencyKey returns the most recently received admitted
// message for key. FAILED records were never admitted and are skipped.
func (r *GormMessageRepository) FindLatestByIdempotencyKey(ctx context.Context, key string) (*integration.IntegrationMessage, error) {
	var m models.MessageModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ? AND status <> ?", key, integration.MessageStatusFailed).
		Order("received_at DESC").
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMessageNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists messages by received time, newest first unless asc is requested
func (r *GormMessageRepository) FindAll(ctx context.Context, filter integration.MessageFilter) ([]integration.IntegrationMessage, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.MessageModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SourceConnector != "" {
		query = query.Where("source_connector = ?", filter.SourceConnector)
	}
	if filter.TargetConnector != "" {
		query = query.Where("target_connector = ?", filter.TargetConnector)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.MessageID != "" {
		query = query.Where("message_id = ?", filter.MessageID)
	}
	if filter.From != nil {
		query = query.Where("received_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("received_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.MessageModel
	order := "received_at " + ValidateSortOrder(filter.OrderDir, "DESC")
	if err := applyPage(query.Session(&gorm.Session{}).Order(order), filter.Filter).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return messagesToDomain(rows), total, nil
}

// ClaimDue moves due RETRYING messages to PROCESSING, oldest schedule first.
// Rows locked by another hub instance are skipped, so concurrent pollers
// never claim the same message.
func (r *GormMessageRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]integration.IntegrationMessage, error) {
	var rows []models.MessageModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", integration.MessageStatusRetrying).
			Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
			Order("next_retry_at ASC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		if err := tx.Model(&models.MessageModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":       integration.MessageStatusProcessing,
				"processed_at": now,
				"updated_at":   now,
			}).Error; err != nil {
			return err
		}

		for i := range rows {
			rows[i].Status = integration.MessageStatusProcessing
			rows[i].ProcessedAt = &now
			rows[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messagesToDomain(rows), nil
}

// RequeueStale returns PROCESSING messages last attempted before cutoff to RETRYING
func (r *GormMessageRepository) RequeueStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("status = ? AND processed_at < ?", integration.MessageStatusProcessing, cutoff).
		Updates(map[string]any{
			"status":        integration.MessageStatusRetrying,
			"next_retry_at": now,
			"updated_at":    now,
		})
	return result.RowsAffected, result.Error
}

func messagesToDomain(rows []models.MessageModel) []integration.IntegrationMessage {
	out := make([]integration.IntegrationMessage, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}
