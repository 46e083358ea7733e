package persistence

import (
	"context"
	"errors"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTransformationRepository implements integration.TransformationRepository using GORM
type GormTransformationRepository struct {
	db *gorm.DB
}

// NewGormTransformationRepository creates a new GormTransformationRepository
func NewGormTransformationRepository(db *gorm.DB) *GormTransformationRepository {
	return &GormTransformationRepository{db: db}
}

// Create inserts a transformation rule
func (r *GormTransformationRepository) Create(ctx context.Context, t *integration.Transformation) error {
	return r.db.WithContext(ctx).Create(models.TransformationModelFromDomain(t)).Error
}

// Save writes every column of an existing rule
func (r *GormTransformationRepository) Save(ctx context.Context, t *integration.Transformation) error {
	result := r.db.WithContext(ctx).
		Model(&models.TransformationModel{}).
		Where("id = ?", t.ID).
		Select("*").
		Updates(models.TransformationModelFromDomain(t))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrTransformationNotFound
	}
	return nil
}

// FindByID finds a rule by id
func (r *GormTransformationRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Transformation, error) {
	var m models.TransformationModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrTransformationNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists rules by descending priority, most recently updated first on ties
func (r *GormTransformationRepository) FindAll(ctx context.Context, filter integration.TransformationFilter) ([]integration.Transformation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TransformationModel{})
	if filter.SourceConnector != "" {
		query = query.Where("source_connector = ?", filter.SourceConnector)
	}
	if filter.TargetConnector != "" {
		query = query.Where("target_connector = ?", filter.TargetConnector)
	}
	if filter.SourceType != "" {
		query = query.Where("source_type = ?", filter.SourceType)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.TransformationModel
	q := query.Session(&gorm.Session{}).Order("priority DESC").Order("updated_at DESC")
	if err := applyPage(q, filter.Filter).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return transformationsToDomain(rows), total, nil
}

// FindCandidates returns active rules for the route and source type
func (r *GormTransformationRepository) FindCandidates(ctx context.Context, sourceConnector, targetConnector, sourceType string) ([]integration.Transformation, error) {
	var rows []models.TransformationModel
	err := r.db.WithContext(ctx).
		Where("source_connector = ? AND target_connector = ? AND source_type = ? AND is_active = ?",
			sourceConnector, targetConnector, sourceType, true).
		Order("priority DESC").
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return transformationsToDomain(rows), nil
}

// Delete removes a rule
func (r *GormTransformationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.TransformationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrTransformationNotFound
	}
	return nil
}

func transformationsToDomain(rows []models.TransformationModel) []integration.Transformation {
	out := make([]integration.Transformation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}
