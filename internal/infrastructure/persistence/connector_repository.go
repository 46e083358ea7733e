package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormConnectorRepository implements integration.ConnectorRepository using GORM
type GormConnectorRepository struct {
	db *gorm.DB
}

// NewGormConnectorRepository creates a new GormConnectorRepository
func NewGormConnectorRepository(db *gorm.DB) *GormConnectorRepository {
	return &GormConnectorRepository{db: db}
}

// Create inserts a connector, rejecting duplicate codes
func (r *GormConnectorRepository) Create(ctx context.Context, c *integration.Connector) error {
	err := r.db.WithContext(ctx).Create(models.ConnectorModelFromDomain(c)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return integration.ErrConnectorAlreadyExists
	}
	return err
}

// FindByCode finds a connector by its code
func (r *GormConnectorRepository) FindByCode(ctx context.Context, code string) (*integration.Connector, error) {
	var m models.ConnectorModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrConnectorNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindAll lists connectors matching the filter, ordered by code
func (r *GormConnectorRepository) FindAll(ctx context.Context, filter integration.ConnectorFilter) ([]integration.Connector, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ConnectorModel{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ConnectorModel
	if err := applyPage(query.Session(&gorm.Session{}).Order("code ASC"), filter.Filter).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]integration.Connector, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Mutate loads the connector with SELECT ... FOR UPDATE, applies fn and
// writes the result back in the same transaction. Concurrent mutations of one
// connector therefore serialize on its row lock.
func (r *GormConnectorRepository) Mutate(ctx context.Context, code string, fn func(c *integration.Connector) error) (*integration.Connector, error) {
	var out *integration.Connector
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.ConnectorModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return integration.ErrConnectorNotFound
			}
			return err
		}

		c := m.ToDomain()
		if err := fn(c); err != nil {
			return err
		}
		if err := tx.Save(models.ConnectorModelFromDomain(c)).Error; err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a connector by code
func (r *GormConnectorRepository) Delete(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).Where("code = ?", code).Delete(&models.ConnectorModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrConnectorNotFound
	}
	return nil
}
