package models

import (
	"github.com/erp/integration-hub/internal/domain/integration"
	"gorm.io/datatypes"
)

// TransformationModel is the persistence model of integration.Transformation
type TransformationModel struct {
	BaseModel
	Name              string `gorm:"type:varchar(200);not null"`
	Description       string `gorm:"type:text"`
	SourceConnector   string `gorm:"type:varchar(100);not null;index:idx_transformations_route,priority:1"`
	TargetConnector   string `gorm:"type:varchar(100);not null;index:idx_transformations_route,priority:2"`
	SourceType        string `gorm:"type:varchar(100);not null;index:idx_transformations_route,priority:3"`
	TargetType        string `gorm:"type:varchar(100);not null"`
	IsActive          bool   `gorm:"not null;default:true"`
	Priority          int    `gorm:"not null;default:0"`
	SourceToCanonical datatypes.JSONType[integration.MappingSpec]
	CanonicalToTarget datatypes.JSONType[integration.MappingSpec]
}

// TableName returns the table name for GORM
func (TransformationModel) TableName() string {
	return "transformations"
}

// ToDomain converts the model to a domain transformation
func (m *TransformationModel) ToDomain() *integration.Transformation {
	return &integration.Transformation{
		BaseEntity:        m.BaseModel.ToDomain(),
		Name:              m.Name,
		Description:       m.Description,
		SourceConnector:   m.SourceConnector,
		TargetConnector:   m.TargetConnector,
		SourceType:        m.SourceType,
		TargetType:        m.TargetType,
		IsActive:          m.IsActive,
		Priority:          m.Priority,
		SourceToCanonical: m.SourceToCanonical.Data(),
		CanonicalToTarget: m.CanonicalToTarget.Data(),
	}
}

// FromDomain populates the model from a domain transformation
func (m *TransformationModel) FromDomain(t *integration.Transformation) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.Name = t.Name
	m.Description = t.Description
	m.SourceConnector = t.SourceConnector
	m.TargetConnector = t.TargetConnector
	m.SourceType = t.SourceType
	m.TargetType = t.TargetType
	m.IsActive = t.IsActive
	m.Priority = t.Priority
	m.SourceToCanonical = datatypes.NewJSONType(t.SourceToCanonical)
	m.CanonicalToTarget = datatypes.NewJSONType(t.CanonicalToTarget)
}

// TransformationModelFromDomain creates a model from a domain transformation
func TransformationModelFromDomain(t *integration.Transformation) *TransformationModel {
	m := &TransformationModel{}
	m.FromDomain(t)
	return m
}
