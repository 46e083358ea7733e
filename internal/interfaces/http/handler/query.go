package handler

import (
	"time"

	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/erp/integration-hub/internal/domain/shared"
)

// listQuery holds the pagination parameters common to every list endpoint
type listQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (q listQuery) filter() shared.Filter {
	f := shared.Filter{Page: q.Page, PageSize: q.PageSize, OrderDir: q.OrderDir}
	f.Normalize()
	return f
}

type messageQuery struct {
	listQuery
	Status          string     `form:"status" binding:"omitempty,oneof=PENDING PROCESSING RETRYING COMPLETED FAILED DEAD_LETTER"`
	SourceConnector string     `form:"source_connector"`
	TargetConnector string     `form:"target_connector"`
	Type            string     `form:"type"`
	MessageID       string     `form:"message_id"`
	From            *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To              *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

func (q messageQuery) toFilter() integration.MessageFilter {
	return integration.MessageFilter{
		Filter:          q.filter(),
		Status:          integration.MessageStatus(q.Status),
		SourceConnector: q.SourceConnector,
		TargetConnector: q.TargetConnector,
		Type:            q.Type,
		MessageID:       q.MessageID,
		From:            q.From,
		To:              q.To,
	}
}

type connectorQuery struct {
	listQuery
	Type     string `form:"type" binding:"omitempty,oneof=ERP ECOMMERCE EDI FISCAL FILE_TRANSFER CUSTOM"`
	IsActive *bool  `form:"is_active"`
	Search   string `form:"search" binding:"max=100"`
}

func (q connectorQuery) toFilter() integration.ConnectorFilter {
	return integration.ConnectorFilter{
		Filter:   q.filter(),
		Type:     integration.ConnectorType(q.Type),
		IsActive: q.IsActive,
		Search:   q.Search,
	}
}

type transformationQuery struct {
	listQuery
	SourceConnector string `form:"source_connector"`
	TargetConnector string `form:"target_connector"`
	SourceType      string `form:"source_type"`
	IsActive        *bool  `form:"is_active"`
}

func (q transformationQuery) toFilter() integration.TransformationFilter {
	return integration.TransformationFilter{
		Filter:          q.filter(),
		SourceConnector: q.SourceConnector,
		TargetConnector: q.TargetConnector,
		SourceType:      q.SourceType,
		IsActive:        q.IsActive,
	}
}

type deadLetterQuery struct {
	listQuery
	Connector   string `form:"connector"`
	Reason      string `form:"reason" binding:"omitempty,oneof=MAX_RETRIES_EXCEEDED TRANSFORMATION_FAILED CIRCUIT_OPEN VALIDATION_ERROR DELIVERY_REJECTED CONNECTOR_UNAVAILABLE"`
	Retryable   *bool  `form:"retryable"`
	Reprocessed *bool  `form:"reprocessed"`
}

func (q deadLetterQuery) toFilter() integration.DeadLetterFilter {
	return integration.DeadLetterFilter{
		Filter:      q.filter(),
		Connector:   q.Connector,
		Reason:      integration.DeadLetterReason(q.Reason),
		Retryable:   q.Retryable,
		Reprocessed: q.Reprocessed,
	}
}
