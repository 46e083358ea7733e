package handler

import (
	appintegration "github.com/erp/integration-hub/internal/application/integration"
	"github.com/gin-gonic/gin"
)

// ConnectorHandler serves the connector registry
type ConnectorHandler struct {
	BaseHandler
	connectors *appintegration.ConnectorService
}

// NewConnectorHandler creates a new ConnectorHandler
func NewConnectorHandler(connectors *appintegration.ConnectorService) *ConnectorHandler {
	return &ConnectorHandler{connectors: connectors}
}

// Create registers a connector
//
// POST /integrations/connectors
func (h *ConnectorHandler) Create(c *gin.Context) {
	var req appintegration.CreateConnectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	resp, err := h.connectors.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List returns connectors matching the query filters
//
// GET /integrations/connectors
func (h *ConnectorHandler) List(c *gin.Context) {
	var q connectorQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}
	filter := q.toFilter()

	items, total, err := h.connectors.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Get returns one connector
//
// GET /integrations/connectors/:code
func (h *ConnectorHandler) Get(c *gin.Context) {
	resp, err := h.connectors.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Update changes the administrative fields of a connector
//
// PUT /integrations/connectors/:code
func (h *ConnectorHandler) Update(c *gin.Context) {
	var req appintegration.UpdateConnectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	resp, err := h.connectors.Update(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete removes a connector
//
// DELETE /integrations/connectors/:code
func (h *ConnectorHandler) Delete(c *gin.Context) {
	if err := h.connectors.Delete(c.Request.Context(), c.Param("code")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListHealth returns the health snapshot of every connector
//
// GET /integrations/health
func (h *ConnectorHandler) ListHealth(c *gin.Context) {
	items, err := h.connectors.ListHealth(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// GetHealth returns the health snapshot of one connector
//
// GET /integrations/health/:code
func (h *ConnectorHandler) GetHealth(c *gin.Context) {
	resp, err := h.connectors.GetHealth(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// CheckHealth probes a connector now and returns the recorded result
//
// POST /integrations/health/:code/check
func (h *ConnectorHandler) CheckHealth(c *gin.Context) {
	resp, err := h.connectors.CheckHealth(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
