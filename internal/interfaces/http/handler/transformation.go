package handler

import (
	appintegration "github.com/erp/integration-hub/internal/application/integration"
	"github.com/gin-gonic/gin"
)

// TransformationHandler serves transformation rules and ad-hoc transforms
type TransformationHandler struct {
	BaseHandler
	rules  *appintegration.TransformationService
	engine *appintegration.TransformationEngine
}

// NewTransformationHandler creates a new TransformationHandler
func NewTransformationHandler(
	rules *appintegration.TransformationService,
	engine *appintegration.TransformationEngine,
) *TransformationHandler {
	return &TransformationHandler{rules: rules, engine: engine}
}

// Create stores a transformation rule
//
// POST /integrations/transformations
func (h *TransformationHandler) Create(c *gin.Context) {
	var req appintegration.CreateTransformationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	resp, err := h.rules.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List returns rules matching the query filters
//
// GET /integrations/transformations
func (h *TransformationHandler) List(c *gin.Context) {
	var q transformationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}
	filter := q.toFilter()

	items, total, err := h.rules.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Get returns one rule
//
// GET /integrations/transformations/:id
func (h *TransformationHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.rules.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Update changes a rule
//
// PUT /integrations/transformations/:id
func (h *TransformationHandler) Update(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req appintegration.UpdateTransformationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	resp, err := h.rules.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete removes a rule
//
// DELETE /integrations/transformations/:id
func (h *TransformationHandler) Delete(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Test transforms a sample payload with the stored rules without creating a
// message. A missing rule or failed mapping is reported in the body, not as
// an HTTP error.
//
// POST /integrations/transformations/test
func (h *TransformationHandler) Test(c *gin.Context) {
	var req appintegration.TestTransformationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	result, err := h.engine.TransformPayload(c.Request.Context(),
		req.SourceConnector, req.TargetConnector, req.SourceType, req.TargetType, req.Payload)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToTransformResultResponse(result))
}
