package handler

import (
	appintegration "github.com/erp/integration-hub/internal/application/integration"
	"github.com/erp/integration-hub/internal/domain/integration"
	"github.com/gin-gonic/gin"
)

// DeadLetterHandler serves the dead letter queue
type DeadLetterHandler struct {
	BaseHandler
	dlq *appintegration.DeadLetterService
}

// NewDeadLetterHandler creates a new DeadLetterHandler
func NewDeadLetterHandler(dlq *appintegration.DeadLetterService) *DeadLetterHandler {
	return &DeadLetterHandler{dlq: dlq}
}

// List returns entries matching the query filters
//
// GET /integrations/dead-letters
func (h *DeadLetterHandler) List(c *gin.Context) {
	var q deadLetterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}
	filter := q.toFilter()

	entries, total, err := h.dlq.ListDeadLetters(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]*appintegration.DeadLetterResponse, 0, len(entries))
	for i := range entries {
		items = append(items, appintegration.ToDeadLetterResponse(&entries[i]))
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Get returns one entry
//
// GET /integrations/dead-letters/:id
func (h *DeadLetterHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	entry, err := h.dlq.GetDeadLetter(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToDeadLetterResponse(entry))
}

// Stats aggregates the queue by connector and reason
//
// GET /integrations/dead-letters/stats
func (h *DeadLetterHandler) Stats(c *gin.Context) {
	stats, err := h.dlq.GetDeadLetterStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToDeadLetterStatsResponse(stats))
}

// Reprocess resubmits the message of one entry
//
// POST /integrations/dead-letters/reprocess
func (h *DeadLetterHandler) Reprocess(c *gin.Context) {
	var req appintegration.ReprocessDeadLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	outcome, err := h.dlq.ReprocessDeadLetter(c.Request.Context(), req.ID, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ReprocessResponse{
		DeadLetter: appintegration.ToDeadLetterResponse(outcome.Entry),
		Message:    appintegration.ToMessageResponse(outcome.Message),
	})
}

// BulkReprocess resubmits the entries selected by ids or filters. Failures
// of individual entries are reported in the result.
//
// POST /integrations/dead-letters/bulk-reprocess
func (h *DeadLetterHandler) BulkReprocess(c *gin.Context) {
	var req appintegration.BulkReprocessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	filter := integration.DeadLetterFilter{
		IDs:       req.IDs,
		Connector: req.Connector,
		Reason:    integration.DeadLetterReason(req.Reason),
		Retryable: req.Retryable,
	}
	result, err := h.dlq.BulkReprocessDeadLetters(c.Request.Context(), filter, req.Limit, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
