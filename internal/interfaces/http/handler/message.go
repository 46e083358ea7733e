package handler

import (
	appintegration "github.com/erp/integration-hub/internal/application/integration"
	"github.com/gin-gonic/gin"
)

// MessageHandler serves message routing and inspection
type MessageHandler struct {
	BaseHandler
	router *appintegration.MessageRouter
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(router *appintegration.MessageRouter) *MessageHandler {
	return &MessageHandler{router: router}
}

// Route accepts a message and runs it through the pipeline. The response
// carries the status reached during the call, including duplicates,
// retries and dead letters.
//
// POST /integrations/messages
func (h *MessageHandler) Route(c *gin.Context) {
	var req appintegration.RouteMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	msg, err := h.router.RouteMessage(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if msg.IsDuplicate {
		h.Success(c, appintegration.ToMessageResponse(msg))
		return
	}
	h.Created(c, appintegration.ToMessageResponse(msg))
}

// List returns messages matching the query filters
//
// GET /integrations/messages
func (h *MessageHandler) List(c *gin.Context) {
	var q messageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}
	filter := q.toFilter()

	msgs, total, err := h.router.ListMessages(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]*appintegration.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, appintegration.ToMessageResponse(&msgs[i]))
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Get returns one message by its hub id
//
// GET /integrations/messages/:id
func (h *MessageHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	msg, err := h.router.GetMessage(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToMessageResponse(msg))
}

// Reprocess runs an existing message through the pipeline again
//
// POST /integrations/messages/reprocess
func (h *MessageHandler) Reprocess(c *gin.Context) {
	var req appintegration.ReprocessMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	msg, err := h.router.ReprocessMessage(c.Request.Context(), req.ID, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToMessageResponse(msg))
}
