package handler

import (
	appintegration "github.com/erp/integration-hub/internal/application/integration"
	"github.com/erp/integration-hub/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves operator overrides. Its routes sit behind the admin guard.
type AdminHandler struct {
	BaseHandler
	connectors *appintegration.ConnectorService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(connectors *appintegration.ConnectorService) *AdminHandler {
	return &AdminHandler{connectors: connectors}
}

// ResetCircuit forces a connector's circuit CLOSED
//
// POST /admin/integrations/connectors/:code/circuit/reset
func (h *AdminHandler) ResetCircuit(c *gin.Context) {
	code := c.Param("code")
	resp, err := h.connectors.ResetCircuit(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.L(c.Request.Context()).Info("Circuit reset by operator",
		zap.String("connector", code),
		zap.String("actor", actor(c)),
	)
	h.Success(c, resp)
}

// ResetRateLimit reports the connector's rate limit window. Windows reset
// on their own, so nothing is changed.
//
// POST /admin/integrations/connectors/:code/rate-limit/reset
func (h *AdminHandler) ResetRateLimit(c *gin.Context) {
	resp, err := h.connectors.ResetRateLimit(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
