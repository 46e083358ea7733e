package router

import (
	"errors"

	"github.com/erp/integration-hub/internal/infrastructure/logger"
	"github.com/erp/integration-hub/internal/interfaces/http/handler"
	"github.com/erp/integration-hub/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Handlers are the endpoint groups of the hub API
type Handlers struct {
	Messages        *handler.MessageHandler
	Connectors      *handler.ConnectorHandler
	Transformations *handler.TransformationHandler
	DeadLetters     *handler.DeadLetterHandler
	Admin           *handler.AdminHandler
	System          *handler.SystemHandler
}

// EngineConfig configures the hub's gin engine
type EngineConfig struct {
	Logger *zap.Logger
	// ServiceName names the otelgin server spans; empty disables HTTP tracing
	ServiceName    string
	MaxBodySize    int64
	TrustedProxies []string
	// BasePath prefixes the integration and admin routes; probes stay at the root
	BasePath string
	// AdminAuth guards the /admin routes and is required
	AdminAuth gin.HandlerFunc
}

// NewEngine builds the gin engine with the hub's middleware chain and routes.
// The request id runs first so every later log line and span can carry it.
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	if cfg.AdminAuth == nil {
		return nil, errors.New("admin routes require an auth middleware")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	if cfg.ServiceName != "" {
		engine.Use(otelgin.Middleware(cfg.ServiceName))
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))

	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)

	var opts []RouterOption
	if cfg.BasePath != "" {
		opts = append(opts, WithBasePath(cfg.BasePath))
	}
	r := NewRouter(engine, opts...)
	r.Register(integrationRoutes(h))
	r.Register(adminRoutes(h, cfg.AdminAuth))
	r.Setup()
	return engine, nil
}

func integrationRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("integrations", "/integrations")

	g.Group("messages", "/messages").
		POST("", h.Messages.Route).
		GET("", h.Messages.List).
		POST("/reprocess", h.Messages.Reprocess).
		GET("/:id", h.Messages.Get)

	g.Group("connectors", "/connectors").
		POST("", h.Connectors.Create).
		GET("", h.Connectors.List).
		GET("/:code", h.Connectors.Get).
		PUT("/:code", h.Connectors.Update).
		DELETE("/:code", h.Connectors.Delete)

	g.Group("transformations", "/transformations").
		POST("", h.Transformations.Create).
		GET("", h.Transformations.List).
		POST("/test", h.Transformations.Test).
		GET("/:id", h.Transformations.Get).
		PUT("/:id", h.Transformations.Update).
		DELETE("/:id", h.Transformations.Delete)

	g.Group("dead-letters", "/dead-letters").
		GET("", h.DeadLetters.List).
		GET("/stats", h.DeadLetters.Stats).
		POST("/reprocess", h.DeadLetters.Reprocess).
		POST("/bulk-reprocess", h.DeadLetters.BulkReprocess).
		GET("/:id", h.DeadLetters.Get)

	g.Group("health", "/health").
		GET("", h.Connectors.ListHealth).
		GET("/:code", h.Connectors.GetHealth).
		POST("/:code/check", h.Connectors.CheckHealth)

	return g
}

func adminRoutes(h Handlers, guard gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("admin", "/admin/integrations").Use(guard)
	g.Group("connectors", "/connectors/:code").
		POST("/circuit/reset", h.Admin.ResetCircuit).
		POST("/rate-limit/reset", h.Admin.ResetRateLimit)
	return g
}
