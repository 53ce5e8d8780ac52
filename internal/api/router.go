// Package api wires the HTTP surface.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/liliang-cn/askdesk/internal/api/admin"
	"github.com/liliang-cn/askdesk/internal/api/chat"
	"github.com/liliang-cn/askdesk/internal/api/middleware"
	"github.com/liliang-cn/askdesk/internal/metrics"
	"github.com/liliang-cn/askdesk/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	Logger       *zap.Logger
}

// Services are the handlers' dependencies
type Services struct {
	Chat          *service.ChatService
	Conversations *service.ConversationService
	Tickets       *service.TicketService
	Resolved      *service.ResolvedAnswerService
	Ingest        *service.IngestService
	Admin         *service.AdminService
}

// SetupRouter sets up the Gin router
func SetupRouter(svc Services, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Register()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger, "/health", "/metrics"))
	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// User API (scoped by X-User-ID)
	chatHandler := chat.NewHandler(svc.Chat, svc.Conversations)
	userGroup := r.Group("/api")
	userGroup.Use(middleware.UserID())
	chatHandler.RegisterRoutes(userGroup)

	// Admin API (requires API key)
	adminHandler := admin.NewHandler(svc.Admin, svc.Tickets, svc.Resolved, svc.Ingest)
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	adminHandler.RegisterRoutes(adminGroup)

	return r
}
