// Package admin serves the operator endpoints: tickets, ingestion and the
// audit log.
package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/askdesk/internal/api/httperr"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/service"
)

// Handler handles admin API requests
type Handler struct {
	adminService    *service.AdminService
	ticketService   *service.TicketService
	resolvedService *service.ResolvedAnswerService
	ingestService   *service.IngestService
}

// NewHandler creates a new admin handler
func NewHandler(
	adminService *service.AdminService,
	ticketService *service.TicketService,
	resolvedService *service.ResolvedAnswerService,
	ingestService *service.IngestService,
) *Handler {
	return &Handler{
		adminService:    adminService,
		ticketService:   ticketService,
		resolvedService: resolvedService,
		ingestService:   ingestService,
	}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	tickets := r.Group("/tickets")
	{
		tickets.GET("", h.ListTickets)
		tickets.GET("/:id", h.GetTicket)
		tickets.POST("/:id/resolve", h.ResolveTicket)
	}

	r.GET("/resolved-answers", h.ListResolvedAnswers)
	r.POST("/documents", h.UploadDocument)
	r.POST("/ingest", h.Ingest)
	r.GET("/logs", h.ListLogs)
	r.GET("/evaluation", h.Evaluation)
	r.GET("/stats", h.GetStats)
}

// Ticket handlers

func (h *Handler) ListTickets(c *gin.Context) {
	tickets, err := h.ticketService.List(c.Request.Context(), c.DefaultQuery("status", service.TicketFilterOpen))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (h *Handler) GetTicket(c *gin.Context) {
	ticket, err := h.ticketService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

func (h *Handler) ResolveTicket(c *gin.Context) {
	var req domain.ResolveTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err)
		return
	}

	result, err := h.ticketService.Resolve(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListResolvedAnswers(c *gin.Context) {
	answers, err := h.resolvedService.List(c.Request.Context())
	if err != nil {
		httperr.Write(c, err)
		return
	}
	if answers == nil {
		answers = []*domain.ResolvedAnswer{}
	}

	c.JSON(http.StatusOK, gin.H{"resolved_answers": answers})
}

// Ingestion handlers

func (h *Handler) UploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		httperr.BadRequest(c, err)
		return
	}

	path, err := h.ingestService.SaveUpload(file)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"path": path, "filename": file.Filename, "size": file.Size})
}

func (h *Handler) Ingest(c *gin.Context) {
	var req domain.IngestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.BadRequest(c, err)
			return
		}
	}

	result, err := h.ingestService.Ingest(c.Request.Context(), &req)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Audit handlers

func (h *Handler) ListLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		httperr.BadRequest(c, err)
		return
	}

	logs, err := h.adminService.Logs(c.Request.Context(), limit)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) Evaluation(c *gin.Context) {
	metrics, err := h.adminService.Evaluation(c.Request.Context())
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, metrics)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetStats(c.Request.Context())
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
