package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/middleware"
	"github.com/test-portal/backend/internal/services"
	"gorm.io/datatypes"
)

type AuditHandler struct {
	audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// @Summary Recent staff activity
// @Tags audit
// @Produce json
// @Param resource_type query string false "Resource type"
// @Param limit query int false "Maximum entries"
// @Success 200 {array} models.AuditLog
// @Router /api/v1/audit/recent [get]
func (h *AuditHandler) GetRecentActivity(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}

	entries, err := h.audit.Recent(c.Request.Context(), c.Query("resource_type"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// record writes an audit entry for the authenticated actor. A failed write
// is logged and does not fail the request.
func record(c *gin.Context, audit *services.AuditService, action, resourceType string, resourceID uuid.UUID, before, after datatypes.JSONMap) {
	if audit == nil {
		return
	}
	actor, _ := middleware.SubjectID(c)
	if err := audit.Log(c.Request.Context(), actor, action, resourceType, resourceID, before, after, c.ClientIP()); err != nil {
		slog.Warn("audit log failed", "action", action, "resource_type", resourceType, "error", err)
	}
}
