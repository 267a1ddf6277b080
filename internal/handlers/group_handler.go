package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/test-portal/backend/internal/services"
	"gorm.io/datatypes"
)

type GroupHandler struct {
	groups *services.GroupService
	audit  *services.AuditService
}

func NewGroupHandler(groups *services.GroupService, audit *services.AuditService) *GroupHandler {
	return &GroupHandler{groups: groups, audit: audit}
}

// @Summary List groups
// @Tags groups
// @Produce json
// @Success 200 {array} models.Group
// @Router /api/v1/groups [get]
func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groups.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// @Summary Create group
// @Tags groups
// @Accept json
// @Produce json
// @Param request body services.GroupInput true "Group"
// @Success 201 {object} models.Group
// @Router /api/v1/groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	var req services.GroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	group, err := h.groups.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *GroupHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.GroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	group, err := h.groups.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// Delete removes the group with its tests. Students stay, ungrouped.
func (h *GroupHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.groups.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	record(c, h.audit, services.ActionDelete, "group", id, datatypes.JSONMap{"id": id.String()}, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Group deleted successfully"})
}
