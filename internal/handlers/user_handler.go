package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/test-portal/backend/internal/services"
	"gorm.io/datatypes"
)

// UserHandler manages staff accounts. Admin only.
type UserHandler struct {
	staff *services.StaffService
	audit *services.AuditService
}

func NewUserHandler(staff *services.StaffService, audit *services.AuditService) *UserHandler {
	return &UserHandler{staff: staff, audit: audit}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.staff.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Summary Create staff account
// @Description Without a password the account gets the default one and is
// @Description flagged to change it.
// @Tags users
// @Accept json
// @Produce json
// @Param request body services.StaffInput true "Staff account"
// @Success 201 {object} models.User
// @Router /api/v1/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req services.StaffInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	user, err := h.staff.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Update changes role and active flag. Omitted fields are left alone.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	if req.Role != nil {
		if err := h.staff.UpdateRole(ctx, id, *req.Role); err != nil {
			respondError(c, err)
			return
		}
	}
	if req.IsActive != nil {
		if err := h.staff.SetActive(ctx, id, *req.IsActive); err != nil {
			respondError(c, err)
			return
		}
		if !*req.IsActive {
			record(c, h.audit, services.ActionDeactivate, "user", id, nil, datatypes.JSONMap{"is_active": false})
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully"})
}
