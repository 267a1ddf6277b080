package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/test-portal/backend/internal/services"
)

type AuthHandler struct {
	authService    *services.AuthService
	studentService *services.StudentService
}

func NewAuthHandler(authService *services.AuthService, studentService *services.StudentService) *AuthHandler {
	return &AuthHandler{authService: authService, studentService: studentService}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type StudentLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// @Summary Staff login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} services.TokenPair
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	tokens, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.loginFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tokens": tokens,
		"user": gin.H{
			"id":                   user.ID,
			"email":                user.Email,
			"full_name":            user.FullName,
			"role":                 user.Role,
			"must_change_password": user.Meta["must_change_password"] == true,
		},
	})
}

// @Summary Student login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body StudentLoginRequest true "Student credentials"
// @Success 200 {object} services.TokenPair
// @Router /api/v1/auth/student/login [post]
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req StudentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	tokens, student, err := h.authService.StudentLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.loginFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "student": student})
}

// @Summary Register a student
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.RegisterStudentInput true "Registration form"
// @Success 201 {object} services.TokenPair
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterStudentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	student, err := h.studentService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	tokens, err := h.authService.IssueForStudent(c.Request.Context(), student)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"tokens": tokens, "student": student})
}

// @Summary Refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} services.TokenPair
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	tokens, err := h.authService.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// @Summary Logout
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) loginFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotActive):
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	default:
		respondError(c, err)
	}
}
