package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/models"
	"github.com/test-portal/backend/internal/services"
)

// Context keys set by AuthMiddleware.
const (
	KeySubjectID = "subject_id"
	KeyPrincipal = "principal"
	KeyRole      = "role"
	KeyLogin     = "login"
)

func AuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := authService.VerifyToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(KeySubjectID, claims.SubjectID)
		c.Set(KeyPrincipal, claims.Principal)
		c.Set(KeyRole, claims.Role)
		c.Set(KeyLogin, claims.Login)
		c.Next()
	}
}

func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(KeyRole)
		if role == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not found in context"})
			c.Abort()
			return
		}

		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

func RequireStaff() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleStaff)
}

// RequireStudent admits only student tokens. Staff never act as a student.
func RequireStudent() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(KeyPrincipal) != services.PrincipalStudent || c.GetString(KeyRole) != models.RoleStudent {
			c.JSON(http.StatusForbidden, gin.H{"error": "Student access only"})
			c.Abort()
			return
		}
		if _, ok := SubjectID(c); !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid subject"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SubjectID returns the authenticated account's id.
func SubjectID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(KeySubjectID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
