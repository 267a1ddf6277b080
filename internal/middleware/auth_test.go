package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/models"
	"github.com/test-portal/backend/internal/services"
)

func guarded(guard gin.HandlerFunc, principal, role string, subject interface{}) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		if subject != nil {
			c.Set(KeySubjectID, subject)
		}
		c.Set(KeyPrincipal, principal)
		c.Set(KeyRole, role)
		c.Next()
	}, guard, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestGuards(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name      string
		guard     gin.HandlerFunc
		principal string
		role      string
		subject   interface{}
		status    int
	}{
		{"student passes", RequireStudent(), services.PrincipalStudent, models.RoleStudent, id, http.StatusNoContent},
		{"student without subject", RequireStudent(), services.PrincipalStudent, models.RoleStudent, nil, http.StatusForbidden},
		{"student with nil subject", RequireStudent(), services.PrincipalStudent, models.RoleStudent, uuid.Nil, http.StatusForbidden},
		{"staff is not a student", RequireStudent(), services.PrincipalStaff, models.RoleStaff, id, http.StatusForbidden},
		{"staff passes staff guard", RequireStaff(), services.PrincipalStaff, models.RoleStaff, id, http.StatusNoContent},
		{"admin passes staff guard", RequireStaff(), services.PrincipalStaff, models.RoleAdmin, id, http.StatusNoContent},
		{"student blocked by staff guard", RequireStaff(), services.PrincipalStudent, models.RoleStudent, id, http.StatusForbidden},
		{"staff blocked by admin guard", RequireAdmin(), services.PrincipalStaff, models.RoleStaff, id, http.StatusForbidden},
		{"missing role", RequireStaff(), services.PrincipalStaff, "", id, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := guarded(tt.guard, tt.principal, tt.role, tt.subject)
			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestLoggerSetsTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"generated when absent", "", false},
		{"kept when valid", uuid.New().String(), true},
		{"replaced when malformed", "trace-me", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Trace-ID", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Trace-ID")
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("Expected uuid trace id, got %q", got)
			}
			if tt.keep && got != tt.header {
				t.Errorf("Expected %s, got %s", tt.header, got)
			}
		})
	}
}
