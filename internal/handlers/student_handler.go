package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/test-portal/backend/internal/services"
)

// StudentHandler is the staff view of student accounts.
type StudentHandler struct {
	students *services.StudentService
}

func NewStudentHandler(students *services.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// @Summary List students
// @Tags students
// @Produce json
// @Param group_id query string false "Group ID"
// @Param search query string false "Name search"
// @Success 200 {array} models.Student
// @Router /api/v1/students [get]
func (h *StudentHandler) List(c *gin.Context) {
	groupID, ok := queryID(c, "group_id")
	if !ok {
		return
	}

	students, err := h.students.List(c.Request.Context(), services.StudentFilter{
		GroupID: groupID,
		Search:  c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

func (h *StudentHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	profile, err := h.students.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
