package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/test-portal/backend/internal/grading"
	"github.com/test-portal/backend/internal/middleware"
	"github.com/test-portal/backend/internal/models"
	"github.com/test-portal/backend/internal/services"
)

// PortalHandler serves the student-facing endpoints. Every route runs
// behind RequireStudent, so the subject id is always present.
type PortalHandler struct {
	students   *services.StudentService
	tests      *services.TestService
	submission *services.SubmissionService
}

func NewPortalHandler(students *services.StudentService, tests *services.TestService, submission *services.SubmissionService) *PortalHandler {
	return &PortalHandler{students: students, tests: tests, submission: submission}
}

type SubmitRequest struct {
	// Answers maps question id to the selected option id.
	Answers services.Answers `json:"answers"`
}

// @Summary Student profile
// @Tags portal
// @Produce json
// @Success 200 {object} services.StudentProfile
// @Router /api/v1/me [get]
func (h *PortalHandler) Profile(c *gin.Context) {
	studentID, _ := middleware.SubjectID(c)
	profile, err := h.students.Profile(c.Request.Context(), studentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// @Summary Tests of the student's group
// @Tags portal
// @Produce json
// @Success 200 {array} services.StudentTest
// @Router /api/v1/me/tests [get]
func (h *PortalHandler) Tests(c *gin.Context) {
	studentID, _ := middleware.SubjectID(c)
	tests, err := h.tests.ListForStudent(c.Request.Context(), studentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tests)
}

// @Summary Take a test
// @Tags portal
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} services.TakeView
// @Router /api/v1/me/tests/{id} [get]
func (h *PortalHandler) Take(c *gin.Context) {
	testID, ok := paramID(c, "id")
	if !ok {
		return
	}
	studentID, _ := middleware.SubjectID(c)

	test, existing, err := h.submission.Prepare(c.Request.Context(), studentID, testID)
	if err != nil {
		h.rejected(c, err, existing)
		return
	}
	c.JSON(http.StatusOK, services.NewTakeView(test))
}

// @Summary Submit answers
// @Tags portal
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param request body SubmitRequest true "Selected options"
// @Success 201 {object} models.TestResult
// @Router /api/v1/me/tests/{id}/submit [post]
func (h *PortalHandler) Submit(c *gin.Context) {
	testID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	studentID, _ := middleware.SubjectID(c)

	result, err := h.submission.Submit(c.Request.Context(), studentID, testID, req.Answers)
	if err != nil {
		h.rejected(c, err, result)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"result_id":   result.ID,
		"score":       result.Score,
		"grade":       result.Grade,
		"grade_color": result.GradeColor,
		"passed":      result.Grade != grading.LabelFailed,
	})
}

// @Summary Result detail
// @Tags portal
// @Produce json
// @Param id path string true "Result ID"
// @Success 200 {object} models.TestResult
// @Router /api/v1/me/results/{id} [get]
func (h *PortalHandler) Result(c *gin.Context) {
	resultID, ok := paramID(c, "id")
	if !ok {
		return
	}
	studentID, _ := middleware.SubjectID(c)

	result, err := h.tests.Result(c.Request.Context(), studentID, resultID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// rejected answers a failed take or submit. An earlier submission is
// reported with its result id so the client can show it.
func (h *PortalHandler) rejected(c *gin.Context, err error, existing *models.TestResult) {
	if errors.Is(err, services.ErrAlreadySubmitted) && existing != nil {
		respondErrorWith(c, err, gin.H{"result_id": existing.ID})
		return
	}
	respondError(c, err)
}
