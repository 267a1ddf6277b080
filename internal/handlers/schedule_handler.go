package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/services"
	"gorm.io/datatypes"
)

// ScheduleHandler manages test schedules and their questions.
type ScheduleHandler struct {
	tests       *services.TestService
	importer    *services.ImportService
	duplication *services.DuplicationService
	audit       *services.AuditService
	maxUpload   int64
}

func NewScheduleHandler(tests *services.TestService, importer *services.ImportService, duplication *services.DuplicationService, audit *services.AuditService, maxUpload int64) *ScheduleHandler {
	return &ScheduleHandler{
		tests:       tests,
		importer:    importer,
		duplication: duplication,
		audit:       audit,
		maxUpload:   maxUpload,
	}
}

type DuplicateRequest struct {
	TestIDs  []uuid.UUID `json:"test_ids"`
	GroupIDs []uuid.UUID `json:"group_ids"`
}

// @Summary List test schedules
// @Tags schedules
// @Produce json
// @Param group_id query string false "Group ID"
// @Success 200 {array} services.ScheduleView
// @Router /api/v1/schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	groupID, ok := queryID(c, "group_id")
	if !ok {
		return
	}
	schedules, err := h.tests.ListSchedules(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedules)
}

// @Summary Get a test schedule with questions
// @Tags schedules
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} services.ScheduleView
// @Router /api/v1/schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	schedule, err := h.tests.GetSchedule(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// @Summary Create test schedule
// @Tags schedules
// @Accept json
// @Produce json
// @Param request body services.ScheduleInput true "Schedule"
// @Success 201 {object} models.TestSchedule
// @Router /api/v1/schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req services.ScheduleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	schedule, err := h.tests.CreateSchedule(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

func (h *ScheduleHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.ScheduleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	schedule, err := h.tests.UpdateSchedule(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func (h *ScheduleHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.tests.DeleteSchedule(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	record(c, h.audit, services.ActionDelete, "test_schedule", id, datatypes.JSONMap{"id": id.String()}, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Test deleted successfully"})
}

// @Summary Import questions from a spreadsheet
// @Description Accepts a multipart "file" field (.csv, .xlsx or .xls) with the
// @Description columns Question Text, Option 1-4, Correct Option Number.
// @Tags schedules
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Test ID"
// @Param file formData file true "Question sheet"
// @Success 201 {object} map[string]interface{}
// @Router /api/v1/schedules/{id}/import [post]
func (h *ScheduleHandler) Import(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large", "kind": services.KindValidation})
			return
		}
		badRequest(c, "A file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "Could not read the uploaded file")
		return
	}
	defer file.Close()

	imported, err := h.importer.Import(c.Request.Context(), id, header.Filename, file)

	var rowErr *services.RowError
	if err == nil || errors.As(err, &rowErr) {
		after := datatypes.JSONMap{"file": header.Filename, "imported": imported, "mode": h.importer.Mode()}
		if rowErr != nil {
			after["failed_row"] = rowErr.Row
		}
		record(c, h.audit, services.ActionImport, "test_schedule", id, nil, after)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"imported": imported})
}

// @Summary Copy tests to groups
// @Tags schedules
// @Accept json
// @Produce json
// @Param request body DuplicateRequest true "Tests and target groups"
// @Success 201 {object} map[string]interface{}
// @Router /api/v1/schedules/duplicate [post]
func (h *ScheduleHandler) Duplicate(c *gin.Context) {
	var req DuplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	created, err := h.duplication.Duplicate(c.Request.Context(), req.TestIDs, req.GroupIDs)
	var dupErr *services.DuplicationError
	if err == nil || errors.As(err, &dupErr) {
		for _, testID := range req.TestIDs {
			record(c, h.audit, services.ActionDuplicate, "test_schedule", testID, nil,
				datatypes.JSONMap{"group_ids": idStrings(req.GroupIDs), "created": created})
		}
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"created": created})
}

// @Summary Add a question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param request body services.QuestionInput true "Question with options"
// @Success 201 {object} models.Question
// @Router /api/v1/schedules/{id}/questions [post]
func (h *ScheduleHandler) CreateQuestion(c *gin.Context) {
	testID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.QuestionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	question, err := h.tests.CreateQuestion(c.Request.Context(), testID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

func (h *ScheduleHandler) UpdateQuestion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.QuestionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	question, err := h.tests.UpdateQuestion(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (h *ScheduleHandler) DeleteQuestion(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.tests.DeleteQuestion(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	record(c, h.audit, services.ActionDelete, "question", id, datatypes.JSONMap{"id": id.String()}, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
