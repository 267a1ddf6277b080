package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/report"
	"github.com/test-portal/backend/internal/services"
	"gorm.io/datatypes"
)

// Export scopes.
const (
	ScopeAll      = "all"
	ScopeTests    = "tests"
	ScopeSelected = "selected"
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportFileNames = map[string]string{
	ScopeAll:      "test_results",
	ScopeTests:    "test_results_report",
	ScopeSelected: "selected_test_results",
}

type ResultHandler struct {
	reports *services.ReportService
	audit   *services.AuditService
}

func NewResultHandler(reports *services.ReportService, audit *services.AuditService) *ResultHandler {
	return &ResultHandler{reports: reports, audit: audit}
}

// @Summary List results
// @Tags results
// @Produce json
// @Param test_id query string false "Test ID"
// @Param group_id query string false "Group ID"
// @Param grade query string false "Grade label"
// @Param search query string false "Student name or test title"
// @Success 200 {array} models.TestResult
// @Router /api/v1/results [get]
func (h *ResultHandler) List(c *gin.Context) {
	testID, ok := queryID(c, "test_id")
	if !ok {
		return
	}
	groupID, ok := queryID(c, "group_id")
	if !ok {
		return
	}

	results, err := h.reports.List(c.Request.Context(), services.ResultFilter{
		TestID:  testID,
		GroupID: groupID,
		Grade:   c.Query("grade"),
		Search:  c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// @Summary Export results
// @Description scope=all exports every result. scope=tests takes test ids and
// @Description scope=selected takes result ids, both through the ids parameter.
// @Tags results
// @Produce application/pdf
// @Param scope query string true "all, tests or selected"
// @Param format query string false "pdf (default) or xlsx"
// @Param ids query string false "Comma separated ids"
// @Success 200 {file} file
// @Router /api/v1/results/export [get]
func (h *ResultHandler) Export(c *gin.Context) {
	scope := c.DefaultQuery("scope", ScopeAll)
	format := strings.ToLower(c.DefaultQuery("format", "pdf"))
	if format != "pdf" && format != "xlsx" {
		badRequest(c, "format must be pdf or xlsx")
		return
	}

	ids, err := parseIDList(c.QueryArray("ids"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var doc report.Document
	switch scope {
	case ScopeAll:
		doc, err = h.reports.AllResults(ctx)
	case ScopeTests, ScopeSelected:
		if len(ids) == 0 {
			badRequest(c, "ids are required for this scope")
			return
		}
		if scope == ScopeTests {
			doc, err = h.reports.ByTests(ctx, ids)
		} else {
			doc, err = h.reports.Selected(ctx, ids)
		}
	default:
		badRequest(c, fmt.Sprintf("unknown scope %q", scope))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	contentType := "application/pdf"
	if format == "xlsx" {
		contentType = contentTypeXLSX
		err = report.WriteXLSX(&buf, doc)
	} else {
		err = report.WritePDF(&buf, doc)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	record(c, h.audit, services.ActionExport, "test_result", uuid.Nil, nil,
		datatypes.JSONMap{"scope": scope, "format": format, "ids": idStrings(ids)})

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, exportFileNames[scope], format))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// parseIDList accepts repeated and comma separated ids, keeping their order.
func parseIDList(values []string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, fmt.Errorf("invalid id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
