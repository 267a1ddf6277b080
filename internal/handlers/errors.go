package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/services"
)

var statusByKind = map[string]int{
	services.KindValidation:          http.StatusBadRequest,
	services.KindSchemaMismatch:      http.StatusUnprocessableEntity,
	services.KindRowProcessing:       http.StatusUnprocessableEntity,
	services.KindAvailability:        http.StatusForbidden,
	services.KindDuplicateSubmission: http.StatusConflict,
	services.KindNotFound:            http.StatusNotFound,
}

// respondError renders err as {"error", "kind"} plus whatever detail the
// error type carries. Internal errors are logged and never echoed.
func respondError(c *gin.Context, err error) {
	respondErrorWith(c, err, nil)
}

func respondErrorWith(c *gin.Context, err error, extra gin.H) {
	kind := services.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "kind": services.KindInternal})
		return
	}

	body := gin.H{"error": err.Error(), "kind": kind}

	var (
		validationErr  *services.ValidationError
		missingErr     *services.MissingColumnsError
		rowErr         *services.RowError
		duplicationErr *services.DuplicationError
	)
	if errors.As(err, &validationErr) {
		body["fields"] = validationErr.Fields
	}
	if errors.As(err, &missingErr) {
		body["missing_columns"] = missingErr.Columns
	}
	if errors.As(err, &rowErr) {
		body["row"] = rowErr.Row
		body["imported"] = rowErr.Imported
	}
	if errors.As(err, &duplicationErr) {
		body["created"] = duplicationErr.Created
	}
	for k, v := range extra {
		body[k] = v
	}

	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "kind": services.KindValidation})
}

// paramID parses a uuid path parameter, answering 400 when it is malformed.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional uuid query parameter.
func queryID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "Invalid "+name)
		return nil, false
	}
	return &id, true
}
