package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stresssense/stresssense/internal/api/models"
)

func TestProblem_NewProblem(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	)

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "Validation error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Empty(t, p.Detail)
	assert.Empty(t, p.Instance)
	assert.Nil(t, p.Errors)
}

func TestProblem_WithDetail(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithDetail("confidence must be between 0 and 100")

	assert.Equal(t, "confidence must be between 0 and 100", p.Detail)
}

func TestProblem_WithInstance(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithInstance("/v1/stress/submit")

	assert.Equal(t, "/v1/stress/submit", p.Instance)
}

func TestProblem_WithErrors(t *testing.T) {
	fieldErrors := []models.FieldError{
		{Field: "confidence", Message: "must be between 0 and 100", Code: "range"},
		{Field: "emotion", Message: "is required", Code: "required"},
	}

	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithErrors(fieldErrors)

	require.Len(t, p.Errors, 2)
	assert.Equal(t, "confidence", p.Errors[0].Field)
	assert.Equal(t, "must be between 0 and 100", p.Errors[0].Message)
	assert.Equal(t, "range", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "timestamp", Message: "must be RFC3339"},
	})
	p.Instance = "/v1/stress/submit"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/stress/submit", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "timestamp", result.Errors[0].Field)
}

func TestNewUnauthorized(t *testing.T) {
	p := models.NewUnauthorized("req_123", "invalid device credential")

	assert.Equal(t, models.ProblemTypeUnauthorized, p.Type)
	assert.Equal(t, "Unauthorized", p.Title)
	assert.Equal(t, http.StatusUnauthorized, p.Status)
	assert.Equal(t, "invalid device credential", p.Detail)
}

func TestNewForbidden(t *testing.T) {
	p := models.NewForbidden("req_123", "device does not own this resource")

	assert.Equal(t, models.ProblemTypeForbidden, p.Type)
	assert.Equal(t, "Forbidden", p.Title)
	assert.Equal(t, http.StatusForbidden, p.Status)
	assert.Equal(t, "device does not own this resource", p.Detail)
}

func TestNewNotFound(t *testing.T) {
	p := models.NewNotFound("req_123", "device not found")

	assert.Equal(t, models.ProblemTypeNotFound, p.Type)
	assert.Equal(t, "Not found", p.Title)
	assert.Equal(t, http.StatusNotFound, p.Status)
	assert.Equal(t, "device not found", p.Detail)
}

func TestNewConflict(t *testing.T) {
	p := models.NewConflict("req_123", "submission identity does not match device registration")

	assert.Equal(t, models.ProblemTypeConflict, p.Type)
	assert.Equal(t, "Conflict", p.Title)
	assert.Equal(t, http.StatusConflict, p.Status)
}

func TestNewTooManyRequests(t *testing.T) {
	p := models.NewTooManyRequests("req_123", "rate limit exceeded")

	assert.Equal(t, models.ProblemTypeTooManyRequests, p.Type)
	assert.Equal(t, "Too many requests", p.Title)
	assert.Equal(t, http.StatusTooManyRequests, p.Status)
}

func TestNewInternalError(t *testing.T) {
	p := models.NewInternalError("req_123", "database error")

	assert.Equal(t, models.ProblemTypeInternal, p.Type)
	assert.Equal(t, "Internal server error", p.Title)
	assert.Equal(t, http.StatusInternalServerError, p.Status)
}

func TestDeviceRegisterRequest_Validate(t *testing.T) {
	valid := models.DeviceRegisterRequest{EmployeeID: "emp-1", DeviceName: "laptop-042"}
	assert.Empty(t, valid.Validate())

	missing := models.DeviceRegisterRequest{EmployeeID: "  ", DeviceName: ""}
	errs := missing.Validate()
	require.Len(t, errs, 2)
	assert.Equal(t, "employeeId", errs[0].Field)
	assert.Equal(t, "deviceName", errs[1].Field)
}

func TestCommandAckRequest_Validate(t *testing.T) {
	for _, status := range []string{"ack", "done", "failed"} {
		req := models.CommandAckRequest{Status: status}
		assert.Empty(t, req.Validate(), status)
	}

	errs := (&models.CommandAckRequest{Status: "pending"}).Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "status", errs[0].Field)

	errs = (&models.CommandAckRequest{}).Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "required", errs[0].Code)
}
