package response_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stresssense/stresssense/internal/api/middleware"
	"github.com/stresssense/stresssense/internal/api/models"
	"github.com/stresssense/stresssense/internal/api/response"
)

// requestWithContext creates an HTTP request that has been processed by the
// RequestID middleware to populate the context with a request ID.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	rec := httptest.NewRecorder()

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(rec, req)

	return processedReq, httptest.NewRecorder()
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var problem models.Problem
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("failed to decode Problem response: %v", err)
	}
	return problem
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/devices")

	response.JSON(rec, req, http.StatusOK, map[string]string{"status": "ok"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	// No middleware, so no request ID in context.
	req := httptest.NewRequest(http.MethodGet, "/v1/devices", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"status": "ok"})

	if h := rec.Header().Get("X-Request-Id"); h != "" {
		t.Errorf("expected no X-Request-Id header when not in context, got %q", h)
	}
}

func TestJSON_NilData(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/devices")

	response.JSON(rec, req, http.StatusOK, nil)

	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got %q", rec.Body.String())
	}
}

func TestCreated_IncludesRequestIDAndLocation(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/devices/register")

	response.Created(rec, req, "/v1/devices/dev_123", map[string]string{"deviceId": "dev_123"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/devices/dev_123" {
		t.Errorf("expected Location /v1/devices/dev_123, got %q", loc)
	}
}

func TestNoContent_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodDelete, "/v1/devices/dev_123")

	response.NoContent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for 204, got %q", rec.Body.String())
	}
}

func TestTooManyRequests_IncludesRateLimitHeaders(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/commands/pending")

	info := &response.RateLimitInfo{
		Limit:      30,
		Remaining:  0,
		ResetAt:    1704067200,
		RetryAfter: 60,
	}
	response.TooManyRequestsWithInfo(rec, req, "rate limit exceeded", info)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
	if h := rec.Header().Get("X-RateLimit-Limit"); h != "30" {
		t.Errorf("expected X-RateLimit-Limit 30, got %q", h)
	}
	if h := rec.Header().Get("X-RateLimit-Remaining"); h != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", h)
	}
	if h := rec.Header().Get("Retry-After"); h != "60" {
		t.Errorf("expected Retry-After 60, got %q", h)
	}
	if problem := decodeProblem(t, rec); problem.Status != http.StatusTooManyRequests {
		t.Errorf("expected problem status 429, got %d", problem.Status)
	}
}

func TestTooManyRequests_WithoutRateLimitInfo(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/commands/pending")

	response.TooManyRequests(rec, req, "rate limit exceeded")

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
	if h := rec.Header().Get("X-RateLimit-Limit"); h != "" {
		t.Errorf("expected no X-RateLimit-Limit header, got %q", h)
	}
}

func TestBadRequest_IncludesTraceIDAndInstance(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/stress/submit")

	response.BadRequest(rec, req, "validation failed", []models.FieldError{
		{Field: "emotion", Message: "is required"},
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	problem := decodeProblem(t, rec)
	if problem.TraceID == "" {
		t.Error("expected traceId to be set in Problem response")
	}
	if problem.Instance != "/v1/stress/submit" {
		t.Errorf("expected instance /v1/stress/submit, got %q", problem.Instance)
	}
	if len(problem.Errors) != 1 || problem.Errors[0].Field != "emotion" {
		t.Errorf("expected emotion field error, got %+v", problem.Errors)
	}
}

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter, r *http.Request)
		wantStatus int
	}{
		{
			name:       "unauthorized",
			write:      func(w http.ResponseWriter, r *http.Request) { response.Unauthorized(w, r, "invalid device credential") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "forbidden",
			write:      func(w http.ResponseWriter, r *http.Request) { response.Forbidden(w, r, "device does not own this resource") },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "not found",
			write:      func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "command not found") },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "conflict",
			write:      func(w http.ResponseWriter, r *http.Request) { response.Conflict(w, r, "identity mismatch") },
			wantStatus: http.StatusConflict,
		},
		{
			name:       "internal",
			write:      func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "storage failure") },
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unavailable",
			write:      func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "database unreachable") },
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := requestWithContext(t, http.MethodGet, "/v1/test")
			tt.write(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			problem := decodeProblem(t, rec)
			if problem.Status != tt.wantStatus {
				t.Errorf("expected problem status %d, got %d", tt.wantStatus, problem.Status)
			}
			if problem.TraceID == "" {
				t.Error("expected traceId to be set")
			}
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/devices", http.NoBody)
	req.Header.Set("X-Request-Id", "client-request-123")
	rec := httptest.NewRecorder()

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(rec, req)

	if got := middleware.GetRequestID(processedReq.Context()); got != "client-request-123" {
		t.Errorf("expected client request ID to be preserved, got %q", got)
	}

	rec = httptest.NewRecorder()
	response.JSON(rec, processedReq, http.StatusOK, map[string]string{"status": "ok"})

	if got := rec.Header().Get("X-Request-Id"); got != "client-request-123" {
		t.Errorf("expected response X-Request-Id to match client's, got %q", got)
	}
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	if got := middleware.GetRequestID(context.Background()); got != "" {
		t.Errorf("expected empty request ID for background context, got %q", got)
	}
}
