package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stresssense/stresssense/internal/api/middleware"
	"github.com/stresssense/stresssense/internal/api/models"
	"github.com/stresssense/stresssense/internal/api/response"
	"github.com/stresssense/stresssense/internal/remotecheck"
	"github.com/stresssense/stresssense/internal/stress"
)

// StressHandler handles telemetry and remote-check endpoints.
type StressHandler struct {
	stress       *stress.Service
	remoteChecks *remotecheck.Service
	ingest       *middleware.IngestMetrics
}

// NewStressHandler creates a new StressHandler. The ingest metrics may be
// nil; outcomes are then not counted.
func NewStressHandler(stressService *stress.Service, remoteChecks *remotecheck.Service, ingest *middleware.IngestMetrics) *StressHandler {
	return &StressHandler{
		stress:       stressService,
		remoteChecks: remoteChecks,
		ingest:       ingest,
	}
}

func (h *StressHandler) countIngested(remote bool) {
	if h.ingest != nil {
		h.ingest.RecordIngested(remote)
	}
}

func (h *StressHandler) countRejected(reason string) {
	if h.ingest != nil {
		h.ingest.RecordRejected(reason)
	}
}

// Record handles POST /v1/stress/record - submit a stress reading.
func (h *StressHandler) Record(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, http.StatusCreated, false)
}

// RemoteSubmit handles POST /v1/stress/remote-submit - submit the result of
// a remote check. Identical to Record except the body must carry the
// request id, and a device-side analysis failure fails the correlated
// command without admitting a reading.
func (h *StressHandler) RemoteSubmit(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, http.StatusOK, true)
}

func (h *StressHandler) record(w http.ResponseWriter, r *http.Request, successStatus int, requireRequestID bool) {
	var req models.StressSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if requireRequestID && req.RequestID == "" {
		response.BadRequest(w, r, "validation error", []models.FieldError{
			{Field: "requestId", Message: "is required", Code: "required"},
		})
		return
	}

	d := GetDevice(r.Context())
	if d == nil {
		response.Unauthorized(w, r, "invalid device credential")
		return
	}

	// A failed capture carries no analyzable reading. Fail the correlated
	// command and stop; nothing is persisted.
	if requireRequestID && req.AnalysisError != "" && req.Emotion == "" {
		if err := h.remoteChecks.Resolve(r.Context(), req.RequestID, d.ID, true, req.AnalysisError); err != nil {
			response.InternalError(w, r, "failed to resolve remote check")
			return
		}
		h.countRejected("analysis_error")
		response.JSON(w, r, successStatus, map[string]string{"requestId": req.RequestID})
		return
	}

	reading, err := h.stress.Record(r.Context(), d, submission(&req))
	if err != nil {
		var verr *stress.ValidationError
		switch {
		case errors.Is(err, stress.ErrIdentityMismatch):
			h.countRejected("identity_mismatch")
			response.Conflict(w, r, err.Error())
		case errors.As(err, &verr):
			h.countRejected("validation")
			fieldErrors := make([]models.FieldError, len(verr.Fields))
			for i, f := range verr.Fields {
				fieldErrors[i] = models.FieldError{Field: f.Field, Message: f.Message}
			}
			response.BadRequest(w, r, "validation error", fieldErrors)
		default:
			response.InternalError(w, r, "failed to record reading")
		}
		return
	}

	h.countIngested(requireRequestID)

	if successStatus == http.StatusCreated {
		location := fmt.Sprintf("/v1/stress/readings/%s", reading.ID)
		response.Created(w, r, location, readingView(reading))
		return
	}
	response.JSON(w, r, successStatus, readingView(reading))
}

// PollRemoteCheck handles GET /v1/stress/remote-check/{employeeId} - the
// agent's lightweight poll for an outstanding remote check. A device may
// only poll for its own employee.
func (h *StressHandler) PollRemoteCheck(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")
	if employeeID == "" {
		response.BadRequest(w, r, "employeeId is required", nil)
		return
	}

	d := GetDevice(r.Context())
	if d == nil || d.EmployeeID != employeeID {
		response.Forbidden(w, r, "device does not belong to this employee")
		return
	}

	check, err := h.remoteChecks.PollPending(r.Context(), employeeID)
	if err != nil {
		// A device of a non-agent kind can poll for its employee; with no
		// agent device to target there is simply nothing pending.
		if errors.Is(err, remotecheck.ErrNoActiveDevice) {
			response.JSON(w, r, http.StatusOK, models.RemoteCheckPoll{Pending: false})
			return
		}
		response.InternalError(w, r, "remote-check lookup failed")
		return
	}

	poll := models.RemoteCheckPoll{Pending: check.Pending}
	if check.Pending {
		poll.RequestID = check.RequestID
		ts := models.Timestamp(check.CreatedAt)
		poll.CreatedAt = &ts
	}
	response.JSON(w, r, http.StatusOK, poll)
}

// TriggerRemoteCheck handles POST /v1/stress/remote-check/{employeeId} -
// operator request for an on-demand reading from an employee's agent.
func (h *StressHandler) TriggerRemoteCheck(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")
	if employeeID == "" {
		response.BadRequest(w, r, "employeeId is required", nil)
		return
	}

	cmd, err := h.remoteChecks.Request(r.Context(), employeeID)
	if err != nil {
		if errors.Is(err, remotecheck.ErrNoActiveDevice) {
			response.NotFound(w, r, "no active device for employee")
			return
		}
		response.InternalError(w, r, "remote-check request failed")
		return
	}

	location := fmt.Sprintf("/v1/devices/commands/%s", cmd.ID)
	response.Created(w, r, location, commandView(cmd))
}

// ListReadings handles GET /v1/stress/employees/{employeeId}/readings -
// operator listing of an employee's readings, newest first. Supports
// from/to RFC3339 bounds and a limit.
func (h *StressHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")
	if employeeID == "" {
		response.BadRequest(w, r, "employeeId is required", nil)
		return
	}

	opts, errs := listOptions(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	readings, err := h.stress.ListByEmployee(r.Context(), employeeID, opts)
	if err != nil {
		response.InternalError(w, r, "reading lookup failed")
		return
	}

	items := make([]models.StressReading, len(readings))
	for i, reading := range readings {
		items[i] = readingView(reading)
	}
	response.JSON(w, r, http.StatusOK, models.PagedReadings{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: opts.Limit, Count: len(items)},
	})
}

// LatestReading handles GET /v1/stress/employees/{employeeId}/readings/latest -
// operator lookup of an employee's most recent reading.
func (h *StressHandler) LatestReading(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeId")
	if employeeID == "" {
		response.BadRequest(w, r, "employeeId is required", nil)
		return
	}

	reading, err := h.stress.LatestByEmployee(r.Context(), employeeID)
	if err != nil {
		if errors.Is(err, stress.ErrNotFound) {
			response.NotFound(w, r, "no readings for this employee")
			return
		}
		response.InternalError(w, r, "reading lookup failed")
		return
	}
	response.JSON(w, r, http.StatusOK, readingView(reading))
}

func listOptions(r *http.Request) (stress.ListOptions, []models.FieldError) {
	var opts stress.ListOptions
	var errs []models.FieldError

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, models.FieldError{Field: "from", Message: "must be an RFC3339 timestamp"})
		} else {
			opts.From = &t
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errs = append(errs, models.FieldError{Field: "to", Message: "must be an RFC3339 timestamp"})
		} else {
			opts.To = &t
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs = append(errs, models.FieldError{Field: "limit", Message: "must be a positive integer"})
		} else {
			opts.Limit = n
		}
	}
	return opts, errs
}

func submission(req *models.StressSubmitRequest) *stress.Submission {
	sub := &stress.Submission{
		DeviceID:      req.DeviceID,
		EmployeeID:    req.EmployeeID,
		Emotion:       req.Emotion,
		StressLevel:   req.StressLevel,
		Confidence:    req.Confidence,
		Timestamp:     req.Timestamp,
		RequestID:     req.RequestID,
		AnalysisError: req.AnalysisError,
	}
	if req.FaceQuality != nil {
		sub.FaceQuality = &stress.FaceQuality{
			IsBright:       req.FaceQuality.IsBright,
			IsProperSize:   req.FaceQuality.IsProperSize,
			IsCentered:     req.FaceQuality.IsCentered,
			Brightness:     req.FaceQuality.Brightness,
			FaceRatio:      req.FaceQuality.FaceRatio,
			CenterDistance: req.FaceQuality.CenterDistance,
		}
	}
	return sub
}

func readingView(reading *stress.Reading) models.StressReading {
	view := models.StressReading{
		ReadingID:       reading.ID,
		EmployeeID:      reading.EmployeeID,
		DeviceID:        reading.DeviceID,
		Emotion:         string(reading.Emotion),
		StressLevel:     string(reading.StressLevel),
		Confidence:      reading.Confidence,
		Timestamp:       models.Timestamp(reading.Timestamp),
		IngestedAt:      models.Timestamp(reading.IngestedAt),
		MappingMismatch: reading.MappingMismatch,
		RequestID:       reading.RequestID,
	}
	if reading.FaceQuality != nil {
		view.FaceQuality = &models.FaceQuality{
			IsBright:       reading.FaceQuality.IsBright,
			IsProperSize:   reading.FaceQuality.IsProperSize,
			IsCentered:     reading.FaceQuality.IsCentered,
			Brightness:     reading.FaceQuality.Brightness,
			FaceRatio:      reading.FaceQuality.FaceRatio,
			CenterDistance: reading.FaceQuality.CenterDistance,
		}
	}
	return view
}
