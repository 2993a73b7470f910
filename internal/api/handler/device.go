package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stresssense/stresssense/internal/api/models"
	"github.com/stresssense/stresssense/internal/api/response"
	"github.com/stresssense/stresssense/internal/device"
)

// DeviceHandler handles device registry endpoints.
type DeviceHandler struct {
	devices *device.Service
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *device.Service) *DeviceHandler {
	return &DeviceHandler{
		devices: devices,
	}
}

// Register handles POST /v1/devices/register - register an agent device.
// Re-registering the same (employee, kind) pair keeps the device id and
// rotates the key, so the response shape is identical either way.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	d, apiKey, err := h.devices.Register(r.Context(), req.EmployeeID, req.DeviceName, device.Kind(req.DeviceKind))
	if err != nil {
		if errors.Is(err, device.ErrInvalidArgument) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		response.InternalError(w, r, "device registration failed")
		return
	}

	location := fmt.Sprintf("/v1/devices/%s", d.ID)
	response.Created(w, r, location, registerResponse(d, apiKey))
}

// RotateKey handles POST /v1/devices/{deviceId}/rotate-key - issue a fresh
// key for a device. Operator only; the previous key stops verifying
// immediately.
func (h *DeviceHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	if deviceID == "" {
		response.BadRequest(w, r, "deviceId is required", nil)
		return
	}

	apiKey, err := h.devices.RotateKey(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		response.InternalError(w, r, "key rotation failed")
		return
	}

	d, err := h.devices.Lookup(r.Context(), deviceID)
	if err != nil {
		response.InternalError(w, r, "key rotation failed")
		return
	}

	response.JSON(w, r, http.StatusOK, registerResponse(d, apiKey))
}

// Deactivate handles POST /v1/devices/{deviceId}/deactivate - retire a
// device. Idempotent; the record is kept for historical readings.
func (h *DeviceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	if deviceID == "" {
		response.BadRequest(w, r, "deviceId is required", nil)
		return
	}

	if err := h.devices.Deactivate(r.Context(), deviceID); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		response.InternalError(w, r, "deactivation failed")
		return
	}

	response.NoContent(w, r)
}

// ListByEmployee handles GET /v1/devices?employeeId= - list an employee's
// devices, active and retired. Operator only.
func (h *DeviceHandler) ListByEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" {
		response.BadRequest(w, r, "employeeId is required", nil)
		return
	}

	devices, err := h.devices.LookupByEmployee(r.Context(), employeeID, false)
	if err != nil {
		response.InternalError(w, r, "device lookup failed")
		return
	}

	items := make([]models.Device, len(devices))
	for i, d := range devices {
		items[i] = deviceView(d)
	}
	response.JSON(w, r, http.StatusOK, models.PagedDevices{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: len(items), Count: len(items)},
	})
}

func registerResponse(d *device.Device, apiKey string) models.DeviceRegisterResponse {
	return models.DeviceRegisterResponse{
		DeviceID:   d.ID,
		EmployeeID: d.EmployeeID,
		DeviceName: d.Name,
		DeviceKind: string(d.Kind),
		APIKey:     apiKey,
		CreatedAt:  models.Timestamp(d.CreatedAt),
	}
}

func deviceView(d *device.Device) models.Device {
	view := models.Device{
		DeviceID:   d.ID,
		EmployeeID: d.EmployeeID,
		DeviceName: d.Name,
		DeviceKind: string(d.Kind),
		Active:     d.Active,
		CreatedAt:  models.Timestamp(d.CreatedAt),
	}
	if !d.LastSeenAt.IsZero() {
		ts := models.Timestamp(d.LastSeenAt)
		view.LastSeenAt = &ts
	}
	return view
}
