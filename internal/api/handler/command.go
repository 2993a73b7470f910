package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stresssense/stresssense/internal/api/models"
	"github.com/stresssense/stresssense/internal/api/response"
	"github.com/stresssense/stresssense/internal/command"
)

// CommandHandler handles the command queue endpoints.
type CommandHandler struct {
	commands *command.Service
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(commands *command.Service) *CommandHandler {
	return &CommandHandler{
		commands: commands,
	}
}

// ListPending handles GET /v1/devices/{deviceId}/commands - the agent's
// command poll. A device may only read its own queue; asking for another
// device's queue is Forbidden, never an empty list, so a misconfigured
// agent fails loudly.
func (h *CommandHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")
	if deviceID == "" {
		response.BadRequest(w, r, "deviceId is required", nil)
		return
	}

	d := GetDevice(r.Context())
	if d == nil || d.ID != deviceID {
		response.Forbidden(w, r, "device does not own this resource")
		return
	}

	pending, err := h.commands.ListPending(r.Context(), deviceID)
	if err != nil {
		response.InternalError(w, r, "command lookup failed")
		return
	}

	// Agents expect a bare array; an empty queue marshals as [].
	items := make([]models.Command, len(pending))
	for i, c := range pending {
		items[i] = commandView(c)
	}
	response.JSON(w, r, http.StatusOK, items)
}

// Acknowledge handles POST /v1/devices/commands/ack/{commandId} - advance a
// command's status. Acknowledging an already-terminal command returns the
// stored command unchanged, so agent retries are harmless.
func (h *CommandHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	commandID := chi.URLParam(r, "commandId")
	if commandID == "" {
		response.BadRequest(w, r, "commandId is required", nil)
		return
	}

	var req models.CommandAckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	existing, err := h.commands.Get(r.Context(), commandID)
	if err != nil {
		if errors.Is(err, command.ErrNotFound) {
			response.NotFound(w, r, "command not found")
			return
		}
		response.InternalError(w, r, "command lookup failed")
		return
	}

	d := GetDevice(r.Context())
	if d == nil || d.ID != existing.DeviceID {
		response.Forbidden(w, r, "device does not own this command")
		return
	}

	updated, err := h.commands.Acknowledge(r.Context(), commandID, command.Status(req.Status), req.Error)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrNotFound):
			response.NotFound(w, r, "command not found")
		case errors.Is(err, command.ErrInvalidStatus):
			response.BadRequest(w, r, err.Error(), nil)
		default:
			response.InternalError(w, r, "acknowledge failed")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, commandView(updated))
}

// Cancel handles POST /v1/devices/commands/cancel/{commandId} - operator
// cancellation of a not-yet-terminal command.
func (h *CommandHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	commandID := chi.URLParam(r, "commandId")
	if commandID == "" {
		response.BadRequest(w, r, "commandId is required", nil)
		return
	}

	cancelled, err := h.commands.Cancel(r.Context(), commandID)
	if err != nil {
		if errors.Is(err, command.ErrNotFound) {
			response.NotFound(w, r, "command not found")
			return
		}
		response.InternalError(w, r, "cancel failed")
		return
	}

	response.JSON(w, r, http.StatusOK, commandView(cancelled))
}

func commandView(c *command.Command) models.Command {
	return models.Command{
		ID:        c.ID,
		DeviceID:  c.DeviceID,
		Type:      string(c.Type),
		Status:    string(c.Status),
		Error:     c.Error,
		CreatedAt: models.Timestamp(c.CreatedAt),
		AckAt:     models.TimestampPtr(c.AckAt),
		DoneAt:    models.TimestampPtr(c.DoneAt),
	}
}
