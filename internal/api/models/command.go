package models

// Command represents a queued device command.
type Command struct {
	ID        string     `json:"id"`
	DeviceID  string     `json:"deviceId"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Error     *string    `json:"error,omitempty"`
	CreatedAt Timestamp  `json:"createdAt"`
	AckAt     *Timestamp `json:"ackAt,omitempty"`
	DoneAt    *Timestamp `json:"doneAt,omitempty"`
}

// CommandAckRequest is the request body for acknowledging a command.
type CommandAckRequest struct {
	Status string  `json:"status"`
	Error  *string `json:"error,omitempty"`
}

// Validate checks the requested status transition target.
func (r *CommandAckRequest) Validate() []FieldError {
	switch r.Status {
	case "ack", "done", "failed":
		return nil
	case "":
		return []FieldError{{Field: "status", Message: "is required", Code: "required"}}
	default:
		return []FieldError{{Field: "status", Message: "must be one of: ack, done, failed", Code: "enum"}}
	}
}
