package models

// FaceQuality carries the agent's self-reported capture quality metrics.
type FaceQuality struct {
	IsBright       bool    `json:"isBright"`
	IsProperSize   bool    `json:"isProperSize"`
	IsCentered     bool    `json:"isCentered"`
	Brightness     float64 `json:"brightness"`
	FaceRatio      float64 `json:"faceRatio"`
	CenterDistance float64 `json:"centerDistance"`
}

// StressSubmitRequest is the request body for submitting a stress reading.
// Field validation beyond JSON shape happens in the stress service, which
// owns the enum sets and the timestamp window.
type StressSubmitRequest struct {
	DeviceID    string       `json:"deviceId"`
	EmployeeID  string       `json:"employeeId"`
	Emotion     string       `json:"emotion"`
	StressLevel string       `json:"stressLevel"`
	Confidence  *float64     `json:"confidence"`
	Timestamp   string       `json:"timestamp"`
	FaceQuality *FaceQuality `json:"faceQuality,omitempty"`

	// RequestID ties the reading back to a remote-check command.
	RequestID string `json:"requestId,omitempty"`

	// AnalysisError marks a remote check that failed on the device.
	AnalysisError string `json:"analysisError,omitempty"`
}

// StressReading represents an admitted stress reading.
type StressReading struct {
	ReadingID       string       `json:"readingId"`
	EmployeeID      string       `json:"employeeId"`
	DeviceID        string       `json:"deviceId"`
	Emotion         string       `json:"emotion"`
	StressLevel     string       `json:"stressLevel"`
	Confidence      float64      `json:"confidence"`
	Timestamp       Timestamp    `json:"timestamp"`
	IngestedAt      Timestamp    `json:"ingestedAt"`
	MappingMismatch bool         `json:"mappingMismatch"`
	FaceQuality     *FaceQuality `json:"faceQuality,omitempty"`
	RequestID       string       `json:"requestId,omitempty"`
}

// PagedReadings represents a list of an employee's readings, newest first.
type PagedReadings struct {
	Items []StressReading   `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// RemoteCheckPoll is returned to a polling agent. RequestID and CreatedAt
// are present only when Pending is true.
type RemoteCheckPoll struct {
	Pending   bool       `json:"pending"`
	RequestID string     `json:"requestId,omitempty"`
	CreatedAt *Timestamp `json:"createdAt,omitempty"`
}
