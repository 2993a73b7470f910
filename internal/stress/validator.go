package stress

import (
	"fmt"
	"time"

	"github.com/stresssense/stresssense/internal/device"
)

// Freshness window for client timestamps. The past tolerance absorbs slow
// agent dispatch loops; the future tolerance absorbs client clock skew.
const (
	maxTimestampPast   = time.Hour
	maxTimestampFuture = 5 * time.Minute
)

// mismatchConfidenceFloor is the confidence above which a reading whose
// level disagrees with the emotion mapping is flagged for audit.
const mismatchConfidenceFloor = 60.0

// Validator admits or rejects inbound submissions. The emotion-to-level
// mapping is injected so alternate mappings can be tested without global
// state.
type Validator struct {
	mapping map[Emotion]Level
}

// NewValidator creates a validator with the given emotion mapping. A nil
// mapping uses DefaultEmotionLevels.
func NewValidator(mapping map[Emotion]Level) *Validator {
	if mapping == nil {
		mapping = DefaultEmotionLevels()
	}
	return &Validator{mapping: mapping}
}

// Validate checks a submission against the authenticated device's registry
// record and the freshness window around now. It is a pure function of its
// inputs: the same (submission, device, now) always yields the same
// decision. On success it returns a reading ready for persistence; the
// caller assigns the id and ingestion timestamp.
//
// The mapping-mismatch flag is informational and never rejects: it marks
// high-confidence readings whose level disagrees with the expected level
// for the emotion, which usually means client-side mislabeling.
func (v *Validator) Validate(sub *Submission, d *device.Device, now time.Time) (*Reading, error) {
	// Identity first: an authenticated device asserting someone else's ids
	// is a conflict regardless of payload quality.
	if sub.DeviceID != d.ID {
		return nil, fmt.Errorf("%w: device id %q", ErrIdentityMismatch, sub.DeviceID)
	}
	if sub.EmployeeID != d.EmployeeID {
		return nil, fmt.Errorf("%w: employee id %q", ErrIdentityMismatch, sub.EmployeeID)
	}

	var fields []FieldError

	emotion := Emotion(sub.Emotion)
	switch {
	case sub.Emotion == "":
		fields = append(fields, FieldError{Field: "emotion", Message: "emotion is required"})
	case !emotion.Valid():
		fields = append(fields, FieldError{
			Field:   "emotion",
			Message: fmt.Sprintf("emotion must be one of %v", Emotions),
		})
	}

	level := Level(sub.StressLevel)
	switch {
	case sub.StressLevel == "":
		fields = append(fields, FieldError{Field: "stressLevel", Message: "stress level is required"})
	case !level.Valid():
		fields = append(fields, FieldError{
			Field:   "stressLevel",
			Message: fmt.Sprintf("stress level must be one of %v", Levels),
		})
	}

	switch {
	case sub.Confidence == nil:
		fields = append(fields, FieldError{Field: "confidence", Message: "confidence is required"})
	case *sub.Confidence < 0 || *sub.Confidence > 100:
		fields = append(fields, FieldError{Field: "confidence", Message: "confidence must be between 0 and 100"})
	}

	var ts time.Time
	if sub.Timestamp == "" {
		fields = append(fields, FieldError{Field: "timestamp", Message: "timestamp is required"})
	} else {
		parsed, err := time.Parse(time.RFC3339, sub.Timestamp)
		switch {
		case err != nil:
			fields = append(fields, FieldError{Field: "timestamp", Message: "timestamp must be an ISO-8601 instant"})
		case parsed.After(now.Add(maxTimestampFuture)):
			fields = append(fields, FieldError{Field: "timestamp", Message: "timestamp too far in future"})
		case parsed.Before(now.Add(-maxTimestampPast)):
			fields = append(fields, FieldError{Field: "timestamp", Message: "timestamp too far in past"})
		default:
			ts = parsed
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	mismatch := false
	if expected, ok := v.mapping[emotion]; ok && expected != level && *sub.Confidence > mismatchConfidenceFloor {
		mismatch = true
	}

	return &Reading{
		EmployeeID:      sub.EmployeeID,
		DeviceID:        sub.DeviceID,
		Emotion:         emotion,
		StressLevel:     level,
		Confidence:      *sub.Confidence,
		Timestamp:       ts,
		MappingMismatch: mismatch,
		FaceQuality:     sub.FaceQuality,
		RequestID:       sub.RequestID,
	}, nil
}
