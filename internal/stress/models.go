// Package stress validates and persists stress readings submitted by agent
// devices. Readings are immutable once admitted and are retained
// indefinitely, subject to external retention policy.
package stress

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors.
var (
	// ErrIdentityMismatch is returned when an authenticated device asserts a
	// device or employee id that does not match its registry record. The
	// caller is authenticated, so this is a conflict, not an auth failure.
	ErrIdentityMismatch = errors.New("submission identity does not match device registration")
)

// FieldError reports a single invalid submission field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aggregates the field problems of a rejected submission.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid submission"
	}
	return fmt.Sprintf("invalid submission: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
}

// Emotion is the closed set of emotions the classifier can report.
type Emotion string

const (
	EmotionHappy    Emotion = "happy"
	EmotionNeutral  Emotion = "neutral"
	EmotionSad      Emotion = "sad"
	EmotionAngry    Emotion = "angry"
	EmotionFear     Emotion = "fear"
	EmotionDisgust  Emotion = "disgust"
	EmotionSurprise Emotion = "surprise"
)

// Emotions lists all valid emotions, in the order quoted in error messages.
var Emotions = []Emotion{
	EmotionHappy,
	EmotionNeutral,
	EmotionSad,
	EmotionAngry,
	EmotionFear,
	EmotionDisgust,
	EmotionSurprise,
}

// Valid reports whether e is a known emotion.
func (e Emotion) Valid() bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// Level is the coarse stress level reported alongside an emotion.
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// Levels lists all valid stress levels.
var Levels = []Level{LevelLow, LevelMedium, LevelHigh}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l == LevelLow || l == LevelMedium || l == LevelHigh
}

// DefaultEmotionLevels is the expected stress level per emotion, used to
// flag likely client-side mislabeling. It mirrors the mapping the deployed
// classifiers were trained against.
func DefaultEmotionLevels() map[Emotion]Level {
	return map[Emotion]Level{
		EmotionHappy:    LevelLow,
		EmotionNeutral:  LevelLow,
		EmotionSad:      LevelMedium,
		EmotionAngry:    LevelMedium,
		EmotionSurprise: LevelMedium,
		EmotionFear:     LevelHigh,
		EmotionDisgust:  LevelHigh,
	}
}

// FaceQuality carries the agent's self-reported capture quality metrics.
// Stored verbatim; never validated beyond shape.
type FaceQuality struct {
	IsBright       bool    `json:"isBright"`
	IsProperSize   bool    `json:"isProperSize"`
	IsCentered     bool    `json:"isCentered"`
	Brightness     float64 `json:"brightness"`
	FaceRatio      float64 `json:"faceRatio"`
	CenterDistance float64 `json:"centerDistance"`
}

// Submission is a raw inbound reading before validation. Confidence is a
// pointer so a missing field is distinguishable from zero.
type Submission struct {
	DeviceID    string
	EmployeeID  string
	Emotion     string
	StressLevel string
	Confidence  *float64
	Timestamp   string
	FaceQuality *FaceQuality

	// RequestID correlates the reading with a remote-check command. Weak
	// reference: may dangle if the command is ever purged.
	RequestID string

	// AnalysisError marks a remote check whose capture or analysis failed
	// on the device; the correlated command is failed instead of completed.
	AnalysisError string
}

// Reading is an admitted stress reading.
type Reading struct {
	ID              string
	EmployeeID      string
	DeviceID        string
	Emotion         Emotion
	StressLevel     Level
	Confidence      float64
	Timestamp       time.Time
	IngestedAt      time.Time
	MappingMismatch bool
	FaceQuality     *FaceQuality
	RequestID       string
}
