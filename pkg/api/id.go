package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type (
	// FlowID is a unique identifier for a flow definition
	FlowID string

	// StepID is a unique identifier for a step within a flow
	StepID string

	// JobID is a unique identifier for one execution of a flow
	JobID string

	// SourceType identifies the kind of source a fetched item came from
	SourceType string

	// ItemID is the source-assigned identifier of a fetched item
	ItemID string
)

// InvalidIDChars matches characters not permitted in flow and step IDs.
// Valid characters are: letters, digits, underscore, dot, hyphen, plus,
// space
var InvalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// NewJobID generates a unique job identifier
func NewJobID() JobID {
	return JobID(uuid.NewString())
}

// SanitizeID lowercases an ID, removes invalid characters, replaces spaces
// with hyphens, and trims leading and trailing hyphens
func SanitizeID[T ~string](id T) T {
	lower := strings.ToLower(string(id))
	sanitized := InvalidIDChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}
