package sequencer

import (
	"errors"
	"fmt"
)

// ErrEmptyPool is returned when sequencing is requested on zero questions.
var ErrEmptyPool = errors.New("sequencer: empty question pool")

// ConfigurationError reports an invalid randomization config. It is surfaced
// to the caller and never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid randomization config: %s: %s", e.Field, e.Reason)
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NewConfigurationError is used by collaborators (e.g. the answer permuter
// bounds check) that discover config problems outside Validate.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

type ViolationKind string

const (
	ViolationAnchor      ViolationKind = "anchor"
	ViolationBefore      ViolationKind = "before"
	ViolationNotAdjacent ViolationKind = "not_adjacent"
)

// Violation is a constraint the sequencer could not honor. It is reported
// alongside a best-effort ordering, never returned as an error.
type Violation struct {
	Kind      ViolationKind `json:"kind"`
	Rule      int           `json:"rule"` // index into BlockingRules; -1 for anchors
	Questions []string      `json:"questions,omitempty"`
	Detail    string        `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
}
