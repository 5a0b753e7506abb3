package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every package of the analyzer. Callers match them
// with errors.Is; producers wrap them with context via fmt.Errorf("...: %w").
var (
	// ErrFormat is returned for malformed chain notation, column identifiers
	// or template fields.
	ErrFormat = errors.New("malformed input")

	// ErrTracerAbsent is returned when the tracer element does not occur in
	// the resolved composition.
	ErrTracerAbsent = errors.New("tracer element absent from formula")

	// ErrSizeMismatch is returned when declared and detected sizes disagree
	// (standards, samples, or a correction matrix narrower than the data).
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrInsufficientData is returned when fewer than three usable
	// calibration points remain for a cluster.
	ErrInsufficientData = errors.New("insufficient calibration data")

	// ErrStructure is returned when an assay does not yield the expected
	// number of parental ion groups.
	ErrStructure = errors.New("unexpected cluster structure")

	// ErrUnknownElement is returned for element symbols outside the
	// isotope abundance table.
	ErrUnknownElement = errors.New("unknown element")

	// ErrInvalidPurity is returned for tracer purity vectors that are not a
	// probability distribution of at least two states.
	ErrInvalidPurity = errors.New("invalid tracer purity")

	// ErrReferenceNotFound is returned when the internal reference does not
	// match any resolved cluster.
	ErrReferenceNotFound = errors.New("internal reference not found")
)

// ValidationError represents an error found while validating a template,
// configuration or other user supplied record.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrFormat) match validation failures.
func (e *ValidationError) Unwrap() error {
	return ErrFormat
}
