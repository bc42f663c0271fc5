package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline's failure taxonomy. Callers distinguish
// "the knowledge service is down" from "the language model is producing
// garbage" via errors.Is on these.
var (
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrGenerationUnparseable = errors.New("generation unparseable")
)

// SchemaError reports the first schema-contract check a candidate decision
// failed. No partial success: one reason, checked in a fixed order.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decision schema: %s", e.Reason)
	}
	return fmt.Sprintf("decision schema: %s: %s", e.Field, e.Reason)
}

// NewSchemaError creates a SchemaError for a field.
func NewSchemaError(field, format string, args ...any) *SchemaError {
	return &SchemaError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsSchemaError reports whether err is (or wraps) a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
