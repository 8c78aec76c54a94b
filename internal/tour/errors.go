package tour

import (
	"fmt"
	"math"
)

// FieldError describes a validation failure on a single input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when input is rejected before any state is
// read or written.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s %s", e.Errors[0].Field, e.Errors[0].Message)
}

func validatePosition(p Position, prefix string) []FieldError {
	var errs []FieldError
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		errs = append(errs, FieldError{Field: prefix + "latitude", Message: "must be between -90 and 90"})
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		errs = append(errs, FieldError{Field: prefix + "longitude", Message: "must be between -180 and 180"})
	}
	return errs
}
