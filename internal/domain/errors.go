package domain

import (
	"errors"
	"fmt"
)

// ErrNumericDegenerate marks clustering failures caused by the data rather
// than the configuration: zero spread, NaN coordinates, too few distinct
// points. Callers recover from it with a fallback labeling.
var ErrNumericDegenerate = errors.New("numeric degenerate input")

// ErrOutOfRange is returned when a record fails range validation.
var ErrOutOfRange = errors.New("value out of range")

// InvalidParameterError reports a caller configuration mistake. It is never
// retried or recovered.
type InvalidParameterError struct {
	Param  string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Param, e.Value, e.Reason)
}

// IsInvalidParameter reports whether err wraps an *InvalidParameterError.
func IsInvalidParameter(err error) bool {
	var target *InvalidParameterError
	return errors.As(err, &target)
}
