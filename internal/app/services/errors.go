// Package services holds types shared by the marketplace services.
package services

import "fmt"

// ValidationError marks a request rejected by input validation. Handlers
// treat it as a client error; anything else that is not a known sentinel
// is a server fault.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Invalidf builds a ValidationError with a caller-facing message.
func Invalidf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
