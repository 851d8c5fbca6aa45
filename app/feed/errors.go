package feed

import (
	"fmt"
	"strings"
)

type ParseError struct {
	Diagnostics []string
}

func (e *ParseError) Error() string {
	if len(e.Diagnostics) == 0 {
		return "payload could not be parsed"
	}
	return fmt.Sprintf("payload could not be parsed: %s", strings.Join(e.Diagnostics, "; "))
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
