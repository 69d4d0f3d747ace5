package parser

import "fmt"

// MalformedTraceError reports a trace line that is not a valid episode record.
type MalformedTraceError struct {
	Line int // 1-based
	Err  error
}

func (e *MalformedTraceError) Error() string {
	return fmt.Sprintf("malformed trace at line %d: %v", e.Line, e.Err)
}

func (e *MalformedTraceError) Unwrap() error {
	return e.Err
}
