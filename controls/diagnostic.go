package controls

import (
	"errors"
	"fmt"
)

// ErrMalformedStatement marks a [CONTROLS] line that does not match the
// supported grammar. The line is skipped; remaining lines are still parsed.
var ErrMalformedStatement = errors.New("malformed control statement")

// ErrUnknownComponentKind marks a statement that references a component the
// network model does not declare, or declares with a non-controllable kind.
// The rule is dropped; classification of the remaining statements continues.
var ErrUnknownComponentKind = errors.New("unknown component kind")

// A Diagnostic records one problem found while building rules, pointing back
// at the INP file line that caused it. Diagnostics are accumulated so a user
// sees every problem in one pass.
type Diagnostic struct {
	Line int
	Err  error
}

func (d Diagnostic) Error() string {
	if d.Line == 0 {
		return d.Err.Error()
	}

	return fmt.Sprintf("line %d: %v", d.Line, d.Err)
}

// Unwrap exposes the underlying cause so callers can test against
// ErrMalformedStatement and ErrUnknownComponentKind with errors.Is.
func (d Diagnostic) Unwrap() error {
	return d.Err
}

// DiagnosticFor builds a diagnostic of a given kind that is not tied to a
// source line, such as one raised against a configuration record.
func DiagnosticFor(kind error, format string, args ...any) Diagnostic {
	cause := fmt.Errorf(format, args...)

	return Diagnostic{Err: fmt.Errorf("%w: %v", kind, cause)}
}

func malformed(line int, format string, args ...any) Diagnostic {
	cause := fmt.Errorf(format, args...)

	return Diagnostic{
		Line: line,
		Err:  fmt.Errorf("%w: %v", ErrMalformedStatement, cause),
	}
}

func unknownKind(line int, format string, args ...any) Diagnostic {
	cause := fmt.Errorf(format, args...)

	return Diagnostic{
		Line: line,
		Err:  fmt.Errorf("%w: %v", ErrUnknownComponentKind, cause),
	}
}
