package calc

import "fmt"

// ErrKind classifies calculator failures so the composer can render
// targeted help per sub-kind.
type ErrKind string

const (
	ErrDivisionByZero    ErrKind = "division_by_zero"
	ErrInvalidExpression ErrKind = "invalid_expression"
	ErrInvalidResult     ErrKind = "invalid_result"
	ErrNotACalculation   ErrKind = "not_a_calculation"
	ErrOutOfRange        ErrKind = "out_of_range"
)

// Error is a tagged calculator failure.
type Error struct {
	Kind    ErrKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("calc: %s: %s", e.Kind, e.Message)
}

func errf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, defaulting to ErrInvalidExpression for
// foreign errors.
func KindOf(err error) ErrKind {
	if ce, ok := err.(*Error); ok {
		return ce.Kind
	}
	return ErrInvalidExpression
}
