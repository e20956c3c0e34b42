package calc

import (
	"math"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
)

// The numeric evaluator compiles the sanitised expression with cel-go in an
// empty environment: no variables, no macros, no functions beyond the
// arithmetic operators. All literals are promoted to doubles first so that
// division behaves like calculator division, not integer division.

var (
	allowedExprRe  = regexp.MustCompile(`^[0-9+\-*/(). %]+$`)
	numberRe       = regexp.MustCompile(`\d+\.\d+|\d+`)
	percentLitRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	zeroDivisorRe  = regexp.MustCompile(`/\s*0+(?:\.0+)?\s*(?:[^\d.]|$)`)
	resultAbsLimit = 1e12
)

func evalArithmetic(expr string) (float64, *Error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, errf(ErrNotACalculation, "empty expression")
	}
	if !allowedExprRe.MatchString(expr) {
		return 0, errf(ErrInvalidExpression, "expression contains characters outside the arithmetic whitelist")
	}
	if zeroDivisorRe.MatchString(expr) {
		return 0, errf(ErrDivisionByZero, "division by zero in %q", expr)
	}

	// "25%" reads as a percentage literal; a bare % between numbers is not
	// supported and fails compilation below.
	sanitised := percentLitRe.ReplaceAllString(expr, "($1*0.01)")
	sanitised = numberRe.ReplaceAllStringFunc(sanitised, func(n string) string {
		if strings.Contains(n, ".") {
			return n
		}
		return n + ".0"
	})

	env, err := cel.NewEnv()
	if err != nil {
		return 0, errf(ErrInvalidExpression, "evaluator init: %v", err)
	}
	ast, issues := env.Compile(sanitised)
	if issues != nil && issues.Err() != nil {
		return 0, errf(ErrInvalidExpression, "cannot parse %q", expr)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return 0, errf(ErrInvalidExpression, "cannot evaluate %q", expr)
	}
	out, _, err := prg.Eval(map[string]any{})
	if err != nil {
		if strings.Contains(err.Error(), "divide by zero") {
			return 0, errf(ErrDivisionByZero, "division by zero in %q", expr)
		}
		return 0, errf(ErrInvalidExpression, "cannot evaluate %q", expr)
	}

	v, ok := out.Value().(float64)
	if !ok {
		if i, isInt := out.Value().(int64); isInt {
			v = float64(i)
		} else {
			return 0, errf(ErrInvalidResult, "non-numeric result for %q", expr)
		}
	}
	switch {
	case math.IsNaN(v):
		return 0, errf(ErrInvalidResult, "result of %q is not a number", expr)
	case math.IsInf(v, 0):
		if strings.Contains(expr, "/") {
			return 0, errf(ErrDivisionByZero, "division by zero in %q", expr)
		}
		return 0, errf(ErrOutOfRange, "result of %q overflows", expr)
	case math.Abs(v) > resultAbsLimit:
		return 0, errf(ErrOutOfRange, "result of %q exceeds the supported range", expr)
	}
	return v, nil
}
