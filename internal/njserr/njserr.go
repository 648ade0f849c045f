// Package njserr implements the two-layer error taxonomy of spec.md §7:
// Go-level host-facing errors (CompileError/RuntimeError) with
// Rust/Clang-style snippet rendering, and the JS-level thrown-error name
// constants (SyntaxError, ReferenceError, TypeError, RangeError, URIError,
// InternalError, EvalError) that internal/vm constructs as thrown Objects.
package njserr

import (
	"fmt"
	"strings"
)

// Name is one of the JS-visible Error constructor names (spec.md §7).
type Name string

const (
	SyntaxError    Name = "SyntaxError"
	ReferenceError Name = "ReferenceError"
	TypeError      Name = "TypeError"
	RangeError     Name = "RangeError"
	URIError       Name = "URIError"
	InternalError  Name = "InternalError"
	EvalError      Name = "EvalError"
)

// CompileError is a host-facing diagnostic produced by the lexer, parser,
// or scope resolver, rendered with a Rust/Clang-style snippet: a `-->`
// location line, a gutter `|`, and a caret under the offending span.
type CompileError struct {
	File    string
	Line    int
	Column  int
	Message string
	Source  string // the offending source line, for snippet rendering
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "error: %s\n", e.Message)
	fmt.Fprintf(&b, "  --> %s:%d:%d\n", displayFile(e.File), e.Line, e.Column)
	if e.Source != "" {
		fmt.Fprintf(&b, "   |\n")
		fmt.Fprintf(&b, "%3d| %s\n", e.Line, e.Source)
		fmt.Fprintf(&b, "   | %s^\n", strings.Repeat(" ", max0(e.Column-1)))
	}
	return b.String()
}

// RuntimeError is a host-facing wrapper around an uncaught JS-level throw,
// carrying the rendered stack trace text (spec.md §7 "lazy stack-string
// attachment": the text is only built the first time Error() is called).
type RuntimeError struct {
	Name    Name
	Message string
	stackFn func() string
	stack   string
	built   bool
}

func NewRuntimeError(name Name, message string, stackFn func() string) *RuntimeError {
	return &RuntimeError{Name: name, Message: message, stackFn: stackFn}
}

func (e *RuntimeError) Stack() string {
	if !e.built {
		if e.stackFn != nil {
			e.stack = e.stackFn()
		}
		e.built = true
	}
	return e.stack
}

func (e *RuntimeError) Error() string {
	if e.Message == "" {
		return string(e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func displayFile(f string) string {
	if f == "" {
		return "<input>"
	}
	return f
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
