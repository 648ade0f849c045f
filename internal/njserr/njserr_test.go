package njserr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileErrorRendersSnippetWithCaret(t *testing.T) {
	err := &CompileError{
		File:    "a.js",
		Line:    3,
		Column:  5,
		Message: "unexpected token",
		Source:  "  x +;",
	}
	msg := err.Error()
	assert.Contains(t, msg, "unexpected token")
	assert.Contains(t, msg, "a.js:3:5")
	assert.Contains(t, msg, "  x +;")
	assert.Contains(t, msg, "   | "+"    ^")
}

func TestCompileErrorDisplaysPlaceholderForEmptyFile(t *testing.T) {
	err := &CompileError{Line: 1, Column: 1, Message: "x"}
	assert.Contains(t, err.Error(), "<input>:1:1")
}

func TestRuntimeErrorFormatsNameAndMessage(t *testing.T) {
	err := NewRuntimeError(TypeError, "x is not a function", nil)
	assert.Equal(t, "TypeError: x is not a function", err.Error())
}

func TestRuntimeErrorWithoutMessageOmitsColon(t *testing.T) {
	err := NewRuntimeError(RangeError, "", nil)
	assert.Equal(t, "RangeError", err.Error())
}

func TestRuntimeErrorStackIsBuiltLazilyAndCachedOnce(t *testing.T) {
	calls := 0
	err := NewRuntimeError(InternalError, "oops", func() string {
		calls++
		return "stack trace text"
	})
	assert.Equal(t, "stack trace text", err.Stack())
	assert.Equal(t, "stack trace text", err.Stack())
	assert.Equal(t, 1, calls, "stackFn must only run once, on first Stack() call")
}
