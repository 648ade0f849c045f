package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringKnownPunctuatorAndKeyword(t *testing.T) {
	assert.Equal(t, "+", PLUS.String())
	assert.Equal(t, "function", FUNCTION.String())
}

func TestStringASTTagsAreNamedNotNumeric(t *testing.T) {
	assert.Equal(t, "AST_PROGRAM", AST_PROGRAM.String())
	assert.Equal(t, "AST_BINARY", AST_BINARY.String())
	assert.Equal(t, "AST_IDENTIFIER", AST_IDENTIFIER.String())
}

func TestStringUnknownTypeFallsBackToNumeric(t *testing.T) {
	unknown := Type(250)
	assert.Equal(t, "Type(250)", unknown.String())
}

func TestUnsupportedRejectsReservedGrammarStubs(t *testing.T) {
	assert.True(t, Unsupported(CLASS))
	assert.True(t, Unsupported(YIELD))
	assert.False(t, Unsupported(FUNCTION))
}
