package diag

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njs-go/njs/internal/bytecode"
	"github.com/njs-go/njs/internal/parser"
	"github.com/njs-go/njs/internal/scope"
)

func compileFor(t *testing.T, src string) (*bytecode.Chunk, *parser.Result) {
	t.Helper()
	res, err := parser.Parse(src, "diag.js")
	require.NoError(t, err)
	scope.NewResolver(res.Global).Run()
	chunk, err := bytecode.New("diag.js").Generate(res.Program, res.Global)
	require.NoError(t, err)
	return chunk, res
}

func TestDisassembleListsInstructionsWithMnemonics(t *testing.T) {
	chunk, _ := compileFor(t, "let x = 1 + 2;")
	out := Disassemble(chunk)
	assert.Contains(t, out, "function <main>")
	assert.Contains(t, out, "LOAD_CONST")
	assert.Contains(t, out, "line 1")
}

func TestDumpASTRoundTripsProgramShape(t *testing.T) {
	_, res := compileFor(t, "let x = 1;")
	out, err := DumpAST(res.Program)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	var decoded map[string]any
	require.NoError(t, cbor.Unmarshal(out, &decoded))
	assert.Equal(t, "AST_PROGRAM", decoded["tag"])
}

func TestDumpBytecodeRoundTripsLambdaShape(t *testing.T) {
	chunk, _ := compileFor(t, "function f(a) { return a; }")
	out, err := DumpBytecode(chunk)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, cbor.Unmarshal(out, &decoded))
	assert.Equal(t, "<main>", decoded["name"])
}
