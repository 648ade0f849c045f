package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njs-go/njs/internal/parser"
	"github.com/njs-go/njs/internal/scope"
)

func generateFor(t *testing.T, src string) *Chunk {
	t.Helper()
	res, err := parser.Parse(src, "gen_test.js")
	require.NoError(t, err)
	scope.NewResolver(res.Global).Run()
	chunk, err := New("gen_test.js").Generate(res.Program, res.Global)
	require.NoError(t, err)
	return chunk
}

func TestGenerateEmitsFinalReturnUndef(t *testing.T) {
	chunk := generateFor(t, "1 + 1;")
	last := chunk.Main.Code[len(chunk.Main.Code)-1]
	assert.Equal(t, OpReturnUndef, last.Op)
}

func TestGenerateExportDefaultEmitsReturn(t *testing.T) {
	chunk := generateFor(t, "export default 1 + 1;")
	ops := opsOf(chunk.Main)
	assert.Contains(t, ops, OpReturn)
}

func TestConstantPoolDeduplicatesRepeatedLiterals(t *testing.T) {
	chunk := generateFor(t, "export default 5 + 5 + 5;")
	assert.LessOrEqual(t, len(chunk.Main.Constants), 1, "repeated literal 5 should share one constant pool slot")
}

func TestNestedFunctionBecomesChildLambda(t *testing.T) {
	chunk := generateFor(t, "function f(a) { return a; } f(1);")
	require.Len(t, chunk.Main.Lambdas, 1)
	assert.Equal(t, "f", chunk.Main.Lambdas[0].Name)
	assert.Equal(t, 1, chunk.Main.Lambdas[0].ParamCount)
}

func TestChunkNumGlobalsMatchesTopLevelDeclarationCount(t *testing.T) {
	chunk := generateFor(t, "var a = 1; var b = 2; var c = 3;")
	assert.Equal(t, 3, chunk.NumGlobals)
}

func TestIfStatementEmitsConditionalJump(t *testing.T) {
	chunk := generateFor(t, "if (true) { 1; } else { 2; }")
	ops := opsOf(chunk.Main)
	assert.Contains(t, ops, OpJumpIfFalse)
	assert.Contains(t, ops, OpJump)
}

func opsOf(l *Lambda) []Op {
	ops := make([]Op, len(l.Code))
	for i, instr := range l.Code {
		ops[i] = instr.Op
	}
	return ops
}
