package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njs-go/njs/internal/bytecode"
	"github.com/njs-go/njs/internal/parser"
	"github.com/njs-go/njs/internal/scope"
	"github.com/njs-go/njs/internal/value"
)

// run compiles and executes src as a module-shaped unit: a top-level
// script's expression statements are always popped (spec.md §4.5 "the
// Program's Main lambda returns undefined unless the source ends in
// `export default`"), so tests that need the final value to come back
// out of RunMain write it as an explicit default export.
func run(t *testing.T, src string) (value.Value, error) {
	t.Helper()
	res, err := parser.Parse(src, "vm_test.js")
	require.NoError(t, err)
	scope.NewResolver(res.Global).Run()
	chunk, err := bytecode.New("vm_test.js").Generate(res.Program, res.Global)
	require.NoError(t, err)
	m := New(chunk.NumGlobals)
	return m.RunMain(chunk)
}

func mustRun(t *testing.T, src string) value.Value {
	t.Helper()
	v, err := run(t, src)
	require.NoError(t, err)
	return v
}

func TestArithmeticPrecedence(t *testing.T) {
	v := mustRun(t, "export default 2 + 3 * 4;")
	assert.Equal(t, float64(14), v.Num)
}

func TestGlobalVarAssignmentAndReadback(t *testing.T) {
	v := mustRun(t, "var x = 10; x = x + 5; export default x;")
	assert.Equal(t, float64(15), v.Num)
}

func TestIfElseBranching(t *testing.T) {
	v := mustRun(t, "let x; if (1 < 2) { x = 'yes'; } else { x = 'no'; } export default x;")
	assert.Equal(t, "yes", v.Str)
}

func TestWhileLoopAccumulates(t *testing.T) {
	v := mustRun(t, "let sum = 0; let i = 0; while (i < 5) { sum = sum + i; i = i + 1; } export default sum;")
	assert.Equal(t, float64(10), v.Num)
}

func TestFunctionCallAndReturn(t *testing.T) {
	v := mustRun(t, "function add(a, b) { return a + b; } export default add(3, 4);")
	assert.Equal(t, float64(7), v.Num)
}

func TestClosureCapturesOuterVariable(t *testing.T) {
	v := mustRun(t, `
		function makeCounter() {
			let count = 0;
			return function() { count = count + 1; return count; };
		}
		let counter = makeCounter();
		counter();
		counter();
		export default counter();
	`)
	assert.Equal(t, float64(3), v.Num)
}

func TestArrayLiteralAndIndexing(t *testing.T) {
	v := mustRun(t, "let arr = [1, 2, 3]; export default arr[1];")
	assert.Equal(t, float64(2), v.Num)
}

func TestObjectLiteralPropertyAccess(t *testing.T) {
	v := mustRun(t, "let o = { a: 1, b: 2 }; export default o.a + o.b;")
	assert.Equal(t, float64(3), v.Num)
}

func TestTryCatchCapturesThrownValue(t *testing.T) {
	v := mustRun(t, `
		let result;
		try {
			throw 'boom';
		} catch (e) {
			result = e;
		}
		export default result;
	`)
	assert.Equal(t, "boom", v.Str)
}

func TestUncaughtThrowPropagatesAsError(t *testing.T) {
	_, err := run(t, "throw 'oops';")
	require.Error(t, err)
	tv, ok := err.(*ThrownValue)
	require.True(t, ok)
	assert.Equal(t, "oops", tv.Value.Str)
}

func TestTypeErrorOnCallingNonFunction(t *testing.T) {
	_, err := run(t, "let x = 1; x();")
	require.Error(t, err)
	tv, ok := err.(*ThrownValue)
	require.True(t, ok)
	assert.Equal(t, value.ErrorKind, tv.Value.Kind)
	assert.Equal(t, "TypeError", tv.Value.Obj.ErrorName)
}

func TestPropertyReadOnNullThrowsTypeError(t *testing.T) {
	v := mustRun(t, `
		let result;
		try {
			null.x;
		} catch (e) {
			result = e.name + ':' + e.message.split(' ')[0];
		}
		export default result;
	`)
	assert.Equal(t, "TypeError:Cannot", v.Str)
}

func TestPropertyReadOnUndefinedThrowsTypeError(t *testing.T) {
	_, err := run(t, "let u; u.x;")
	require.Error(t, err)
	tv, ok := err.(*ThrownValue)
	require.True(t, ok)
	assert.Equal(t, value.ErrorKind, tv.Value.Kind)
	assert.Equal(t, "TypeError", tv.Value.Obj.ErrorName)
}

func TestIndexedPropertyReadOnNullThrowsTypeError(t *testing.T) {
	_, err := run(t, "let n = null; n[0];")
	require.Error(t, err)
	tv, ok := err.(*ThrownValue)
	require.True(t, ok)
	assert.Equal(t, "TypeError", tv.Value.Obj.ErrorName)
}

func TestPropertyWriteOnUndefinedThrowsTypeError(t *testing.T) {
	_, err := run(t, "let u; u.x = 1;")
	require.Error(t, err)
	tv, ok := err.(*ThrownValue)
	require.True(t, ok)
	assert.Equal(t, "TypeError", tv.Value.Obj.ErrorName)
}

func TestRecursiveFunctionCall(t *testing.T) {
	v := mustRun(t, `
		function fact(n) { return n <= 1 ? 1 : n * fact(n - 1); }
		export default fact(5);
	`)
	assert.Equal(t, float64(120), v.Num)
}

func TestBindGlobalAndLoadGlobalRoundtrip(t *testing.T) {
	res, err := parser.Parse("var x;", "bindtest.js")
	require.NoError(t, err)
	scope.NewResolver(res.Global).Run()
	chunk, err := bytecode.New("bindtest.js").Generate(res.Program, res.Global)
	require.NoError(t, err)

	m := New(chunk.NumGlobals)
	sc := res.Global.Lookup("x")
	require.NotNil(t, sc)
	decl := sc.Declare("x", scope.DeclVar, 0)
	require.NotNil(t, decl.Variable)

	m.BindGlobal(decl.Variable.Index, value.Num(99))
	assert.Equal(t, float64(99), m.LoadGlobal(decl.Variable.Index).Num)
}
