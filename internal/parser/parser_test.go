package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njs-go/njs/internal/scope"
	"github.com/njs-go/njs/internal/token"
)

func mustParse(t *testing.T, src string) *Result {
	t.Helper()
	res, err := Parse(src, "test.js")
	require.NoError(t, err)
	return res
}

func TestVarDeclHoistsIntoFunctionScope(t *testing.T) {
	res := mustParse(t, "function f() { if (true) { var x = 1; } return x; }")
	require.Len(t, res.Program.Body, 1)
	fn := res.Program.Body[0]
	require.Equal(t, token.AST_FUNCTION, fn.Tag)
}

func TestForStatementNoInDisambiguation(t *testing.T) {
	// Without NoIn handling this would try to parse `a in b` as a
	// relational expression inside the for-init clause and never see
	// the `in` keyword that signals a for-in loop.
	res := mustParse(t, "for (var k in obj) { use(k); }")
	require.Len(t, res.Program.Body, 1)
	assert.Equal(t, token.AST_FOR_IN, res.Program.Body[0].Tag)
}

func TestForStatementOrdinaryInitStillParses(t *testing.T) {
	res := mustParse(t, "for (var i = 0; i < 10; i++) { sum += i; }")
	require.Len(t, res.Program.Body, 1)
	assert.Equal(t, token.AST_FOR, res.Program.Body[0].Tag)
}

func TestArrowFunctionVsParenExpr(t *testing.T) {
	res := mustParse(t, "const f = (a, b) => a + b; const g = (a + b);")
	require.Len(t, res.Program.Body, 2)
	decl1 := res.Program.Body[0]
	require.Equal(t, token.AST_VAR_DECL, decl1.Tag)
	init1 := decl1.Body[0].Left
	require.NotNil(t, init1)
	assert.Equal(t, token.AST_ARROW, init1.Tag)

	decl2 := res.Program.Body[1]
	init2 := decl2.Body[0].Left
	require.NotNil(t, init2)
	assert.Equal(t, token.AST_BINARY, init2.Tag)
}

func TestSingleIdentifierArrowParam(t *testing.T) {
	res := mustParse(t, "const id = x => x;")
	decl := res.Program.Body[0]
	init := decl.Body[0].Left
	require.Equal(t, token.AST_ARROW, init.Tag)
	require.Len(t, init.Args, 1)
}

func TestOptionalChaining(t *testing.T) {
	res := mustParse(t, "a?.b?.[c];")
	expr := res.Program.Body[0].Left
	require.Equal(t, token.AST_OPTIONAL_MEMBER, expr.Tag)
	assert.True(t, expr.Computed)
	require.Equal(t, token.AST_OPTIONAL_MEMBER, expr.Left.Tag)
	assert.Equal(t, "b", expr.Left.Name)
}

func TestRegexVsDivisionDisambiguation(t *testing.T) {
	res := mustParse(t, "let re = /abc/g; let q = a / b / c;")
	decl1 := res.Program.Body[0]
	init1 := decl1.Body[0].Left
	require.Equal(t, token.AST_REGEX, init1.Tag)

	decl2 := res.Program.Body[1]
	init2 := decl2.Body[0].Left
	require.Equal(t, token.AST_BINARY, init2.Tag)
}

func TestTemplateLiteralParts(t *testing.T) {
	res := mustParse(t, "let s = `a${x}b${y}c`;")
	decl := res.Program.Body[0]
	init := decl.Body[0].Left
	require.Equal(t, token.AST_TEMPLATE, init.Tag)
	// 3 string chunks + 2 interpolated expressions.
	assert.Len(t, init.Parts, 5)
}

func TestTryCatchFinally(t *testing.T) {
	res := mustParse(t, "try { risky(); } catch (e) { handle(e); } finally { cleanup(); }")
	require.Equal(t, token.AST_TRY, res.Program.Body[0].Tag)
}

func TestSwitchStatement(t *testing.T) {
	res := mustParse(t, "switch (x) { case 1: a(); break; default: b(); }")
	n := res.Program.Body[0]
	require.Equal(t, token.AST_SWITCH, n.Tag)
	assert.Len(t, n.Body, 2)
}

func TestObjectLiteralWithReservedWordKeysAndShorthandMethod(t *testing.T) {
	res := mustParse(t, "let o = { if: 1, class: 2, greet() { return 1; } };")
	decl := res.Program.Body[0]
	init := decl.Body[0].Left
	require.Equal(t, token.AST_OBJECT, init.Tag)
	assert.Len(t, init.Parts, 3)
}

func TestDuplicateProtoKeyIsSyntaxError(t *testing.T) {
	_, err := Parse("let o = { __proto__: 1, __proto__: 2 };", "test.js")
	assert.Error(t, err)
}

func TestExponentiationRejectsUnparenthesizedUnaryLHS(t *testing.T) {
	_, err := Parse("let x = -a ** b;", "test.js")
	assert.Error(t, err)
}

func TestReturnNoLineTerminatorHere(t *testing.T) {
	// `return\n1` must insert a semicolon after `return`, so the
	// function's return has no argument and `1` is a separate statement.
	res := mustParse(t, "function f() {\n  return\n  1;\n}")
	fn := res.Program.Body[0]
	ret := fn.Body[0]
	require.Equal(t, token.AST_RETURN, ret.Tag)
	assert.Nil(t, ret.Left)
}

func TestFunctionArgumentsResolveWithoutBecomingImplicitGlobal(t *testing.T) {
	res := mustParse(t, "function f() { return arguments.length; }")
	scope.NewResolver(res.Global).Run()
	fn := res.Program.Body[0]
	ret := fn.Body[0]
	member := ret.Left
	require.Equal(t, token.AST_MEMBER, member.Tag)
	argsRef := member.Left
	require.Equal(t, token.AST_IDENTIFIER, argsRef.Tag)
	require.NotNil(t, argsRef.Ref)
	v, ok := argsRef.Ref.(*scope.Variable)
	require.True(t, ok)
	assert.True(t, v.Arguments, "arguments must resolve to the function's own synthesized pseudo-binding, not an implicit global")
}
