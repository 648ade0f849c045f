package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njs-go/njs/internal/ast"
	"github.com/njs-go/njs/internal/token"
)

func TestIndexPacksRegionDepthOffset(t *testing.T) {
	idx := NewClosureIndex(3, 42)
	assert.Equal(t, RegionClosure, idx.Region())
	assert.Equal(t, uint8(3), idx.Depth())
	assert.Equal(t, uint32(42), idx.Offset())

	g := NewGlobalIndex(7)
	assert.Equal(t, RegionGlobal, g.Region())
	assert.Equal(t, uint32(7), g.Offset())
}

func TestDeclareVarVarIsCompatible(t *testing.T) {
	s := New()
	r1 := s.Declare("x", DeclVar, 1)
	require.False(t, r1.Conflict)
	r2 := s.Declare("x", DeclVar, 2)
	require.False(t, r2.Conflict)
	assert.Same(t, r1.Variable, r2.Variable)
}

func TestDeclareLetLetIsConflict(t *testing.T) {
	s := New()
	s.Declare("x", DeclLet, 1)
	r2 := s.Declare("x", DeclLet, 2)
	assert.True(t, r2.Conflict)
}

func TestDeclareVarThenFunctionUpgradesKind(t *testing.T) {
	s := New()
	s.Declare("f", DeclVar, 1)
	r := s.Declare("f", DeclFunction, 2)
	require.False(t, r.Conflict)
	assert.Equal(t, DeclFunction, r.Variable.Kind)
}

func TestDeclareHoistedTargetsFunctionScope(t *testing.T) {
	global := New()
	fn := global.NewChild(Function)
	block := fn.NewChild(Block)

	res := block.DeclareHoisted("x", 1)
	require.False(t, res.Conflict)
	assert.Same(t, fn, block.Lookup("x"))
	assert.Nil(t, global.declarations["x"])
}

func TestNewChildIncrementsNestingDepthOnlyForFunction(t *testing.T) {
	global := New()
	fn := global.NewChild(Function)
	block := fn.NewChild(Block)
	assert.Equal(t, uint8(1), fn.NestingDepth)
	assert.Equal(t, uint8(1), block.NestingDepth)
}

func TestNewChildCapsNestingDepthAtMax(t *testing.T) {
	s := New()
	for i := 0; i < MaxNestingDepth+5; i++ {
		s = s.NewChild(Function)
	}
	assert.Equal(t, uint8(MaxNestingDepth), s.NestingDepth)
}

func TestResolverAllocatesLocalsInDeclarationOrder(t *testing.T) {
	global := New()
	fn := global.NewChild(Function)
	fn.Declare("a", DeclVar, 1)
	fn.Declare("b", DeclVar, 2)

	r := NewResolver(global)
	r.Run()

	a := fn.declarations["a"]
	b := fn.declarations["b"]
	assert.Equal(t, uint32(0), a.Index.Offset())
	assert.Equal(t, uint32(1), b.Index.Offset())
}

func TestResolverResolvesSameFunctionReferenceWithoutClosureDepth(t *testing.T) {
	global := New()
	fn := global.NewChild(Function)
	fn.Declare("x", DeclVar, 1)

	ref := ast.New(token.AST_IDENTIFIER, 1)
	ref.Name = "x"
	fn.AddReference(ref)

	NewResolver(global).Run()

	v, ok := ref.Ref.(*Variable)
	require.True(t, ok)
	assert.Equal(t, RegionLocal, v.Index.Region())
}

func TestResolverResolvesClosureCaptureWithDepth(t *testing.T) {
	global := New()
	outer := global.NewChild(Function)
	outer.Declare("x", DeclVar, 1)
	inner := outer.NewChild(Function)

	ref := ast.New(token.AST_IDENTIFIER, 2)
	ref.Name = "x"
	inner.AddReference(ref)

	NewResolver(global).Run()

	v, ok := ref.Ref.(*Variable)
	require.True(t, ok)
	assert.Equal(t, RegionClosure, v.Index.Region())
	assert.True(t, outer.hasClosureCapturedChildren)
}

func TestResolverMissCreatesImplicitGlobal(t *testing.T) {
	global := New()
	fn := global.NewChild(Function)

	ref := ast.New(token.AST_IDENTIFIER, 3)
	ref.Name = "undeclaredThing"
	fn.AddReference(ref)

	NewResolver(global).Run()

	v, ok := ref.Ref.(*Variable)
	require.True(t, ok)
	assert.Equal(t, RegionGlobal, v.Index.Region())
	assert.Same(t, v, global.declarations["undeclaredThing"])
}

func TestSuggestNameFindsClosestTypo(t *testing.T) {
	global := New()
	global.Declare("length", DeclVar, 1)
	global.Declare("width", DeclVar, 1)

	got := SuggestName(global, "lenght")
	assert.Equal(t, "length", got)
}

func TestUnresolvedErrorMessageIncludesSuggestion(t *testing.T) {
	err := &UnresolvedError{Name: "fooo", Line: 5, Suggestion: "foo"}
	assert.Contains(t, err.Error(), "fooo")
	assert.Contains(t, err.Error(), "foo")
	assert.Contains(t, err.Error(), "line 5")
}
