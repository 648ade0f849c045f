package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	assert.False(t, Undef().Truthy())
	assert.False(t, NullV().Truthy())
	assert.False(t, Num(0).Truthy())
	assert.False(t, Num(math.NaN()).Truthy())
	assert.False(t, Str("").Truthy())
	assert.True(t, Num(1).Truthy())
	assert.True(t, Str("x").Truthy())
	assert.True(t, Bool(true).Truthy())
}

func TestToNumber(t *testing.T) {
	assert.Equal(t, float64(1), Bool(true).ToNumber())
	assert.Equal(t, float64(0), Bool(false).ToNumber())
	assert.Equal(t, float64(0), NullV().ToNumber())
	assert.True(t, math.IsNaN(Undef().ToNumber()))
	assert.Equal(t, float64(42), Str(" 42 ").ToNumber())
	assert.True(t, math.IsNaN(Str("abc").ToNumber()))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "42", Num(42).ToString())
	assert.Equal(t, "NaN", Num(math.NaN()).ToString())
	assert.Equal(t, "Infinity", Num(math.Inf(1)).ToString())
	assert.Equal(t, "true", Bool(true).ToString())
	assert.Equal(t, "null", NullV().ToString())
	assert.Equal(t, "undefined", Undef().ToString())
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, "undefined", Undef().TypeOf())
	assert.Equal(t, "object", NullV().TypeOf())
	assert.Equal(t, "number", Num(1).TypeOf())
	assert.Equal(t, "string", Str("x").TypeOf())
	assert.Equal(t, "boolean", Bool(true).TypeOf())
}

func TestObjectGetSetRoundtrips(t *testing.T) {
	o := NewObject(nil)
	o.Set("x", Num(10))
	v, ok := o.Get("x")
	require.True(t, ok)
	assert.Equal(t, float64(10), v.Num)
}

func TestObjectGetWalksPrototypeChain(t *testing.T) {
	proto := NewObject(nil)
	proto.Set("greeting", Str("hi"))
	child := NewObject(proto)

	v, ok := child.Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "hi", v.Str)
}

func TestObjectDeleteShadowsInheritedPropertyWithWhiteout(t *testing.T) {
	proto := NewObject(nil)
	proto.Set("x", Num(1))
	child := NewObject(proto)
	child.Set("x", Num(2))

	ok := child.Delete("x")
	require.True(t, ok)

	// The child's own "x" is gone, but the prototype's "x" must not be
	// visible again: Delete marks a WHITEOUT instead of just removing the
	// own entry when a prototype value of the same name exists.
	_, found := child.Get("x")
	assert.False(t, found)

	protoVal, protoFound := proto.Get("x")
	require.True(t, protoFound)
	assert.Equal(t, float64(1), protoVal.Num)
}

func TestObjectDeleteRemovesOwnPropertyWhenNotShadowing(t *testing.T) {
	o := NewObject(nil)
	o.Set("x", Num(1))
	ok := o.Delete("x")
	require.True(t, ok)
	_, found := o.Get("x")
	assert.False(t, found)
}

func TestArrayFastPathGetSetAndLength(t *testing.T) {
	arr := NewArray(nil, []Value{Num(1), Num(2)})
	v, ok := arr.Get("0")
	require.True(t, ok)
	assert.Equal(t, float64(1), v.Num)

	arr.Set("2", Num(3))
	length, ok := arr.Get("length")
	require.True(t, ok)
	assert.Equal(t, float64(3), length.Num)
}

func TestObjectKeysPreservesInsertionOrder(t *testing.T) {
	o := NewObject(nil)
	o.Set("b", Num(1))
	o.Set("a", Num(2))
	o.Set("c", Num(3))
	assert.Equal(t, []string{"b", "a", "c"}, o.Keys())
}

func TestObjectCopyIsIndependentOfOriginal(t *testing.T) {
	o := NewObject(nil)
	o.Set("x", Num(1))
	o.Shared = true

	clone := o.Copy()
	assert.False(t, clone.Shared)
	clone.Set("x", Num(2))

	orig, _ := o.Get("x")
	cloned, _ := clone.Get("x")
	assert.Equal(t, float64(1), orig.Num)
	assert.Equal(t, float64(2), cloned.Num)
}

func TestSharedObjectPanicsOnDirectWrite(t *testing.T) {
	o := NewObject(nil)
	o.Shared = true
	assert.Panics(t, func() { o.Set("x", Num(1)) })
}

type constHandler struct{ v Value }

func (h constHandler) Get(this Value) (Value, bool, error) { return h.v, true, nil }
func (h constHandler) Set(this, newValue Value) error       { return nil }

func TestDefineHandlerBacksPropertyReads(t *testing.T) {
	o := NewObject(nil)
	o.DefineHandler("host", constHandler{v: Str("native")}, false, true, false)
	v, ok := o.Get("host")
	require.True(t, ok)
	assert.Equal(t, "native", v.Str)
}
