package njs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njs-go/njs/internal/config"
	"github.com/njs-go/njs/internal/value"
)

func TestCompileStartRunsTopLevelProgram(t *testing.T) {
	v := Create(config.Default())
	require.NoError(t, v.Compile("var x = 1 + 2; export default x;", "script.js"))
	out, err := v.Start()
	require.NoError(t, err)
	assert.Equal(t, float64(3), out.Num)
}

func TestCompileErrorSurfacesSyntaxError(t *testing.T) {
	v := Create(config.Default())
	err := v.Compile("let = ;", "bad.js")
	assert.Error(t, err)
}

func TestBindInstallsGlobalBeforeStart(t *testing.T) {
	v := Create(config.Default())
	require.NoError(t, v.Compile("var greeting; export default greeting;", "bind.js"))
	require.NoError(t, v.Bind("greeting", value.Str("hello"), false))
	out, err := v.Start()
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Str)
}

func TestBindFuncInstallsCallableNativeGlobal(t *testing.T) {
	v := Create(config.Default())
	require.NoError(t, v.Compile("var double; export default double(21);", "bindfunc.js"))
	require.NoError(t, v.BindFunc("double", func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Num(args[0].Num * 2), nil
	}))
	out, err := v.Start()
	require.NoError(t, err)
	assert.Equal(t, float64(42), out.Num)
}

func TestBindUnknownNameErrors(t *testing.T) {
	v := Create(config.Default())
	require.NoError(t, v.Compile("var x = 1;", "noglobal.js"))
	err := v.Bind("neverDeclared", value.Num(1), false)
	assert.Error(t, err)
}

func TestValueResolvesDottedPath(t *testing.T) {
	v := Create(config.Default())
	require.NoError(t, v.Compile("var host;", "dotted.js"))
	host := value.NewObject(nil)
	inner := value.NewObject(nil)
	inner.Set("version", value.Str("1.2.3"))
	host.Set("info", value.FromObject(inner))
	require.NoError(t, v.Bind("host", value.FromObject(host), false))
	_, err := v.Start()
	require.NoError(t, err)

	got, ok := v.Value("host.info.version")
	require.True(t, ok)
	assert.Equal(t, "1.2.3", got.Str)
}

func TestValueMissingPathReturnsFalse(t *testing.T) {
	v := Create(config.Default())
	require.NoError(t, v.Compile("var x = 1;", "missing.js"))
	_, err := v.Start()
	require.NoError(t, err)

	_, ok := v.Value("nothing.here")
	assert.False(t, ok)
}

func TestRunDrainsEventLoopToOK(t *testing.T) {
	v := Create(config.Default())
	require.NoError(t, v.Compile("1;", "loop.js"))
	_, err := v.Start()
	require.NoError(t, err)
	status, err := v.Run()
	require.NoError(t, err)
	assert.Equal(t, OK, status)
}

func TestCallInvokesAFunctionValue(t *testing.T) {
	v := Create(config.Default())
	require.NoError(t, v.Compile("function square(n) { return n * n; } var exportedSquare = square;", "call.js"))
	_, err := v.Start()
	require.NoError(t, err)

	fn, ok := v.Value("exportedSquare")
	require.True(t, ok)
	out, err := v.Call(fn, value.Undef(), []value.Value{value.Num(6)})
	require.NoError(t, err)
	assert.Equal(t, float64(36), out.Num)
}

func TestRuntimeErrorUnwrapsThrownError(t *testing.T) {
	v := Create(config.Default())
	require.NoError(t, v.Compile("undefinedFn();", "throwtest.js"))
	_, err := v.Start()
	require.Error(t, err)

	name, _, ok := RuntimeError(err)
	require.True(t, ok)
	assert.Equal(t, "TypeError", string(name))
}
