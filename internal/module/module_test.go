package module

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njs-go/njs/internal/vm"
)

func TestResolveRelativeSpecifierAddsJSExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.js"), []byte("export default 1;"), 0o644))

	l := New(nil)
	resolved, err := l.Resolve("./helper", dir)
	require.NoError(t, err)
	assert.Equal(t, "helper.js", filepath.Base(resolved))
}

func TestResolveRelativeSpecifierMissingFileErrors(t *testing.T) {
	l := New(nil)
	_, err := l.Resolve("./nope", t.TempDir())
	assert.Error(t, err)
}

func TestResolveSearchesSearchPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.js"), []byte("export default 2;"), 0o644))

	l := New([]string{dir})
	resolved, err := l.Resolve("lib", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "lib.js", filepath.Base(resolved))
}

func TestCompileReturnsChunkAndProgram(t *testing.T) {
	compiled, err := Compile("export default 42;", "mod.js")
	require.NoError(t, err)
	require.NotNil(t, compiled.Chunk)
	require.NotNil(t, compiled.Program)
}

func TestLoadRunsModuleAndCachesDefaultExport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "answer.js"), []byte("export default 1 + 41;"), 0o644))

	l := New(nil)
	m := vm.New(0)

	v, err := l.Load(m, "./answer", dir)
	require.NoError(t, err)
	assert.Equal(t, float64(42), v.Num)

	// Second load must hit the cache rather than recompiling/rerunning.
	v2, err := l.Load(m, "./answer", dir)
	require.NoError(t, err)
	assert.Equal(t, float64(42), v2.Num)
}

func TestLoadCyclicImportResolvesToUndefined(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.js")
	bPath := filepath.Join(dir, "b.js")
	require.NoError(t, os.WriteFile(aPath, []byte("import b from './b'; export default 1;"), 0o644))
	require.NoError(t, os.WriteFile(bPath, []byte("import a from './a'; export default 2;"), 0o644))

	l := New(nil)
	m := vm.New(0)
	v, err := l.Load(m, "./a", dir)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.Num)
}
