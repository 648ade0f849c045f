package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsAllFalseOptions(t *testing.T) {
	opts := Default()
	assert.False(t, opts.Sandbox)
	assert.False(t, opts.Unsafe)
	assert.False(t, opts.Module)
	assert.Nil(t, opts.SearchPath)
}

func TestParseValidYAML(t *testing.T) {
	opts, err := Parse([]byte(`
sandbox: true
searchPath: ["./lib", "./vendor"]
module: true
`))
	require.NoError(t, err)
	assert.True(t, opts.Sandbox)
	assert.True(t, opts.Module)
	assert.Equal(t, []string{"./lib", "./vendor"}, opts.SearchPath)
}

func TestParseRejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("bogusField: true\n"))
	assert.Error(t, err)
}

func TestParseRejectsWrongType(t *testing.T) {
	_, err := Parse([]byte("sandbox: \"yes\"\n"))
	assert.Error(t, err)
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("sandbox: [unterminated\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/options.yaml")
	assert.Error(t, err)
}
