package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommandFlagExecutesSourceString(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-c", "export default 1 + 2;"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
}

func TestRunMissingScriptIsError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "njs:")
}

func TestRunVersionFlagPrintsVersionAndExits(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-v"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), version)
}

func TestRunFileArgument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.js")
	require.NoError(t, os.WriteFile(path, []byte("1 + 1;"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{path}, &stdout, &stderr)
	assert.Equal(t, 0, code)
}

func TestRunDisassembleFlagPrintsBytecode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-d", "-c", "1 + 1;"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "function <main>")
}

func TestRunASTFlagPrintsAST(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-a", "-c", "1 + 1;"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.NotEmpty(t, stdout.String())
}

func TestRunReportsRuntimeErrorWithNonZeroExit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-c", "undefinedThing();"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "TypeError")
}

func TestSourceOfPrefersCommandOverFile(t *testing.T) {
	src, file, err := sourceOf("1;", []string{"irrelevant.js"})
	require.NoError(t, err)
	assert.Equal(t, "1;", src)
	assert.Equal(t, "<command-line>", file)
}

func TestSourceOfErrorsWithoutCommandOrFile(t *testing.T) {
	_, _, err := sourceOf("", nil)
	assert.Error(t, err)
}
