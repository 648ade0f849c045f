// Package module implements the loader of spec.md §4.8: resolving an
// `import name from 'path'` specifier against a configured search-path
// list, compiling the target file as its own main lambda with its own
// GLOBAL-rooted scope tree, and binding its default export to the importer's
// variable. One Loader instance owns the resolved-module cache for the
// lifetime of a host process (or a single script run, for the CLI).
package module

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/mod/module"

	"github.com/njs-go/njs/internal/ast"
	"github.com/njs-go/njs/internal/bytecode"
	"github.com/njs-go/njs/internal/njserr"
	"github.com/njs-go/njs/internal/parser"
	"github.com/njs-go/njs/internal/scope"
	"github.com/njs-go/njs/internal/token"
	"github.com/njs-go/njs/internal/value"
	"github.com/njs-go/njs/internal/vm"
)

// Loader resolves and compiles imported modules for one VM's lifetime.
type Loader struct {
	SearchPaths []string

	mu        sync.Mutex
	loaded    map[string]value.Value // resolved path -> cached default export
	compiling map[string]bool        // resolved path -> compilation in progress (cycle guard)

	watcher *fsnotify.Watcher // non-nil only when WatchModules(true) was called
	logger  *slog.Logger
}

// New builds a Loader over the given search paths, supplemented by the
// NJS_PATH environment variable exactly as spec.md §6's CLI surface does
// for its `-p` flag (os.PathListSeparator-joined, appended after the
// explicit list so NJS_PATH entries are consulted last).
func New(searchPaths []string) *Loader {
	paths := append([]string(nil), searchPaths...)
	if envPath := os.Getenv("NJS_PATH"); envPath != "" {
		paths = append(paths, filepath.SplitList(envPath)...)
	}
	level := slog.LevelWarn
	if os.Getenv("NJS_DEBUG_MODULE") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	return &Loader{SearchPaths: paths, loaded: make(map[string]value.Value), compiling: make(map[string]bool), logger: logger}
}

// WatchModules enables fsnotify-backed cache invalidation: a resolved
// module's file changing on disk clears its cached export so the next
// import recompiles it. Intended for a long-lived host server worker
// (spec.md §5's clone-per-request pattern reuses one Loader across
// clones); the CLI's one-shot script/module run never calls this.
func (l *Loader) WatchModules(enable bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !enable {
		if l.watcher != nil {
			l.watcher.Close()
			l.watcher = nil
		}
		return nil
	}
	if l.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	l.watcher = w
	go l.watchLoop(w)
	return nil
}

func (l *Loader) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				l.invalidate(ev.Name)
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

func (l *Loader) invalidate(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if _, ok := l.loaded[abs]; ok {
		l.logger.Debug("invalidate module cache", "path", abs)
		delete(l.loaded, abs)
	}
}

// Resolve locates the file a specifier names. A specifier beginning with
// `./` or `../` is resolved relative to fromDir; any other specifier is
// validated with module.CheckImportPath (spec.md's domain-stack wiring:
// rejecting the same class of malformed path `go build` itself would)
// and searched for across SearchPaths.
func (l *Loader) Resolve(spec string, fromDir string) (string, error) {
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		path := withJSExt(filepath.Join(fromDir, spec))
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("module %q not found at %s", spec, path)
		}
		return filepath.Abs(path)
	}
	if err := module.CheckImportPath(withoutJSExt(spec)); err != nil {
		return "", fmt.Errorf("invalid import path %q: %w", spec, err)
	}
	for _, dir := range l.SearchPaths {
		path := withJSExt(filepath.Join(dir, spec))
		if _, err := os.Stat(path); err == nil {
			return filepath.Abs(path)
		}
	}
	return "", fmt.Errorf("module %q not found in search path", spec)
}

func withJSExt(path string) string {
	if filepath.Ext(path) == "" {
		return path + ".js"
	}
	return path
}

func withoutJSExt(spec string) string {
	return strings.TrimSuffix(spec, ".js")
}

// Load resolves, compiles (if not already cached), and runs a module's
// top-level lambda in m, returning its default export value (spec.md
// §4.8: "one compilation unit = one function-lambda that returns the
// exported value"). A cyclic import — the module currently being
// compiled importing (transitively) itself — is resolved by handing back
// undefined rather than recursing, the same externally-observable result
// as accessing a not-yet-initialized live binding before its module
// finishes evaluating.
func (l *Loader) Load(m *vm.VM, spec string, fromDir string) (value.Value, error) {
	path, err := l.Resolve(spec, fromDir)
	if err != nil {
		return value.Undef(), err
	}

	l.mu.Lock()
	if v, ok := l.loaded[path]; ok {
		l.mu.Unlock()
		return v, nil
	}
	if l.compiling[path] {
		l.mu.Unlock()
		l.logger.Debug("cyclic import resolved to undefined", "path", path)
		return value.Undef(), nil
	}
	l.compiling[path] = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.compiling, path)
		l.mu.Unlock()
	}()

	if l.watcher != nil {
		_ = l.watcher.Add(path)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return value.Undef(), err
	}

	chunk, err := Compile(string(src), path)
	if err != nil {
		return value.Undef(), err
	}

	if err := l.bindImports(m, chunk.Program, filepath.Dir(path)); err != nil {
		return value.Undef(), err
	}

	result, err := m.RunMain(chunk.Chunk)
	if err != nil {
		return value.Undef(), err
	}

	l.mu.Lock()
	l.loaded[path] = result
	l.mu.Unlock()
	return result, nil
}

// Compiled bundles a Compile call's two results: the Chunk the VM runs
// and the Program the loader re-walks for its own nested import scan
// (bindImports needs the AST; Generate consumes it and returns only the
// lowered Chunk).
type Compiled struct {
	Chunk   *bytecode.Chunk
	Program *ast.Node
}

// Compile runs the parse → resolve → generate pipeline once, the same
// three steps pkg/njs.Compile performs for the top-level program; the
// module gets its own scope tree rooted at a GLOBAL scope.
func Compile(src, file string) (*Compiled, error) {
	res, err := parser.Parse(src, file)
	if err != nil {
		return nil, err
	}
	scope.NewResolver(res.Global).Run()
	chunk, err := bytecode.New(file).Generate(res.Program, res.Global)
	if err != nil {
		return nil, err
	}
	return &Compiled{Chunk: chunk, Program: res.Program}, nil
}

// bindImports binds each top-level AST_IMPORT node's variable to the
// resolved module's export value before the importing lambda runs
// (spec.md §4.8: imports are resolved "before execution").
func (l *Loader) bindImports(m *vm.VM, program *ast.Node, dir string) error {
	for _, stmt := range program.Body {
		if stmt.Tag != token.AST_IMPORT {
			continue
		}
		val, err := l.Load(m, stmt.Name, dir)
		if err != nil {
			return &njserr.CompileError{File: dir, Line: stmt.Line, Message: fmt.Sprintf("importing %q: %s", stmt.Name, err)}
		}
		v, ok := stmt.Dest.Ref.(*scope.Variable)
		if !ok {
			continue
		}
		m.BindGlobal(v.Index, val)
	}
	return nil
}
