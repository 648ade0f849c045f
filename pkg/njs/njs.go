// Package njs is the embedder-facing API of spec.md §6: create a VM from
// Options, compile and start a source file, drive its event loop, and
// call back into it. It wires internal/parser, internal/scope,
// internal/bytecode, internal/vm, internal/eventloop and internal/module
// together the way a host process is expected to, the same orchestration
// role cli/internal/engine/engine.go plays over its own lexer/parser/
// builtins stack for the teacher's command interpreter.
package njs

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/njs-go/njs/internal/ast"
	"github.com/njs-go/njs/internal/bytecode"
	"github.com/njs-go/njs/internal/config"
	"github.com/njs-go/njs/internal/eventloop"
	"github.com/njs-go/njs/internal/module"
	"github.com/njs-go/njs/internal/njserr"
	"github.com/njs-go/njs/internal/parser"
	"github.com/njs-go/njs/internal/scope"
	"github.com/njs-go/njs/internal/token"
	"github.com/njs-go/njs/internal/value"
	"github.com/njs-go/njs/internal/vm"
)

// Status mirrors eventloop.Status for callers that only import pkg/njs.
type Status = eventloop.Status

const (
	OK    = eventloop.OK
	AGAIN = eventloop.AGAIN
)

// Event is the handle add_event/post_event/del_event operate on.
type Event = eventloop.Event

// VM is one embeddable interpreter instance: a compiled program, its
// stack-based interpreter, and the event loop/module loader that drive it after
// Start returns. One VM corresponds to one `create(options)` call.
type VM struct {
	Options *config.Options

	machine *vm.VM
	loop    *eventloop.Loop
	loader  *module.Loader

	program    *ast.Node
	chunk      *bytecode.Chunk
	global     *scope.Scope
	sourceFile string
}

// Create builds a VM from Options (spec.md §6 `create(options)`). A nil
// Options is equivalent to config.Default(): no sandbox, no disassembly.
func Create(opts *config.Options) *VM {
	if opts == nil {
		opts = config.Default()
	}
	return &VM{
		Options: opts,
		loop:    eventloop.New(nil),
		loader:  module.New(opts.SearchPath),
	}
}

// Compile parses and generates bytecode for a source file (spec.md §6
// `compile(vm, source_bytes)`). It must run before Start.
func (v *VM) Compile(source, file string) error {
	res, err := parser.Parse(source, file)
	if err != nil {
		return err
	}
	scope.NewResolver(res.Global).Run()
	chunk, err := bytecode.New(file).Generate(res.Program, res.Global)
	if err != nil {
		return err
	}
	if v.Options.AST || v.Options.Module {
		v.program = res.Program
	}
	v.chunk = chunk
	v.global = res.Global
	v.sourceFile = file
	v.machine = vm.New(chunk.NumGlobals)
	return nil
}

// Program returns the parsed AST for `-a` disassembly; only retained when
// Options.AST is set (the CBOR debug dumps are an opt-in diagnostic) or
// Options.Module is set (Start reads the top-level imports from it).
func (v *VM) Program() *ast.Node { return v.program }

// Chunk exposes the compiled bytecode for `-d` disassembly.
func (v *VM) Chunk() *bytecode.Chunk { return v.chunk }

// Start runs the top-level program once: resolving its imports, then
// executing its main lambda (spec.md §6 `start(vm)`: "executes imports
// then main").
func (v *VM) Start() (value.Value, error) {
	if v.chunk == nil {
		return value.Undef(), fmt.Errorf("njs: Compile must run before Start")
	}
	dir := filepath.Dir(v.sourceFile)
	if v.Options.Module {
		if err := v.bindTopLevelImports(dir); err != nil {
			return value.Undef(), err
		}
	}
	return v.machine.RunMain(v.chunk)
}

func (v *VM) bindTopLevelImports(dir string) error {
	for _, stmt := range v.program.Body {
		// module.Compile/Load already binds a nested module's own
		// imports; this loop only covers the entry program's own
		// top-level AST_IMPORT nodes, mirroring module.Loader.bindImports.
		if stmt.Tag != token.AST_IMPORT {
			continue
		}
		val, err := v.loader.Load(v.machine, stmt.Name, dir)
		if err != nil {
			return err
		}
		if vr, ok := stmt.Dest.Ref.(*scope.Variable); ok {
			v.machine.BindGlobal(vr.Index, val)
		}
	}
	return nil
}

// Run drains one tick of the event loop (spec.md §6 `run(vm)`): OK means
// no more work is outstanding, AGAIN means the host's own loop should
// call Run again once it has spun its own tick (timers, I/O, etc.).
func (v *VM) Run() (Status, error) {
	return v.loop.Tick()
}

// Call performs a synchronous invocation of a function value (spec.md §6
// `call(vm, function, args, nargs)`).
func (v *VM) Call(fn value.Value, this value.Value, args []value.Value) (value.Value, error) {
	return v.machine.Call(fn, this, args)
}

// Invoke is Call whose result is written into a global slot instead of
// returned, matching spec.md §6's `invoke(vm, function, args, nargs,
// retval_index)` for callers that already address results by Index.
func (v *VM) Invoke(fn value.Value, this value.Value, args []value.Value, retval scope.Index) error {
	ret, err := v.machine.Call(fn, this, args)
	if err != nil {
		return err
	}
	v.machine.BindGlobal(retval, ret)
	return nil
}

// AddEvent registers a host callback (spec.md §6 `add_event`).
func (v *VM) AddEvent(fn eventloop.Dispatch, once bool, hostHandle any, destructor func()) *Event {
	return v.loop.AddEvent(fn, once, hostHandle, destructor)
}

// PostEvent schedules a registered Event to run on the next applicable
// Run tick (spec.md §6 `post_event`).
func (v *VM) PostEvent(ev *Event, args []value.Value) {
	v.loop.PostEvent(ev, args)
}

// DelEvent cancels a registered Event (spec.md §6 `del_event`).
func (v *VM) DelEvent(ev *Event) {
	v.loop.DelEvent(ev)
}

// SetTimeout arms a one-shot timer Event through the loop's Ops vtable,
// the host primitive a `setTimeout` global binding is built from.
func (v *VM) SetTimeout(fn eventloop.Dispatch, delay time.Duration, args []value.Value) *Event {
	ev := v.loop.AddEvent(fn, true, nil, nil)
	v.loop.StartTimer(ev, delay, args)
	return ev
}

// Pending/Waiting/Posted expose the loop's scheduling predicates so a
// host can decide whether to keep calling Run.
func (v *VM) Pending() bool { return v.loop.Pending() }
func (v *VM) Waiting() bool { return v.loop.Waiting() }
func (v *VM) Posted() bool  { return v.loop.Posted() }

// Bind installs a global binding by name (spec.md §6 `bind(vm, name,
// value, shared)`). shared marks the value Shared for VM.Clone's
// copy-on-write discipline, mirroring vm.VM.Clone's own Shared-marking
// loop over the existing global slots.
func (v *VM) Bind(name string, val value.Value, shared bool) error {
	if shared && val.IsObject() && val.Obj != nil {
		val.Obj.Shared = true
	}
	idx, ok := v.lookupGlobalIndex(name)
	if !ok {
		return fmt.Errorf("njs: no global binding named %q (declare it in source first)", name)
	}
	v.machine.BindGlobal(idx, val)
	return nil
}

// BindFunc is a Bind convenience for native functions, the shape a host
// wires print/setTimeout/require-style globals through.
func (v *VM) BindFunc(name string, fn value.NativeFunc) error {
	nf := value.NewNativeFunction(v.machine.FunctionProto, name, fn)
	return v.Bind(name, value.FromObject(nf), true)
}

func (v *VM) lookupGlobalIndex(name string) (scope.Index, bool) {
	if v.global == nil {
		return 0, false
	}
	sc := v.global.Lookup(name)
	if sc == nil {
		return 0, false
	}
	// Scope exposes no read-only name->Variable accessor, only
	// Declare/DeclareHoisted; re-declaring a name already present in sc
	// is defined (spec.md §3 Variable invariant) to hand back the
	// existing Variable rather than allocate a second slot, so this
	// recovers its already-resolved Index without disturbing sc.
	res := sc.Declare(name, scope.DeclVar, 0)
	if res.Variable == nil {
		return 0, false
	}
	return res.Variable.Index, true
}

// Value resolves a dotted path from the global object (spec.md §6
// `value(vm, dotted_path, out)`), e.g. "console.log".
func (v *VM) Value(dottedPath string) (value.Value, bool) {
	cur, ok := v.lookupGlobalByDottedHead(dottedPath)
	if !ok {
		return value.Undef(), false
	}
	rest := dottedPath
	for {
		dot := indexOfByte(rest, '.')
		if dot < 0 {
			break
		}
		rest = rest[dot+1:]
		next := rest
		if d := indexOfByte(next, '.'); d >= 0 {
			next = next[:d]
		}
		if !cur.IsObject() || cur.Obj == nil {
			return value.Undef(), false
		}
		member, ok := cur.Obj.Get(next)
		if !ok {
			return value.Undef(), false
		}
		cur = member
	}
	return cur, true
}

func (v *VM) lookupGlobalByDottedHead(dottedPath string) (value.Value, bool) {
	head := dottedPath
	if d := indexOfByte(head, '.'); d >= 0 {
		head = head[:d]
	}
	idx, ok := v.lookupGlobalIndex(head)
	if !ok {
		return value.Undef(), false
	}
	return v.machine.LoadGlobal(idx), true
}

func indexOfByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// ExternalPrototype registers a native-backed object shape (spec.md §6
// `external_prototype`): each descriptor's PropertyHandler supplies the
// get/set callbacks for one property, letting a host wrap a Go pointer
// as a JS value without copying it into the object graph.
func (v *VM) ExternalPrototype(descriptors map[string]value.PropertyHandler) *value.Object {
	proto := value.NewObject(v.machine.ObjectProto)
	for name, h := range descriptors {
		proto.DefineHandler(name, h, true, true, false)
	}
	return proto
}

// RuntimeError unwraps a ThrownValue into the njserr taxonomy a host
// reports to its own logs (spec.md §7's seven error classes).
func RuntimeError(err error) (name njserr.Name, message string, ok bool) {
	tv, isThrown := err.(*vm.ThrownValue)
	if !isThrown || tv.Value.Kind != value.ErrorKind {
		return "", "", false
	}
	return njserr.Name(tv.Value.Obj.ErrorName), tv.Value.Obj.ErrorMessage, true
}
