package vm

import (
	"github.com/njs-go/njs/internal/bytecode"
	"github.com/njs-go/njs/internal/value"
)

// tryHandler is one entry of a frame's TRY handler stack (spec.md §4.5
// "exception unwinding via TRY handler search up the frame chain").
type tryHandler struct {
	catchTarget   int32 // -1 = none
	finallyTarget int32 // -1 = none
	stackDepth    int   // operand-stack depth to restore on unwind
}

// iterFrame is one entry of the VM's for-in/for-of iterator stack.
type iterFrame struct {
	keys []string
	pos  int
	obj  *value.Object // for for-of: the array being walked
	isOf bool
}

// Frame is one call-frame: a Lambda's locals, its lexical closure chain,
// and the evaluation (operand) stack. Each call allocates a fresh Frame
// with newFrame; there is no frame pool, slab or bump allocator, and a
// frame is left to Go's GC once its call returns.
type Frame struct {
	lambda    *bytecode.Lambda
	locals    []value.Value
	arguments []value.Value
	closure   [][]value.Value // index 0 = immediately enclosing function's locals
	this      value.Value
	calleeFn  *value.Object

	stack []value.Value
	ip    int

	handlers []tryHandler

	// pendingException carries a thrown value while a finally block
	// (entered via the exceptional path) runs; if no RETURN/BREAK/CONTINUE
	// overrides it, LEAVE_FINALLY rethrows it up the frame chain.
	pendingException *value.Value
}

func newFrame(l *bytecode.Lambda, this value.Value, args []value.Value, closure [][]value.Value) *Frame {
	f := &Frame{
		lambda:    l,
		locals:    make([]value.Value, l.NumLocals),
		arguments: args,
		closure:   closure,
		this:      this,
		stack:     make([]value.Value, 0, 16),
	}
	return f
}

func (f *Frame) push(v value.Value) { f.stack = append(f.stack, v) }

func (f *Frame) pop() value.Value {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack = f.stack[:n]
	return v
}

func (f *Frame) peek() value.Value { return f.stack[len(f.stack)-1] }

func (f *Frame) top2() (value.Value, value.Value) {
	n := len(f.stack)
	return f.stack[n-2], f.stack[n-1]
}
