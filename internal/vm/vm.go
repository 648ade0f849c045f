// Package vm implements the interpreter loop of spec.md §4.6: a
// switch-dispatched engine over bytecode.Chunk that evaluates expressions
// on a per-frame operand stack (it is not a register machine) and
// addresses variables by scope.Index, with frame-chained calls, TRY-handler exception unwinding, copy-on-write
// object cloning for the "compile once, run per request" pattern, and a
// side iterator stack for for-in/for-of that keeps value.Value itself free
// of VM-private iteration state.
package vm

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/njs-go/njs/internal/bytecode"
	"github.com/njs-go/njs/internal/njserr"
	"github.com/njs-go/njs/internal/scope"
	"github.com/njs-go/njs/internal/token"
	"github.com/njs-go/njs/internal/value"
)

// ThrownValue wraps a JS-level thrown value so it can propagate through
// Go's error return path without losing its original Value (spec.md §7:
// thrown values are not always Error instances).
type ThrownValue struct {
	Value value.Value
}

func (t *ThrownValue) Error() string {
	if t.Value.Kind == value.ErrorKind {
		return fmt.Sprintf("%s: %s", t.Value.Obj.ErrorName, t.Value.Obj.ErrorMessage)
	}
	return t.Value.ToString()
}

// VM is one interpreter instance: its global slot array, builtin
// prototypes, and the immortal out-of-memory error singleton (spec.md §5:
// "MemoryError is pre-allocated so OOM paths never allocate").
type VM struct {
	Globals []value.Value

	ObjectProto   *value.Object
	FunctionProto *value.Object
	ArrayProto    *value.Object
	ErrorProto    *value.Object
	StringProto   *value.Object
	NumberProto   *value.Object
	BooleanProto  *value.Object

	MemoryError value.Value // pre-allocated singleton, never (re)allocated on the OOM path

	iterStack []iterFrame
	callDepth int

	MaxCallDepth int

	logger *slog.Logger
}

const defaultMaxCallDepth = 2000

// New builds a VM with its builtin prototype chain wired (spec.md §4.6
// "a fresh global object and prototype chain per VM instance").
func New(numGlobals int) *VM {
	level := slog.LevelWarn
	if os.Getenv("NJS_DEBUG_VM") != "" {
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

	m := &VM{Globals: make([]value.Value, numGlobals), MaxCallDepth: defaultMaxCallDepth, logger: logger}
	m.ObjectProto = value.NewObject(nil)
	m.FunctionProto = value.NewObject(m.ObjectProto)
	m.ArrayProto = value.NewObject(m.ObjectProto)
	m.ErrorProto = value.NewObject(m.ObjectProto)
	m.StringProto = value.NewObject(m.ObjectProto)
	m.NumberProto = value.NewObject(m.ObjectProto)
	m.BooleanProto = value.NewObject(m.ObjectProto)
	installBuiltins(m)

	oom := value.NewObject(m.ErrorProto)
	oom.Class = value.ClassError
	oom.ErrorName = string(njserr.InternalError)
	oom.ErrorMessage = "out of memory"
	m.MemoryError = value.FromObject(oom)

	return m
}

// Clone performs the copy-on-write VM clone of spec.md §5: prototypes and
// top-level function closures are shared (marked Shared) until the clone
// writes to one, at which point value.Object.Copy kicks in.
func (m *VM) Clone() *VM {
	clone := &VM{
		Globals:       append([]value.Value(nil), m.Globals...),
		ObjectProto:   m.ObjectProto,
		FunctionProto: m.FunctionProto,
		ArrayProto:    m.ArrayProto,
		ErrorProto:    m.ErrorProto,
		StringProto:   m.StringProto,
		NumberProto:   m.NumberProto,
		BooleanProto:  m.BooleanProto,
		MemoryError:   m.MemoryError,
		MaxCallDepth:  m.MaxCallDepth,
		logger:        m.logger,
	}
	for i, g := range clone.Globals {
		if g.IsObject() && g.Obj != nil {
			g.Obj.Shared = true
			clone.Globals[i] = g
		}
	}
	return clone
}

// RunMain executes a compiled Chunk's top-level Lambda to completion.
func (m *VM) RunMain(chunk *bytecode.Chunk) (value.Value, error) {
	m.logger.Debug("run main", "file", chunk.SourceFile, "globals", chunk.NumGlobals)
	fn := value.NewObject(m.FunctionProto)
	fn.Class = value.ClassFunction
	fn.Lambda = chunk.Main
	fn.FunctionName = "<main>"
	return m.Call(value.FromObject(fn), value.Undef(), nil)
}

// Call invokes a function Value (native or user-defined) with `this` and
// positional arguments (spec.md §6 host-facing Call/Invoke).
func (m *VM) Call(fnVal value.Value, this value.Value, args []value.Value) (value.Value, error) {
	if !fnVal.IsCallable() {
		return value.Undef(), m.throwNew(njserr.TypeError, "value is not a function")
	}
	fn := fnVal.Obj
	if fn.Native != nil {
		return fn.Native(this, args)
	}
	l, _ := fn.Lambda.(*bytecode.Lambda)
	if l == nil {
		return value.Undef(), m.throwNew(njserr.TypeError, "function has no compiled body")
	}
	m.callDepth++
	if m.callDepth > m.MaxCallDepth {
		m.callDepth--
		return value.Undef(), &ThrownValue{Value: m.MemoryError}
	}
	defer func() { m.callDepth-- }()

	frame := newFrame(l, this, args, fn.Closure)
	frame.calleeFn = fn
	return m.runFrame(frame)
}

// Construct implements the `new` operator (spec.md §4.6): allocates a
// fresh object whose prototype is the callee's "prototype" property, runs
// the constructor body with `this` bound to it, and returns the explicit
// return value if the body returned an object, else the new instance.
func (m *VM) Construct(fnVal value.Value, args []value.Value) (value.Value, error) {
	if !fnVal.IsCallable() {
		return value.Undef(), m.throwNew(njserr.TypeError, "value is not a constructor")
	}
	proto := m.ObjectProto
	if p, ok := fnVal.Obj.Get("prototype"); ok && p.IsObject() {
		proto = p.Obj
	}
	inst := value.NewObject(proto)
	instVal := value.FromObject(inst)
	ret, err := m.Call(fnVal, instVal, args)
	if err != nil {
		return value.Undef(), err
	}
	if ret.IsObject() {
		return ret, nil
	}
	return instVal, nil
}

// BindGlobal installs a value at a GLOBAL-region Index, growing m.Globals
// if needed. Host bindings (pkg/njs.Bind) and the module loader's
// import-binding step (spec.md §4.8) are the two callers; both need to
// write a global slot without reaching into VM-private frame state.
func (m *VM) BindGlobal(idx scope.Index, v value.Value) {
	m.storeVar(&Frame{}, idx, v)
}

// LoadGlobal reads back a GLOBAL-region Index; the pkg/njs `value(vm,
// dotted_path, out)` host call (spec.md §6) is the only caller that needs
// to read a global slot from outside the interpreter loop.
func (m *VM) LoadGlobal(idx scope.Index) value.Value {
	return m.loadVar(&Frame{}, idx)
}

func (m *VM) throwNew(name njserr.Name, message string) error {
	o := value.NewObject(m.ErrorProto)
	o.Class = value.ClassError
	o.ErrorName = string(name)
	o.ErrorMessage = message
	return &ThrownValue{Value: value.FromObject(o)}
}

// runFrame is the switch-dispatched interpreter loop.
func (m *VM) runFrame(f *Frame) (value.Value, error) {
	code := f.lambda.Code
	for {
		if f.ip >= len(code) {
			return value.Undef(), nil
		}
		instr := code[f.ip]
		f.ip++

		switch instr.Op {
		case bytecode.OpNop:

		case bytecode.OpLoadConst:
			f.push(f.lambda.Constants[instr.A])
		case bytecode.OpLoadUndef:
			f.push(value.Undef())
		case bytecode.OpLoadNull:
			f.push(value.NullV())
		case bytecode.OpLoadTrue:
			f.push(value.Bool(true))
		case bytecode.OpLoadFalse:
			f.push(value.Bool(false))
		case bytecode.OpLoadThis:
			f.push(f.this)

		case bytecode.OpLoadVar:
			f.push(m.loadVar(f, scope.Index(instr.A)))
		case bytecode.OpStoreVar:
			v := f.peek()
			m.storeVar(f, scope.Index(instr.A), v)
		case bytecode.OpStoreVarDrop:
			v := f.pop()
			m.storeVar(f, scope.Index(instr.A), v)
		case bytecode.OpInitVar:
			v := f.peek()
			m.storeVar(f, scope.Index(instr.A), v)

		case bytecode.OpDup:
			f.push(f.peek())
		case bytecode.OpDup2:
			a, b := f.top2()
			f.push(a)
			f.push(b)
		case bytecode.OpPop:
			f.pop()
		case bytecode.OpSwap:
			n := len(f.stack)
			f.stack[n-1], f.stack[n-2] = f.stack[n-2], f.stack[n-1]

		case bytecode.OpBinary:
			rhs := f.pop()
			lhs := f.pop()
			res, err := m.evalBinary(token.Type(instr.A), lhs, rhs)
			if err != nil {
				if handled := m.unwind(f, err); handled {
					continue
				}
				return value.Undef(), err
			}
			f.push(res)
		case bytecode.OpUnary:
			v := f.pop()
			f.push(evalUnary(token.Type(instr.A), v))
		case bytecode.OpUpdate:
			v := f.pop()
			n := v.ToNumber()
			if token.Type(instr.A) == token.INC {
				n++
			} else {
				n--
			}
			f.push(value.Num(n))

		case bytecode.OpNewObject:
			f.push(value.FromObject(value.NewObject(m.ObjectProto)))
		case bytecode.OpNewArray:
			f.push(value.FromObject(value.NewArray(m.ArrayProto, nil)))
		case bytecode.OpArrayPush:
			elem := f.pop()
			arr := f.peek()
			if arr.Obj.Shared {
				arr.Obj = arr.Obj.Copy()
				f.stack[len(f.stack)-1] = arr
			}
			arr.Obj.Elements = append(arr.Obj.Elements, elem)

		case bytecode.OpGetProp:
			obj := f.pop()
			name := f.lambda.Constants[instr.C].Str
			res, err := m.getMember(obj, name)
			if err != nil {
				if handled := m.unwind(f, err); handled {
					continue
				}
				return value.Undef(), err
			}
			f.push(res)
		case bytecode.OpSetProp:
			v := f.pop()
			obj := f.pop()
			name := f.lambda.Constants[instr.C].Str
			if err := m.setMember(obj, name, v); err != nil {
				if handled := m.unwind(f, err); handled {
					continue
				}
				return value.Undef(), err
			}
			f.push(v)
		case bytecode.OpGetIndex:
			key := f.pop()
			obj := f.pop()
			res, err := m.getMember(obj, key.ToString())
			if err != nil {
				if handled := m.unwind(f, err); handled {
					continue
				}
				return value.Undef(), err
			}
			f.push(res)
		case bytecode.OpSetIndex:
			v := f.pop()
			key := f.pop()
			obj := f.pop()
			if err := m.setMember(obj, key.ToString(), v); err != nil {
				if handled := m.unwind(f, err); handled {
					continue
				}
				return value.Undef(), err
			}
			f.push(v)
		case bytecode.OpDeleteProp:
			obj := f.pop()
			name := f.lambda.Constants[instr.C].Str
			ok := true
			if obj.IsObject() {
				ok = obj.Obj.Delete(name)
			}
			f.push(value.Bool(ok))
		case bytecode.OpDeleteIndex:
			key := f.pop()
			obj := f.pop()
			ok := true
			if obj.IsObject() {
				ok = obj.Obj.Delete(key.ToString())
			}
			f.push(value.Bool(ok))
		case bytecode.OpInOp:
			obj := f.pop()
			key := f.pop()
			has := obj.IsObject() && obj.Obj.Has(key.ToString())
			f.push(value.Bool(has))
		case bytecode.OpInstanceOf:
			ctor := f.pop()
			v := f.pop()
			f.push(value.Bool(m.instanceOf(v, ctor)))

		case bytecode.OpMakeRegex:
			src := f.lambda.Constants[instr.A].Str
			flags := f.lambda.Constants[instr.B].Str
			re := value.NewObject(m.ObjectProto)
			re.Class = value.ClassRegExp
			re.Set("source", value.Str(src))
			re.Set("flags", value.Str(flags))
			re.Set("lastIndex", value.Num(0))
			f.push(value.FromObject(re))

		case bytecode.OpMakeFunction, bytecode.OpMakeArrow:
			child := f.lambda.Lambdas[instr.A]
			fn := value.NewObject(m.FunctionProto)
			fn.Class = value.ClassFunction
			fn.Lambda = child
			fn.FunctionName = child.Name
			fn.Closure = append([][]value.Value{f.locals}, f.closure...)
			proto := value.NewObject(m.ObjectProto)
			proto.Set("constructor", value.FromObject(fn))
			fn.Set("prototype", value.FromObject(proto))
			if instr.Op == bytecode.OpMakeArrow {
				fn.BoundThis = &f.this
			}
			f.push(value.FromObject(fn))

		case bytecode.OpCall:
			argc := int(instr.A)
			args := append([]value.Value(nil), f.stack[len(f.stack)-argc:]...)
			f.stack = f.stack[:len(f.stack)-argc]
			callee := f.pop()
			this := value.Undef()
			if callee.IsCallable() && callee.Obj.BoundThis != nil {
				this = *callee.Obj.BoundThis
			}
			ret, err := m.Call(callee, this, args)
			if err != nil {
				if handled := m.unwind(f, err); handled {
					continue
				}
				return value.Undef(), err
			}
			f.push(ret)
		case bytecode.OpNew:
			argc := int(instr.A)
			args := append([]value.Value(nil), f.stack[len(f.stack)-argc:]...)
			f.stack = f.stack[:len(f.stack)-argc]
			callee := f.pop()
			ret, err := m.Construct(callee, args)
			if err != nil {
				if handled := m.unwind(f, err); handled {
					continue
				}
				return value.Undef(), err
			}
			f.push(ret)

		case bytecode.OpJump:
			f.ip = int(instr.A)
		case bytecode.OpJumpIfFalse:
			if !f.pop().Truthy() {
				f.ip = int(instr.A)
			}
		case bytecode.OpJumpIfTrue:
			if f.pop().Truthy() {
				f.ip = int(instr.A)
			}
		case bytecode.OpJumpIfNullish:
			if f.peek().IsNullish() {
				f.ip = int(instr.A)
			}

		case bytecode.OpReturn:
			return f.pop(), nil
		case bytecode.OpReturnUndef:
			return value.Undef(), nil

		case bytecode.OpThrow:
			thrown := f.pop()
			err := &ThrownValue{Value: thrown}
			if handled := m.unwind(f, err); handled {
				continue
			}
			return value.Undef(), err

		case bytecode.OpTryPush:
			f.handlers = append(f.handlers, tryHandler{
				catchTarget: instr.A, finallyTarget: instr.B, stackDepth: len(f.stack),
			})
		case bytecode.OpTryPop:
			f.handlers = f.handlers[:len(f.handlers)-1]
		case bytecode.OpEnterFinally:
			// no-op marker; pendingException (if any) already set by unwind
		case bytecode.OpLeaveFinally:
			if f.pendingException != nil {
				pending := f.pendingException
				f.pendingException = nil
				err := &ThrownValue{Value: *pending}
				if handled := m.unwind(f, err); handled {
					continue
				}
				return value.Undef(), err
			}

		case bytecode.OpForInInit:
			obj := f.pop()
			m.iterStack = append(m.iterStack, iterFrame{keys: keysOf(obj), isOf: false})
		case bytecode.OpForOfInit:
			obj := f.pop()
			var elems []value.Value
			if obj.Kind == value.ArrayKind && obj.Obj != nil {
				elems = obj.Obj.Elements
			}
			keys := make([]string, len(elems))
			for i := range elems {
				keys[i] = fmt.Sprintf("%d", i)
			}
			m.iterStack = append(m.iterStack, iterFrame{keys: keys, obj: objOf(obj), isOf: true})
		case bytecode.OpForInNext, bytecode.OpForOfNext:
			it := &m.iterStack[len(m.iterStack)-1]
			if it.pos >= len(it.keys) {
				f.ip = int(instr.A)
				continue
			}
			k := it.keys[it.pos]
			it.pos++
			if it.isOf {
				idx := 0
				fmt.Sscanf(k, "%d", &idx)
				f.push(it.obj.Elements[idx])
			} else {
				f.push(value.Str(k))
			}
		case bytecode.OpIterPop:
			m.iterStack = m.iterStack[:len(m.iterStack)-1]

		case bytecode.OpTypeOf:
			v := f.pop()
			f.push(value.Str(v.TypeOf()))
		case bytecode.OpVoid:
			f.pop()
			f.push(value.Undef())

		case bytecode.OpHalt:
			return value.Undef(), nil

		default:
			return value.Undef(), fmt.Errorf("vm: unimplemented opcode %s", instr.Op)
		}
	}
}

func objOf(v value.Value) *value.Object {
	if v.IsObject() {
		return v.Obj
	}
	return nil
}

func keysOf(v value.Value) []string {
	if v.IsObject() {
		return v.Obj.Keys()
	}
	return nil
}

// unwind searches f's TRY handler stack for a catch or finally target,
// restoring the operand stack depth and pushing the thrown value for a
// catch handler (spec.md §4.6 "exception unwinding via TRY handler
// search up the frame chain"). Cross-frame propagation is the caller's
// responsibility: Call/New simply return the error when unwind reports
// false at the innermost frame.
func (m *VM) unwind(f *Frame, err error) bool {
	tv, ok := err.(*ThrownValue)
	if !ok {
		return false
	}
	for len(f.handlers) > 0 {
		h := f.handlers[len(f.handlers)-1]
		f.handlers = f.handlers[:len(f.handlers)-1]
		f.stack = f.stack[:min(h.stackDepth, len(f.stack))]
		if h.catchTarget >= 0 {
			f.push(tv.Value)
			f.ip = int(h.catchTarget)
			return true
		}
		if h.finallyTarget >= 0 {
			v := tv.Value
			f.pendingException = &v
			f.ip = int(h.finallyTarget)
			return true
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (m *VM) loadVar(f *Frame, idx scope.Index) value.Value {
	switch idx.Region() {
	case scope.RegionGlobal:
		o := idx.Offset()
		if int(o) < len(m.Globals) {
			return m.Globals[o]
		}
		return value.Undef()
	case scope.RegionArguments:
		return value.FromObject(value.NewArray(m.ArrayProto, append([]value.Value(nil), f.arguments...)))
	case scope.RegionCalleeArguments:
		o := int(idx.Offset())
		if o < len(f.arguments) {
			return f.arguments[o]
		}
		return value.Undef()
	case scope.RegionLocal:
		o := idx.Offset()
		if int(o) < len(f.locals) {
			return f.locals[o]
		}
		return value.Undef()
	case scope.RegionClosure:
		depth := int(idx.Depth())
		if depth < len(f.closure) {
			level := f.closure[depth]
			o := idx.Offset()
			if int(o) < len(level) {
				return level[o]
			}
		}
		return value.Undef()
	default:
		return value.Undef()
	}
}

func (m *VM) storeVar(f *Frame, idx scope.Index, v value.Value) {
	switch idx.Region() {
	case scope.RegionGlobal:
		o := idx.Offset()
		for int(o) >= len(m.Globals) {
			m.Globals = append(m.Globals, value.Undef())
		}
		m.Globals[o] = v
	case scope.RegionLocal:
		o := idx.Offset()
		if int(o) < len(f.locals) {
			f.locals[o] = v
		}
	case scope.RegionCalleeArguments:
		o := int(idx.Offset())
		if o < len(f.arguments) {
			f.arguments[o] = v
		}
	case scope.RegionClosure:
		depth := int(idx.Depth())
		if depth < len(f.closure) {
			level := f.closure[depth]
			o := idx.Offset()
			if int(o) < len(level) {
				level[o] = v
			}
		}
	}
}

// nullishName renders the literal "undefined"/"null" for error messages;
// value.Value.TypeOf reports `typeof null` as "object", which reads wrong
// in a TypeError message meant to name the actual offending value.
func nullishName(v value.Value) string {
	if v.Kind == value.Null {
		return "null"
	}
	return "undefined"
}

// getMember reads a property off any value. Reading off null/undefined is a
// TypeError (spec.md §7's "non-object property access on null/undefined"),
// matching njs_error.c's NJS_OBJ_TYPE_TYPE_ERROR path for member access on
// the nullish primitives; every other kind either has a builtin prototype
// to fall back to or silently yields undefined for a missing property.
func (m *VM) getMember(obj value.Value, name string) (value.Value, error) {
	switch obj.Kind {
	case value.Undefined, value.Null:
		return value.Undef(), m.throwNew(njserr.TypeError,
			"Cannot read properties of "+nullishName(obj)+" (reading '"+name+"')")
	case value.String:
		if name == "length" {
			return value.Num(float64(len([]rune(obj.Str)))), nil
		}
		if v, ok := m.StringProto.Get(name); ok {
			return v, nil
		}
		return value.Undef(), nil
	case value.Number:
		v, _ := m.NumberProto.Get(name)
		return v, nil
	case value.Boolean:
		v, _ := m.BooleanProto.Get(name)
		return v, nil
	}
	if !obj.IsObject() {
		return value.Undef(), nil
	}
	v, _ := obj.Obj.Get(name)
	return v, nil
}

func (m *VM) setMember(obj value.Value, name string, v value.Value) error {
	if obj.IsNullish() {
		return m.throwNew(njserr.TypeError,
			"Cannot set properties of "+nullishName(obj)+" (setting '"+name+"')")
	}
	if !obj.IsObject() {
		return nil // silently ignored, matching sloppy-mode property writes to primitives
	}
	if obj.Obj.Shared {
		obj.Obj = obj.Obj.Copy()
	}
	obj.Obj.Set(name, v)
	return nil
}

func (m *VM) instanceOf(v, ctor value.Value) bool {
	if !v.IsObject() || !ctor.IsCallable() {
		return false
	}
	proto, ok := ctor.Obj.Get("prototype")
	if !ok || !proto.IsObject() {
		return false
	}
	for p := v.Obj.Prototype; p != nil; p = p.Prototype {
		if p == proto.Obj {
			return true
		}
	}
	return false
}

func evalUnary(op token.Type, v value.Value) value.Value {
	switch op {
	case token.MINUS:
		return value.Num(-v.ToNumber())
	case token.PLUS:
		return value.Num(v.ToNumber())
	case token.NOT:
		return value.Bool(!v.Truthy())
	case token.BNOT:
		return value.Num(float64(^toInt32(v.ToNumber())))
	default:
		return value.Undef()
	}
}

func (m *VM) evalBinary(op token.Type, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case token.PLUS:
		if lhs.Kind == value.String || rhs.Kind == value.String {
			return value.Str(lhs.ToString() + rhs.ToString()), nil
		}
		return value.Num(lhs.ToNumber() + rhs.ToNumber()), nil
	case token.MINUS:
		return value.Num(lhs.ToNumber() - rhs.ToNumber()), nil
	case token.STAR:
		return value.Num(lhs.ToNumber() * rhs.ToNumber()), nil
	case token.SLASH:
		return value.Num(lhs.ToNumber() / rhs.ToNumber()), nil
	case token.PERCENT:
		return value.Num(math.Mod(lhs.ToNumber(), rhs.ToNumber())), nil
	case token.POW:
		return value.Num(math.Pow(lhs.ToNumber(), rhs.ToNumber())), nil
	case token.EQ:
		return value.Bool(looseEquals(lhs, rhs)), nil
	case token.NEQ:
		return value.Bool(!looseEquals(lhs, rhs)), nil
	case token.SEQ:
		return value.Bool(strictEquals(lhs, rhs)), nil
	case token.SNEQ:
		return value.Bool(!strictEquals(lhs, rhs)), nil
	case token.LT:
		return compareOp(lhs, rhs, func(a, b float64) bool { return a < b }, func(a, b string) bool { return a < b }), nil
	case token.GT:
		return compareOp(lhs, rhs, func(a, b float64) bool { return a > b }, func(a, b string) bool { return a > b }), nil
	case token.LE:
		return compareOp(lhs, rhs, func(a, b float64) bool { return a <= b }, func(a, b string) bool { return a <= b }), nil
	case token.GE:
		return compareOp(lhs, rhs, func(a, b float64) bool { return a >= b }, func(a, b string) bool { return a >= b }), nil
	case token.BAND:
		return value.Num(float64(toInt32(lhs.ToNumber()) & toInt32(rhs.ToNumber()))), nil
	case token.BOR:
		return value.Num(float64(toInt32(lhs.ToNumber()) | toInt32(rhs.ToNumber()))), nil
	case token.BXOR:
		return value.Num(float64(toInt32(lhs.ToNumber()) ^ toInt32(rhs.ToNumber()))), nil
	case token.SHL:
		return value.Num(float64(toInt32(lhs.ToNumber()) << (uint32(toInt32(rhs.ToNumber())) & 31))), nil
	case token.SHR:
		return value.Num(float64(toInt32(lhs.ToNumber()) >> (uint32(toInt32(rhs.ToNumber())) & 31))), nil
	case token.USHR:
		return value.Num(float64(uint32(toInt32(lhs.ToNumber())) >> (uint32(toInt32(rhs.ToNumber())) & 31))), nil
	default:
		return value.Undef(), fmt.Errorf("vm: unhandled binary operator %s", op)
	}
}

func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(int64(f))
}

func compareOp(lhs, rhs value.Value, numCmp func(a, b float64) bool, strCmp func(a, b string) bool) value.Value {
	if lhs.Kind == value.String && rhs.Kind == value.String {
		return value.Bool(strCmp(lhs.Str, rhs.Str))
	}
	a, b := lhs.ToNumber(), rhs.ToNumber()
	if math.IsNaN(a) || math.IsNaN(b) {
		return value.Bool(false)
	}
	return value.Bool(numCmp(a, b))
}

func strictEquals(a, b value.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case value.Undefined, value.Null:
		return true
	case value.Boolean:
		return a.Bool == b.Bool
	case value.Number:
		return a.Num == b.Num
	case value.String:
		return a.Str == b.Str
	default:
		return a.Obj == b.Obj
	}
}

func looseEquals(a, b value.Value) bool {
	if a.Kind == b.Kind {
		return strictEquals(a, b)
	}
	if a.IsNullish() && b.IsNullish() {
		return true
	}
	if a.IsNullish() || b.IsNullish() {
		return false
	}
	return a.ToNumber() == b.ToNumber()
}
