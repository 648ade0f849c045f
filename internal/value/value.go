// Package value implements the tagged Value union and Object model of
// spec.md §3: a 16-byte-class tagged union in the original, rendered here
// as a Go struct with one discriminant and one payload field per kind
// (Go's GC makes an embedded interface{} the natural fit for the pointer
// payloads; we keep numbers and booleans unboxed on the struct itself so
// the common arithmetic path never allocates).
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates a Value (spec.md §3 Value tag).
type Kind uint8

const (
	Undefined Kind = iota
	Null
	Boolean
	Number
	String
	Symbol
	ObjectKind
	ArrayKind
	FunctionKind
	RegExpKind
	DateKind
	ErrorKind
	TypedArrayKind
	InvalidHole // uninitialized TDZ slot
	PropertyReference
)

// Value is the tagged union. Only the field(s) matching Kind are live.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
	Obj  *Object // ObjectKind, ArrayKind, FunctionKind, RegExpKind, DateKind, ErrorKind, TypedArrayKind
}

func Undef() Value        { return Value{Kind: Undefined} }
func NullV() Value         { return Value{Kind: Null} }
func Bool(b bool) Value    { return Value{Kind: Boolean, Bool: b} }
func Num(n float64) Value  { return Value{Kind: Number, Num: n} }
func Str(s string) Value   { return Value{Kind: String, Str: s} }
func Hole() Value          { return Value{Kind: InvalidHole} }

func FromObject(o *Object) Value {
	k := ObjectKind
	switch o.Class {
	case ClassArray:
		k = ArrayKind
	case ClassFunction:
		k = FunctionKind
	case ClassRegExp:
		k = RegExpKind
	case ClassDate:
		k = DateKind
	case ClassError:
		k = ErrorKind
	}
	return Value{Kind: k, Obj: o}
}

func (v Value) IsUndefined() bool { return v.Kind == Undefined }
func (v Value) IsNull() bool      { return v.Kind == Null }
func (v Value) IsNullish() bool   { return v.Kind == Undefined || v.Kind == Null }
func (v Value) IsObject() bool {
	switch v.Kind {
	case ObjectKind, ArrayKind, FunctionKind, RegExpKind, DateKind, ErrorKind, TypedArrayKind:
		return true
	}
	return false
}
func (v Value) IsCallable() bool { return v.Kind == FunctionKind && v.Obj != nil }

// Truthy implements ES ToBoolean for the subset of types the CORE needs.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Undefined, Null:
		return false
	case Boolean:
		return v.Bool
	case Number:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case String:
		return v.Str != ""
	default:
		return true
	}
}

// ToNumber implements ES ToNumber for the CORE's primitive subset.
func (v Value) ToNumber() float64 {
	switch v.Kind {
	case Number:
		return v.Num
	case Boolean:
		if v.Bool {
			return 1
		}
		return 0
	case Null:
		return 0
	case Undefined:
		return math.NaN()
	case String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return n
	default:
		return math.NaN()
	}
}

// ToString implements ES ToString for the CORE's primitive subset.
func (v Value) ToString() string {
	switch v.Kind {
	case String:
		return v.Str
	case Number:
		return formatNumber(v.Num)
	case Boolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case Null:
		return "null"
	case Undefined:
		return "undefined"
	case ArrayKind:
		return v.Obj.arrayJoin(",")
	case FunctionKind:
		return fmt.Sprintf("function %s() { [njs code] }", v.Obj.FunctionName)
	default:
		return "[object Object]"
	}
}

func formatNumber(n float64) string {
	if math.IsNaN(n) {
		return "NaN"
	}
	if math.IsInf(n, 1) {
		return "Infinity"
	}
	if math.IsInf(n, -1) {
		return "-Infinity"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e21 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// TypeOf implements the `typeof` operator.
func (v Value) TypeOf() string {
	switch v.Kind {
	case Undefined:
		return "undefined"
	case Null:
		return "object"
	case Boolean:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Symbol:
		return "symbol"
	case FunctionKind:
		return "function"
	default:
		return "object"
	}
}

// Class discriminates the typed-object payload carried on Object,
// matching spec.md §3 Object's "type-specific slots".
type Class uint8

const (
	ClassPlain Class = iota
	ClassArray
	ClassFunction
	ClassRegExp
	ClassDate
	ClassError
)

// PropertyKind (spec.md §3 Property).
type PropertyKind uint8

const (
	PropData PropertyKind = iota
	PropAccessor
	PropHandler
	PropWhiteout // deletion marker shadowing a prototype property
)

// Property is one entry in an Object's property table.
type Property struct {
	Value      Value
	Getter     *Object
	Setter     *Object
	Handler    PropertyHandler
	Writable   bool
	Enumerable bool
	Configurable bool
	Kind       PropertyKind
}

// PropertyHandler backs a host-descriptor PROPERTY entry (spec.md §6).
// Returning (Value{}, false, nil) signals DECLINED — property absent.
type PropertyHandler interface {
	Get(this Value) (Value, bool, error)
	Set(this, newValue Value) error
}

// Object is the header + property table of spec.md §3 Object.
type Object struct {
	Prototype  *Object
	Class      Class
	Extensible bool
	Shared     bool // read-only across VM clones until first write (copy-on-write)

	props     map[string]*Property
	propOrder []string // insertion order, for Object.keys iteration (spec.md §9 Lvlhsh note)

	// Array-specific fast path (spec.md §3 "fast_array" flag).
	FastArray bool
	Elements  []Value

	// Function-specific slots.
	FunctionName string
	Lambda       any // *bytecode.Lambda, kept as `any` to avoid an import cycle
	Native       NativeFunc
	Closure      [][]Value // one slot array per captured nesting level
	IsConstructor bool
	BoundThis    *Value

	// Error-specific slots.
	ErrorName    string
	ErrorMessage string
	ErrorStack   string
	stackFrames  []string // not filled in by the VM; no accessor reads it
}

// NativeFunc is a host-backed or built-in function body.
type NativeFunc func(this Value, args []Value) (Value, error)

// NewObject creates a plain object with the given prototype.
func NewObject(proto *Object) *Object {
	return &Object{Prototype: proto, Extensible: true, props: map[string]*Property{}}
}

// NewArray creates a fast-array-backed Array object.
func NewArray(proto *Object, elems []Value) *Object {
	o := NewObject(proto)
	o.Class = ClassArray
	o.FastArray = true
	o.Elements = elems
	return o
}

// NewNativeFunction wraps a host Go function as a callable JS function.
func NewNativeFunction(proto *Object, name string, fn NativeFunc) *Object {
	o := NewObject(proto)
	o.Class = ClassFunction
	o.FunctionName = name
	o.Native = fn
	return o
}

// Get performs a prototype-chain property lookup (spec.md §3 Property:
// "lookup walks the prototype chain"), honoring WHITEOUT shadowing.
func (o *Object) Get(name string) (Value, bool) {
	cur := o
	for cur != nil {
		if cur.Class == ClassArray && cur.FastArray {
			if idx, ok := arrayIndex(name); ok {
				if idx >= 0 && idx < len(cur.Elements) {
					return cur.Elements[idx], true
				}
				if cur == o {
					// fall through to props (e.g. "length") below
				}
			}
			if name == "length" && cur == o {
				return Num(float64(len(cur.Elements))), true
			}
		}
		if p, ok := cur.props[name]; ok {
			if p.Kind == PropWhiteout {
				return Undef(), false
			}
			if p.Kind == PropHandler {
				v, ok, _ := p.Handler.Get(FromObject(o))
				return v, ok
			}
			return p.Value, true
		}
		cur = cur.Prototype
	}
	return Undef(), false
}

// Set writes an own property, copying on write if this object is shared
// across VM clones (spec.md §5 "writes go through copy-on-write").
func (o *Object) Set(name string, v Value) {
	if o.Shared {
		panic("value: write to shared object without ObjectCopy; VM must copy-on-write before mutating")
	}
	if o.Class == ClassArray && o.FastArray {
		if idx, ok := arrayIndex(name); ok {
			for len(o.Elements) <= idx {
				o.Elements = append(o.Elements, Undef())
			}
			o.Elements[idx] = v
			return
		}
		if name == "length" {
			n := int(v.ToNumber())
			if n < len(o.Elements) {
				o.Elements = o.Elements[:n]
			} else {
				for len(o.Elements) < n {
					o.Elements = append(o.Elements, Undef())
				}
			}
			return
		}
	}
	if p, ok := o.props[name]; ok {
		if p.Kind == PropHandler {
			_ = p.Handler.Set(FromObject(o), v)
			return
		}
		p.Value = v
		p.Kind = PropData
		return
	}
	o.props[name] = &Property{Value: v, Writable: true, Enumerable: true, Configurable: true, Kind: PropData}
	o.propOrder = append(o.propOrder, name)
}

// Delete marks name WHITEOUT at this level if it shadows a prototype
// property with the same name, or removes it outright otherwise
// (spec.md §3 Property Whiteout).
func (o *Object) Delete(name string) bool {
	p, ok := o.props[name]
	if !ok {
		return true
	}
	if !p.Configurable {
		return false
	}
	if o.Prototype != nil {
		if _, inherited := o.Prototype.Get(name); inherited {
			p.Kind = PropWhiteout
			return true
		}
	}
	delete(o.props, name)
	for i, n := range o.propOrder {
		if n == name {
			o.propOrder = append(o.propOrder[:i], o.propOrder[i+1:]...)
			break
		}
	}
	return true
}

// Has reports own-or-inherited presence, for the `in` operator.
func (o *Object) Has(name string) bool {
	_, ok := o.Get(name)
	return ok
}

// Keys returns own enumerable property names in insertion order
// (spec.md §9: "The iteration-order contract only matters for
// Object.keys which may follow insertion order").
func (o *Object) Keys() []string {
	if o.FastArray {
		keys := make([]string, 0, len(o.Elements)+len(o.propOrder))
		for i := range o.Elements {
			keys = append(keys, strconv.Itoa(i))
		}
		keys = append(keys, o.ownKeys()...)
		return keys
	}
	return o.ownKeys()
}

func (o *Object) ownKeys() []string {
	keys := make([]string, 0, len(o.propOrder))
	for _, name := range o.propOrder {
		if p := o.props[name]; p != nil && p.Enumerable && p.Kind != PropWhiteout {
			keys = append(keys, name)
		}
	}
	return keys
}

// DefineHandler installs a PROPERTY handler (spec.md §6 host-object
// descriptor), used by pkg/njs.ExternalPrototype.
func (o *Object) DefineHandler(name string, h PropertyHandler, writable, enumerable, configurable bool) {
	if _, exists := o.props[name]; !exists {
		o.propOrder = append(o.propOrder, name)
	}
	o.props[name] = &Property{Handler: h, Writable: writable, Enumerable: enumerable, Configurable: configurable, Kind: PropHandler}
}

// Copy performs the copy-on-write duplication spec.md §5 describes:
// "triggers object_value_copy on first write" to a Shared object.
func (o *Object) Copy() *Object {
	clone := *o
	clone.Shared = false
	clone.props = make(map[string]*Property, len(o.props))
	for k, v := range o.props {
		pv := *v
		clone.props[k] = &pv
	}
	clone.propOrder = append([]string(nil), o.propOrder...)
	clone.Elements = append([]Value(nil), o.Elements...)
	return &clone
}

func (o *Object) arrayJoin(sep string) string {
	parts := make([]string, len(o.Elements))
	for i, e := range o.Elements {
		if e.IsNullish() {
			parts[i] = ""
		} else {
			parts[i] = e.ToString()
		}
	}
	return strings.Join(parts, sep)
}

func arrayIndex(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// SortedKeys is a small helper for deterministic debug dumps (internal/diag).
func SortedKeys(o *Object) []string {
	keys := o.Keys()
	sort.Strings(keys)
	return keys
}
