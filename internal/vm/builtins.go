package vm

import (
	"strings"

	"github.com/njs-go/njs/internal/value"
)

// installBuiltins wires the handful of Array.prototype/String.prototype/
// Object.prototype methods the CORE needs to run spec.md §8's example
// programs (string-building loops, array iteration) without a host
// binding. Fuller Array/String/Object/JSON/RegExp/Promise surfaces are
// intentionally left to pkg/njs host bindings (spec.md §1 Non-goals:
// "the standard library beyond what CORE examples exercise is out of
// scope"), mirroring how the CORE interpreter stays agnostic of any
// particular host environment.
func installBuiltins(m *VM) {
	installArrayProto(m)
	installStringProto(m)
	installObjectProto(m)
}

func nativeMethod(m *VM, proto *value.Object, name string, fn value.NativeFunc) {
	proto.Set(name, value.FromObject(value.NewNativeFunction(m.FunctionProto, name, fn)))
}

func installArrayProto(m *VM) {
	p := m.ArrayProto
	nativeMethod(m, p, "push", func(this value.Value, args []value.Value) (value.Value, error) {
		if this.Obj.Shared {
			this.Obj = this.Obj.Copy()
		}
		this.Obj.Elements = append(this.Obj.Elements, args...)
		return value.Num(float64(len(this.Obj.Elements))), nil
	})
	nativeMethod(m, p, "pop", func(this value.Value, args []value.Value) (value.Value, error) {
		n := len(this.Obj.Elements)
		if n == 0 {
			return value.Undef(), nil
		}
		if this.Obj.Shared {
			this.Obj = this.Obj.Copy()
		}
		v := this.Obj.Elements[n-1]
		this.Obj.Elements = this.Obj.Elements[:n-1]
		return v, nil
	})
	nativeMethod(m, p, "join", func(this value.Value, args []value.Value) (value.Value, error) {
		sep := ","
		if len(args) > 0 {
			sep = args[0].ToString()
		}
		parts := make([]string, len(this.Obj.Elements))
		for i, e := range this.Obj.Elements {
			if !e.IsNullish() {
				parts[i] = e.ToString()
			}
		}
		return value.Str(strings.Join(parts, sep)), nil
	})
	nativeMethod(m, p, "indexOf", func(this value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Num(-1), nil
		}
		for i, e := range this.Obj.Elements {
			if strictEquals(e, args[0]) {
				return value.Num(float64(i)), nil
			}
		}
		return value.Num(-1), nil
	})
	nativeMethod(m, p, "slice", func(this value.Value, args []value.Value) (value.Value, error) {
		elems := this.Obj.Elements
		start, end := sliceBounds(len(elems), args)
		return value.FromObject(value.NewArray(m.ArrayProto, append([]value.Value(nil), elems[start:end]...))), nil
	})
	nativeMethod(m, p, "forEach", func(this value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 || !args[0].IsCallable() {
			return value.Undef(), nil
		}
		for i, e := range this.Obj.Elements {
			if _, err := m.Call(args[0], value.Undef(), []value.Value{e, value.Num(float64(i)), this}); err != nil {
				return value.Undef(), err
			}
		}
		return value.Undef(), nil
	})
	nativeMethod(m, p, "map", func(this value.Value, args []value.Value) (value.Value, error) {
		out := make([]value.Value, len(this.Obj.Elements))
		if len(args) > 0 && args[0].IsCallable() {
			for i, e := range this.Obj.Elements {
				r, err := m.Call(args[0], value.Undef(), []value.Value{e, value.Num(float64(i)), this})
				if err != nil {
					return value.Undef(), err
				}
				out[i] = r
			}
		}
		return value.FromObject(value.NewArray(m.ArrayProto, out)), nil
	})
	nativeMethod(m, p, "filter", func(this value.Value, args []value.Value) (value.Value, error) {
		var out []value.Value
		if len(args) > 0 && args[0].IsCallable() {
			for i, e := range this.Obj.Elements {
				r, err := m.Call(args[0], value.Undef(), []value.Value{e, value.Num(float64(i)), this})
				if err != nil {
					return value.Undef(), err
				}
				if r.Truthy() {
					out = append(out, e)
				}
			}
		}
		return value.FromObject(value.NewArray(m.ArrayProto, out)), nil
	})
	nativeMethod(m, p, "toString", func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Str(this.Obj.ToString()), nil
	})
}

func sliceBounds(n int, args []value.Value) (int, int) {
	start, end := 0, n
	if len(args) > 0 {
		start = normalizeIndex(int(args[0].ToNumber()), n)
	}
	if len(args) > 1 {
		end = normalizeIndex(int(args[1].ToNumber()), n)
	}
	if start > end {
		start = end
	}
	return start, end
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func installStringProto(m *VM) {
	p := m.StringProto
	nativeMethod(m, p, "charAt", func(this value.Value, args []value.Value) (value.Value, error) {
		r := []rune(this.Str)
		i := 0
		if len(args) > 0 {
			i = int(args[0].ToNumber())
		}
		if i < 0 || i >= len(r) {
			return value.Str(""), nil
		}
		return value.Str(string(r[i])), nil
	})
	nativeMethod(m, p, "slice", func(this value.Value, args []value.Value) (value.Value, error) {
		r := []rune(this.Str)
		start, end := sliceBounds(len(r), args)
		return value.Str(string(r[start:end])), nil
	})
	nativeMethod(m, p, "indexOf", func(this value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Num(-1), nil
		}
		return value.Num(float64(strings.Index(this.Str, args[0].ToString()))), nil
	})
	nativeMethod(m, p, "split", func(this value.Value, args []value.Value) (value.Value, error) {
		sep := ""
		if len(args) > 0 {
			sep = args[0].ToString()
		}
		var parts []string
		if sep == "" {
			for _, r := range this.Str {
				parts = append(parts, string(r))
			}
		} else {
			parts = strings.Split(this.Str, sep)
		}
		elems := make([]value.Value, len(parts))
		for i, s := range parts {
			elems[i] = value.Str(s)
		}
		return value.FromObject(value.NewArray(m.ArrayProto, elems)), nil
	})
	nativeMethod(m, p, "toUpperCase", func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Str(strings.ToUpper(this.Str)), nil
	})
	nativeMethod(m, p, "toLowerCase", func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Str(strings.ToLower(this.Str)), nil
	})
	nativeMethod(m, p, "trim", func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Str(strings.TrimSpace(this.Str)), nil
	})
	nativeMethod(m, p, "includes", func(this value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Bool(false), nil
		}
		return value.Bool(strings.Contains(this.Str, args[0].ToString())), nil
	})
	nativeMethod(m, p, "toString", func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Str(this.Str), nil
	})
}

func installObjectProto(m *VM) {
	p := m.ObjectProto
	nativeMethod(m, p, "hasOwnProperty", func(this value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 || !this.IsObject() {
			return value.Bool(false), nil
		}
		name := args[0].ToString()
		for _, k := range this.Obj.Keys() {
			if k == name {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	})
	nativeMethod(m, p, "toString", func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Str("[object Object]"), nil
	})
}
