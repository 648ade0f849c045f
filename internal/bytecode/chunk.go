package bytecode

import "github.com/njs-go/njs/internal/value"

// Lambda is one compiled function body: its own instruction stream,
// constant pool, and the slot-count metadata the VM needs to size a call
// frame without walking the scope tree again at call time (spec.md §4.5
// "the generator bakes frame shape into the Lambda so Call never consults
// the scope tree").
type Lambda struct {
	Name       string
	ParamCount int
	NumLocals  int // LOCAL-region slot count for this function's frame
	ClosureSize int // number of (name-independent) slots this function exposes to nested closures
	IsArrow    bool
	Code       []Instruction
	Constants  []value.Value
	Lambdas    []*Lambda // nested function literals, referenced by OpMakeFunction's operand
	SourceFile string
}

// Chunk is the top-level compiled unit returned by Generate: a Program's
// Lambda plus every global slot count the VM needs to allocate the GLOBAL
// region array.
type Chunk struct {
	Main        *Lambda
	NumGlobals  int
	SourceFile  string
}

func newLambda(name string) *Lambda {
	return &Lambda{Name: name}
}

func (l *Lambda) emit(op Op, a, b, c int32, line int) int {
	l.Code = append(l.Code, Instruction{Op: op, A: a, B: b, C: c, Line: line})
	return len(l.Code) - 1
}

func (l *Lambda) here() int { return len(l.Code) }

func (l *Lambda) patchA(at int, target int32) { l.Code[at].A = target }
func (l *Lambda) patchB(at int, target int32) { l.Code[at].B = target }

func (l *Lambda) addConstant(v value.Value) int32 {
	for i, c := range l.Constants {
		if c.Kind == v.Kind && c.Kind == value.Number && c.Num == v.Num {
			return int32(i)
		}
		if c.Kind == v.Kind && c.Kind == value.String && c.Str == v.Str {
			return int32(i)
		}
	}
	l.Constants = append(l.Constants, v)
	return int32(len(l.Constants) - 1)
}

func (l *Lambda) addLambda(child *Lambda) int32 {
	l.Lambdas = append(l.Lambdas, child)
	return int32(len(l.Lambdas) - 1)
}
