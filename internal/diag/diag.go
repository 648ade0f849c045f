// Package diag implements the `-d`/disassemble and `-a`/ast CLI debug
// modes of spec.md §6: a human-readable instruction listing, and a
// structured dump (AST or bytecode) CBOR-encoded for host tooling to pipe
// into another process, the same role fxamacker/cbor played for the
// teacher's decorator-parameter debug dumps.
package diag

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/njs-go/njs/internal/ast"
	"github.com/njs-go/njs/internal/bytecode"
	"github.com/njs-go/njs/internal/token"
)

// Disassemble renders a Chunk's Main lambda and every nested lambda as a
// flat, indented instruction listing: one line per Instruction, with its
// source line, mnemonic, and operands.
func Disassemble(chunk *bytecode.Chunk) string {
	var b strings.Builder
	disassembleLambda(&b, chunk.Main, 0)
	return b.String()
}

func disassembleLambda(b *strings.Builder, l *bytecode.Lambda, depth int) {
	indent := strings.Repeat("  ", depth)
	name := l.Name
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Fprintf(b, "%sfunction %s(params=%d, locals=%d, closure=%d)\n", indent, name, l.ParamCount, l.NumLocals, l.ClosureSize)
	for pc, instr := range l.Code {
		fmt.Fprintf(b, "%s  %4d  %-16s A=%d B=%d C=%d  ; line %d\n",
			indent, pc, instr.Op, instr.A, instr.B, instr.C, instr.Line)
	}
	for _, child := range l.Lambdas {
		disassembleLambda(b, child, depth+1)
	}
}

// astDump is the CBOR-serializable projection of ast.Node: the live tree
// carries an untyped Ref back-pointer into the scope graph that cbor
// cannot (and need not) encode, so DumpAST walks the real tree into this
// shape first.
type astDump struct {
	Tag      string     `cbor:"tag"`
	Name     string     `cbor:"name,omitempty"`
	Op       string     `cbor:"op,omitempty"`
	Literal  any        `cbor:"literal,omitempty"`
	Line     int        `cbor:"line"`
	Left     *astDump   `cbor:"left,omitempty"`
	Right    *astDump   `cbor:"right,omitempty"`
	Dest     *astDump   `cbor:"dest,omitempty"`
	Args     []*astDump `cbor:"args,omitempty"`
	Body     []*astDump `cbor:"body,omitempty"`
	Parts    []*astDump `cbor:"parts,omitempty"`
	Prefix   bool       `cbor:"prefix,omitempty"`
	Computed bool       `cbor:"computed,omitempty"`
	Optional bool       `cbor:"optional,omitempty"`
}

func project(n *ast.Node) *astDump {
	if n == nil {
		return nil
	}
	d := &astDump{
		Tag:      n.Tag.String(),
		Name:     n.Name,
		Literal:  n.Literal,
		Line:     n.Line,
		Left:     project(n.Left),
		Right:    project(n.Right),
		Dest:     project(n.Dest),
		Prefix:   n.Prefix,
		Computed: n.Computed,
		Optional: n.Optional,
	}
	if n.Op != token.ILLEGAL {
		d.Op = n.Op.String()
	}
	for _, a := range n.Args {
		d.Args = append(d.Args, project(a))
	}
	for _, s := range n.Body {
		d.Body = append(d.Body, project(s))
	}
	for _, p := range n.Parts {
		d.Parts = append(d.Parts, project(p))
	}
	return d
}

// DumpAST CBOR-encodes a Program node for the `-a` CLI mode.
func DumpAST(program *ast.Node) ([]byte, error) {
	return cbor.Marshal(project(program))
}

// instructionDump/lambdaDump mirror Instruction/Lambda for the `-d`
// mode's CBOR variant (host tooling that wants structured bytecode
// instead of the text listing Disassemble produces).
type instructionDump struct {
	Op   string `cbor:"op"`
	A    int32  `cbor:"a"`
	B    int32  `cbor:"b"`
	C    int32  `cbor:"c"`
	Line int    `cbor:"line"`
}

type lambdaDump struct {
	Name        string             `cbor:"name"`
	ParamCount  int                `cbor:"paramCount"`
	NumLocals   int                `cbor:"numLocals"`
	ClosureSize int                `cbor:"closureSize"`
	Code        []instructionDump  `cbor:"code"`
	Lambdas     []*lambdaDump      `cbor:"lambdas,omitempty"`
}

func projectLambda(l *bytecode.Lambda) *lambdaDump {
	d := &lambdaDump{Name: l.Name, ParamCount: l.ParamCount, NumLocals: l.NumLocals, ClosureSize: l.ClosureSize}
	for _, instr := range l.Code {
		d.Code = append(d.Code, instructionDump{Op: instr.Op.String(), A: instr.A, B: instr.B, C: instr.C, Line: instr.Line})
	}
	for _, child := range l.Lambdas {
		d.Lambdas = append(d.Lambdas, projectLambda(child))
	}
	return d
}

// DumpBytecode CBOR-encodes a Chunk's Main lambda tree. The `-d` CLI mode
// prints Disassemble's text listing; DumpBytecode is for host callers.
func DumpBytecode(chunk *bytecode.Chunk) ([]byte, error) {
	return cbor.Marshal(projectLambda(chunk.Main))
}
