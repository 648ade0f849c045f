package bytecode

import (
	"fmt"

	"github.com/njs-go/njs/internal/ast"
	"github.com/njs-go/njs/internal/scope"
	"github.com/njs-go/njs/internal/token"
	"github.com/njs-go/njs/internal/value"
)

// Generator lowers a resolved AST (every AST_IDENTIFIER carries a
// *scope.Variable in Node.Ref, per spec.md §4.4) into a Chunk of
// index-addressed instructions (spec.md §4.5). One Generator runs once
// per Program; genFunction recurses for each nested function literal.
type Generator struct {
	file string
}

func New(file string) *Generator { return &Generator{file: file} }

// Generate lowers a whole program. global is the already-resolved root
// scope (scope.Resolver.Run must have run first).
func (g *Generator) Generate(program *ast.Node, global *scope.Scope) (*Chunk, error) {
	fg := &funcGen{gen: g, lambda: newLambda("<main>")}
	fg.lambda.SourceFile = g.file
	for _, stmt := range program.Body {
		if err := fg.genStmt(stmt); err != nil {
			return nil, err
		}
	}
	fg.lambda.emit(OpReturnUndef, 0, 0, 0, 0)
	fg.lambda.NumLocals = fg.tempMax
	return &Chunk{Main: fg.lambda, NumGlobals: int(global.NextLocalCount()), SourceFile: g.file}, nil
}

// loopCtx tracks the patch lists for break/continue inside one loop or
// switch, plus an optional label for labelled break/continue.
type loopCtx struct {
	label          string
	continueTarget int // -1 if continue jumps are patched lazily (for-loop update clause)
	breakPatches   []int
	continuePatches []int
	isSwitch       bool
}

// funcGen holds the mutable state for lowering a single function body
// (or the top-level Program, treated as an implicit function).
type funcGen struct {
	gen    *Generator
	lambda *Lambda
	loops  []*loopCtx

	tempBase int // first LOCAL-region offset available for compiler scratch slots
	tempUsed int
	tempMax  int
}

// allocTemp reserves one scratch LOCAL slot beyond the scope resolver's
// own allocation, for lowerings (member/index update and compound
// assignment) that need to hold an intermediate object or key across a
// GET/SET pair without re-evaluating the source expression.
func (fg *funcGen) allocTemp() scope.Index {
	offset := fg.tempBase + fg.tempUsed
	fg.tempUsed++
	if fg.tempUsed > fg.tempMax {
		fg.tempMax = fg.tempUsed
	}
	return scope.NewLocalIndex(uint32(offset))
}

func (fg *funcGen) freeTemp() { fg.tempUsed-- }

func (fg *funcGen) genErr(n *ast.Node, format string, args ...any) error {
	return fmt.Errorf("bytecode: line %d: %s", n.Line, fmt.Sprintf(format, args...))
}

func varOf(n *ast.Node) *scope.Variable {
	if v, ok := n.Ref.(*scope.Variable); ok {
		return v
	}
	return nil
}

// ---- statements ----

func (fg *funcGen) genStmt(n *ast.Node) error {
	if n == nil {
		return nil
	}
	switch n.Tag {
	case token.AST_VAR_DECL:
		return fg.genVarDecl(n)
	case token.AST_BLOCK:
		for _, s := range n.Body {
			if err := fg.genStmt(s); err != nil {
				return err
			}
		}
		return nil
	case token.AST_FUNCTION:
		// Hoisted function declarations are bound by the resolver like
		// var; emit the closure creation and an initializing store.
		return fg.genFunctionDecl(n)
	case token.AST_IF:
		return fg.genIf(n)
	case token.AST_WHILE:
		return fg.genWhile(n, "")
	case token.AST_DO_WHILE:
		return fg.genDoWhile(n, "")
	case token.AST_FOR:
		return fg.genFor(n, "")
	case token.AST_FOR_IN:
		return fg.genForIn(n, "")
	case token.AST_RETURN:
		if n.Left != nil {
			if err := fg.genExpr(n.Left); err != nil {
				return err
			}
			fg.lambda.emit(OpReturn, 0, 0, 0, n.Line)
		} else {
			fg.lambda.emit(OpReturnUndef, 0, 0, 0, n.Line)
		}
		return nil
	case token.AST_BREAK:
		return fg.genBreak(n)
	case token.AST_CONTINUE:
		return fg.genContinue(n)
	case token.AST_THROW:
		if err := fg.genExpr(n.Left); err != nil {
			return err
		}
		fg.lambda.emit(OpThrow, 0, 0, 0, n.Line)
		return nil
	case token.AST_TRY:
		return fg.genTry(n)
	case token.AST_SWITCH:
		return fg.genSwitch(n)
	case token.AST_LABEL:
		return fg.genLabel(n)
	case token.AST_IMPORT:
		// Binding the imported variable is internal/module's job, run
		// before this lambda executes; nothing to emit here.
		return nil
	case token.AST_EXPORT:
		// A module's compilation unit is one function-lambda that
		// returns its default export (spec.md §4.8), so `export default
		// expr` compiles to the module body's return statement.
		if n.Left != nil {
			if err := fg.genExpr(n.Left); err != nil {
				return err
			}
			fg.lambda.emit(OpReturn, 0, 0, 0, n.Line)
			return nil
		}
		fg.lambda.emit(OpReturnUndef, 0, 0, 0, n.Line)
		return nil
	default:
		// expression statement
		if err := fg.genExpr(n); err != nil {
			return err
		}
		fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
		return nil
	}
}

func (fg *funcGen) genVarDecl(n *ast.Node) error {
	for _, decl := range n.Body {
		v := varOf(decl.Dest)
		if decl.Left == nil && v != nil && v.Kind == scope.DeclVar {
			continue // `var x;` leaves an existing (e.g. host-bound) value alone
		}
		if decl.Left != nil {
			if err := fg.genExpr(decl.Left); err != nil {
				return err
			}
		} else {
			fg.lambda.emit(OpLoadUndef, 0, 0, 0, decl.Line)
		}
		if v == nil {
			return fg.genErr(decl, "unresolved declaration target")
		}
		fg.lambda.emit(OpInitVar, int32(v.Index), 0, 0, decl.Line)
		fg.lambda.emit(OpPop, 0, 0, 0, decl.Line)
	}
	return nil
}

func (fg *funcGen) genFunctionDecl(n *ast.Node) error {
	child, err := fg.gen.genFunction(n)
	if err != nil {
		return err
	}
	idx := fg.lambda.addLambda(child)
	fg.lambda.emit(OpMakeFunction, idx, 0, 0, n.Line)
	v := varOf(n.Dest)
	if v == nil {
		return fg.genErr(n, "unresolved function declaration binding")
	}
	fg.lambda.emit(OpInitVar, int32(v.Index), 0, 0, n.Line)
	fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
	return nil
}

func (fg *funcGen) genIf(n *ast.Node) error {
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	jElse := fg.lambda.emit(OpJumpIfFalse, 0, 0, 0, n.Line)
	if err := fg.genStmt(n.Dest); err != nil { // consequent
		return err
	}
	if n.Right != nil {
		jEnd := fg.lambda.emit(OpJump, 0, 0, 0, n.Line)
		fg.lambda.patchA(jElse, int32(fg.lambda.here()))
		if err := fg.genStmt(n.Right); err != nil { // alternate
			return err
		}
		fg.lambda.patchA(jEnd, int32(fg.lambda.here()))
	} else {
		fg.lambda.patchA(jElse, int32(fg.lambda.here()))
	}
	return nil
}

func (fg *funcGen) pushLoop(label string) *loopCtx {
	lc := &loopCtx{label: label, continueTarget: -1}
	fg.loops = append(fg.loops, lc)
	return lc
}

func (fg *funcGen) popLoop() *loopCtx {
	lc := fg.loops[len(fg.loops)-1]
	fg.loops = fg.loops[:len(fg.loops)-1]
	return lc
}

func (fg *funcGen) patchLoopExits(lc *loopCtx, breakTarget, continueTarget int32) {
	for _, at := range lc.breakPatches {
		fg.lambda.patchA(at, breakTarget)
	}
	for _, at := range lc.continuePatches {
		fg.lambda.patchA(at, continueTarget)
	}
}

func (fg *funcGen) genWhile(n *ast.Node, label string) error {
	lc := fg.pushLoop(label)
	top := fg.lambda.here()
	lc.continueTarget = top
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	jEnd := fg.lambda.emit(OpJumpIfFalse, 0, 0, 0, n.Line)
	if err := fg.genStmt(n.Right); err != nil {
		return err
	}
	fg.lambda.emit(OpJump, int32(top), 0, 0, n.Line)
	end := fg.lambda.here()
	fg.lambda.patchA(jEnd, int32(end))
	fg.patchLoopExits(lc, int32(end), int32(top))
	fg.popLoop()
	return nil
}

func (fg *funcGen) genDoWhile(n *ast.Node, label string) error {
	lc := fg.pushLoop(label)
	top := fg.lambda.here()
	if err := fg.genStmt(n.Right); err != nil {
		return err
	}
	condAt := fg.lambda.here()
	lc.continueTarget = condAt
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	fg.lambda.emit(OpJumpIfTrue, int32(top), 0, 0, n.Line)
	end := fg.lambda.here()
	fg.patchLoopExits(lc, int32(end), int32(condAt))
	fg.popLoop()
	return nil
}

// genFor lowers a classic three-part for loop. n.Args holds [init, test,
// update] (any may be nil), n.Right is the body.
func (fg *funcGen) genFor(n *ast.Node, label string) error {
	if len(n.Args) > 0 && n.Args[0] != nil {
		if err := fg.genStmt(n.Args[0]); err != nil {
			return err
		}
	}
	lc := fg.pushLoop(label)
	top := fg.lambda.here()
	var jEnd int = -1
	if len(n.Args) > 1 && n.Args[1] != nil {
		if err := fg.genExpr(n.Args[1]); err != nil {
			return err
		}
		jEnd = fg.lambda.emit(OpJumpIfFalse, 0, 0, 0, n.Line)
	}
	if err := fg.genStmt(n.Right); err != nil {
		return err
	}
	updateAt := fg.lambda.here()
	lc.continueTarget = updateAt
	if len(n.Args) > 2 && n.Args[2] != nil {
		if err := fg.genExpr(n.Args[2]); err != nil {
			return err
		}
		fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
	}
	fg.lambda.emit(OpJump, int32(top), 0, 0, n.Line)
	end := fg.lambda.here()
	if jEnd >= 0 {
		fg.lambda.patchA(jEnd, int32(end))
	}
	fg.patchLoopExits(lc, int32(end), int32(updateAt))
	fg.popLoop()
	return nil
}

// genForIn lowers both for-in and for-of (spec.md scopes for-of to arrays
// only): n.Dest is the loop binding, n.Left the iterated expression,
// n.Body[0] the body, n.Op distinguishes token.IN from token.OF.
func (fg *funcGen) genForIn(n *ast.Node, label string) error {
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	initOp := OpForInInit
	nextOp := OpForInNext
	if n.Op == token.OF {
		initOp = OpForOfInit
		nextOp = OpForOfNext
	}
	fg.lambda.emit(initOp, 0, 0, 0, n.Line)
	lc := fg.pushLoop(label)
	top := fg.lambda.here()
	lc.continueTarget = top
	jEnd := fg.lambda.emit(nextOp, 0, 0, 0, n.Line)
	v := varOf(n.Dest)
	if v == nil {
		return fg.genErr(n, "unresolved for-in binding")
	}
	fg.lambda.emit(OpInitVar, int32(v.Index), 0, 0, n.Line)
	fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
	if err := fg.genStmt(n.Body[0]); err != nil {
		return err
	}
	fg.lambda.emit(OpJump, int32(top), 0, 0, n.Line)
	end := fg.lambda.here()
	fg.lambda.patchA(jEnd, int32(end))
	fg.lambda.emit(OpIterPop, 0, 0, 0, n.Line)
	afterPop := fg.lambda.here()
	fg.patchLoopExits(lc, int32(afterPop), int32(top))
	fg.popLoop()
	return nil
}

func (fg *funcGen) genLabel(n *ast.Node) error {
	switch n.Left.Tag {
	case token.AST_WHILE:
		return fg.genWhile(n.Left, n.Name)
	case token.AST_DO_WHILE:
		return fg.genDoWhile(n.Left, n.Name)
	case token.AST_FOR:
		return fg.genFor(n.Left, n.Name)
	case token.AST_FOR_IN:
		return fg.genForIn(n.Left, n.Name)
	default:
		// A label on a non-loop statement only matters to `break label;`
		// inside it; model it as a single-iteration break target.
		lc := fg.pushLoop(n.Name)
		if err := fg.genStmt(n.Left); err != nil {
			return err
		}
		end := fg.lambda.here()
		fg.patchLoopExits(lc, int32(end), int32(end))
		fg.popLoop()
		return nil
	}
}

func (fg *funcGen) findLoop(label string) *loopCtx {
	for i := len(fg.loops) - 1; i >= 0; i-- {
		if label == "" || fg.loops[i].label == label {
			return fg.loops[i]
		}
	}
	return nil
}

func (fg *funcGen) genBreak(n *ast.Node) error {
	lc := fg.findLoop(n.Name)
	if lc == nil {
		return fg.genErr(n, "SyntaxError: illegal break statement")
	}
	at := fg.lambda.emit(OpJump, 0, 0, 0, n.Line)
	lc.breakPatches = append(lc.breakPatches, at)
	return nil
}

func (fg *funcGen) genContinue(n *ast.Node) error {
	lc := fg.findLoop(n.Name)
	if lc == nil || lc.isSwitch {
		return fg.genErr(n, "SyntaxError: illegal continue statement")
	}
	at := fg.lambda.emit(OpJump, 0, 0, 0, n.Line)
	lc.continuePatches = append(lc.continuePatches, at)
	return nil
}

// genTry lowers try/catch/finally. n.Body[0] is the try block, n.Dest the
// catch parameter (or nil), n.Args[0] the catch block (or nil),
// n.Args[1] the finally block (or nil). Finally code is emitted once and
// reached by fallthrough on the normal path and as the registered
// handler target on the exceptional path; if the exception is not
// consumed by RETURN/BREAK/CONTINUE inside finally the VM rethrows it
// automatically once the finally block completes (spec.md §4.5 TRY
// handler rule, simplified: a finally that itself returns/breaks/continues
// masks the original exception, matching the common case but not the
// edge case of nested exceptions from within finally itself).
func (fg *funcGen) genTry(n *ast.Node) error {
	hasCatch := n.Args[0] != nil
	hasFinally := len(n.Args) > 1 && n.Args[1] != nil

	pushAt := fg.lambda.emit(OpTryPush, -1, -1, 0, n.Line)
	if err := fg.genStmt(n.Body[0]); err != nil {
		return err
	}
	fg.lambda.emit(OpTryPop, 0, 0, 0, n.Line)
	jOverCatch := -1
	if hasCatch || hasFinally {
		jOverCatch = fg.lambda.emit(OpJump, 0, 0, 0, n.Line)
	}

	catchAt := int32(-1)
	if hasCatch {
		catchAt = int32(fg.lambda.here())
		if n.Dest != nil {
			v := varOf(n.Dest)
			if v == nil {
				return fg.genErr(n, "unresolved catch binding")
			}
			fg.lambda.emit(OpInitVar, int32(v.Index), 0, 0, n.Line)
			fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
		} else {
			fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
		}
		if err := fg.genStmt(n.Args[0]); err != nil {
			return err
		}
	}

	finallyAt := int32(-1)
	if hasFinally {
		finallyAt = int32(fg.lambda.here())
		fg.lambda.emit(OpEnterFinally, 0, 0, 0, n.Line)
		if err := fg.genStmt(n.Args[1]); err != nil {
			return err
		}
		fg.lambda.emit(OpLeaveFinally, 0, 0, 0, n.Line)
	}

	end := int32(fg.lambda.here())
	if jOverCatch >= 0 {
		fg.lambda.patchA(jOverCatch, end)
	}
	fg.lambda.patchA(pushAt, pick(catchAt, finallyAt, end))
	fg.lambda.patchB(pushAt, finallyAt)
	return nil
}

func pick(catchAt, finallyAt, end int32) int32 {
	if catchAt >= 0 {
		return catchAt
	}
	if finallyAt >= 0 {
		return finallyAt
	}
	return end
}

// genSwitch lowers to a sequential test chain (spec.md leaves switch
// dispatch strategy unspecified; a jump table is an optimization left
// for later, matching the Open Questions note).
func (fg *funcGen) genSwitch(n *ast.Node) error {
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	lc := fg.pushLoop("")
	lc.isSwitch = true
	type pending struct {
		jAt  int
		body []*ast.Node
	}
	var cases []pending
	defaultIdx := -1
	for _, c := range n.Body {
		if c.Left == nil {
			defaultIdx = len(cases)
			cases = append(cases, pending{jAt: -1, body: c.Body})
			continue
		}
		fg.lambda.emit(OpDup, 0, 0, 0, c.Line)
		if err := fg.genExpr(c.Left); err != nil {
			return err
		}
		fg.lambda.emit(OpBinary, int32(token.SEQ), 0, 0, c.Line)
		j := fg.lambda.emit(OpJumpIfTrue, 0, 0, 0, c.Line)
		cases = append(cases, pending{jAt: j, body: c.Body})
	}
	jDefaultOrEnd := fg.lambda.emit(OpJump, 0, 0, 0, n.Line)
	bodies := make([]int32, len(cases))
	ci := 0
	for _, c := range n.Body {
		bodies[ci] = int32(fg.lambda.here())
		if c.Left != nil {
			fg.lambda.patchA(cases[ci].jAt, bodies[ci])
		}
		fg.lambda.emit(OpPop, 0, 0, 0, c.Line) // drop the switch discriminant copy
		for _, s := range c.Body {
			if err := fg.genStmt(s); err != nil {
				return err
			}
		}
		ci++
	}
	if defaultIdx >= 0 {
		fg.lambda.patchA(jDefaultOrEnd, bodies[defaultIdx])
	} else {
		// No case matched and no default clause: clean up the
		// discriminant copy on its own path, BEFORE `end`, so that
		// break jumps (which target `end` directly, already having
		// popped their own case body's discriminant copy) don't run
		// through this cleanup a second time.
		noMatch := int32(fg.lambda.here())
		fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
		fg.lambda.patchA(jDefaultOrEnd, noMatch)
	}
	end := int32(fg.lambda.here())
	fg.patchLoopExits(lc, end, end)
	fg.popLoop()
	return nil
}

// ---- expressions ----

func (fg *funcGen) genExpr(n *ast.Node) error {
	if n == nil {
		fg.lambda.emit(OpLoadUndef, 0, 0, 0, 0)
		return nil
	}
	switch n.Tag {
	case token.AST_LITERAL:
		return fg.genLiteral(n)
	case token.NULL:
		fg.lambda.emit(OpLoadNull, 0, 0, 0, n.Line)
		return nil
	case token.TRUE:
		fg.lambda.emit(OpLoadTrue, 0, 0, 0, n.Line)
		return nil
	case token.FALSE:
		fg.lambda.emit(OpLoadFalse, 0, 0, 0, n.Line)
		return nil
	case token.UNDEFINED:
		fg.lambda.emit(OpLoadUndef, 0, 0, 0, n.Line)
		return nil
	case token.THIS:
		fg.lambda.emit(OpLoadThis, 0, 0, 0, n.Line)
		return nil
	case token.AST_IDENTIFIER:
		v := varOf(n)
		if v == nil {
			return fg.genErr(n, "unresolved identifier %q", n.Name)
		}
		fg.lambda.emit(OpLoadVar, int32(v.Index), 0, 0, n.Line)
		return nil
	case token.AST_REGEX:
		src, flags := regexParts(n)
		srcIdx := fg.lambda.addConstant(value.Str(src))
		flagsIdx := fg.lambda.addConstant(value.Str(flags))
		fg.lambda.emit(OpMakeRegex, srcIdx, flagsIdx, 0, n.Line)
		return nil
	case token.AST_TEMPLATE:
		return fg.genTemplate(n)
	case token.AST_ARRAY:
		return fg.genArray(n)
	case token.AST_OBJECT:
		return fg.genObject(n)
	case token.AST_FUNCTION, token.AST_ARROW:
		child, err := fg.gen.genFunction(n)
		if err != nil {
			return err
		}
		idx := fg.lambda.addLambda(child)
		op := OpMakeFunction
		if n.Tag == token.AST_ARROW {
			op = OpMakeArrow
		}
		fg.lambda.emit(op, idx, 0, 0, n.Line)
		return nil
	case token.AST_BINARY:
		return fg.genBinary(n)
	case token.AST_LOGICAL:
		return fg.genLogical(n)
	case token.AST_UNARY:
		return fg.genUnary(n)
	case token.AST_UPDATE:
		return fg.genUpdate(n)
	case token.AST_ASSIGN:
		return fg.genAssign(n)
	case token.AST_CONDITIONAL:
		return fg.genConditional(n)
	case token.AST_SEQUENCE:
		for i, p := range n.Parts {
			if err := fg.genExpr(p); err != nil {
				return err
			}
			if i != len(n.Parts)-1 {
				fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
			}
		}
		return nil
	case token.AST_MEMBER, token.AST_OPTIONAL_MEMBER:
		return fg.genMemberLoad(n)
	case token.AST_INDEX:
		if err := fg.genExpr(n.Left); err != nil {
			return err
		}
		if err := fg.genExpr(n.Right); err != nil {
			return err
		}
		fg.lambda.emit(OpGetIndex, 0, 0, 0, n.Line)
		return nil
	case token.AST_CALL:
		return fg.genCall(n)
	case token.AST_NEW:
		return fg.genNew(n)
	default:
		return fg.genErr(n, "generator: unhandled expression tag %s", n.Tag)
	}
}

// regexParts splits a REGEX token's raw lexeme ("/src/flags") as captured
// by the lexer into its source and flags, matching the ECMA literal shape
// the resumable scanner hands the parser (spec.md §4.1 ScanRegexLiteral).
func regexParts(n *ast.Node) (string, string) {
	raw, _ := n.Literal.(string)
	for i := len(raw) - 1; i > 0; i-- {
		if raw[i] == '/' {
			return raw[1:i], raw[i+1:]
		}
	}
	return raw, ""
}

func (fg *funcGen) genLiteral(n *ast.Node) error {
	var v value.Value
	switch lit := n.Literal.(type) {
	case float64:
		v = value.Num(lit)
	case string:
		v = value.Str(lit)
	default:
		return fg.genErr(n, "generator: unsupported literal type %T", n.Literal)
	}
	idx := fg.lambda.addConstant(v)
	fg.lambda.emit(OpLoadConst, idx, 0, 0, n.Line)
	return nil
}

func (fg *funcGen) genTemplate(n *ast.Node) error {
	if len(n.Parts) == 0 {
		idx := fg.lambda.addConstant(value.Str(""))
		fg.lambda.emit(OpLoadConst, idx, 0, 0, n.Line)
		return nil
	}
	if err := fg.genTemplatePart(n.Parts[0]); err != nil {
		return err
	}
	for _, p := range n.Parts[1:] {
		if err := fg.genTemplatePart(p); err != nil {
			return err
		}
		fg.lambda.emit(OpBinary, int32(token.PLUS), 0, 0, n.Line)
	}
	return nil
}

func (fg *funcGen) genTemplatePart(p *ast.Node) error {
	if p.Tag == token.TEMPLATE_CHUNK || p.Tag == token.TEMPLATE_HEAD ||
		p.Tag == token.TEMPLATE_MIDDLE || p.Tag == token.TEMPLATE_TAIL {
		idx := fg.lambda.addConstant(value.Str(p.Name))
		fg.lambda.emit(OpLoadConst, idx, 0, 0, p.Line)
		return nil
	}
	return fg.genExpr(p)
}

func (fg *funcGen) genArray(n *ast.Node) error {
	fg.lambda.emit(OpNewArray, 0, 0, 0, n.Line)
	for _, el := range n.Parts {
		if el.Tag == token.AST_SPREAD {
			if err := fg.genExpr(el.Left); err != nil {
				return err
			}
		} else {
			if err := fg.genExpr(el); err != nil {
				return err
			}
		}
		fg.lambda.emit(OpArrayPush, 0, 0, 0, el.Line)
	}
	return nil
}

func (fg *funcGen) genObject(n *ast.Node) error {
	fg.lambda.emit(OpNewObject, 0, 0, 0, n.Line)
	for _, prop := range n.Parts {
		fg.lambda.emit(OpDup, 0, 0, 0, prop.Line)
		if err := fg.genExpr(prop.Right); err != nil {
			return err
		}
		nameIdx := fg.lambda.addConstant(value.Str(prop.Name))
		fg.lambda.emit(OpSetProp, 0, 0, nameIdx, prop.Line)
		fg.lambda.emit(OpPop, 0, 0, 0, prop.Line)
	}
	return nil
}

func (fg *funcGen) genBinary(n *ast.Node) error {
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	if err := fg.genExpr(n.Right); err != nil {
		return err
	}
	switch n.Op {
	case token.IN:
		fg.lambda.emit(OpInOp, 0, 0, 0, n.Line)
	case token.INSTANCEOF:
		fg.lambda.emit(OpInstanceOf, 0, 0, 0, n.Line)
	default:
		fg.lambda.emit(OpBinary, int32(n.Op), 0, 0, n.Line)
	}
	return nil
}

// genLogical lowers short-circuit && || ?? without evaluating the right
// operand unless needed (spec.md §4.5 "short-circuit logical lowering").
func (fg *funcGen) genLogical(n *ast.Node) error {
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	if n.Op == token.QUESTION_QUESTION {
		// JUMP_IF_NULLISH only peeks: a nullish left value is popped and
		// replaced by the right operand; any other left value is the result.
		jNull := fg.lambda.emit(OpJumpIfNullish, 0, 0, 0, n.Line)
		jEnd := fg.lambda.emit(OpJump, 0, 0, 0, n.Line)
		fg.lambda.patchA(jNull, int32(fg.lambda.here()))
		fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
		if err := fg.genExpr(n.Right); err != nil {
			return err
		}
		fg.lambda.patchA(jEnd, int32(fg.lambda.here()))
		return nil
	}
	fg.lambda.emit(OpDup, 0, 0, 0, n.Line)
	var j int
	switch n.Op {
	case token.AND:
		j = fg.lambda.emit(OpJumpIfFalse, 0, 0, 0, n.Line)
	case token.OR:
		j = fg.lambda.emit(OpJumpIfTrue, 0, 0, 0, n.Line)
	default:
		return fg.genErr(n, "generator: unknown logical operator %s", n.Op)
	}
	fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
	if err := fg.genExpr(n.Right); err != nil {
		return err
	}
	fg.lambda.patchA(j, int32(fg.lambda.here()))
	return nil
}

func (fg *funcGen) genUnary(n *ast.Node) error {
	switch n.Op {
	case token.TYPEOF:
		if n.Left.Tag == token.AST_IDENTIFIER {
			if v := varOf(n.Left); v != nil {
				fg.lambda.emit(OpLoadVar, int32(v.Index), 0, 0, n.Line)
				fg.lambda.emit(OpTypeOf, 0, 0, 0, n.Line)
				return nil
			}
		}
		if err := fg.genExpr(n.Left); err != nil {
			return err
		}
		fg.lambda.emit(OpTypeOf, 0, 0, 0, n.Line)
		return nil
	case token.VOID:
		if err := fg.genExpr(n.Left); err != nil {
			return err
		}
		fg.lambda.emit(OpVoid, 0, 0, 0, n.Line)
		return nil
	case token.DELETE:
		return fg.genDelete(n.Left)
	default:
		if err := fg.genExpr(n.Left); err != nil {
			return err
		}
		fg.lambda.emit(OpUnary, int32(n.Op), 0, 0, n.Line)
		return nil
	}
}

func (fg *funcGen) genDelete(target *ast.Node) error {
	switch target.Tag {
	case token.AST_MEMBER:
		if err := fg.genExpr(target.Left); err != nil {
			return err
		}
		idx := fg.lambda.addConstant(value.Str(target.Name))
		fg.lambda.emit(OpDeleteProp, 0, 0, idx, target.Line)
		return nil
	case token.AST_INDEX:
		if err := fg.genExpr(target.Left); err != nil {
			return err
		}
		if err := fg.genExpr(target.Right); err != nil {
			return err
		}
		fg.lambda.emit(OpDeleteIndex, 0, 0, 0, target.Line)
		return nil
	default:
		// delete of an unqualified identifier: always true, no binding removed
		// (strict-mode-ish CORE subset).
		fg.lambda.emit(OpLoadTrue, 0, 0, 0, target.Line)
		return nil
	}
}

// genUpdate lowers ++/-- for all three assignable target shapes. The
// prefix/postfix distinction is resolved entirely at generation time: a
// scratch local holds the pre-update value so the right one (old for
// postfix, new for prefix) ends up as the expression's result regardless
// of which value OP_UPDATE itself computes.
func (fg *funcGen) genUpdate(n *ast.Node) error {
	switch n.Left.Tag {
	case token.AST_IDENTIFIER:
		v := varOf(n.Left)
		if v == nil {
			return fg.genErr(n, "unresolved update target")
		}
		oldT := fg.allocTemp()
		fg.lambda.emit(OpLoadVar, int32(v.Index), 0, 0, n.Line) // old
		fg.lambda.emit(OpStoreVarDrop, int32(oldT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(oldT), 0, 0, n.Line) // old
		fg.lambda.emit(OpUpdate, int32(n.Op), 0, 0, n.Line)  // new
		fg.lambda.emit(OpStoreVar, int32(v.Index), 0, 0, n.Line) // new (echo)
		if !n.Prefix {
			fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
			fg.lambda.emit(OpLoadVar, int32(oldT), 0, 0, n.Line)
		}
		fg.freeTemp()
		return nil

	case token.AST_MEMBER:
		objT := fg.allocTemp()
		oldT := fg.allocTemp()
		newT := fg.allocTemp()
		if err := fg.genExpr(n.Left.Left); err != nil {
			return err
		}
		fg.lambda.emit(OpStoreVarDrop, int32(objT), 0, 0, n.Line)
		nameIdx := fg.lambda.addConstant(value.Str(n.Left.Name))
		fg.lambda.emit(OpLoadVar, int32(objT), 0, 0, n.Line)
		fg.lambda.emit(OpGetProp, 0, 0, nameIdx, n.Line)
		fg.lambda.emit(OpStoreVarDrop, int32(oldT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(oldT), 0, 0, n.Line)
		fg.lambda.emit(OpUpdate, int32(n.Op), 0, 0, n.Line)
		fg.lambda.emit(OpStoreVarDrop, int32(newT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(objT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(newT), 0, 0, n.Line)
		fg.lambda.emit(OpSetProp, 0, 0, nameIdx, n.Line) // echoes new
		if !n.Prefix {
			fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
			fg.lambda.emit(OpLoadVar, int32(oldT), 0, 0, n.Line)
		}
		fg.freeTemp()
		fg.freeTemp()
		fg.freeTemp()
		return nil

	case token.AST_INDEX:
		objT := fg.allocTemp()
		keyT := fg.allocTemp()
		oldT := fg.allocTemp()
		newT := fg.allocTemp()
		if err := fg.genExpr(n.Left.Left); err != nil {
			return err
		}
		fg.lambda.emit(OpStoreVarDrop, int32(objT), 0, 0, n.Line)
		if err := fg.genExpr(n.Left.Right); err != nil {
			return err
		}
		fg.lambda.emit(OpStoreVarDrop, int32(keyT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(objT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(keyT), 0, 0, n.Line)
		fg.lambda.emit(OpGetIndex, 0, 0, 0, n.Line)
		fg.lambda.emit(OpStoreVarDrop, int32(oldT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(oldT), 0, 0, n.Line)
		fg.lambda.emit(OpUpdate, int32(n.Op), 0, 0, n.Line)
		fg.lambda.emit(OpStoreVarDrop, int32(newT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(objT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(keyT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(newT), 0, 0, n.Line)
		fg.lambda.emit(OpSetIndex, 0, 0, 0, n.Line) // echoes new
		if !n.Prefix {
			fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
			fg.lambda.emit(OpLoadVar, int32(oldT), 0, 0, n.Line)
		}
		fg.freeTemp()
		fg.freeTemp()
		fg.freeTemp()
		fg.freeTemp()
		return nil

	default:
		return fg.genErr(n, "generator: unsupported update target")
	}
}

// genAssign lowers `=` and compound assignment operators.
func (fg *funcGen) genAssign(n *ast.Node) error {
	if n.Op == token.ASSIGN {
		switch n.Dest.Tag {
		case token.AST_IDENTIFIER:
			v := varOf(n.Dest)
			if v == nil {
				return fg.genErr(n, "unresolved assignment target")
			}
			if err := fg.genExpr(n.Right); err != nil {
				return err
			}
			fg.lambda.emit(OpStoreVar, int32(v.Index), 0, 0, n.Line)
			return nil
		case token.AST_MEMBER:
			if err := fg.genExpr(n.Dest.Left); err != nil {
				return err
			}
			if err := fg.genExpr(n.Right); err != nil {
				return err
			}
			idx := fg.lambda.addConstant(value.Str(n.Dest.Name))
			fg.lambda.emit(OpSetProp, 0, 0, idx, n.Line)
			return nil
		case token.AST_INDEX:
			if err := fg.genExpr(n.Dest.Left); err != nil {
				return err
			}
			if err := fg.genExpr(n.Dest.Right); err != nil {
				return err
			}
			if err := fg.genExpr(n.Right); err != nil {
				return err
			}
			fg.lambda.emit(OpSetIndex, 0, 0, 0, n.Line)
			return nil
		default:
			return fg.genErr(n, "generator: unsupported assignment target")
		}
	}

	// Compound assignment: desugar `a op= b` into `a = a op b`. Member and
	// index targets stash the object (and key) in a scratch local so the
	// target expression is evaluated exactly once.
	binOp := compoundToBinary(n.Op)
	switch n.Dest.Tag {
	case token.AST_IDENTIFIER:
		v := varOf(n.Dest)
		if v == nil {
			return fg.genErr(n, "unresolved assignment target")
		}
		fg.lambda.emit(OpLoadVar, int32(v.Index), 0, 0, n.Line)
		if err := fg.genExpr(n.Right); err != nil {
			return err
		}
		fg.lambda.emit(OpBinary, int32(binOp), 0, 0, n.Line)
		fg.lambda.emit(OpStoreVar, int32(v.Index), 0, 0, n.Line)
		return nil
	case token.AST_MEMBER:
		objT := fg.allocTemp()
		newT := fg.allocTemp()
		if err := fg.genExpr(n.Dest.Left); err != nil {
			return err
		}
		fg.lambda.emit(OpStoreVarDrop, int32(objT), 0, 0, n.Line)
		idx := fg.lambda.addConstant(value.Str(n.Dest.Name))
		fg.lambda.emit(OpLoadVar, int32(objT), 0, 0, n.Line)
		fg.lambda.emit(OpGetProp, 0, 0, idx, n.Line)
		if err := fg.genExpr(n.Right); err != nil {
			return err
		}
		fg.lambda.emit(OpBinary, int32(binOp), 0, 0, n.Line)
		fg.lambda.emit(OpStoreVarDrop, int32(newT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(objT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(newT), 0, 0, n.Line)
		fg.lambda.emit(OpSetProp, 0, 0, idx, n.Line) // echoes new
		fg.freeTemp()
		fg.freeTemp()
		return nil
	case token.AST_INDEX:
		objT := fg.allocTemp()
		keyT := fg.allocTemp()
		newT := fg.allocTemp()
		if err := fg.genExpr(n.Dest.Left); err != nil {
			return err
		}
		fg.lambda.emit(OpStoreVarDrop, int32(objT), 0, 0, n.Line)
		if err := fg.genExpr(n.Dest.Right); err != nil {
			return err
		}
		fg.lambda.emit(OpStoreVarDrop, int32(keyT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(objT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(keyT), 0, 0, n.Line)
		fg.lambda.emit(OpGetIndex, 0, 0, 0, n.Line)
		if err := fg.genExpr(n.Right); err != nil {
			return err
		}
		fg.lambda.emit(OpBinary, int32(binOp), 0, 0, n.Line)
		fg.lambda.emit(OpStoreVarDrop, int32(newT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(objT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(keyT), 0, 0, n.Line)
		fg.lambda.emit(OpLoadVar, int32(newT), 0, 0, n.Line)
		fg.lambda.emit(OpSetIndex, 0, 0, 0, n.Line) // echoes new
		fg.freeTemp()
		fg.freeTemp()
		fg.freeTemp()
		return nil
	default:
		return fg.genErr(n, "generator: unsupported compound assignment target")
	}
}

func compoundToBinary(op token.Type) token.Type {
	switch op {
	case token.PLUS_ASSIGN:
		return token.PLUS
	case token.MINUS_ASSIGN:
		return token.MINUS
	case token.STAR_ASSIGN:
		return token.STAR
	case token.SLASH_ASSIGN:
		return token.SLASH
	case token.PERCENT_ASSIGN:
		return token.PERCENT
	case token.POW_ASSIGN:
		return token.POW
	case token.AND_ASSIGN:
		return token.BAND
	case token.OR_ASSIGN:
		return token.BOR
	case token.XOR_ASSIGN:
		return token.BXOR
	case token.SHL_ASSIGN:
		return token.SHL
	case token.SHR_ASSIGN:
		return token.SHR
	case token.USHR_ASSIGN:
		return token.USHR
	default:
		return op
	}
}

func (fg *funcGen) genConditional(n *ast.Node) error {
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	jElse := fg.lambda.emit(OpJumpIfFalse, 0, 0, 0, n.Line)
	if err := fg.genExpr(n.Dest); err != nil {
		return err
	}
	jEnd := fg.lambda.emit(OpJump, 0, 0, 0, n.Line)
	fg.lambda.patchA(jElse, int32(fg.lambda.here()))
	if err := fg.genExpr(n.Right); err != nil {
		return err
	}
	fg.lambda.patchA(jEnd, int32(fg.lambda.here()))
	return nil
}

func (fg *funcGen) genMemberLoad(n *ast.Node) error {
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	if n.Tag == token.AST_OPTIONAL_MEMBER {
		// JUMP_IF_NULLISH only peeks, so the object itself is tested and
		// either read from or popped and replaced by undefined.
		jSkip := fg.lambda.emit(OpJumpIfNullish, 0, 0, 0, n.Line)
		if n.Computed {
			if err := fg.genExpr(n.Right); err != nil {
				return err
			}
			fg.lambda.emit(OpGetIndex, 0, 0, 0, n.Line)
		} else {
			idx := fg.lambda.addConstant(value.Str(n.Name))
			fg.lambda.emit(OpGetProp, 0, 0, idx, n.Line)
		}
		jEnd := fg.lambda.emit(OpJump, 0, 0, 0, n.Line)
		fg.lambda.patchA(jSkip, int32(fg.lambda.here()))
		fg.lambda.emit(OpPop, 0, 0, 0, n.Line)
		fg.lambda.emit(OpLoadUndef, 0, 0, 0, n.Line)
		fg.lambda.patchA(jEnd, int32(fg.lambda.here()))
		return nil
	}
	idx := fg.lambda.addConstant(value.Str(n.Name))
	fg.lambda.emit(OpGetProp, 0, 0, idx, n.Line)
	return nil
}

func (fg *funcGen) genCall(n *ast.Node) error {
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := fg.genExpr(a); err != nil {
			return err
		}
	}
	fg.lambda.emit(OpCall, int32(len(n.Args)), 0, 0, n.Line)
	return nil
}

func (fg *funcGen) genNew(n *ast.Node) error {
	if err := fg.genExpr(n.Left); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := fg.genExpr(a); err != nil {
			return err
		}
	}
	fg.lambda.emit(OpNew, int32(len(n.Args)), 0, 0, n.Line)
	return nil
}

// genFunction lowers a nested function/arrow literal. n.Literal carries the
// function's own *scope.Scope (attached by the parser when the function
// body is closed), much as n.Dest.Ref carries a *scope.Variable for
// declarations — both are `any` to avoid the ast<->scope import cycle.
func (g *Generator) genFunction(n *ast.Node) (*Lambda, error) {
	fnScope, _ := n.Literal.(*scope.Scope)
	name := n.Name
	child := newLambda(name)
	child.SourceFile = g.file
	child.ParamCount = len(n.Args)
	child.IsArrow = n.Tag == token.AST_ARROW
	cfg := &funcGen{gen: g, lambda: child}
	if fnScope != nil {
		cfg.tempBase = int(fnScope.NextLocalCount())
	}
	for _, s := range n.Body {
		if err := cfg.genStmt(s); err != nil {
			return nil, err
		}
	}
	child.emit(OpReturnUndef, 0, 0, 0, n.Line)
	child.NumLocals = cfg.tempBase + cfg.tempMax
	return child, nil
}
