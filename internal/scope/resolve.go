package scope

import (
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/njs-go/njs/internal/ast"
	"github.com/njs-go/njs/internal/token"
)

// UnresolvedError is a ReferenceError-shaped diagnostic for an identifier
// that resolves to nothing. The Resolver itself never produces one: every
// reference with no declaration becomes an implicit global (spec.md §4.4).
type UnresolvedError struct {
	Name       string
	Line       int
	Suggestion string
}

func (e *UnresolvedError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("ReferenceError: %s is not defined (line %d) — did you mean %q?", e.Name, e.Line, e.Suggestion)
	}
	return fmt.Sprintf("ReferenceError: %s is not defined (line %d)", e.Name, e.Line)
}

// Resolver runs the two passes of spec.md §4.4 over a fully-parsed AST:
// declarations are already inserted into the scope tree as the parser
// walks (Scope.Declare is called directly from grammar states), so
// Resolver's job is the reference pass — for every AST_IDENTIFIER node,
// walk parents, assign it an Index, and allocate LOCAL/CLOSURE slots as
// needed, deterministically (spec.md §8 Index stability: declaration order
// drives allocation order, never map iteration order).
type Resolver struct {
	Global *Scope
	Errors []error
}

func NewResolver(global *Scope) *Resolver {
	return &Resolver{Global: global}
}

// Run allocates slots for every declaration (in insertion order) across
// the whole scope tree, then resolves every pending reference.
func (r *Resolver) Run() {
	r.allocate(r.Global)
	r.resolveReferences(r.Global)
}

func (r *Resolver) allocate(s *Scope) {
	// Block and catch scopes take slots from their enclosing function (or
	// global) scope's counter, so they never collide with its own slots.
	owner := s.FunctionScope()
	region := RegionLocal
	if owner.Kind == Global {
		region = RegionGlobal
	}
	for _, name := range s.order {
		v := s.declarations[name]
		if v.ThisObject || v.Arguments || v.Kind == DeclArgument {
			continue // already indexed into ARGUMENTS / CALLEE_ARGUMENTS by the parser
		}
		offset := owner.nextLocal
		owner.nextLocal++
		if region == RegionGlobal {
			v.Index = NewGlobalIndex(offset)
		} else {
			v.Index = NewLocalIndex(offset)
		}
	}
	for _, c := range s.Children {
		r.allocate(c)
	}
}

func (r *Resolver) resolveReferences(s *Scope) {
	for _, node := range s.references {
		r.resolveOne(s, node)
	}
	for _, c := range s.Children {
		r.resolveReferences(c)
	}
}

func (r *Resolver) resolveOne(useScope *Scope, node *ast.Node) {
	name := node.Name

	// Walk parents counting FUNCTION-scope crossings to compute closure depth.
	depth := uint8(0)
	startFn := useScope.FunctionScope()
	for cur := useScope; cur != nil; cur = cur.Parent {
		if v, ok := cur.declarations[name]; ok {
			declFn := cur.FunctionScope()
			switch {
			case cur.Kind == Global:
				node.Ref = v
				return
			case declFn == startFn:
				node.Ref = v
				return
			default:
				// Captured from an enclosing function: mark every
				// intervening function scope as having closure-captured
				// children, then address it at the captured depth.
				markCaptured(useScope, declFn)
				v.Index = NewClosureIndex(depth, v.Index.Offset())
				node.Ref = v
				return
			}
		}
		if cur.Kind == Function || cur.Kind == Global {
			if cur != startFn {
				depth++
			}
		}
	}

	// Miss: implicit global (spec.md §4.4 "a reference to the GLOBAL
	// scope's Variables table is created").
	_, alreadyGlobal := r.Global.declarations[name]
	decl := r.Global.Declare(name, DeclVar, node.Line)
	node.Ref = decl.Variable
	if !alreadyGlobal {
		decl.Variable.Index = NewGlobalIndex(r.Global.nextLocal)
		r.Global.nextLocal++
	}
}

func markCaptured(from *Scope, target *Scope) {
	for cur := from; cur != nil && cur != target; cur = cur.Parent {
		if cur.Kind == Function {
			cur.hasClosureCapturedChildren = true
		}
	}
	target.hasClosureCapturedChildren = true
}

// SuggestName returns the closest declared name visible from s to typo,
// using fuzzy matching the way the teacher's ParseError.Suggestion field
// is populated by hand; here it is computed instead of authored per site.
func SuggestName(s *Scope, typo string) string {
	var candidates []string
	for cur := s; cur != nil; cur = cur.Parent {
		candidates = append(candidates, cur.order...)
	}
	sort.Strings(candidates)
	best := ""
	bestRank := -1
	for _, c := range candidates {
		if c == typo {
			continue
		}
		rank := fuzzy.LevenshteinDistance(typo, c)
		if rank <= len(typo)/2 && (bestRank == -1 || rank < bestRank) {
			bestRank = rank
			best = c
		}
	}
	return best
}

// SynthesizeThisAndArguments installs the `this`/`arguments` pseudo
// variables in a function scope, reusing any already present. The parser
// calls it for every non-arrow function when the function is parsed.
func SynthesizeThisAndArguments(fn *Scope) (thisVar, argsVar *Variable) {
	if v, ok := fn.declarations["this"]; ok {
		thisVar = v
	} else {
		thisVar = &Variable{Name: "this", ThisObject: true, Index: NewArgumentsIndex(0)}
		fn.declarations["this"] = thisVar
	}
	if v, ok := fn.declarations["arguments"]; ok {
		argsVar = v
	} else {
		argsVar = &Variable{Name: "arguments", Arguments: true, Index: NewArgumentsIndex(1)}
		fn.declarations["arguments"] = argsVar
	}
	return
}

// unused keeps token import referenced for DeclKind string formatting in
// future diagnostics without import churn.
var _ = token.ILLEGAL
