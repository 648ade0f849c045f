// Package parser builds the AST and scope tree in a single top-down pass
// over the token stream the lexer produces (spec.md §4.2). Declarations
// are entered into the scope tree as they are parsed (var hoisting to the
// nearest FUNCTION/GLOBAL scope, let/const to the block, catch params to
// the CATCH scope); every identifier reference is registered with
// Scope.AddReference and resolved later by internal/scope's Resolver
// second pass. Regex and template-literal re-scans are parser-driven,
// calling back into the lexer's ScanRegexLiteral/ScanTemplateContinuation
// exactly at the points the grammar knows which interpretation applies.
package parser

import (
	"fmt"

	"github.com/njs-go/njs/internal/ast"
	"github.com/njs-go/njs/internal/lexer"
	"github.com/njs-go/njs/internal/njserr"
	"github.com/njs-go/njs/internal/scope"
	"github.com/njs-go/njs/internal/token"
)

// Result is everything Generate needs: the parsed Program and its
// resolved scope tree.
type Result struct {
	Program *ast.Node
	Global  *scope.Scope
}

// Parse lexes and parses src in one pass, declaring bindings into a fresh
// global scope as it goes. Call scope.NewResolver(result.Global).Run()
// before handing the Program to the bytecode generator.
func Parse(src, file string) (*Result, error) {
	p := &parser{lex: lexer.New(src), file: file, sc: scope.New()}
	p.next()
	prog := ast.New(token.AST_PROGRAM, 1)
	for !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			prog.Body = append(prog.Body, stmt)
		}
	}
	return &Result{Program: prog, Global: p.sc}, nil
}

type parser struct {
	lex  *lexer.Lexer
	cur  token.Token
	file string
	sc   *scope.Scope

	// noIn suppresses the `in` relational operator while parsing a
	// for-statement's init expression, so `for (a in obj)` without a
	// declaration keyword disambiguates as for-in rather than swallowing
	// `in` into a relational expression (ECMA NoIn grammar parameter).
	noIn bool
}

func (p *parser) next() { p.cur = p.lex.NextToken() }

func (p *parser) at(t token.Type) bool { return p.cur.Type == t }

func (p *parser) errf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &njserr.CompileError{File: p.file, Line: p.cur.Line, Column: p.cur.Column, Message: msg}
}

func (p *parser) expect(t token.Type) (token.Token, error) {
	if !p.at(t) {
		return token.Token{}, p.errf("expected %s, found %s", t, p.cur.Type)
	}
	tok := p.cur
	p.next()
	return tok, nil
}

func (p *parser) rejectUnsupported() error {
	if token.Unsupported(p.cur.Type) {
		return p.errf("%s is not supported in this version", p.cur.Type)
	}
	return nil
}

// consumeSemicolon implements Automatic Semicolon Insertion (spec.md §4.2):
// an explicit `;` is always accepted; otherwise the statement end is
// legal if the next token is `}`, EOF, or was preceded by a line
// terminator.
func (p *parser) consumeSemicolon() error {
	if p.at(token.SEMICOLON) {
		p.next()
		return nil
	}
	if p.at(token.RBRACE) || p.at(token.EOF) || p.cur.PrecededByNewline {
		return nil
	}
	return p.errf("expected ; (ASI), found %s", p.cur.Type)
}

func identNode(tag token.Type, name string, line int) *ast.Node {
	n := ast.New(tag, line)
	n.Name = name
	return n
}
