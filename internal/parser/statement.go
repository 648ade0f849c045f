package parser

import (
	"github.com/njs-go/njs/internal/ast"
	"github.com/njs-go/njs/internal/scope"
	"github.com/njs-go/njs/internal/token"
)

func (p *parser) parseStatement() (*ast.Node, error) {
	if err := p.rejectUnsupported(); err != nil {
		return nil, err
	}
	switch p.cur.Type {
	case token.SEMICOLON:
		p.next()
		return nil, nil
	case token.LBRACE:
		return p.parseBlock()
	case token.VAR, token.LET, token.CONST:
		return p.parseVarDecl()
	case token.FUNCTION:
		return p.parseFunctionDecl()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.DO:
		return p.parseDoWhile()
	case token.FOR:
		return p.parseFor()
	case token.RETURN:
		return p.parseReturn()
	case token.BREAK:
		return p.parseBreakContinue(token.AST_BREAK)
	case token.CONTINUE:
		return p.parseBreakContinue(token.AST_CONTINUE)
	case token.THROW:
		return p.parseThrow()
	case token.TRY:
		return p.parseTry()
	case token.SWITCH:
		return p.parseSwitch()
	case token.IMPORT:
		return p.parseImport()
	case token.EXPORT:
		return p.parseExport()
	case token.NAME:
		if p.lex.PeekToken(0).Type == token.COLON {
			return p.parseLabel()
		}
		return p.parseExpressionStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *parser) parseBlock() (*ast.Node, error) {
	line := p.cur.Line
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	p.sc = p.sc.NewChild(scope.Block)
	n := ast.New(token.AST_BLOCK, line)
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			n.Body = append(n.Body, stmt)
		}
	}
	p.sc = p.sc.Parent
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) declKindFor(t token.Type) scope.DeclKind {
	switch t {
	case token.LET:
		return scope.DeclLet
	case token.CONST:
		return scope.DeclConst
	default:
		return scope.DeclVar
	}
}

func (p *parser) parseVarDecl() (*ast.Node, error) {
	line := p.cur.Line
	kind := p.cur.Type
	p.next()
	n := ast.New(token.AST_VAR_DECL, line)
	for {
		if p.at(token.LBRACE) || p.at(token.LBRACKET) {
			return nil, p.errf("destructuring declarations are not supported in this version")
		}
		nameTok, err := p.expect(token.NAME)
		if err != nil {
			return nil, err
		}
		declNode := ast.New(token.AST_VAR_DECL, nameTok.Line)
		dk := p.declKindFor(kind)
		var result scope.DeclareResult
		if dk == scope.DeclVar {
			result = p.sc.DeclareHoisted(nameTok.Value, nameTok.Line)
		} else {
			result = p.sc.Declare(nameTok.Value, dk, nameTok.Line)
		}
		if result.Conflict {
			return nil, p.errf("SyntaxError: identifier %q has already been declared", nameTok.Value)
		}
		dest := identNode(token.AST_IDENTIFIER, nameTok.Value, nameTok.Line)
		dest.Ref = result.Variable
		declNode.Dest = dest
		if p.at(token.ASSIGN) {
			p.next()
			init, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			declNode.Left = init
		}
		n.Body = append(n.Body, declNode)
		if !p.at(token.COMMA) {
			break
		}
		p.next()
	}
	return n, p.consumeSemicolon()
}

func (p *parser) parseFunctionDecl() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	nameTok, err := p.expect(token.NAME)
	if err != nil {
		return nil, err
	}
	result := p.sc.DeclareHoisted(nameTok.Value, nameTok.Line)
	dest := identNode(token.AST_IDENTIFIER, nameTok.Value, nameTok.Line)
	dest.Ref = result.Variable

	fn, err := p.parseFunctionRest(token.AST_FUNCTION, nameTok.Value, line)
	if err != nil {
		return nil, err
	}
	fn.Dest = dest
	return fn, nil
}

// parseFunctionRest parses the parameter list and body of a function or
// arrow literal once `function name` (or nothing, for an arrow) has
// already been consumed. The new FUNCTION scope is attached to the node
// via Literal so the generator can read its allocated local-slot count.
func (p *parser) parseFunctionRest(tag token.Type, name string, line int) (*ast.Node, error) {
	if p.sc.FunctionScope().NestingDepth >= scope.MaxNestingDepth {
		return nil, p.errf("SyntaxError: function nesting exceeds the maximum supported depth")
	}
	outer := p.sc
	p.sc = outer.NewChild(scope.Function)
	fnScope := p.sc
	if tag != token.AST_ARROW {
		// Arrow functions have no own this/arguments; they close over the
		// enclosing function's bindings instead.
		scope.SynthesizeThisAndArguments(fnScope)
	}

	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	n := ast.New(tag, line)
	n.Name = name
	pos := uint32(0)
	for !p.at(token.RPAREN) {
		if p.at(token.LBRACE) || p.at(token.LBRACKET) {
			return nil, p.errf("destructuring parameters are not supported in this version")
		}
		paramTok, err := p.expect(token.NAME)
		if err != nil {
			return nil, err
		}
		result := fnScope.Declare(paramTok.Value, scope.DeclArgument, paramTok.Line)
		pnode := identNode(token.AST_IDENTIFIER, paramTok.Value, paramTok.Line)
		result.Variable.Index = scope.NewCalleeArgumentIndex(pos)
		pnode.Ref = result.Variable
		n.Args = append(n.Args, pnode)
		pos++
		if !p.at(token.COMMA) {
			break
		}
		p.next()
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			n.Body = append(n.Body, stmt)
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	n.Literal = fnScope
	p.sc = outer
	return n, nil
}

func (p *parser) parseIf() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	test, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	cons, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	n := ast.New(token.AST_IF, line)
	n.Left = test
	n.Dest = cons
	if p.at(token.ELSE) {
		p.next()
		alt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		n.Right = alt
	}
	return n, nil
}

func (p *parser) parseWhile() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	test, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	n := ast.New(token.AST_WHILE, line)
	n.Left = test
	n.Right = body
	return n, nil
}

func (p *parser) parseDoWhile() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.WHILE); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	test, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	_ = p.consumeSemicolon()
	n := ast.New(token.AST_DO_WHILE, line)
	n.Left = test
	n.Right = body
	return n, nil
}

func (p *parser) parseFor() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}

	outer := p.sc
	p.sc = outer.NewChild(scope.Block)

	var initDecl *ast.Node
	var initExpr *ast.Node
	var err error

	p.noIn = true
	switch {
	case p.at(token.SEMICOLON):
		// no init
	case p.at(token.VAR), p.at(token.LET), p.at(token.CONST):
		kind := p.cur.Type
		p.next()
		nameTok, e := p.expect(token.NAME)
		if e != nil {
			p.noIn = false
			return nil, e
		}
		dk := p.declKindFor(kind)
		var result scope.DeclareResult
		if dk == scope.DeclVar {
			result = p.sc.DeclareHoisted(nameTok.Value, nameTok.Line)
		} else {
			result = p.sc.Declare(nameTok.Value, dk, nameTok.Line)
		}
		dest := identNode(token.AST_IDENTIFIER, nameTok.Value, nameTok.Line)
		dest.Ref = result.Variable

		if p.at(token.IN) || p.at(token.OF) {
			op := p.cur.Type
			p.next()
			p.noIn = false
			iterExpr, e := p.parseAssignExpr()
			if e != nil {
				return nil, e
			}
			return p.finishForIn(line, outer, dest, iterExpr, op)
		}

		declNode := ast.New(token.AST_VAR_DECL, nameTok.Line)
		declNode.Dest = dest
		if p.at(token.ASSIGN) {
			p.next()
			init, e := p.parseAssignExpr()
			if e != nil {
				p.noIn = false
				return nil, e
			}
			declNode.Left = init
		}
		vd := ast.New(token.AST_VAR_DECL, line)
		vd.Body = append(vd.Body, declNode)
		for p.at(token.COMMA) {
			p.next()
			nameTok2, e := p.expect(token.NAME)
			if e != nil {
				p.noIn = false
				return nil, e
			}
			var r2 scope.DeclareResult
			if dk == scope.DeclVar {
				r2 = p.sc.DeclareHoisted(nameTok2.Value, nameTok2.Line)
			} else {
				r2 = p.sc.Declare(nameTok2.Value, dk, nameTok2.Line)
			}
			d2 := ast.New(token.AST_VAR_DECL, nameTok2.Line)
			dest2 := identNode(token.AST_IDENTIFIER, nameTok2.Value, nameTok2.Line)
			dest2.Ref = r2.Variable
			d2.Dest = dest2
			if p.at(token.ASSIGN) {
				p.next()
				init2, e := p.parseAssignExpr()
				if e != nil {
					p.noIn = false
					return nil, e
				}
				d2.Left = init2
			}
			vd.Body = append(vd.Body, d2)
		}
		initDecl = vd
	default:
		initExpr, err = p.parseExpression()
		if err != nil {
			p.noIn = false
			return nil, err
		}
		if p.at(token.IN) || p.at(token.OF) {
			op := p.cur.Type
			p.next()
			p.noIn = false
			iterExpr, e := p.parseAssignExpr()
			if e != nil {
				return nil, e
			}
			return p.finishForIn(line, outer, initExpr, iterExpr, op)
		}
	}
	p.noIn = false

	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	var test *ast.Node
	if !p.at(token.SEMICOLON) {
		test, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	var update *ast.Node
	if !p.at(token.RPAREN) {
		update, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.sc = outer

	n := ast.New(token.AST_FOR, line)
	var initStmt *ast.Node
	if initDecl != nil {
		initStmt = initDecl
	} else {
		initStmt = initExpr
	}
	n.Args = []*ast.Node{initStmt, test, update}
	n.Right = body
	return n, nil
}

func (p *parser) finishForIn(line int, outer *scope.Scope, binding *ast.Node, iter *ast.Node, op token.Type) (*ast.Node, error) {
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.sc = outer
	n := ast.New(token.AST_FOR_IN, line)
	n.Dest = binding
	n.Left = iter
	n.Op = op
	n.Body = []*ast.Node{body}
	return n, nil
}

func (p *parser) parseReturn() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	n := ast.New(token.AST_RETURN, line)
	if !p.at(token.SEMICOLON) && !p.at(token.RBRACE) && !p.at(token.EOF) && !p.cur.PrecededByNewline {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		n.Left = expr
	}
	return n, p.consumeSemicolon()
}

func (p *parser) parseBreakContinue(tag token.Type) (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	n := ast.New(tag, line)
	if p.at(token.NAME) && !p.cur.PrecededByNewline {
		n.Name = p.cur.Value
		p.next()
	}
	return n, p.consumeSemicolon()
}

func (p *parser) parseThrow() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	if p.cur.PrecededByNewline {
		return nil, p.errf("SyntaxError: illegal newline after throw")
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	n := ast.New(token.AST_THROW, line)
	n.Left = expr
	return n, p.consumeSemicolon()
}

func (p *parser) parseTry() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	tryBlock, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	n := ast.New(token.AST_TRY, line)
	n.Body = []*ast.Node{tryBlock}
	n.Args = make([]*ast.Node, 2)

	if p.at(token.CATCH) {
		p.next()
		outer := p.sc
		p.sc = outer.NewChild(scope.Catch)
		if p.at(token.LPAREN) {
			p.next()
			if p.at(token.LBRACE) || p.at(token.LBRACKET) {
				return nil, p.errf("destructuring catch bindings are not supported in this version")
			}
			nameTok, err := p.expect(token.NAME)
			if err != nil {
				return nil, err
			}
			result := p.sc.Declare(nameTok.Value, scope.DeclCatchParam, nameTok.Line)
			param := identNode(token.AST_IDENTIFIER, nameTok.Value, nameTok.Line)
			param.Ref = result.Variable
			n.Dest = param
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
		}
		catchBlock, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		p.sc = outer
		n.Args[0] = catchBlock
	}

	if p.at(token.FINALLY) {
		p.next()
		finallyBlock, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		n.Args[1] = finallyBlock
	}

	if n.Args[0] == nil && n.Args[1] == nil {
		return nil, p.errf("SyntaxError: missing catch or finally after try")
	}
	return n, nil
}

func (p *parser) parseSwitch() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	disc, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	outer := p.sc
	p.sc = outer.NewChild(scope.Block)
	n := ast.New(token.AST_SWITCH, line)
	n.Left = disc
	seenDefault := false
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		caseLine := p.cur.Line
		c := ast.New(token.AST_CASE, caseLine)
		if p.at(token.CASE) {
			p.next()
			test, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			c.Left = test
		} else if p.at(token.DEFAULT) {
			if seenDefault {
				return nil, p.errf("SyntaxError: more than one default clause in switch")
			}
			seenDefault = true
			p.next()
		} else {
			return nil, p.errf("expected case or default, found %s", p.cur.Type)
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		for !p.at(token.CASE) && !p.at(token.DEFAULT) && !p.at(token.RBRACE) && !p.at(token.EOF) {
			stmt, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			if stmt != nil {
				c.Body = append(c.Body, stmt)
			}
		}
		n.Body = append(n.Body, c)
	}
	p.sc = outer
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) parseLabel() (*ast.Node, error) {
	line := p.cur.Line
	name := p.cur.Value
	p.next()
	p.next() // consume ':'
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	n := ast.New(token.AST_LABEL, line)
	n.Name = name
	n.Left = stmt
	return n, nil
}

// parseImport handles only the default-import form spec.md scopes the
// module loader to: `import name from "specifier";`. The binding is
// declared as an ordinary hoisted var; internal/module resolves and
// populates it before the importing module's body runs.
func (p *parser) parseImport() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	nameTok, err := p.expect(token.NAME)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.FROM); err != nil {
		return nil, err
	}
	specTok, err := p.expect(token.STRING)
	if err != nil {
		if specTok, err = p.expect(token.ESCAPE_STRING); err != nil {
			return nil, err
		}
	}
	result := p.sc.DeclareHoisted(nameTok.Value, nameTok.Line)
	dest := identNode(token.AST_IDENTIFIER, nameTok.Value, nameTok.Line)
	dest.Ref = result.Variable
	n := ast.New(token.AST_IMPORT, line)
	n.Dest = dest
	n.Name = specTok.Value
	return n, p.consumeSemicolon()
}

func (p *parser) parseExport() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	if _, err := p.expect(token.DEFAULT); err != nil {
		return nil, err
	}
	expr, err := p.parseAssignExpr()
	if err != nil {
		return nil, err
	}
	n := ast.New(token.AST_EXPORT, line)
	n.Left = expr
	return n, p.consumeSemicolon()
}

func (p *parser) parseExpressionStatement() (*ast.Node, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return expr, p.consumeSemicolon()
}
