package parser

import (
	"strconv"
	"strings"

	"github.com/njs-go/njs/internal/ast"
	"github.com/njs-go/njs/internal/token"
)

// parseExpression parses a comma-separated sequence expression.
func (p *parser) parseExpression() (*ast.Node, error) {
	first, err := p.parseAssignExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(token.COMMA) {
		return first, nil
	}
	line := first.Line
	n := ast.New(token.AST_SEQUENCE, line)
	n.Parts = append(n.Parts, first)
	for p.at(token.COMMA) {
		p.next()
		part, err := p.parseAssignExpr()
		if err != nil {
			return nil, err
		}
		n.Parts = append(n.Parts, part)
	}
	return n, nil
}

var assignOps = map[token.Type]bool{
	token.ASSIGN: true, token.PLUS_ASSIGN: true, token.MINUS_ASSIGN: true,
	token.STAR_ASSIGN: true, token.SLASH_ASSIGN: true, token.PERCENT_ASSIGN: true,
	token.POW_ASSIGN: true, token.AND_ASSIGN: true, token.OR_ASSIGN: true,
	token.XOR_ASSIGN: true, token.SHL_ASSIGN: true, token.SHR_ASSIGN: true,
	token.USHR_ASSIGN: true,
}

func (p *parser) parseAssignExpr() (*ast.Node, error) {
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	switch p.cur.Type {
	case token.LAND_ASSIGN, token.LOR_ASSIGN, token.QQ_ASSIGN:
		return nil, p.errf("logical assignment operators are not supported in this version")
	}
	if !assignOps[p.cur.Type] {
		return left, nil
	}
	switch left.Tag {
	case token.AST_IDENTIFIER, token.AST_MEMBER, token.AST_INDEX:
	default:
		return nil, p.errf("SyntaxError: invalid assignment target")
	}
	op := p.cur.Type
	line := p.cur.Line
	p.next()
	right, err := p.parseAssignExpr()
	if err != nil {
		return nil, err
	}
	n := ast.New(token.AST_ASSIGN, line)
	n.Op = op
	n.Dest = left
	n.Right = right
	return n, nil
}

func (p *parser) parseConditional() (*ast.Node, error) {
	test, err := p.parseNullish()
	if err != nil {
		return nil, err
	}
	if !p.at(token.QUESTION) {
		return test, nil
	}
	line := p.cur.Line
	p.next()
	cons, err := p.parseAssignExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COLON); err != nil {
		return nil, err
	}
	alt, err := p.parseAssignExpr()
	if err != nil {
		return nil, err
	}
	n := ast.New(token.AST_CONDITIONAL, line)
	n.Left = test
	n.Dest = cons
	n.Right = alt
	return n, nil
}

func (p *parser) parseNullish() (*ast.Node, error) {
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	for p.at(token.QUESTION_QUESTION) {
		line := p.cur.Line
		p.next()
		right, err := p.parseLogicalOr()
		if err != nil {
			return nil, err
		}
		n := ast.New(token.AST_LOGICAL, line)
		n.Op = token.QUESTION_QUESTION
		n.Left = left
		n.Right = right
		left = n
	}
	return left, nil
}

func (p *parser) parseLogicalOr() (*ast.Node, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.OR) {
		line := p.cur.Line
		p.next()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		n := ast.New(token.AST_LOGICAL, line)
		n.Op = token.OR
		n.Left = left
		n.Right = right
		left = n
	}
	return left, nil
}

func (p *parser) parseLogicalAnd() (*ast.Node, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}
	for p.at(token.AND) {
		line := p.cur.Line
		p.next()
		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		n := ast.New(token.AST_LOGICAL, line)
		n.Op = token.AND
		n.Left = left
		n.Right = right
		left = n
	}
	return left, nil
}

func (p *parser) parseBinaryLevel(next func() (*ast.Node, error), ops ...token.Type) (*ast.Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, op := range ops {
			if p.at(op) {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
		op := p.cur.Type
		line := p.cur.Line
		p.next()
		right, err := next()
		if err != nil {
			return nil, err
		}
		n := ast.New(token.AST_BINARY, line)
		n.Op = op
		n.Left = left
		n.Right = right
		left = n
	}
}

func (p *parser) parseBitOr() (*ast.Node, error) {
	return p.parseBinaryLevel(p.parseBitXor, token.BOR)
}
func (p *parser) parseBitXor() (*ast.Node, error) {
	return p.parseBinaryLevel(p.parseBitAnd, token.BXOR)
}
func (p *parser) parseBitAnd() (*ast.Node, error) {
	return p.parseBinaryLevel(p.parseEquality, token.BAND)
}
func (p *parser) parseEquality() (*ast.Node, error) {
	return p.parseBinaryLevel(p.parseRelational, token.EQ, token.NEQ, token.SEQ, token.SNEQ)
}
func (p *parser) parseRelational() (*ast.Node, error) {
	if p.noIn {
		return p.parseBinaryLevel(p.parseShift, token.LT, token.GT, token.LE, token.GE, token.INSTANCEOF)
	}
	return p.parseBinaryLevel(p.parseShift, token.LT, token.GT, token.LE, token.GE, token.INSTANCEOF, token.IN)
}
func (p *parser) parseShift() (*ast.Node, error) {
	return p.parseBinaryLevel(p.parseAdditive, token.SHL, token.SHR, token.USHR)
}
func (p *parser) parseAdditive() (*ast.Node, error) {
	return p.parseBinaryLevel(p.parseMultiplicative, token.PLUS, token.MINUS)
}
func (p *parser) parseMultiplicative() (*ast.Node, error) {
	return p.parseBinaryLevel(p.parseExponent, token.STAR, token.SLASH, token.PERCENT)
}

// parseExponent is right-associative, unlike the other binary levels.
func (p *parser) parseExponent() (*ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if !p.at(token.POW) {
		return left, nil
	}
	// `-a ** b` is ambiguous about whether `-` binds the base or the whole
	// power expression, so it's a SyntaxError unless parenthesized; ++/--
	// (AST_UPDATE) aren't affected since they don't have that ambiguity.
	if left.Tag == token.AST_UNARY && !left.Parenthesized {
		return nil, p.errf("SyntaxError: unparenthesized unary expression not allowed as exponentiation base")
	}
	line := p.cur.Line
	p.next()
	right, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	n := ast.New(token.AST_BINARY, line)
	n.Op = token.POW
	n.Left = left
	n.Right = right
	return n, nil
}

func (p *parser) parseUnary() (*ast.Node, error) {
	switch p.cur.Type {
	case token.NOT, token.BNOT, token.PLUS, token.MINUS, token.TYPEOF, token.VOID, token.DELETE:
		op := p.cur.Type
		line := p.cur.Line
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := ast.New(token.AST_UNARY, line)
		n.Op = op
		n.Left = operand
		return n, nil
	case token.INC, token.DEC:
		op := p.cur.Type
		line := p.cur.Line
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if err := checkUpdateTarget(operand); err != nil {
			return nil, p.errf("%s", err.Error())
		}
		n := ast.New(token.AST_UPDATE, line)
		n.Op = op
		n.Left = operand
		n.Prefix = true
		return n, nil
	default:
		return p.parsePostfix()
	}
}

func checkUpdateTarget(n *ast.Node) error {
	switch n.Tag {
	case token.AST_IDENTIFIER, token.AST_MEMBER, token.AST_INDEX:
		return nil
	default:
		return &invalidUpdateTarget{}
	}
}

type invalidUpdateTarget struct{}

func (e *invalidUpdateTarget) Error() string { return "SyntaxError: invalid update target" }

func (p *parser) parsePostfix() (*ast.Node, error) {
	operand, err := p.parseCallMemberNew()
	if err != nil {
		return nil, err
	}
	if (p.at(token.INC) || p.at(token.DEC)) && !p.cur.PrecededByNewline {
		if err := checkUpdateTarget(operand); err != nil {
			return nil, p.errf("%s", err.Error())
		}
		op := p.cur.Type
		line := p.cur.Line
		p.next()
		n := ast.New(token.AST_UPDATE, line)
		n.Op = op
		n.Left = operand
		n.Prefix = false
		return n, nil
	}
	return operand, nil
}

// parseCallMemberNew parses the left-to-right chain of member access,
// computed member access, and call expressions, including `new`.
func (p *parser) parseCallMemberNew() (*ast.Node, error) {
	if p.at(token.NEW) {
		return p.parseNewExpr()
	}
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parseCallTail(base)
}

func (p *parser) parseNewExpr() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	var callee *ast.Node
	var err error
	if p.at(token.NEW) {
		callee, err = p.parseNewExpr()
	} else {
		callee, err = p.parsePrimary()
	}
	if err != nil {
		return nil, err
	}
	callee, err = p.parseMemberTailOnly(callee)
	if err != nil {
		return nil, err
	}
	n := ast.New(token.AST_NEW, line)
	n.Left = callee
	if p.at(token.LPAREN) {
		args, err := p.parseArguments()
		if err != nil {
			return nil, err
		}
		n.Args = args
	}
	return p.parseCallTail(n)
}

// parseMemberTailOnly consumes `.prop`/`[expr]` but not calls, used while
// parsing a `new` callee (`new a.b.c(...)`, not `new a.b(...)(...)`).
func (p *parser) parseMemberTailOnly(base *ast.Node) (*ast.Node, error) {
	for {
		switch p.cur.Type {
		case token.DOT:
			line := p.cur.Line
			p.next()
			nameTok, err := p.expect(token.NAME)
			if err != nil {
				return nil, err
			}
			n := ast.New(token.AST_MEMBER, line)
			n.Left = base
			n.Name = nameTok.Value
			base = n
		case token.LBRACKET:
			line := p.cur.Line
			key, err := p.parseBracketedExpr()
			if err != nil {
				return nil, err
			}
			n := ast.New(token.AST_INDEX, line)
			n.Left = base
			n.Right = key
			base = n
		default:
			return base, nil
		}
	}
}

func (p *parser) parseCallTail(base *ast.Node) (*ast.Node, error) {
	for {
		switch p.cur.Type {
		case token.DOT:
			line := p.cur.Line
			p.next()
			nameTok, err := p.expect(token.NAME)
			if err != nil {
				return nil, err
			}
			n := ast.New(token.AST_MEMBER, line)
			n.Left = base
			n.Name = nameTok.Value
			base = n
		case token.QUESTION_DOT:
			line := p.cur.Line
			p.next()
			if p.at(token.LPAREN) {
				args, err := p.parseArguments()
				if err != nil {
					return nil, err
				}
				n := ast.New(token.AST_CALL, line)
				n.Left = base
				n.Args = args
				n.Optional = true
				base = n
				continue
			}
			if p.at(token.LBRACKET) {
				key, err := p.parseBracketedExpr()
				if err != nil {
					return nil, err
				}
				n := ast.New(token.AST_OPTIONAL_MEMBER, line)
				n.Left = base
				n.Right = key
				n.Computed = true
				base = n
				continue
			}
			nameTok, err := p.expect(token.NAME)
			if err != nil {
				return nil, err
			}
			n := ast.New(token.AST_OPTIONAL_MEMBER, line)
			n.Left = base
			n.Name = nameTok.Value
			base = n
		case token.LBRACKET:
			line := p.cur.Line
			key, err := p.parseBracketedExpr()
			if err != nil {
				return nil, err
			}
			n := ast.New(token.AST_INDEX, line)
			n.Left = base
			n.Right = key
			base = n
		case token.LPAREN:
			line := p.cur.Line
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			n := ast.New(token.AST_CALL, line)
			n.Left = base
			n.Args = args
			base = n
		default:
			return base, nil
		}
	}
}

// parseBracketedExpr parses `[ Expression ]`, resetting noIn: a
// computed-member key is always delimited by `]`, so `in` inside it is
// never ambiguous with a for-in separator even while parsing a bare
// for-init expression.
func (p *parser) parseBracketedExpr() (*ast.Node, error) {
	savedNoIn := p.noIn
	p.noIn = false
	defer func() { p.noIn = savedNoIn }()
	p.next()
	key, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return key, nil
}

func (p *parser) parseArguments() ([]*ast.Node, error) {
	savedNoIn := p.noIn
	p.noIn = false
	defer func() { p.noIn = savedNoIn }()
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	var args []*ast.Node
	for !p.at(token.RPAREN) {
		if p.at(token.ELLIPSIS) {
			line := p.cur.Line
			p.next()
			expr, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			spread := ast.New(token.AST_SPREAD, line)
			spread.Left = expr
			args = append(args, spread)
		} else {
			expr, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, expr)
		}
		if !p.at(token.COMMA) {
			break
		}
		p.next()
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) parsePrimary() (*ast.Node, error) {
	if err := p.rejectUnsupported(); err != nil {
		return nil, err
	}
	tok := p.cur
	switch tok.Type {
	case token.NUMBER:
		n := ast.New(token.AST_LITERAL, tok.Line)
		v, err := parseNumberLiteral(tok.Value)
		if err != nil {
			return nil, p.errf("invalid numeric literal %q", tok.Value)
		}
		n.Literal = v
		p.next()
		return n, nil
	case token.STRING, token.ESCAPE_STRING:
		n := ast.New(token.AST_LITERAL, tok.Line)
		n.Literal = tok.Value
		p.next()
		return n, nil
	case token.NULL:
		n := ast.New(token.NULL, tok.Line)
		p.next()
		return n, nil
	case token.TRUE:
		n := ast.New(token.TRUE, tok.Line)
		p.next()
		return n, nil
	case token.FALSE:
		n := ast.New(token.FALSE, tok.Line)
		p.next()
		return n, nil
	case token.UNDEFINED:
		n := ast.New(token.UNDEFINED, tok.Line)
		p.next()
		return n, nil
	case token.THIS:
		n := ast.New(token.THIS, tok.Line)
		p.next()
		return n, nil
	case token.NAME:
		n := identNode(token.AST_IDENTIFIER, tok.Value, tok.Line)
		p.sc.AddReference(n)
		p.next()
		return n, nil
	case token.LPAREN:
		return p.parseParenOrArrow()
	case token.LBRACKET:
		return p.parseArrayLiteral()
	case token.LBRACE:
		return p.parseObjectLiteral()
	case token.FUNCTION:
		return p.parseFunctionExpr()
	case token.SLASH, token.SLASH_ASSIGN:
		return p.parseRegexLiteral()
	case token.TEMPLATE_HEAD, token.TEMPLATE_TAIL:
		return p.parseTemplateLiteral()
	default:
		return nil, p.errf("unexpected token %s in expression", tok.Type)
	}
}

func parseNumberLiteral(raw string) (float64, error) {
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "0x"):
		u, err := strconv.ParseUint(lower[2:], 16, 64)
		return float64(u), err
	case strings.HasPrefix(lower, "0o"):
		u, err := strconv.ParseUint(lower[2:], 8, 64)
		return float64(u), err
	case strings.HasPrefix(lower, "0b"):
		u, err := strconv.ParseUint(lower[2:], 2, 64)
		return float64(u), err
	default:
		return strconv.ParseFloat(raw, 64)
	}
}

// parseParenOrArrow disambiguates a parenthesized expression from an
// arrow function's parameter list by speculatively scanning ahead: if the
// matching `)` is followed by `=>`, it is a parameter list.
func (p *parser) parseParenOrArrow() (*ast.Node, error) {
	if p.looksLikeArrowParams() {
		return p.parseArrowFunction()
	}
	savedNoIn := p.noIn
	p.noIn = false
	defer func() { p.noIn = savedNoIn }()
	line := p.cur.Line
	p.next()
	if p.at(token.RPAREN) {
		return nil, p.errf("unexpected empty parenthesized expression")
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	expr.Line = line
	expr.Parenthesized = true
	return expr, nil
}

// looksLikeArrowParams peeks past a balanced `( ... )` to see whether an
// `=>` follows, without consuming any tokens (lexer PeekToken is used as
// scratch lookahead; Rollback is unnecessary since PeekToken only fills a
// FIFO the parser drains normally afterward).
func (p *parser) looksLikeArrowParams() bool {
	depth := 0
	for k := 0; ; k++ {
		var t token.Type
		if k == 0 {
			t = p.cur.Type
		} else {
			t = p.lex.PeekToken(k - 1).Type
		}
		switch t {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
			if depth == 0 {
				var after token.Type
				after = p.lex.PeekToken(k).Type
				return after == token.ARROW
			}
		case token.EOF:
			return false
		}
	}
}

func (p *parser) parseArrowFunction() (*ast.Node, error) {
	line := p.cur.Line
	fn, err := p.parseFunctionRest(token.AST_ARROW, "", line)
	if err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *parser) parseFunctionExpr() (*ast.Node, error) {
	line := p.cur.Line
	p.next()
	name := ""
	if p.at(token.NAME) {
		name = p.cur.Value
		p.next()
	}
	return p.parseFunctionRest(token.AST_FUNCTION, name, line)
}

func (p *parser) parseArrayLiteral() (*ast.Node, error) {
	savedNoIn := p.noIn
	p.noIn = false
	defer func() { p.noIn = savedNoIn }()
	line := p.cur.Line
	p.next()
	n := ast.New(token.AST_ARRAY, line)
	for !p.at(token.RBRACKET) {
		if p.at(token.ELLIPSIS) {
			sline := p.cur.Line
			p.next()
			expr, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			spread := ast.New(token.AST_SPREAD, sline)
			spread.Left = expr
			n.Parts = append(n.Parts, spread)
		} else {
			expr, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			n.Parts = append(n.Parts, expr)
		}
		if !p.at(token.COMMA) {
			break
		}
		p.next()
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) parseObjectLiteral() (*ast.Node, error) {
	savedNoIn := p.noIn
	p.noIn = false
	defer func() { p.noIn = savedNoIn }()
	line := p.cur.Line
	p.next()
	n := ast.New(token.AST_OBJECT, line)
	seenProtoKey := false
	for !p.at(token.RBRACE) {
		propLine := p.cur.Line
		var keyName string
		switch p.cur.Type {
		case token.NAME:
			keyName = p.cur.Value
			p.next()
		case token.STRING, token.ESCAPE_STRING:
			keyName = p.cur.Value
			p.next()
		case token.NUMBER:
			v, err := parseNumberLiteral(p.cur.Value)
			if err != nil {
				return nil, p.errf("invalid numeric property key %q", p.cur.Value)
			}
			keyName = strconv.FormatFloat(v, 'g', -1, 64)
			p.next()
		case token.LBRACKET:
			return nil, p.errf("computed property names are not supported in this version")
		default:
			// A reserved word used as a property key (e.g. `{ default: 1 }`)
			// lexes as its keyword token, not NAME; its String() form is
			// the keyword spelling, which is exactly the property name.
			if p.cur.Type > token.NAME && p.cur.Type < token.LPAREN && !token.Unsupported(p.cur.Type) {
				keyName = p.cur.Type.String()
				p.next()
				break
			}
			return nil, p.errf("expected property name, found %s", p.cur.Type)
		}
		prop := ast.New(token.AST_PROPERTY, propLine)
		prop.Name = keyName
		if p.at(token.COLON) {
			// A second `__proto__: value` data property is a SyntaxError,
			// not a semantic duplicate-key overwrite (spec.md §4.2); a
			// shorthand `{ __proto__ }` or method `{ __proto__() {} }`
			// is an ordinary own property and does not count.
			if keyName == "__proto__" {
				if seenProtoKey {
					return nil, p.errf("SyntaxError: duplicate __proto__ property in object literal")
				}
				seenProtoKey = true
			}
			p.next()
			val, err := p.parseAssignExpr()
			if err != nil {
				return nil, err
			}
			prop.Right = val
		} else if p.at(token.LPAREN) {
			fn, err := p.parseFunctionRest(token.AST_FUNCTION, keyName, propLine)
			if err != nil {
				return nil, err
			}
			prop.Right = fn
		} else {
			// shorthand { x } === { x: x }
			shortName := keyName
			ident := identNode(token.AST_IDENTIFIER, shortName, propLine)
			p.sc.AddReference(ident)
			prop.Right = ident
		}
		n.Parts = append(n.Parts, prop)
		if !p.at(token.COMMA) {
			break
		}
		p.next()
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) parseRegexLiteral() (*ast.Node, error) {
	start := p.cur
	tok := p.lex.ScanRegexLiteral(start)
	if tok.Type == token.ILLEGAL {
		return nil, p.errf("%s", tok.Value)
	}
	n := ast.New(token.AST_REGEX, start.Line)
	n.Literal = tok.Value
	p.next()
	return n, nil
}

// parseTemplateLiteral consumes a full template literal starting at the
// current TEMPLATE_HEAD (or bare TEMPLATE_TAIL, for a template with no
// interpolation), calling back into the lexer's ScanTemplateContinuation
// between expression holes exactly where the `}` closing one is reached.
func (p *parser) parseTemplateLiteral() (*ast.Node, error) {
	line := p.cur.Line
	n := ast.New(token.AST_TEMPLATE, line)
	chunk := identNode(p.cur.Type, p.cur.Value, p.cur.Line)
	n.Parts = append(n.Parts, chunk)
	if p.cur.Type == token.TEMPLATE_TAIL {
		p.next()
		return n, nil
	}
	p.next()
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		n.Parts = append(n.Parts, expr)
		if !p.at(token.RBRACE) {
			return nil, p.errf("expected } to close template expression, found %s", p.cur.Type)
		}
		next := p.lex.ScanTemplateContinuation()
		if next.Type == token.ILLEGAL {
			return nil, p.errf("%s", next.Value)
		}
		chunkNode := identNode(next.Type, next.Value, next.Line)
		n.Parts = append(n.Parts, chunkNode)
		if next.Type == token.TEMPLATE_TAIL {
			p.next()
			return n, nil
		}
		p.next()
	}
}
