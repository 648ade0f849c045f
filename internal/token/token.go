// Package token defines the token vocabulary shared by the lexer, the
// parser's grammar states, and the AST (AST tags are reused token types,
// per spec.md §4.3).
package token

import "fmt"

// Type discriminates a lexical token. The same enum doubles as the AST
// node tag for leaf/operator nodes so the generator can dispatch on one
// value instead of maintaining a parallel tag space.
type Type uint16

const (
	ILLEGAL Type = iota
	EOF

	// Literals
	NUMBER
	STRING
	ESCAPE_STRING // string containing a backslash escape; forces decode path
	TEMPLATE_CHUNK
	TEMPLATE_HEAD
	TEMPLATE_MIDDLE
	TEMPLATE_TAIL
	REGEX
	NAME // identifier, not a reserved keyword

	// Keywords
	VAR
	LET
	CONST
	FUNCTION
	RETURN
	IF
	ELSE
	FOR
	WHILE
	DO
	BREAK
	CONTINUE
	SWITCH
	CASE
	DEFAULT
	TRY
	CATCH
	FINALLY
	THROW
	NEW
	DELETE
	TYPEOF
	INSTANCEOF
	IN
	OF
	VOID
	THIS
	NULL
	TRUE
	FALSE
	UNDEFINED
	IMPORT
	EXPORT
	FROM

	// Grammar stubs rejected with "Not supported in this version" (spec.md §4.2)
	CLASS
	EXTENDS
	SUPER
	YIELD
	ASYNC
	AWAIT
	WITH

	// Punctuators
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	SEMICOLON
	COMMA
	DOT
	ELLIPSIS
	QUESTION
	QUESTION_DOT
	QUESTION_QUESTION
	COLON
	ARROW

	ASSIGN
	PLUS_ASSIGN
	MINUS_ASSIGN
	STAR_ASSIGN
	SLASH_ASSIGN
	PERCENT_ASSIGN
	POW_ASSIGN
	AND_ASSIGN
	OR_ASSIGN
	XOR_ASSIGN
	SHL_ASSIGN
	SHR_ASSIGN
	USHR_ASSIGN
	LAND_ASSIGN
	LOR_ASSIGN
	QQ_ASSIGN

	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	POW

	EQ
	NEQ
	SEQ // ===
	SNEQ
	LT
	GT
	LE
	GE

	AND
	OR
	NOT
	BAND
	BOR
	BXOR
	BNOT
	SHL
	SHR
	USHR

	INC
	DEC

	// AST-only tags (never produced by the lexer, assigned by parser/generator)
	AST_PROGRAM
	AST_BLOCK
	AST_VAR_DECL
	AST_FUNCTION
	AST_ARROW
	AST_CALL
	AST_NEW
	AST_MEMBER
	AST_OPTIONAL_MEMBER
	AST_INDEX
	AST_ASSIGN
	AST_BINARY
	AST_LOGICAL
	AST_UNARY
	AST_UPDATE
	AST_CONDITIONAL
	AST_SEQUENCE
	AST_IDENTIFIER
	AST_LITERAL
	AST_TEMPLATE
	AST_ARRAY
	AST_OBJECT
	AST_PROPERTY
	AST_SPREAD
	AST_IF
	AST_FOR
	AST_FOR_IN
	AST_WHILE
	AST_DO_WHILE
	AST_RETURN
	AST_BREAK
	AST_CONTINUE
	AST_THROW
	AST_TRY
	AST_SWITCH
	AST_CASE
	AST_LABEL
	AST_IMPORT
	AST_EXPORT
	AST_REGEX
)

var names = map[Type]string{
	ILLEGAL: "ILLEGAL", EOF: "EOF",
	NUMBER: "NUMBER", STRING: "STRING", ESCAPE_STRING: "ESCAPE_STRING",
	TEMPLATE_CHUNK: "TEMPLATE_CHUNK", TEMPLATE_HEAD: "TEMPLATE_HEAD",
	TEMPLATE_MIDDLE: "TEMPLATE_MIDDLE", TEMPLATE_TAIL: "TEMPLATE_TAIL",
	REGEX: "REGEX", NAME: "NAME",
	VAR: "var", LET: "let", CONST: "const", FUNCTION: "function",
	RETURN: "return", IF: "if", ELSE: "else", FOR: "for", WHILE: "while",
	DO: "do", BREAK: "break", CONTINUE: "continue", SWITCH: "switch",
	CASE: "case", DEFAULT: "default", TRY: "try", CATCH: "catch",
	FINALLY: "finally", THROW: "throw", NEW: "new", DELETE: "delete",
	TYPEOF: "typeof", INSTANCEOF: "instanceof", IN: "in", OF: "of",
	VOID: "void", THIS: "this", NULL: "null", TRUE: "true", FALSE: "false",
	UNDEFINED: "undefined", IMPORT: "import", EXPORT: "export", FROM: "from",
	CLASS: "class", EXTENDS: "extends", SUPER: "super", YIELD: "yield",
	ASYNC: "async", AWAIT: "await", WITH: "with",
	LPAREN: "(", RPAREN: ")", LBRACE: "{", RBRACE: "}", LBRACKET: "[",
	RBRACKET: "]", SEMICOLON: ";", COMMA: ",", DOT: ".", ELLIPSIS: "...",
	QUESTION: "?", QUESTION_DOT: "?.", QUESTION_QUESTION: "??", COLON: ":",
	ARROW: "=>", ASSIGN: "=",
	PLUS_ASSIGN: "+=", MINUS_ASSIGN: "-=", STAR_ASSIGN: "*=",
	SLASH_ASSIGN: "/=", PERCENT_ASSIGN: "%=", POW_ASSIGN: "**=",
	AND_ASSIGN: "&=", OR_ASSIGN: "|=", XOR_ASSIGN: "^=", SHL_ASSIGN: "<<=",
	SHR_ASSIGN: ">>=", USHR_ASSIGN: ">>>=", LAND_ASSIGN: "&&=",
	LOR_ASSIGN: "||=", QQ_ASSIGN: "??=",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%", POW: "**",
	EQ: "==", NEQ: "!=", SEQ: "===", SNEQ: "!==", LT: "<", GT: ">",
	LE: "<=", GE: ">=", AND: "&&", OR: "||", NOT: "!", BAND: "&", BOR: "|",
	BXOR: "^", BNOT: "~", SHL: "<<", SHR: ">>", USHR: ">>>",
	INC: "++", DEC: "--",

	// AST-only tags: these never reach the lexer's own String() callers,
	// but diag.DumpAST/Disassemble render every node's Tag through this
	// same table, so they need their own names too.
	AST_PROGRAM: "AST_PROGRAM", AST_BLOCK: "AST_BLOCK",
	AST_VAR_DECL: "AST_VAR_DECL", AST_FUNCTION: "AST_FUNCTION",
	AST_ARROW: "AST_ARROW", AST_CALL: "AST_CALL", AST_NEW: "AST_NEW",
	AST_MEMBER: "AST_MEMBER", AST_OPTIONAL_MEMBER: "AST_OPTIONAL_MEMBER",
	AST_INDEX: "AST_INDEX", AST_ASSIGN: "AST_ASSIGN",
	AST_BINARY: "AST_BINARY", AST_LOGICAL: "AST_LOGICAL",
	AST_UNARY: "AST_UNARY", AST_UPDATE: "AST_UPDATE",
	AST_CONDITIONAL: "AST_CONDITIONAL", AST_SEQUENCE: "AST_SEQUENCE",
	AST_IDENTIFIER: "AST_IDENTIFIER", AST_LITERAL: "AST_LITERAL",
	AST_TEMPLATE: "AST_TEMPLATE", AST_ARRAY: "AST_ARRAY",
	AST_OBJECT: "AST_OBJECT", AST_PROPERTY: "AST_PROPERTY",
	AST_SPREAD: "AST_SPREAD", AST_IF: "AST_IF", AST_FOR: "AST_FOR",
	AST_FOR_IN: "AST_FOR_IN", AST_WHILE: "AST_WHILE",
	AST_DO_WHILE: "AST_DO_WHILE", AST_RETURN: "AST_RETURN",
	AST_BREAK: "AST_BREAK", AST_CONTINUE: "AST_CONTINUE",
	AST_THROW: "AST_THROW", AST_TRY: "AST_TRY", AST_SWITCH: "AST_SWITCH",
	AST_CASE: "AST_CASE", AST_LABEL: "AST_LABEL", AST_IMPORT: "AST_IMPORT",
	AST_EXPORT: "AST_EXPORT", AST_REGEX: "AST_REGEX",
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Keywords is the perfect-hash-in-spirit keyword table: a single map
// lookup after identifier scanning decides keyword-vs-NAME (spec.md §4.1).
var Keywords = map[string]Type{
	"var": VAR, "let": LET, "const": CONST, "function": FUNCTION,
	"return": RETURN, "if": IF, "else": ELSE, "for": FOR, "while": WHILE,
	"do": DO, "break": BREAK, "continue": CONTINUE, "switch": SWITCH,
	"case": CASE, "default": DEFAULT, "try": TRY, "catch": CATCH,
	"finally": FINALLY, "throw": THROW, "new": NEW, "delete": DELETE,
	"typeof": TYPEOF, "instanceof": INSTANCEOF, "in": IN, "of": OF,
	"void": VOID, "this": THIS, "null": NULL, "true": TRUE, "false": FALSE,
	"undefined": UNDEFINED, "import": IMPORT, "export": EXPORT, "from": FROM,
	"class": CLASS, "extends": EXTENDS, "super": SUPER, "yield": YIELD,
	"async": ASYNC, "await": AWAIT, "with": WITH,
}

// Unsupported reports whether a keyword is a recognized-but-rejected
// grammar stub (spec.md §4.2, §9 open question: kept as early rejects for
// better diagnostics rather than omitted).
func Unsupported(t Type) bool {
	switch t {
	case CLASS, YIELD, ASYNC, AWAIT, WITH:
		return true
	default:
		return false
	}
}

// Position is a source location: line/column are 1-based, Offset is a
// byte offset into the source buffer.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Span is the [Start,End) byte range a token or AST node covers.
type Span struct {
	Start Position
	End   Position
}

// Token is one lexical token with its source span and decoded value.
type Token struct {
	Type             Type
	Value            string // raw lexeme, or decoded string value for ESCAPE_STRING
	Line             int
	Column           int
	Span             Span
	PrecededByNewline bool // needed for ASI and "no LineTerminator here" rules
}

func (t Token) String() string {
	if t.Value != "" {
		return fmt.Sprintf("%s(%q)@%d:%d", t.Type, t.Value, t.Line, t.Column)
	}
	return fmt.Sprintf("%s@%d:%d", t.Type, t.Line, t.Column)
}
