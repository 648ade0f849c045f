package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njs-go/njs/internal/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New(src)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return toks
}

func TestIdentifiersAndKeywords(t *testing.T) {
	toks := scanAll(t, "let x = foo")
	require.Len(t, toks, 5)
	assert.Equal(t, token.LET, toks[0].Type)
	assert.Equal(t, token.NAME, toks[1].Type)
	assert.Equal(t, "x", toks[1].Value)
	assert.Equal(t, token.ASSIGN, toks[2].Type)
	assert.Equal(t, token.NAME, toks[3].Type)
	assert.Equal(t, "foo", toks[3].Value)
}

func TestNumberLiterals(t *testing.T) {
	cases := []struct {
		src  string
		want token.Type
	}{
		{"0x1F", token.NUMBER},
		{"0o17", token.NUMBER},
		{"0b101", token.NUMBER},
		{"3.14e10", token.NUMBER},
		{".5", token.NUMBER},
		{"019", token.ILLEGAL}, // legacy octal rejected
		{"0x", token.ILLEGAL},  // no digits after prefix
	}
	for _, c := range cases {
		toks := scanAll(t, c.src)
		assert.Equalf(t, c.want, toks[0].Type, "source %q", c.src)
	}
}

func TestStringEscapeForcesEscapeStringToken(t *testing.T) {
	toks := scanAll(t, `"plain"`)
	assert.Equal(t, token.STRING, toks[0].Type)
	assert.Equal(t, "plain", toks[0].Value)

	toks = scanAll(t, `"a\nb"`)
	assert.Equal(t, token.ESCAPE_STRING, toks[0].Type)
	assert.Equal(t, "a\nb", toks[0].Value)
}

func TestUnterminatedStringIsIllegal(t *testing.T) {
	toks := scanAll(t, "\"abc\n")
	assert.Equal(t, token.ILLEGAL, toks[0].Type)
}

func TestDotBeforeDigitIsNumberOtherwiseDotOrEllipsis(t *testing.T) {
	toks := scanAll(t, ". ... .5")
	assert.Equal(t, token.DOT, toks[0].Type)
	assert.Equal(t, token.ELLIPSIS, toks[1].Type)
	assert.Equal(t, token.NUMBER, toks[2].Type)
}

func TestPeekTokenDoesNotConsume(t *testing.T) {
	l := New("a b c")
	first := l.PeekToken(0)
	second := l.PeekToken(1)
	assert.Equal(t, "a", first.Value)
	assert.Equal(t, "b", second.Value)
	// NextToken must still return "a": peeking must not have consumed it.
	assert.Equal(t, "a", l.NextToken().Value)
	assert.Equal(t, "b", l.NextToken().Value)
}

func TestRollbackPushesTokenBack(t *testing.T) {
	l := New("a b")
	first := l.NextToken()
	l.Rollback(first)
	assert.Equal(t, first.Value, l.NextToken().Value)
	assert.Equal(t, "b", l.NextToken().Value)
}

func TestTemplateLiteralHeadAndTail(t *testing.T) {
	l := New("`hi ${x} bye`")
	head := l.NextToken()
	require.Equal(t, token.TEMPLATE_HEAD, head.Type)
	assert.Equal(t, "hi ", head.Value)

	// Parser now scans "x" as an ordinary expression token.
	name := l.NextToken()
	require.Equal(t, token.NAME, name.Type)
	assert.Equal(t, "x", name.Value)

	// `}` closes the interpolation; the parser consumes it, then calls
	// ScanTemplateContinuation.
	rbrace := l.NextToken()
	require.Equal(t, token.RBRACE, rbrace.Type)
	tail := l.ScanTemplateContinuation()
	assert.Equal(t, token.TEMPLATE_TAIL, tail.Type)
	assert.Equal(t, " bye", tail.Value)
}

func TestScanRegexLiteralRespectsCharacterClasses(t *testing.T) {
	l := New(`/[a\/b]+/gi rest`)
	div := l.NextToken()
	require.Equal(t, token.SLASH, div.Type)

	re := l.ScanRegexLiteral(div)
	require.Equal(t, token.REGEX, re.Type)
	assert.Equal(t, `/[a\/b]+/gi`, re.Value)

	rest := l.NextToken()
	assert.Equal(t, "rest", rest.Value)
}

func TestScanRegexLiteralRejectsDuplicateFlags(t *testing.T) {
	l := New(`/x/gg`)
	div := l.NextToken()
	re := l.ScanRegexLiteral(div)
	assert.Equal(t, token.ILLEGAL, re.Type)
}

func TestPunctuatorLongestMatch(t *testing.T) {
	toks := scanAll(t, ">>>= >>= >> > ?. ??")
	want := []token.Type{
		token.USHR_ASSIGN,
		token.SHR_ASSIGN,
		token.SHR,
		token.GT,
		token.QUESTION_DOT,
		token.QUESTION_QUESTION,
	}
	for i, w := range want {
		assert.Equalf(t, w, toks[i].Type, "token %d", i)
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	toks := scanAll(t, "a // line comment\n/* block\ncomment */ b")
	assert.Equal(t, "a", toks[0].Value)
	assert.Equal(t, "b", toks[1].Value)
	assert.True(t, toks[1].PrecededByNewline)
}
