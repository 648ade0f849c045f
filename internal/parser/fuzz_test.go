package parser

import (
	"testing"
)

// FuzzParse verifies Parse never panics on arbitrary input, the same
// no-panic contract the teacher's own FuzzParserNoPanic checks for its
// command-pipeline grammar.
func FuzzParse(f *testing.F) {
	seeds := []string{
		"",
		"let x = 1;",
		"function f(a, b) { return a + b; }",
		"for (var i = 0; i < 10; i++) { sum += i; }",
		"a?.b?.[c];",
		"let re = /abc/g;",
		"`hi ${x} bye`",
		"try { risky(); } catch (e) { handle(e); } finally { cleanup(); }",
		"switch (x) { case 1: a(); break; default: b(); }",
		"let o = { __proto__: 1, __proto__: 2 };",
		"let x = -a ** b;",
		"import x from './y';",
		"export default 1;",
		"{{{{{{{{{{",
		"\x00\x01\x02",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, src string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Parse panicked on %q: %v", src, r)
			}
		}()
		_, _ = Parse(src, "fuzz.js")
	})
}
