package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/njs-go/njs/internal/token"
)

func TestNewSetsTagAndLine(t *testing.T) {
	n := New(token.AST_BINARY, 7)
	assert.Equal(t, token.AST_BINARY, n.Tag)
	assert.Equal(t, 7, n.Line)
}

func TestWalkVisitsEveryStructuralChildExactlyOnce(t *testing.T) {
	left := New(token.AST_IDENTIFIER, 1)
	right := New(token.AST_IDENTIFIER, 1)
	bin := New(token.AST_BINARY, 1)
	bin.Left = left
	bin.Right = right

	arg := New(token.AST_LITERAL, 2)
	call := New(token.AST_CALL, 2)
	call.Args = []*Node{arg}

	block := New(token.AST_BLOCK, 3)
	block.Body = []*Node{bin, call}

	var visited []*Node
	Walk(block, func(n *Node) { visited = append(visited, n) })

	assert.Len(t, visited, 6)
	assert.Same(t, block, visited[0])
}

func TestWalkOnNilIsNoop(t *testing.T) {
	calls := 0
	Walk(nil, func(n *Node) { calls++ })
	assert.Equal(t, 0, calls)
}

func TestWalkVisitsPartsForTemplateLiterals(t *testing.T) {
	chunk1 := New(token.AST_LITERAL, 1)
	chunk2 := New(token.AST_LITERAL, 1)
	tmpl := New(token.AST_TEMPLATE, 1)
	tmpl.Parts = []*Node{chunk1, chunk2}

	var visited []*Node
	Walk(tmpl, func(n *Node) { visited = append(visited, n) })
	assert.Len(t, visited, 3)
}

// TestWalkOrderIsStableAcrossRepeatedTraversals guards the fixed
// pre-order shape diag.DumpAST depends on: the same tree walked twice
// must yield an identical tag sequence, compared with cmp.Diff for a
// readable failure instead of a bare assert.Equal mismatch.
func TestWalkOrderIsStableAcrossRepeatedTraversals(t *testing.T) {
	left := New(token.AST_IDENTIFIER, 1)
	right := New(token.AST_LITERAL, 1)
	bin := New(token.AST_BINARY, 1)
	bin.Left = left
	bin.Right = right
	block := New(token.AST_BLOCK, 1)
	block.Body = []*Node{bin}

	tagsOf := func(root *Node) []token.Type {
		var tags []token.Type
		Walk(root, func(n *Node) { tags = append(tags, n.Tag) })
		return tags
	}

	want := tagsOf(block)
	got := tagsOf(block)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Walk order mismatch (-want +got):\n%s", diff)
	}
}
