package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(s string) string { return s }

func sampleTree() *Tree[string] {
	tree := New("root")
	tree.AddChild("a")
	b := tree.AddChild("b")
	b.AddChild("b1")
	b.AddChild("b2")
	return tree
}

func TestTreeAddChild(t *testing.T) {
	tree := sampleTree()
	assert.True(t, tree.IsRoot())
	assert.Equal(t, 5, tree.Len())
	require.Len(t, tree.Children(), 2)

	b := tree.Children()[1]
	assert.False(t, b.IsRoot())
	assert.Equal(t, 1, b.Depth())
	assert.Equal(t, 2, b.Children()[0].Depth())
	assert.Same(t, tree, b.Parent())
}

func TestTreePath(t *testing.T) {
	tree := sampleTree()
	n := tree.Find(func(s string) bool { return s == "b2" })
	require.NotNil(t, n)
	assert.Equal(t, []string{"root", "b", "b2"}, n.Path())
	assert.Equal(t, []string{"root"}, tree.Path())

	assert.Nil(t, tree.Find(func(s string) bool { return s == "c" }))
}

func TestTreeLeaves(t *testing.T) {
	tree := sampleTree()
	leaves := []string{}
	for _, l := range tree.Leaves() {
		leaves = append(leaves, l.Payload())
	}
	assert.Equal(t, []string{"a", "b1", "b2"}, leaves)
}

func TestTreeUpdate(t *testing.T) {
	tree := New("root")
	tree.Update(func(s *string) { *s = "renamed" })
	assert.Equal(t, "renamed", tree.Payload())
}

func TestNewick(t *testing.T) {
	for _, test := range newickTest {
		assert.Equal(t, test.expected, test.tree().Newick(identity))
	}
}

func TestWriteDot(t *testing.T) {
	tree := sampleTree()
	out := strings.Builder{}
	err := tree.WriteDot(&out, "explored",
		func(s string) (string, string) {
			if s == "b2" {
				return s, "color=red"
			}
			return s, ""
		},
		func(s string) string { return "to " + s },
	)
	require.NoError(t, err)

	dot := out.String()
	assert.True(t, strings.HasPrefix(dot, "digraph \"explored\" {"))
	assert.Contains(t, dot, "n0 [label=\"root\"];")
	assert.Contains(t, dot, "n4 [label=\"b2\", color=red];")
	assert.Contains(t, dot, "n2 -> n4 [label=\"to b2\"];")
	assert.Equal(t, 4, strings.Count(dot, "->"))
}

var newickTest = []struct {
	tree     func() *Tree[string]
	expected string
}{
	{
		tree:     func() *Tree[string] { return New("root") },
		expected: "\"root\";",
	},
	{
		tree:     sampleTree,
		expected: "(\"a\",(\"b1\",\"b2\")\"b\")\"root\";",
	},
}
