// Package tree stores the explored part of the interleaving graph as a rooted tree.
//
// Every node is one state of one exploration. Nodes are added as the explorer expands states and
// are never removed, so the tree can be exported once the exploration is over.
package tree

import (
	"fmt"
	"io"
	"strings"
)

type Tree[T any] struct {
	payload  T
	parent   *Tree[T]
	children []*Tree[T]
	depth    int
}

func New[T any](payload T) *Tree[T] {
	return &Tree[T]{
		payload:  payload,
		children: []*Tree[T]{},
	}
}

// Returns the total number of nodes in the tree
func (t *Tree[T]) Len() int {
	n := 1
	for _, child := range t.children {
		n += child.Len()
	}
	return n
}

// Adds a new child with the provided payload and returns it
func (t *Tree[T]) AddChild(payload T) *Tree[T] {
	child := &Tree[T]{
		payload:  payload,
		parent:   t,
		children: []*Tree[T]{},
		depth:    t.depth + 1,
	}
	t.children = append(t.children, child)
	return child
}

// Replace the payload of the node
func (t *Tree[T]) Update(f func(*T)) {
	f(&t.payload)
}

func (t *Tree[T]) Payload() T {
	return t.payload
}

func (t *Tree[T]) Parent() *Tree[T] {
	return t.parent
}

func (t *Tree[T]) Depth() int {
	return t.depth
}

func (t *Tree[T]) Children() []*Tree[T] {
	return t.children
}

func (t *Tree[T]) IsRoot() bool {
	return t.parent == nil
}

func (t *Tree[T]) IsLeafNode() bool {
	return len(t.children) == 0
}

// The payloads on the path from the root to this node, root first
func (t *Tree[T]) Path() []T {
	path := make([]T, t.depth+1)
	for n := t; n != nil; n = n.parent {
		path[n.depth] = n.payload
	}
	return path
}

// Returns all leaf nodes below this node in depth first order
func (t *Tree[T]) Leaves() []*Tree[T] {
	if t.IsLeafNode() {
		return []*Tree[T]{t}
	}
	leaves := []*Tree[T]{}
	for _, child := range t.children {
		leaves = append(leaves, child.Leaves()...)
	}
	return leaves
}

// Returns the first node, in depth first order, for which match is true. Returns nil if there is none.
func (t *Tree[T]) Find(match func(T) bool) *Tree[T] {
	if match(t.payload) {
		return t
	}
	for _, child := range t.children {
		if n := child.Find(match); n != nil {
			return n
		}
	}
	return nil
}

// Indented representation of the tree, one node per line
func (t *Tree[T]) String() string {
	out := strings.Builder{}
	t.walk(func(n *Tree[T]) {
		out.WriteString(strings.Repeat("-", n.depth))
		out.WriteString(fmt.Sprintf("%v\n", n.payload))
	})
	return out.String()
}

// The tree in Newick format. Every node is named by label.
func (t *Tree[T]) Newick(label func(T) string) string {
	out := strings.Builder{}
	t.newick(&out, label)
	out.WriteString(";")
	return out.String()
}

func (t *Tree[T]) newick(out *strings.Builder, label func(T) string) {
	if len(t.children) > 0 {
		out.WriteString("(")
		for i, child := range t.children {
			if i > 0 {
				out.WriteString(",")
			}
			child.newick(out, label)
		}
		out.WriteString(")")
	}
	out.WriteString(fmt.Sprintf("%q", label(t.payload)))
}

// Write the tree as a Graphviz digraph.
//
// node gives the label and extra attributes of a node, edge the label of the edge into a node.
func (t *Tree[T]) WriteDot(w io.Writer, name string, node func(T) (label string, attrs string), edge func(T) string) error {
	out := strings.Builder{}
	out.WriteString(fmt.Sprintf("digraph %q {\n", name))
	out.WriteString("  node [shape=circle];\n")

	ids := map[*Tree[T]]int{}
	t.walk(func(n *Tree[T]) {
		id := len(ids)
		ids[n] = id
		label, attrs := node(n.payload)
		if attrs != "" {
			attrs = ", " + attrs
		}
		out.WriteString(fmt.Sprintf("  n%d [label=%q%s];\n", id, label, attrs))
	})
	out.WriteString("\n")
	t.walk(func(n *Tree[T]) {
		if n.parent == nil {
			return
		}
		out.WriteString(fmt.Sprintf("  n%d -> n%d [label=%q];\n", ids[n.parent], ids[n], edge(n.payload)))
	})
	out.WriteString("}\n")

	_, err := io.WriteString(w, out.String())
	return err
}

// Visit the nodes in depth first order
func (t *Tree[T]) walk(visit func(*Tree[T])) {
	visit(t)
	for _, child := range t.children {
		child.walk(visit)
	}
}
