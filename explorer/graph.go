package explorer

import (
	"fmt"
	"io"

	"mcheck/driver"
	"mcheck/transition"
	"mcheck/tree"
)

// A node of the exploration graph
type GraphNode struct {
	Num int64
	// The transition leading to the node. nil for the initial state.
	Via *transition.Transition
	// The visited state the node was found equal to. -1 if the node was explored.
	EqualTo int64
	// The violation reached by Via
	Violation *driver.Violation
	// The node was at the maximum depth with actors still runnable
	Truncated bool
}

func (gn GraphNode) String() string {
	switch {
	case gn.Violation != nil:
		return fmt.Sprintf("%d (%v)", gn.Num, gn.Violation)
	case gn.EqualTo >= 0:
		return fmt.Sprintf("%d (= %d)", gn.Num, gn.EqualTo)
	case gn.Truncated:
		return fmt.Sprintf("%d (max depth)", gn.Num)
	}
	return fmt.Sprint(gn.Num)
}

// Write the exploration graph in Graphviz format.
// Duplicates are drawn dashed, violations red.
func WriteDot(w io.Writer, graph *tree.Tree[GraphNode]) error {
	return graph.WriteDot(w, "exploration",
		func(gn GraphNode) (string, string) {
			switch {
			case gn.Violation != nil:
				return gn.String(), "color=red, style=filled"
			case gn.EqualTo >= 0:
				return gn.String(), "style=dashed"
			case gn.Truncated:
				return gn.String(), "shape=doublecircle"
			}
			return gn.String(), ""
		},
		func(gn GraphNode) string {
			if gn.Via == nil {
				return ""
			}
			return gn.Via.String()
		},
	)
}

func graphLabel(gn GraphNode) string {
	return gn.String()
}
