package calltree

import (
	"fmt"
	"io"

	"github.com/xlab/treeprint"
)

func (t *CallTree) label(node int32) string {
	d := t.DisplayData(node)
	return fmt.Sprintf("%s: total %s (%s) self %s", d.Name, d.TotalWithUnit, d.TotalPercent, d.SelfWithUnit)
}

// String renders the whole tree.
func (t *CallTree) String() string {
	return t.Tree(0).String()
}

// Tree renders the visible nodes down to maxDepth levels (0 for all).
func (t *CallTree) Tree(maxDepth int) treeprint.Tree {
	type branch struct {
		nodes []int32
		depth int
		treeprint.Tree
	}
	tree := treeprint.New()
	remaining := []*branch{{nodes: t.Roots(), depth: 1, Tree: tree}}
	for len(remaining) > 0 {
		current := remaining[0]
		remaining = remaining[1:]
		for _, n := range current.nodes {
			children := t.Children(n)
			if len(children) == 0 || (maxDepth > 0 && current.depth >= maxDepth) {
				current.Tree.AddNode(t.label(n))
				continue
			}
			remaining = append(remaining, &branch{
				nodes: children,
				depth: current.depth + 1,
				Tree:  current.Tree.AddBranch(t.label(n)),
			})
		}
	}
	return tree
}

func (t *CallTree) Print(w io.Writer, maxDepth int) error {
	_, err := io.WriteString(w, t.Tree(maxDepth).String())
	return err
}
