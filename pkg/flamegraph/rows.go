// Package flamegraph lays out a non-inverted call tree as a flame graph:
// one row per depth, siblings ordered by function name, and boxes sized
// by their share of the root total.
package flamegraph

import (
	"cmp"
	"slices"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/model"
	"github.com/grafana/calltree/pkg/profile"
)

// Rows holds the call nodes of every depth. Within a row, children of the
// same parent are contiguous, appear in the order of their parents in the
// row above, and are sorted by function name.
type Rows [][]int32

// ComputeRows walks the call node table depth first, visiting siblings in
// function name order, and appends every node to the row of its depth.
func ComputeRows(table *callnode.Table, thread *profile.Thread) Rows {
	rows := make(Rows, table.MaxDepth+1)
	if table.Len() == 0 {
		return rows
	}
	byName := func(a, b int32) int {
		// Reverse order: the stack pops the smallest name first.
		return -cmp.Or(
			cmp.Compare(thread.FuncName(table.Func[a]), thread.FuncName(table.Func[b])),
			cmp.Compare(a, b),
		)
	}
	var siblings []int32
	pushSiblings := func(stack *model.Stack[int32], first int32) {
		siblings = siblings[:0]
		for n := first; n != -1; n = table.NextSibling[n] {
			siblings = append(siblings, n)
		}
		slices.SortFunc(siblings, byName)
		for _, n := range siblings {
			stack.Push(n)
		}
	}

	stack := model.GetInt32Stack()
	defer model.PutInt32Stack(stack)
	pushSiblings(stack, 0)
	for {
		node, ok := stack.Pop()
		if !ok {
			break
		}
		depth := table.Depth[node]
		rows[depth] = append(rows[depth], node)
		if table.SubtreeRangeEnd[node] > node+1 {
			pushSiblings(stack, node+1)
		}
	}
	return rows
}
