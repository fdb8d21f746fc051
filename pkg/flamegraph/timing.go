package flamegraph

import (
	"math"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/calltree"
)

// RowTiming describes the boxes of one flame graph row. Start and End are
// fractions of the root total; a box is as wide as the absolute total of
// its node, so End >= Start even for negative weights. SelfRelative keeps
// the sign of the self weight.
type RowTiming struct {
	Start        []float64
	End          []float64
	SelfRelative []float64
	CallNode     []int32
}

func (r *RowTiming) Len() int { return len(r.CallNode) }

type Timing []RowTiming

// ComputeTiming positions the boxes of every row. A box starts where its
// previous sibling ends, or at its parent's start for the first child.
// Nodes with a zero total, and their subtrees, get no box.
func ComputeTiming(rows Rows, table *callnode.Table, timings *calltree.NonInvertedTimings) Timing {
	timing := make(Timing, len(rows))
	summary := timings.RootTotalSummary
	if summary == 0 {
		return timing
	}
	// cursor[n] is the start of the next child box of n; placed[n] reports
	// whether n got a box.
	cursor := make([]float64, table.Len())
	placed := make([]bool, table.Len())
	var rootCursor float64
	for depth, row := range rows {
		t := &timing[depth]
		for _, node := range row {
			total := timings.Total[node]
			if total == 0 {
				continue
			}
			var start float64
			if prefix := table.Prefix[node]; prefix == -1 {
				start = rootCursor
			} else {
				if !placed[prefix] {
					continue
				}
				start = cursor[prefix]
			}
			end := start + math.Abs(total)/summary
			if prefix := table.Prefix[node]; prefix == -1 {
				rootCursor = end
			} else {
				cursor[prefix] = end
			}
			cursor[node] = start
			placed[node] = true

			t.Start = append(t.Start, start)
			t.End = append(t.End, end)
			t.SelfRelative = append(t.SelfRelative, timings.Self[node]/summary)
			t.CallNode = append(t.CallNode, node)
		}
	}
	return timing
}
