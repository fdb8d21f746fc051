// Package stackchart computes the boxes of a stack chart: for every depth,
// the time intervals during which a call node stayed on the stack.
package stackchart

import (
	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/model"
	"github.com/grafana/calltree/pkg/profile"
)

// Row holds the boxes of one depth, in time order. SameWidthsStart and
// SameWidthsEnd index the sequence of stack changes instead of time, so a
// chart can give every distinct stack the same width.
type Row struct {
	Start           []float64
	End             []float64
	CallNode        []int32
	SameWidthsStart []int32
	SameWidthsEnd   []int32
}

func (r *Row) Len() int { return len(r.CallNode) }

type Timing []Row

type openBox struct {
	node            int32
	start           float64
	sameWidthsStart int32
}

// Compute simulates the call stack across samples, which must be sorted by
// time. A box opens when a call node enters the stack and closes when a
// later sample no longer contains it; a null stack closes every box. Boxes
// still open after the last sample close at its time plus its duration,
// or plus interval when samples carry no duration. Boxes deeper than
// maxDepth are dropped; a negative maxDepth keeps every depth.
func Compute(samples *profile.SamplesTable, info callnode.Info, maxDepth int32, interval float64) Timing {
	table := info.CallNodeTable()
	stackToCallNode := info.StackToCallNode()
	if maxDepth < 0 || maxDepth > table.MaxDepth {
		maxDepth = table.MaxDepth
	}
	timing := make(Timing, maxDepth+1)

	open := model.NewStack[openBox]()
	closeBox := func(box openBox, end float64, sameWidthsEnd int32) {
		depth := table.Depth[box.node]
		if depth > maxDepth {
			return
		}
		row := &timing[depth]
		row.Start = append(row.Start, box.start)
		row.End = append(row.End, end)
		row.CallNode = append(row.CallNode, box.node)
		row.SameWidthsStart = append(row.SameWidthsStart, box.sameWidthsStart)
		row.SameWidthsEnd = append(row.SameWidthsEnd, sameWidthsEnd)
	}
	// popUntil closes the open boxes above ancestor (-1 closes all).
	popUntil := func(ancestor int32, end float64, sameWidthsEnd int32) {
		for {
			top, ok := open.Peek()
			if !ok || top.node == ancestor {
				return
			}
			open.Pop()
			closeBox(top, end, sameWidthsEnd)
		}
	}

	path := model.GetInt32Stack()
	defer model.PutInt32Stack(path)

	var (
		previous   = int32(-2)
		sameWidths int32
	)
	for i, stack := range samples.Stack {
		node := int32(-1)
		if stack != profile.Null {
			node = stackToCallNode[stack]
		}
		if node == previous {
			continue
		}
		previous = node
		time := samples.Time[i]
		if node == -1 {
			popUntil(-1, time, sameWidths)
			continue
		}

		ancestor := commonAncestor(table, topNode(open), node)
		popUntil(ancestor, time, sameWidths)
		for n := node; n != ancestor; n = table.Prefix[n] {
			path.Push(n)
		}
		for {
			n, ok := path.Pop()
			if !ok {
				break
			}
			open.Push(openBox{node: n, start: time, sameWidthsStart: sameWidths})
		}
		sameWidths++
	}

	if last := samples.Len() - 1; last >= 0 {
		end := samples.Time[last] + interval
		if samples.Duration != nil {
			end = samples.Time[last] + samples.Duration[last]
		}
		popUntil(-1, end, sameWidths)
	}
	return timing
}

func topNode(open *model.Stack[openBox]) int32 {
	if top, ok := open.Peek(); ok {
		return top.node
	}
	return -1
}

// commonAncestor returns the deepest node that is an ancestor-or-self of
// both a and b, or -1.
func commonAncestor(table *callnode.Table, a, b int32) int32 {
	if a == -1 || b == -1 {
		return -1
	}
	for table.Depth[a] > table.Depth[b] {
		a = table.Prefix[a]
	}
	for table.Depth[b] > table.Depth[a] {
		b = table.Prefix[b]
	}
	for a != b {
		a, b = table.Prefix[a], table.Prefix[b]
	}
	return a
}
