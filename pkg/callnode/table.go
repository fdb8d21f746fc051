package callnode

import "fmt"

const (
	// NotInlined marks call nodes whose frames are not inlined.
	NotInlined int32 = -1
	// DivergentInlining marks call nodes whose merged frames disagree on the
	// symbol they were inlined into.
	DivergentInlining int32 = -2
)

// Table is the deduplicated call tree, stored in depth-first order: the
// descendants of node A occupy exactly [A+1, SubtreeRangeEnd[A]).
type Table struct {
	Prefix      []int32
	Func        []int32
	Category    []int32
	Subcategory []int32
	Depth       []int32
	// NextSibling is -1 for the last child of a parent (or the last root).
	NextSibling     []int32
	SubtreeRangeEnd []int32
	// SourceFramesInlinedIntoSymbol is the native symbol the frames of the
	// node were inlined into, NotInlined or DivergentInlining.
	SourceFramesInlinedIntoSymbol []int32
	MaxDepth                      int32
}

func (t *Table) Len() int { return len(t.Func) }

// IsDescendantOf reports whether node lies in the subtree of ancestor
// (a node is not its own descendant).
func (t *Table) IsDescendantOf(node, ancestor int32) bool {
	return node > ancestor && node < t.SubtreeRangeEnd[ancestor]
}

func (t *Table) check(node int32) {
	if node < 0 || int(node) >= t.Len() {
		panic(fmt.Sprintf("call node %d out of range [0, %d)", node, t.Len()))
	}
}

func newTable(n int) *Table {
	return &Table{
		Prefix:                        make([]int32, n),
		Func:                          make([]int32, n),
		Category:                      make([]int32, n),
		Subcategory:                   make([]int32, n),
		Depth:                         make([]int32, n),
		NextSibling:                   make([]int32, n),
		SubtreeRangeEnd:               make([]int32, n),
		SourceFramesInlinedIntoSymbol: make([]int32, n),
		MaxDepth:                      -1,
	}
}

// Path is a sequence of function indexes. Non-inverted paths go from the
// root to the node; inverted paths go from the leaf function upwards.
type Path []int32
