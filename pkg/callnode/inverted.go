package callnode

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/dolthub/swiss"
)

// InvertedInfo presents the call tree re-rooted at leaf functions without
// materializing a second call node table.
//
// Inverted roots are keyed by function identity: the root for function f
// has node index f. Deeper inverted nodes are allocated lazily the first
// time they are reached. Every inverted node owns a contiguous range of
// the suffix order, the permutation of non-inverted call nodes sorted by
// their call path read from leaf to root; the range holds exactly the
// call nodes whose reversed path starts with the inverted node's path.
type InvertedInfo struct {
	nonInverted *NonInvertedInfo
	table       *Table
	funcCount   int

	suffixOrderedCallNodes []int32
	suffixOrderIndexes     []int32

	nodes    invertedNodes
	lookup   *swiss.Map[int64, int32]
	children map[int32][]int32
}

type invertedNodes struct {
	prefix     []int32
	fn         []int32
	depth      []int32
	rangeStart []int32
	rangeEnd   []int32
}

func (n *invertedNodes) len() int { return len(n.fn) }

func (n *invertedNodes) add(prefix, fn, depth, start, end int32) int32 {
	i := int32(len(n.fn))
	n.prefix = append(n.prefix, prefix)
	n.fn = append(n.fn, fn)
	n.depth = append(n.depth, depth)
	n.rangeStart = append(n.rangeStart, start)
	n.rangeEnd = append(n.rangeEnd, end)
	return i
}

func newInvertedInfo(nonInverted *NonInvertedInfo) *InvertedInfo {
	t := nonInverted.table
	info := &InvertedInfo{
		nonInverted: nonInverted,
		table:       t,
		funcCount:   nonInverted.funcCount,
		lookup:      swiss.NewMap[int64, int32](uint32(nonInverted.funcCount + 1)),
		children:    make(map[int32][]int32),
	}
	info.suffixOrderedCallNodes, info.suffixOrderIndexes = computeSuffixOrder(t)

	// One root per function, in function order. The suffix order is sorted
	// by leaf function first, so each root range is a single run.
	ordered := info.suffixOrderedCallNodes
	pos := int32(0)
	for fn := 0; fn < info.funcCount; fn++ {
		start := pos
		for int(pos) < len(ordered) && t.Func[ordered[pos]] == int32(fn) {
			pos++
		}
		info.nodes.add(sentinel, int32(fn), 0, start, pos)
	}
	return info
}

// computeSuffixOrder sorts the call nodes by reversed call path. A path
// that runs out orders before any path that continues.
func computeSuffixOrder(t *Table) (ordered, indexes []int32) {
	n := t.Len()
	ordered = make([]int32, n)
	for i := range ordered {
		ordered[i] = int32(i)
	}
	slices.SortStableFunc(ordered, func(a, b int32) int {
		return compareReversedPaths(t, a, b)
	})
	indexes = make([]int32, n)
	for i, node := range ordered {
		indexes[node] = int32(i)
	}
	return ordered, indexes
}

func compareReversedPaths(t *Table, a, b int32) int {
	for a != b {
		if a == sentinel {
			return -1
		}
		if b == sentinel {
			return 1
		}
		if c := cmp.Compare(t.Func[a], t.Func[b]); c != 0 {
			return c
		}
		a, b = t.Prefix[a], t.Prefix[b]
	}
	return 0
}

func (i *InvertedInfo) check(node int32) {
	if node < 0 || int(node) >= i.nodes.len() {
		panic(fmt.Sprintf("inverted call node %d out of range [0, %d)", node, i.nodes.len()))
	}
}

func (i *InvertedInfo) CallNodeTable() *Table {
	return i.table
}

func (i *InvertedInfo) StackToCallNode() []int32 {
	return i.nonInverted.stackToCallNode
}

func (i *InvertedInfo) IsInverted() bool {
	return true
}

func (i *InvertedInfo) AsInverted() *InvertedInfo {
	return i
}

// NonInverted returns the info the inverted view was derived from.
func (i *InvertedInfo) NonInverted() *NonInvertedInfo {
	return i.nonInverted
}

// Len is the number of inverted nodes allocated so far.
func (i *InvertedInfo) Len() int {
	return i.nodes.len()
}

func (i *InvertedInfo) FuncCount() int {
	return i.funcCount
}

func (i *InvertedInfo) IsRoot(node int32) bool {
	i.check(node)
	return int(node) < i.funcCount
}

func (i *InvertedInfo) Parent(node int32) int32 {
	i.check(node)
	return i.nodes.prefix[node]
}

func (i *InvertedInfo) Depth(node int32) int32 {
	i.check(node)
	return i.nodes.depth[node]
}

func (i *InvertedInfo) Func(node int32) int32 {
	i.check(node)
	return i.nodes.fn[node]
}

// SuffixOrderedCallNodes maps suffix order index to non-inverted call node.
func (i *InvertedInfo) SuffixOrderedCallNodes() []int32 {
	return i.suffixOrderedCallNodes
}

// SuffixOrderIndexes maps non-inverted call node to suffix order index.
func (i *InvertedInfo) SuffixOrderIndexes() []int32 {
	return i.suffixOrderIndexes
}

// SuffixOrderIndexRangeForCallNode returns the [start, end) range of the
// suffix order covered by the inverted node.
func (i *InvertedInfo) SuffixOrderIndexRangeForCallNode(node int32) (int32, int32) {
	i.check(node)
	return i.nodes.rangeStart[node], i.nodes.rangeEnd[node]
}

// Roots returns the functions that are the leaf function of at least one
// call node.
func (i *InvertedInfo) Roots() []int32 {
	var roots []int32
	for fn := 0; fn < i.funcCount; fn++ {
		if i.nodes.rangeEnd[fn] > i.nodes.rangeStart[fn] {
			roots = append(roots, int32(fn))
		}
	}
	return roots
}

// ancestorAt walks distance steps up from a non-inverted call node.
func (i *InvertedInfo) ancestorAt(node int32, distance int32) int32 {
	for ; distance > 0; distance-- {
		node = i.table.Prefix[node]
	}
	return node
}

// Children returns the inverted children of node, i.e. the callers of the
// path it represents, in function order.
func (i *InvertedInfo) Children(node int32) []int32 {
	i.check(node)
	if children, ok := i.children[node]; ok {
		return children
	}
	var (
		depth    = i.nodes.depth[node]
		start    = i.nodes.rangeStart[node]
		end      = i.nodes.rangeEnd[node]
		ordered  = i.suffixOrderedCallNodes
		children []int32
	)
	// Call nodes whose path ends exactly at this depth sort first.
	for start < end && i.table.Depth[ordered[start]] == depth {
		start++
	}
	for start < end {
		fn := i.table.Func[i.ancestorAt(ordered[start], depth+1)]
		groupEnd := start + 1
		for groupEnd < end && i.table.Func[i.ancestorAt(ordered[groupEnd], depth+1)] == fn {
			groupEnd++
		}
		child := i.nodes.add(node, fn, depth+1, start, groupEnd)
		i.lookup.Put(lookupKey(node, fn, i.funcCount), child)
		children = append(children, child)
		start = groupEnd
	}
	i.children[node] = children
	return children
}

// PathFromIndex returns the function sequence from the inverted root (the
// leaf function) down to node.
func (i *InvertedInfo) PathFromIndex(node int32) Path {
	i.check(node)
	path := make(Path, i.nodes.depth[node]+1)
	for n := node; n != sentinel; n = i.nodes.prefix[n] {
		path[i.nodes.depth[n]] = i.nodes.fn[n]
	}
	return path
}

// IndexFromPath resolves an inverted path, allocating the inverted nodes
// along it as needed.
func (i *InvertedInfo) IndexFromPath(path Path) (int32, bool) {
	if len(path) == 0 || path[0] < 0 || int(path[0]) >= i.funcCount {
		return sentinel, false
	}
	node := path[0]
	for _, fn := range path[1:] {
		if fn < 0 || int(fn) >= i.funcCount {
			return sentinel, false
		}
		if _, ok := i.children[node]; !ok {
			i.Children(node)
		}
		child, ok := i.lookup.Get(lookupKey(node, fn, i.funcCount))
		if !ok {
			return sentinel, false
		}
		node = child
	}
	if i.nodes.rangeEnd[node] == i.nodes.rangeStart[node] {
		return sentinel, false
	}
	return node, true
}

// CorrespondingCallNodes returns, for every call node in the suffix range
// of node, its ancestor that stands for node's function: the call sites
// merged into the inverted node.
func (i *InvertedInfo) CorrespondingCallNodes(node int32) []int32 {
	i.check(node)
	depth := i.nodes.depth[node]
	start, end := i.nodes.rangeStart[node], i.nodes.rangeEnd[node]
	nodes := make([]int32, 0, end-start)
	for _, n := range i.suffixOrderedCallNodes[start:end] {
		nodes = append(nodes, i.ancestorAt(n, depth))
	}
	return nodes
}

var (
	_ Info = (*NonInvertedInfo)(nil)
	_ Info = (*InvertedInfo)(nil)
)
