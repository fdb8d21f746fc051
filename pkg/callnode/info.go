package callnode

import (
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/grafana/calltree/pkg/profile"
)

// Info answers structural queries about a call tree in one orientation.
//
// Implementations hold lazily filled caches and are not safe for
// concurrent use. They are never invalidated: build a new Info when the
// inputs change.
type Info interface {
	// CallNodeTable returns the non-inverted call node table.
	CallNodeTable() *Table
	StackToCallNode() []int32
	IsInverted() bool
	// AsInverted returns nil for non-inverted trees.
	AsInverted() *InvertedInfo
	// Len is the number of addressable nodes.
	Len() int
	Roots() []int32
	Children(node int32) []int32
	IsRoot(node int32) bool
	// Parent returns -1 for roots.
	Parent(node int32) int32
	Depth(node int32) int32
	Func(node int32) int32
	PathFromIndex(node int32) Path
	IndexFromPath(path Path) (int32, bool)
}

// MustIndexFromPath resolves path and panics when it does not exist.
func MustIndexFromPath(info Info, path Path) int32 {
	node, ok := info.IndexFromPath(path)
	if !ok {
		panic(fmt.Sprintf("call node path %v cannot be resolved (inverted: %v)", path, info.IsInverted()))
	}
	return node
}

// NonInvertedInfo is the Info of the call tree in its natural
// root-to-leaf orientation.
type NonInvertedInfo struct {
	table           *Table
	stackToCallNode []int32
	funcCount       int

	lookup   *swiss.Map[int64, int32]
	inverted *InvertedInfo
}

func NewNonInvertedInfo(table *Table, stackToCallNode []int32, funcCount int) *NonInvertedInfo {
	return &NonInvertedInfo{
		table:           table,
		stackToCallNode: stackToCallNode,
		funcCount:       funcCount,
	}
}

// New builds the call node table for thread and wraps it.
func New(thread *profile.Thread, defaultCategory int32) *NonInvertedInfo {
	table, stackToCallNode := Build(thread, defaultCategory)
	return NewNonInvertedInfo(table, stackToCallNode, thread.Funcs.Len())
}

func (i *NonInvertedInfo) CallNodeTable() *Table {
	return i.table
}

func (i *NonInvertedInfo) StackToCallNode() []int32 {
	return i.stackToCallNode
}

func (i *NonInvertedInfo) IsInverted() bool {
	return false
}

func (i *NonInvertedInfo) AsInverted() *InvertedInfo {
	return nil
}

func (i *NonInvertedInfo) Len() int {
	return i.table.Len()
}

func (i *NonInvertedInfo) FuncCount() int {
	return i.funcCount
}

func (i *NonInvertedInfo) IsRoot(node int32) bool {
	return i.Parent(node) == -1
}

func (i *NonInvertedInfo) Func(node int32) int32 {
	i.table.check(node)
	return i.table.Func[node]
}

func (i *NonInvertedInfo) Depth(node int32) int32 {
	i.table.check(node)
	return i.table.Depth[node]
}

func (i *NonInvertedInfo) Parent(node int32) int32 {
	i.table.check(node)
	return i.table.Prefix[node]
}

func (i *NonInvertedInfo) siblings(first int32) []int32 {
	return appendSiblings(nil, i.table, first)
}

func appendSiblings(dst []int32, t *Table, first int32) []int32 {
	for n := first; n != sentinel; n = t.NextSibling[n] {
		dst = append(dst, n)
	}
	return dst
}

// Roots returns the nodes without a prefix, in table order.
func (i *NonInvertedInfo) Roots() []int32 {
	if i.table.Len() == 0 {
		return nil
	}
	return i.siblings(0)
}

// Children returns the direct children of node in table order.
func (i *NonInvertedInfo) Children(node int32) []int32 {
	i.table.check(node)
	if i.table.SubtreeRangeEnd[node] == node+1 {
		return nil
	}
	return i.siblings(node + 1)
}

// PathFromIndex returns the root-to-node function sequence.
func (i *NonInvertedInfo) PathFromIndex(node int32) Path {
	i.table.check(node)
	path := make(Path, i.table.Depth[node]+1)
	for n := node; n != sentinel; n = i.table.Prefix[n] {
		path[i.table.Depth[n]] = i.table.Func[n]
	}
	return path
}

// IndexFromPath resolves a root-to-node function sequence in O(depth).
func (i *NonInvertedInfo) IndexFromPath(path Path) (int32, bool) {
	if len(path) == 0 {
		return sentinel, false
	}
	if i.lookup == nil {
		i.lookup = swiss.NewMap[int64, int32](uint32(i.table.Len() + 1))
		for n := 0; n < i.table.Len(); n++ {
			i.lookup.Put(lookupKey(i.table.Prefix[n], i.table.Func[n], i.funcCount), int32(n))
		}
	}
	node := int32(sentinel)
	for _, fn := range path {
		if fn < 0 || int(fn) >= i.funcCount {
			return sentinel, false
		}
		child, ok := i.lookup.Get(lookupKey(node, fn, i.funcCount))
		if !ok {
			return sentinel, false
		}
		node = child
	}
	return node, true
}

// Inverted returns the inverted view of the same call node table. The
// suffix order is computed on first use and cached.
func (i *NonInvertedInfo) Inverted() *InvertedInfo {
	if i.inverted == nil {
		i.inverted = newInvertedInfo(i)
	}
	return i.inverted
}
