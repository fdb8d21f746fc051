// Package calltree turns call node structure and sample weights into the
// tree consumers render: roots and children ordered by weight, per-node
// totals and formatted display data.
package calltree

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/profile"
	islices "github.com/grafana/calltree/pkg/slices"
)

// NodeData is the numeric view of a call node.
type NodeData struct {
	Func          int32
	Name          string
	Self          float64
	Total         float64
	SelfRelative  float64
	TotalRelative float64
}

type Option func(*CallTree)

// WithDefaultCategory sets the category used when merged call sites of an
// inverted node disagree. It defaults to 0.
func WithDefaultCategory(category int32) Option {
	return func(t *CallTree) { t.defaultCategory = category }
}

// CallTree answers rendering queries over one call tree orientation. It is
// not safe for concurrent use; its caches are never invalidated.
type CallTree struct {
	thread          *profile.Thread
	categories      []profile.Category
	info            callnode.Info
	timings         Timings
	weightType      profile.WeightType
	defaultCategory int32
	strategy        treeStrategy

	roots         []int32
	rootsComputed bool
	children      map[int32][]int32
	nodeData      map[int32]*NodeData
	displayData   map[int32]*DisplayData
}

// New creates the call tree for info. The orientation of timings must match
// the orientation of info.
func New(thread *profile.Thread, categories []profile.Category, info callnode.Info, timings Timings, weightType profile.WeightType, opts ...Option) *CallTree {
	t := &CallTree{
		thread:      thread,
		categories:  categories,
		info:        info,
		timings:     timings,
		weightType:  weightType,
		children:    make(map[int32][]int32),
		nodeData:    make(map[int32]*NodeData),
		displayData: make(map[int32]*DisplayData),
	}
	for _, o := range opts {
		o(t)
	}
	switch {
	case timings.Inverted != nil && info.IsInverted():
		t.strategy = &invertedStrategy{
			info:            info.AsInverted(),
			timings:         timings.Inverted,
			defaultCategory: t.defaultCategory,
		}
	case timings.NonInverted != nil && !info.IsInverted():
		t.strategy = &nonInvertedStrategy{
			info:    info.(*callnode.NonInvertedInfo),
			timings: timings.NonInverted,
		}
	default:
		panic(fmt.Sprintf("call tree timings (inverted: %v) do not match call node info (inverted: %v)",
			timings.IsInverted(), info.IsInverted()))
	}
	return t
}

func (t *CallTree) check(node int32) {
	if node < 0 || int(node) >= t.info.Len() {
		panic(fmt.Sprintf("call tree node %d out of range [0, %d)", node, t.info.Len()))
	}
}

func (t *CallTree) Info() callnode.Info { return t.info }

func (t *CallTree) Thread() *profile.Thread { return t.thread }

func (t *CallTree) RootTotalSummary() float64 { return t.timings.RootTotalSummary() }

// visible is the single pruning policy of both orientations.
func (t *CallTree) visible(node int32) bool {
	_, total := t.strategy.selfAndTotal(node)
	return total != 0 || t.strategy.hasChildren(node)
}

func (t *CallTree) sortVisible(candidates []int32) []int32 {
	nodes := islices.RemoveInPlace(slices.Clone(candidates), func(n int32, _ int) bool {
		return !t.visible(n)
	})
	slices.SortStableFunc(nodes, func(a, b int32) int {
		_, ta := t.strategy.selfAndTotal(a)
		_, tb := t.strategy.selfAndTotal(b)
		return cmp.Compare(math.Abs(tb), math.Abs(ta))
	})
	return nodes
}

// Roots returns the visible roots by descending absolute total.
func (t *CallTree) Roots() []int32 {
	if !t.rootsComputed {
		t.roots = t.sortVisible(t.strategy.createRoots())
		t.rootsComputed = true
	}
	return t.roots
}

// Children returns the visible children of node by descending absolute
// total. Ties keep the order of the underlying call node info.
func (t *CallTree) Children(node int32) []int32 {
	t.check(node)
	if c, ok := t.children[node]; ok {
		return c
	}
	c := t.sortVisible(t.strategy.createChildren(node))
	t.children[node] = c
	return c
}

func (t *CallTree) HasChildren(node int32) bool {
	t.check(node)
	return t.strategy.hasChildren(node)
}

func (t *CallTree) Parent(node int32) int32 {
	return t.info.Parent(node)
}

func (t *CallTree) Depth(node int32) int32 {
	return t.info.Depth(node)
}

func (t *CallTree) relative(v float64) float64 {
	summary := t.RootTotalSummary()
	if summary == 0 {
		return 0
	}
	return v / summary
}

func (t *CallTree) NodeData(node int32) *NodeData {
	t.check(node)
	if d, ok := t.nodeData[node]; ok {
		return d
	}
	fn := t.info.Func(node)
	self, total := t.strategy.selfAndTotal(node)
	d := &NodeData{
		Func:          fn,
		Name:          t.thread.FuncName(fn),
		Self:          self,
		Total:         total,
		SelfRelative:  t.relative(self),
		TotalRelative: t.relative(total),
	}
	t.nodeData[node] = d
	return d
}

// AllDescendants collects every visible descendant of node.
func (t *CallTree) AllDescendants(node int32) map[int32]struct{} {
	result := make(map[int32]struct{})
	pending := append([]int32(nil), t.Children(node)...)
	for len(pending) > 0 {
		n := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		result[n] = struct{}{}
		pending = append(pending, t.Children(n)...)
	}
	return result
}

// FindHeavyPathInSubtree returns the path to the node with the largest
// absolute self weight below node. In the inverted tree the path runs from
// the leaf function to the root of the sample stack.
func (t *CallTree) FindHeavyPathInSubtree(node int32) callnode.Path {
	t.check(node)
	return t.strategy.findHeaviestPathInSubtree(node)
}
