package calltree

import (
	"math"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/profile"
)

// treeStrategy is implemented by nonInvertedStrategy and invertedStrategy
// only. Roots and children it returns are candidates: pruning and ordering
// are applied by CallTree.
type treeStrategy interface {
	createRoots() []int32
	createChildren(node int32) []int32
	selfAndTotal(node int32) (self, total float64)
	hasChildren(node int32) bool
	findHeaviestPathInSubtree(node int32) callnode.Path
	// category returns the category pair and the inlining state of node.
	category(node int32) (category, subcategory, inlinedInto int32)
}

type nonInvertedStrategy struct {
	info    *callnode.NonInvertedInfo
	timings *NonInvertedTimings
}

func (s *nonInvertedStrategy) createRoots() []int32 { return s.info.Roots() }

func (s *nonInvertedStrategy) createChildren(node int32) []int32 {
	return s.info.Children(node)
}

func (s *nonInvertedStrategy) selfAndTotal(node int32) (float64, float64) {
	return s.timings.Self[node], s.timings.Total[node]
}

func (s *nonInvertedStrategy) hasChildren(node int32) bool {
	return s.timings.HasChildren[node]
}

func (s *nonInvertedStrategy) findHeaviestPathInSubtree(node int32) callnode.Path {
	table := s.info.CallNodeTable()
	heaviest, weight := node, math.Abs(s.timings.Self[node])
	for n := node + 1; n < table.SubtreeRangeEnd[node]; n++ {
		if w := math.Abs(s.timings.Self[n]); w > weight {
			heaviest, weight = n, w
		}
	}
	return s.info.PathFromIndex(heaviest)
}

func (s *nonInvertedStrategy) category(node int32) (int32, int32, int32) {
	t := s.info.CallNodeTable()
	return t.Category[node], t.Subcategory[node], t.SourceFramesInlinedIntoSymbol[node]
}

type invertedStrategy struct {
	info            *callnode.InvertedInfo
	timings         *InvertedTimings
	defaultCategory int32

	// Totals of non-root nodes, indexed by inverted node.
	totals   []float64
	computed []bool
}

func (s *invertedStrategy) createRoots() []int32 { return s.timings.SortedRoots }

func (s *invertedStrategy) createChildren(node int32) []int32 {
	return s.info.Children(node)
}

func (s *invertedStrategy) suffixRange(node int32) []int32 {
	start, end := s.info.SuffixOrderIndexRangeForCallNode(node)
	return s.info.SuffixOrderedCallNodes()[start:end]
}

// selfAndTotal reports the self of roots as their total: the inverted root
// of f stands for the samples whose leaf is f. Deeper nodes have no self.
func (s *invertedStrategy) selfAndTotal(node int32) (float64, float64) {
	if s.info.IsRoot(node) {
		total := s.timings.RootTotal[node]
		return total, total
	}
	if int(node) >= len(s.totals) {
		n := s.info.Len()
		s.totals = append(s.totals, make([]float64, n-len(s.totals))...)
		s.computed = append(s.computed, make([]bool, n-len(s.computed))...)
	}
	if !s.computed[node] {
		var total float64
		for _, n := range s.suffixRange(node) {
			total += s.timings.Self[n]
		}
		s.totals[node] = total
		s.computed[node] = true
	}
	return 0, s.totals[node]
}

func (s *invertedStrategy) hasChildren(node int32) bool {
	if s.info.IsRoot(node) {
		return s.timings.RootHasChildren[node]
	}
	depth := s.info.Depth(node)
	table := s.info.CallNodeTable()
	for _, n := range s.suffixRange(node) {
		if table.Depth[n] > depth && s.timings.Self[n] != 0 {
			return true
		}
	}
	return false
}

// findHeaviestPathInSubtree returns the full inverted path of the call
// node with the largest self weight in the suffix range of node.
func (s *invertedStrategy) findHeaviestPathInSubtree(node int32) callnode.Path {
	heaviest, weight := int32(-1), -1.0
	for _, n := range s.suffixRange(node) {
		if w := math.Abs(s.timings.Self[n]); w > weight {
			heaviest, weight = n, w
		}
	}
	if heaviest == -1 {
		return s.info.PathFromIndex(node)
	}
	path := s.info.NonInverted().PathFromIndex(heaviest)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// category reconciles the categories of every call site merged into the
// inverted node, the same way the builder merges stacks.
func (s *invertedStrategy) category(node int32) (int32, int32, int32) {
	table := s.info.CallNodeTable()
	category, subcategory, inlined := int32(-1), int32(0), callnode.NotInlined
	for i, n := range s.info.CorrespondingCallNodes(node) {
		if i == 0 {
			category, subcategory = table.Category[n], table.Subcategory[n]
			inlined = table.SourceFramesInlinedIntoSymbol[n]
			continue
		}
		category, subcategory = profile.ReconcileCategory(category, subcategory,
			table.Category[n], table.Subcategory[n], s.defaultCategory)
		if inlined != table.SourceFramesInlinedIntoSymbol[n] {
			inlined = callnode.DivergentInlining
		}
	}
	if category == -1 {
		category = s.defaultCategory
	}
	return category, subcategory, inlined
}
