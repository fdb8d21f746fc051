package calltree

import (
	"cmp"
	"math"
	"slices"

	"github.com/pkg/errors"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/profile"
)

// ErrNotApplicable is returned when a timing computation does not apply to
// the given samples; callers should fall back to a simpler computation.
var ErrNotApplicable = errors.New("timing computation not applicable to samples")

// Self holds the self weight of every non-inverted call node.
type Self struct {
	Self []float64
	// RootTotalSummary is the sum of the absolute self values; it is the
	// denominator of every percentage.
	RootTotalSummary float64
}

// ComputeSelf accumulates sample weights into their leaf call node.
// Samples without a stack contribute nothing.
func ComputeSelf(samples *profile.SamplesTable, stackToCallNode []int32, callNodeCount int) Self {
	self := make([]float64, callNodeCount)
	for i, stack := range samples.Stack {
		if stack == profile.Null {
			continue
		}
		self[stackToCallNode[stack]] += samples.WeightAt(i)
	}
	return Self{Self: self, RootTotalSummary: absSum(self)}
}

func absSum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += math.Abs(v)
	}
	return sum
}

type NonInvertedTimings struct {
	Self             []float64
	Total            []float64
	HasChildren      []bool
	RootTotalSummary float64
}

// InvertedTimings keep self values against the non-inverted call nodes;
// totals are only materialized for the inverted roots, which are keyed by
// function index. Totals of deeper inverted nodes are range sums over the
// suffix order.
type InvertedTimings struct {
	Self             []float64
	RootTotal        []float64
	RootHasChildren  []bool
	SortedRoots      []int32
	RootTotalSummary float64
}

// Timings is either non-inverted or inverted; exactly one field is set.
type Timings struct {
	NonInverted *NonInvertedTimings
	Inverted    *InvertedTimings
}

func (t Timings) IsInverted() bool { return t.Inverted != nil }

// Self returns the per call node self values the timings were computed
// from. They index the non-inverted call node table in both orientations.
func (t Timings) Self() Self {
	if t.Inverted != nil {
		return Self{Self: t.Inverted.Self, RootTotalSummary: t.Inverted.RootTotalSummary}
	}
	return Self{Self: t.NonInverted.Self, RootTotalSummary: t.NonInverted.RootTotalSummary}
}

func (t Timings) RootTotalSummary() float64 {
	if t.Inverted != nil {
		return t.Inverted.RootTotalSummary
	}
	return t.NonInverted.RootTotalSummary
}

// ComputeNonInvertedTimings propagates self values to their ancestors.
// The call node table is in depth-first order, so walking it backwards
// visits every child before its parent.
func ComputeNonInvertedTimings(table *callnode.Table, self Self) *NonInvertedTimings {
	n := table.Len()
	total := make([]float64, n)
	hasChildren := make([]bool, n)
	for node := n - 1; node >= 0; node-- {
		total[node] += self.Self[node]
		if total[node] == 0 && !hasChildren[node] {
			continue
		}
		if prefix := table.Prefix[node]; prefix != -1 {
			total[prefix] += total[node]
			hasChildren[prefix] = true
		}
	}
	return &NonInvertedTimings{
		Self:             self.Self,
		Total:            total,
		HasChildren:      hasChildren,
		RootTotalSummary: self.RootTotalSummary,
	}
}

// ComputeInvertedTimings computes the totals of the inverted roots: the
// total of function f is the self weight of every call node of f.
func ComputeInvertedTimings(info *callnode.InvertedInfo, self Self) *InvertedTimings {
	table := info.CallNodeTable()
	funcCount := info.FuncCount()
	total := make([]float64, funcCount)
	hasChildren := make([]bool, funcCount)
	for node, s := range self.Self {
		if s == 0 {
			continue
		}
		fn := table.Func[node]
		total[fn] += s
		if table.Depth[node] > 0 {
			hasChildren[fn] = true
		}
	}
	roots := info.Roots()
	slices.SortStableFunc(roots, func(a, b int32) int {
		return cmp.Compare(math.Abs(total[b]), math.Abs(total[a]))
	})
	return &InvertedTimings{
		Self:             self.Self,
		RootTotal:        total,
		RootHasChildren:  hasChildren,
		SortedRoots:      roots,
		RootTotalSummary: self.RootTotalSummary,
	}
}

// ComputeTimings computes the timings matching the orientation of info.
func ComputeTimings(info callnode.Info, samples *profile.SamplesTable) Timings {
	self := ComputeSelf(samples, info.StackToCallNode(), info.CallNodeTable().Len())
	if inverted := info.AsInverted(); inverted != nil {
		return Timings{Inverted: ComputeInvertedTimings(inverted, self)}
	}
	return Timings{NonInverted: ComputeNonInvertedTimings(info.CallNodeTable(), self)}
}

// ComputeTracedTimings attributes to each sample the time until the next
// sample, and the sampling interval to the last one, so that totals agree
// with the stack chart. It only applies to unweighted sample counts.
func ComputeTracedTimings(samples *profile.SamplesTable, info callnode.Info, interval float64) (*NonInvertedTimings, error) {
	if samples.Weight != nil || samples.WeightType != profile.WeightTypeSamples {
		return nil, errors.Wrapf(ErrNotApplicable, "weight type %s", samples.WeightType)
	}
	table := info.CallNodeTable()
	stackToCallNode := info.StackToCallNode()
	self := make([]float64, table.Len())
	last := samples.Len() - 1
	for i, stack := range samples.Stack {
		if stack == profile.Null {
			continue
		}
		d := interval
		if i < last {
			d = samples.Time[i+1] - samples.Time[i]
		}
		self[stackToCallNode[stack]] += d
	}
	return ComputeNonInvertedTimings(table, Self{Self: self, RootTotalSummary: absSum(self)}), nil
}
