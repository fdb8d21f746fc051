package calltree

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/calltree/pkg/callnode"
	"github.com/grafana/calltree/pkg/profile"
	"github.com/grafana/calltree/pkg/profile/profiletest"
)

func newTree(thread *profile.Thread, inverted bool) *CallTree {
	var info callnode.Info = callnode.New(thread, 0)
	if inverted {
		info = info.(*callnode.NonInvertedInfo).Inverted()
	}
	timings := ComputeTimings(info, &thread.Samples)
	return New(thread, profile.DefaultCategories, info, timings, thread.Samples.WeightType)
}

func nodeNames(tree *CallTree, nodes []int32) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = tree.NodeData(n).Name
	}
	return names
}

func pathNames(thread *profile.Thread, path callnode.Path) string {
	s := make([]string, len(path))
	for i, fn := range path {
		s[i] = thread.FuncName(fn)
	}
	return strings.Join(s, ";")
}

func Test_CallTree_NonInverted(t *testing.T) {
	thread := profiletest.NewThread("A;B;C", "A;B;C", "A;B;D")
	tree := newTree(thread, false)

	roots := tree.Roots()
	require.Equal(t, []string{"A"}, nodeNames(tree, roots))
	a := roots[0]
	require.Equal(t, &NodeData{Func: 0, Name: "A", Self: 0, Total: 3, SelfRelative: 0, TotalRelative: 1}, tree.NodeData(a))

	ab := tree.Children(a)
	require.Equal(t, []string{"B"}, nodeNames(tree, ab))
	assert.Equal(t, 3.0, tree.NodeData(ab[0]).Total)

	leaves := tree.Children(ab[0])
	require.Equal(t, []string{"C", "D"}, nodeNames(tree, leaves))
	assert.Equal(t, 2.0, tree.NodeData(leaves[0]).Self)
	assert.Equal(t, 2.0, tree.NodeData(leaves[0]).Total)
	assert.Equal(t, 1.0, tree.NodeData(leaves[1]).Total)
	assert.Empty(t, tree.Children(leaves[0]))
	assert.False(t, tree.HasChildren(leaves[0]))
	assert.True(t, tree.HasChildren(a))

	assert.Equal(t, 3.0, tree.RootTotalSummary())
	assert.Equal(t, a, tree.Parent(ab[0]))
	assert.Equal(t, int32(2), tree.Depth(leaves[1]))
	assert.Len(t, tree.AllDescendants(a), 3)
	assert.Equal(t, "A;B;C", pathNames(thread, tree.FindHeavyPathInSubtree(a)))
	assert.Equal(t, "A;B;D", pathNames(thread, tree.FindHeavyPathInSubtree(leaves[1])))
}

func Test_CallTree_Inverted(t *testing.T) {
	thread := profiletest.NewThread("A;B;C", "A;B;C", "A;B;D")
	tree := newTree(thread, true)

	roots := tree.Roots()
	require.Equal(t, []string{"C", "D"}, nodeNames(tree, roots))
	c := roots[0]
	assert.Equal(t, 2.0, tree.NodeData(c).Total)
	assert.Equal(t, 2.0, tree.NodeData(c).Self)
	assert.Equal(t, 1.0, tree.NodeData(roots[1]).Total)

	cb := tree.Children(c)
	require.Equal(t, []string{"B"}, nodeNames(tree, cb))
	assert.Equal(t, 2.0, tree.NodeData(cb[0]).Total)
	assert.Equal(t, 0.0, tree.NodeData(cb[0]).Self)

	cba := tree.Children(cb[0])
	require.Equal(t, []string{"A"}, nodeNames(tree, cba))
	assert.Equal(t, 2.0, tree.NodeData(cba[0]).Total)
	assert.Empty(t, tree.Children(cba[0]))
	assert.False(t, tree.HasChildren(cba[0]))
	assert.True(t, tree.HasChildren(cb[0]))

	assert.Equal(t, cb[0], tree.Parent(cba[0]))
	assert.Equal(t, int32(2), tree.Depth(cba[0]))
	assert.Len(t, tree.AllDescendants(c), 2)
	assert.Equal(t, "D;B;A", pathNames(thread, tree.FindHeavyPathInSubtree(roots[1])))
	assert.Equal(t, "C;B;A", pathNames(thread, tree.FindHeavyPathInSubtree(cb[0])))
}

type countingStrategy struct {
	treeStrategy
	createRootsCalls int
}

func (s *countingStrategy) createRoots() []int32 {
	s.createRootsCalls++
	return s.treeStrategy.createRoots()
}

func Test_CallTree_RootsMemoizedWhenEmpty(t *testing.T) {
	b := profiletest.NewBuilder()
	b.Stack("A;B")
	thread := b.Thread()
	for _, inverted := range []bool{false, true} {
		t.Run(fmt.Sprintf("inverted=%v", inverted), func(t *testing.T) {
			tree := newTree(thread, inverted)
			counting := &countingStrategy{treeStrategy: tree.strategy}
			tree.strategy = counting
			assert.Empty(t, tree.Roots())
			assert.Empty(t, tree.Roots())
			assert.Equal(t, 1, counting.createRootsCalls)
		})
	}
}

func Test_CallTree_ZeroSamples(t *testing.T) {
	b := profiletest.NewBuilder()
	b.Stack("A;B")
	thread := b.Thread()
	for _, inverted := range []bool{false, true} {
		t.Run(fmt.Sprintf("inverted=%v", inverted), func(t *testing.T) {
			tree := newTree(thread, inverted)
			assert.Empty(t, tree.Roots())
			assert.Equal(t, 0.0, tree.RootTotalSummary())
			d := tree.DisplayData(0)
			assert.Equal(t, "0%", d.TotalPercent)
			assert.Equal(t, "0%", d.SelfPercent)
			assert.Equal(t, "0 samples", d.TotalWithUnit)
		})
	}
}

func Test_CallTree_PrunesZeroTotals(t *testing.T) {
	b := profiletest.NewBuilder()
	b.Stack("A;X")
	b.Sample("A;B", 0, 1)
	thread := b.Thread()
	tree := newTree(thread, false)
	a := tree.Roots()[0]
	assert.Equal(t, []string{"B"}, nodeNames(tree, tree.Children(a)))

	inverted := newTree(thread, true)
	assert.Equal(t, []string{"B"}, nodeNames(inverted, inverted.Roots()))
}

func Test_CallTree_NegativeWeights(t *testing.T) {
	b := profiletest.NewBuilder()
	b.Sample("A;B", 0, 5)
	b.Sample("A;C", 1, -7)
	b.Sample("A;D", 2, 2)
	thread := b.Thread()
	tree := newTree(thread, false)
	a := tree.Roots()[0]
	assert.Equal(t, []string{"C", "B", "D"}, nodeNames(tree, tree.Children(a)))
	assert.Equal(t, 14.0, tree.RootTotalSummary())
	assert.Equal(t, "-50%", tree.DisplayData(tree.Children(a)[0]).TotalPercent)
}

func randomThread(seed int64) *profile.Thread {
	r := rand.New(rand.NewSource(seed))
	b := profiletest.NewBuilder()
	letters := []string{"A", "B", "C", "D", "E"}
	for i := 0; i < 60; i++ {
		depth := 1 + r.Intn(6)
		names := make([]string, depth)
		for j := range names {
			names[j] = letters[r.Intn(len(letters))]
		}
		path := strings.Join(names, ";")
		if r.Intn(10) == 0 {
			path = ""
		}
		b.Sample(path, float64(i), float64(1+r.Intn(3)))
	}
	return b.Thread()
}

func Test_CallTree_Conservation(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		thread := randomThread(seed)
		nonInverted := newTree(thread, false)
		inverted := newTree(thread, true)

		var expected float64
		for i := range thread.Samples.Stack {
			if thread.Samples.Stack[i] != profile.Null {
				expected += thread.Samples.WeightAt(i)
			}
		}

		var rootSum, invertedRootSum float64
		for _, r := range nonInverted.Roots() {
			rootSum += nonInverted.NodeData(r).Total
		}
		for _, r := range inverted.Roots() {
			invertedRootSum += inverted.NodeData(r).Total
		}
		require.InDelta(t, expected, rootSum, 1e-9, "seed %d", seed)
		require.InDelta(t, expected, invertedRootSum, 1e-9, "seed %d", seed)
		require.InDelta(t, expected, nonInverted.RootTotalSummary(), 1e-9)

		// The callers of an inverted node never weigh more than the node.
		var walk func(node int32)
		walk = func(node int32) {
			total := inverted.NodeData(node).Total
			var childSum float64
			for _, c := range inverted.Children(node) {
				childSum += inverted.NodeData(c).Total
				walk(c)
			}
			require.LessOrEqual(t, childSum, total+1e-9, "seed %d", seed)
		}
		for _, r := range inverted.Roots() {
			walk(r)
		}

		// The inverted root of f weighs the self time of f.
		summary := SummarizeFuncs(thread, inverted.Info().AsInverted().NonInverted(),
			ComputeSelf(&thread.Samples, inverted.Info().StackToCallNode(), inverted.Info().CallNodeTable().Len()))
		selfByName := make(map[string]float64)
		for _, s := range summary {
			selfByName[s.Name] = s.Self
		}
		for _, r := range inverted.Roots() {
			d := inverted.NodeData(r)
			require.InDelta(t, selfByName[d.Name], d.Total, 1e-9, "seed %d func %s", seed, d.Name)
		}
	}
}

func Test_CallTree_DisplayData(t *testing.T) {
	b := profiletest.NewBuilder()
	b.Sample("main;parse", 0, 1536)
	b.Sample("main;parse", 1, 512)
	b.Sample("main", 2, 2048)
	b.SetCategory("parse", 2, 0)
	thread := b.Thread()
	thread.Samples.WeightType = profile.WeightTypeBytes

	fn := b.Func("parse")
	thread.Funcs.FileName[fn] = thread.Strings.Intern("parser.go")
	thread.Funcs.LineNumber[fn] = 42
	lib := thread.Resources.Append(thread.Strings.Intern("libmain.so"), profile.ResourceTypeLibrary)
	thread.Funcs.Resource[b.Func("main")] = lib

	tree := newTree(thread, false)
	main := tree.Roots()[0]
	parse := tree.Children(main)[0]

	d := tree.DisplayData(main)
	assert.Equal(t, "main", d.Name)
	assert.Equal(t, "4.1 kB", d.TotalWithUnit)
	assert.Equal(t, "100%", d.TotalPercent)
	assert.Equal(t, "50%", d.SelfPercent)
	assert.Equal(t, "libmain.so", d.Origin)
	assert.Equal(t, "Other", d.CategoryName)
	assert.Nil(t, d.Badge)

	d = tree.DisplayData(parse)
	assert.Equal(t, "2.0 kB", d.SelfWithUnit)
	assert.Equal(t, "parser.go:42", d.Origin)
	assert.Equal(t, "JavaScript", d.CategoryName)
	assert.Equal(t, "yellow", d.CategoryColor)
	assert.Equal(t, "Other", d.SubcategoryName)
	assert.Same(t, d, tree.DisplayData(parse))
}

func Test_CallTree_InliningBadge(t *testing.T) {
	b := profiletest.NewBuilder()
	thread := b.Thread()
	sym := thread.NativeSymbols.Append(thread.Strings.Intern("outer"))
	f := b.Frame("inlinee")
	thread.Frames.InlineDepth[f] = 1
	thread.Frames.NativeSymbol[f] = sym
	b.Sample("outer;inlinee", 0, 1)

	tree := newTree(b.Thread(), false)
	inlinee := tree.Children(tree.Roots()[0])[0]
	require.NotNil(t, tree.DisplayData(inlinee).Badge)
	assert.Equal(t, "inlined", tree.DisplayData(inlinee).Badge.Name)
	assert.Equal(t, "Inlined into outer", tree.DisplayData(inlinee).Badge.Tooltip)

	inverted := newTree(b.Thread(), true)
	root := inverted.Roots()[0]
	require.Equal(t, "inlinee", inverted.NodeData(root).Name)
	require.NotNil(t, inverted.DisplayData(root).Badge)
}

func Test_CallTree_Panics(t *testing.T) {
	thread := profiletest.NewThread("A;B")
	tree := newTree(thread, false)
	require.Panics(t, func() { tree.Children(7) })
	require.Panics(t, func() { tree.NodeData(-1) })

	info := callnode.New(thread, 0)
	require.Panics(t, func() {
		New(thread, profile.DefaultCategories, info.Inverted(), ComputeTimings(info, &thread.Samples), profile.WeightTypeSamples)
	})
}

func Test_CallTree_Print(t *testing.T) {
	thread := profiletest.NewThread("A;B;C", "A;B;C", "A;B;D")
	tree := newTree(thread, false)
	s := tree.String()
	assert.Contains(t, s, "A: total 3 samples (100%) self 0 samples")
	assert.Contains(t, s, "C: total 2 samples (67%) self 2 samples")
	assert.Contains(t, s, "D: total 1 sample (33%) self 1 sample")

	var sb strings.Builder
	require.NoError(t, tree.Print(&sb, 1))
	assert.NotContains(t, sb.String(), "B:")
}

func Test_ComputeTracedTimings(t *testing.T) {
	b := profiletest.NewBuilder()
	b.Sample("A;B", 0, 1)
	b.Sample("A;B", 2, 1)
	b.Sample("", 3, 1)
	b.Sample("A;C", 5, 1)
	thread := b.Thread()
	info := callnode.New(thread, 0)

	timings, err := ComputeTracedTimings(&thread.Samples, info, 0.5)
	require.NoError(t, err)
	ab := callnode.MustIndexFromPath(info, callnode.Path{b.Func("A"), b.Func("B")})
	ac := callnode.MustIndexFromPath(info, callnode.Path{b.Func("A"), b.Func("C")})
	assert.Equal(t, 3.0, timings.Self[ab])
	assert.Equal(t, 0.5, timings.Self[ac])
	assert.Equal(t, 3.5, timings.Total[0])

	thread.Samples.Append(b.Stack("A"), 6, 4)
	_, err = ComputeTracedTimings(&thread.Samples, info, 0.5)
	require.ErrorIs(t, err, ErrNotApplicable)
}

func Test_SummarizeFuncs(t *testing.T) {
	thread := profiletest.NewThread("A;B;A", "A;C", "A;C")
	info := callnode.New(thread, 0)
	self := ComputeSelf(&thread.Samples, info.StackToCallNode(), info.Len())
	summary := SummarizeFuncs(thread, info, self)
	require.Len(t, summary, 3)
	for i, expected := range []struct {
		name          string
		self, running float64
	}{
		{"C", 2, 2},
		{"A", 1, 3},
		{"B", 0, 1},
	} {
		assert.Equal(t, expected.name, summary[i].Name)
		assert.Equal(t, expected.self, summary[i].Self, expected.name)
		assert.Equal(t, expected.running, summary[i].Running, expected.name)
	}
}
