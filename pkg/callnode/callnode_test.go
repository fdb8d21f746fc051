package callnode

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/calltree/pkg/profile"
	"github.com/grafana/calltree/pkg/profile/profiletest"
)

func names(thread *profile.Thread, path Path) string {
	s := make([]string, len(path))
	for i, fn := range path {
		s[i] = thread.FuncName(fn)
	}
	return strings.Join(s, ";")
}

func Test_Build(t *testing.T) {
	thread := profiletest.NewThread("A;B;C", "A;B;C", "A;B;D")
	table, stackToCallNode := Build(thread, 0)

	require.Equal(t, 4, table.Len())
	info := NewNonInvertedInfo(table, stackToCallNode, thread.Funcs.Len())
	var paths []string
	for n := int32(0); n < int32(table.Len()); n++ {
		paths = append(paths, names(thread, info.PathFromIndex(n)))
	}
	require.Equal(t, []string{"A", "A;B", "A;B;C", "A;B;D"}, paths)
	require.Equal(t, []int32{0, 1, 2, 2}, table.Depth)
	require.Equal(t, []int32{-1, 0, 1, 1}, table.Prefix)
	require.Equal(t, []int32{4, 4, 3, 4}, table.SubtreeRangeEnd)
	require.Equal(t, []int32{-1, -1, 3, -1}, table.NextSibling)
	require.Equal(t, int32(2), table.MaxDepth)
	require.Len(t, stackToCallNode, thread.Stacks.Len())
}

func Test_Build_Empty(t *testing.T) {
	table, stackToCallNode := Build(profile.NewThread("empty"), 0)
	require.Equal(t, 0, table.Len())
	require.Empty(t, stackToCallNode)
	info := NewNonInvertedInfo(table, stackToCallNode, 0)
	require.Empty(t, info.Roots())
	require.Empty(t, info.Inverted().Roots())
}

func Test_Build_DepthFirstOrder(t *testing.T) {
	// The child A;B;D is first seen after the unrelated root C, so the
	// order of first visit is not depth-first.
	b := profiletest.NewBuilder()
	b.Stack("A")
	b.Stack("A;B")
	b.Stack("C")
	b.Stack("A;B;D")
	b.Stack("C;E")
	b.Stack("A;F")
	thread := b.Thread()

	table, stackToCallNode := Build(thread, 0)
	info := NewNonInvertedInfo(table, stackToCallNode, thread.Funcs.Len())
	var paths []string
	for n := int32(0); n < int32(table.Len()); n++ {
		paths = append(paths, names(thread, info.PathFromIndex(n)))
	}
	require.Equal(t, []string{"A", "A;B", "A;B;D", "A;F", "C", "C;E"}, paths)
	assertOrderInvariant(t, table)

	for s := 0; s < thread.Stacks.Len(); s++ {
		node := stackToCallNode[s]
		assert.Equal(t, thread.Funcs.Name[thread.Frames.Func[thread.Stacks.Frame[s]]], thread.Funcs.Name[table.Func[node]])
	}
}

func assertOrderInvariant(t *testing.T, table *Table) {
	t.Helper()
	for a := int32(0); a < int32(table.Len()); a++ {
		for n := int32(0); n < int32(table.Len()); n++ {
			isDescendant := false
			for p := table.Prefix[n]; p != -1; p = table.Prefix[p] {
				if p == a {
					isDescendant = true
					break
				}
			}
			require.Equal(t, isDescendant, table.IsDescendantOf(n, a), "node %d ancestor %d", n, a)
		}
	}
}

// randomThread builds a thread with stacks added in a shuffled but valid
// order and several frames per function.
func randomThread(seed int64) *profile.Thread {
	rnd := rand.New(rand.NewSource(seed))
	b := profiletest.NewBuilder()
	funcs := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 60; i++ {
		depth := 1 + rnd.Intn(5)
		frames := make([]int32, depth)
		for j := range frames {
			name := funcs[rnd.Intn(len(funcs))]
			if rnd.Intn(4) == 0 {
				frames[j] = b.ExtraFrame(name, profile.Null, profile.Null)
			} else {
				frames[j] = b.Frame(name)
			}
		}
		b.SampleStack(b.StackOfFrames(frames...), float64(i), 1)
	}
	return b.Thread()
}

func Test_Build_Invariants(t *testing.T) {
	for seed := int64(0); seed < 5; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			thread := randomThread(seed)
			table, stackToCallNode := Build(thread, 0)
			assertOrderInvariant(t, table)

			// Stacks with the same parent call node and function share a call node.
			type key struct{ parent, fn int32 }
			seen := map[key]int32{}
			for s := 0; s < thread.Stacks.Len(); s++ {
				parent := int32(-1)
				if p := thread.Stacks.Prefix[s]; p != -1 {
					parent = stackToCallNode[p]
				}
				k := key{parent, thread.Frames.Func[thread.Stacks.Frame[s]]}
				if n, ok := seen[k]; ok {
					require.Equal(t, n, stackToCallNode[s])
				}
				seen[k] = stackToCallNode[s]
				require.Equal(t, parent, table.Prefix[stackToCallNode[s]])
			}
			require.Len(t, seen, table.Len())

			// Rebuilding yields the same table.
			again, againStacks := Build(thread, 0)
			require.Equal(t, table, again)
			require.Equal(t, stackToCallNode, againStacks)

			info := NewNonInvertedInfo(table, stackToCallNode, thread.Funcs.Len())
			for n := int32(0); n < int32(table.Len()); n++ {
				got, ok := info.IndexFromPath(info.PathFromIndex(n))
				require.True(t, ok)
				require.Equal(t, n, got)
			}

			inverted := info.Inverted()
			var visit func(nodes []int32)
			visit = func(nodes []int32) {
				for _, n := range nodes {
					got, ok := inverted.IndexFromPath(inverted.PathFromIndex(n))
					require.True(t, ok)
					require.Equal(t, n, got)
					assertSuffixRange(t, inverted, n)
					visit(inverted.Children(n))
				}
			}
			visit(inverted.Roots())
		})
	}
}

// assertSuffixRange checks that the suffix range of an inverted node holds
// exactly the call nodes whose reversed path starts with the node's path.
func assertSuffixRange(t *testing.T, inverted *InvertedInfo, node int32) {
	t.Helper()
	table := inverted.CallNodeTable()
	path := inverted.PathFromIndex(node)
	start, end := inverted.SuffixOrderIndexRangeForCallNode(node)
	for i, n := range inverted.SuffixOrderedCallNodes() {
		matches := true
		c := n
		for _, fn := range path {
			if c == -1 || table.Func[c] != fn {
				matches = false
				break
			}
			c = table.Prefix[c]
		}
		inRange := int32(i) >= start && int32(i) < end
		require.Equal(t, matches, inRange, "call node %d, inverted path %v", n, path)
	}
}

func Test_Build_PanicsOnForwardPrefix(t *testing.T) {
	thread := profiletest.NewThread("A;B")
	thread.Stacks.Prefix[0] = 1
	require.Panics(t, func() { Build(thread, 0) })
}

func Test_Build_Categories(t *testing.T) {
	b := profiletest.NewBuilder()
	a1 := b.ExtraFrame("A", 2, 1)
	a2 := b.ExtraFrame("A", 2, 3)
	c1 := b.ExtraFrame("C", 2, 1)
	c2 := b.ExtraFrame("C", 4, 1)
	b.StackOfFrames(a1)
	b.StackOfFrames(a2)
	b.StackOfFrames(a1, c1)
	b.StackOfFrames(a1, c2)
	thread := b.Thread()

	table, _ := Build(thread, 7)
	require.Equal(t, 2, table.Len())
	// A: same category, different subcategory.
	assert.Equal(t, int32(2), table.Category[0])
	assert.Equal(t, int32(0), table.Subcategory[0])
	// A;C: different categories.
	assert.Equal(t, int32(7), table.Category[1])
	assert.Equal(t, int32(0), table.Subcategory[1])
}

func Test_Build_Inlining(t *testing.T) {
	b := profiletest.NewBuilder()
	thread := b.Thread()
	sym := thread.NativeSymbols.Append(thread.Strings.Intern("outer"))
	plain := b.Frame("inlinee")
	inlined := b.ExtraFrame("inlinee", profile.Null, profile.Null)
	thread.Frames.InlineDepth[inlined] = 1
	thread.Frames.NativeSymbol[inlined] = sym
	other := b.ExtraFrame("other", profile.Null, profile.Null)
	thread.Frames.InlineDepth[other] = 1
	thread.Frames.NativeSymbol[other] = sym

	b.StackOfFrames(plain)
	b.StackOfFrames(inlined)
	b.StackOfFrames(other)
	table, _ := Build(b.Thread(), 0)
	require.Equal(t, []int32{DivergentInlining, sym}, table.SourceFramesInlinedIntoSymbol)
}

func Test_NonInvertedInfo(t *testing.T) {
	thread := profiletest.NewThread("A;B;C", "A;B;D", "E")
	info := New(thread, 0)
	roots := info.Roots()
	require.Len(t, roots, 2)
	require.Equal(t, "A", names(thread, info.PathFromIndex(roots[0])))
	require.Equal(t, "E", names(thread, info.PathFromIndex(roots[1])))

	ab := MustIndexFromPath(info, Path{0, 1})
	children := info.Children(ab)
	require.Len(t, children, 2)
	require.Equal(t, "A;B;C", names(thread, info.PathFromIndex(children[0])))
	require.Empty(t, info.Children(children[0]))
	require.Equal(t, ab, info.Parent(children[1]))
	require.True(t, info.IsRoot(roots[0]))
	require.False(t, info.IsRoot(ab))

	_, ok := info.IndexFromPath(Path{1})
	require.False(t, ok)
	_, ok = info.IndexFromPath(Path{0, 42})
	require.False(t, ok)
	require.Panics(t, func() { MustIndexFromPath(info, Path{3, 0}) })
	require.Panics(t, func() { info.Depth(int32(info.Len())) })
	require.Panics(t, func() { info.Children(-1) })
}

func Test_InvertedInfo(t *testing.T) {
	thread := profiletest.NewThread("A;B;C", "A;B;C", "A;B;D", "X;B;C", "B;C")
	info := New(thread, 0).Inverted()
	require.True(t, info.IsInverted())
	require.Same(t, info, info.AsInverted())

	fn := func(name string) int32 {
		for i := 0; i < thread.Funcs.Len(); i++ {
			if thread.FuncName(int32(i)) == name {
				return int32(i)
			}
		}
		t.Fatalf("unknown function %s", name)
		return -1
	}

	// Every function that is the last function of some call node is a root.
	var roots []string
	for _, r := range info.Roots() {
		require.True(t, info.IsRoot(r))
		require.Equal(t, r, info.Func(r))
		roots = append(roots, thread.FuncName(r))
	}
	require.ElementsMatch(t, []string{"A", "B", "C", "D", "X"}, roots)

	c := fn("C")
	children := info.Children(c)
	require.Len(t, children, 1)
	cb := children[0]
	require.Equal(t, fn("B"), info.Func(cb))
	require.Equal(t, int32(1), info.Depth(cb))
	require.Equal(t, c, info.Parent(cb))
	require.False(t, info.IsRoot(cb))

	// C <- B <- {A, X}, plus the root-level B;C ending at depth 1.
	callers := info.Children(cb)
	var callerNames []string
	for _, n := range callers {
		callerNames = append(callerNames, thread.FuncName(info.Func(n)))
	}
	require.ElementsMatch(t, []string{"A", "X"}, callerNames)

	node, ok := info.IndexFromPath(Path{c, fn("B"), fn("A")})
	require.True(t, ok)
	require.Equal(t, Path{c, fn("B"), fn("A")}, info.PathFromIndex(node))
	start, end := info.SuffixOrderIndexRangeForCallNode(node)
	require.Equal(t, int32(1), end-start)

	_, ok = info.IndexFromPath(Path{c, fn("A")})
	require.False(t, ok)

	ordered, indexes := info.SuffixOrderedCallNodes(), info.SuffixOrderIndexes()
	for i, n := range ordered {
		require.Equal(t, int32(i), indexes[n])
	}
	require.Panics(t, func() { info.Func(int32(info.Len())) })
}
