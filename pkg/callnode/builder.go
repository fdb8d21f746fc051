package callnode

import (
	"fmt"

	"github.com/colega/zeropool"
	"github.com/dolthub/swiss"

	"github.com/grafana/calltree/pkg/profile"
	"github.com/grafana/calltree/pkg/slices"
)

var int32SlicePool = zeropool.New(func() []int32 { return make([]int32, 0, 256) })

const sentinel = -1

// lookupKey identifies a child of parent by its function. parent is -1
// for roots.
func lookupKey(parent, fn int32, funcCount int) int64 {
	return int64(parent+1)*int64(funcCount) + int64(fn)
}

// initial is the call tree in order of first visit, before the
// depth-first renumbering.
type initial struct {
	prefix, fn, category, subcategory, depth, inlined []int32
	firstChild, lastChild, nextSibling               []int32
	firstRoot, lastRoot                              int32
}

func (b *initial) len() int { return len(b.fn) }

func (b *initial) add(parent, fn, category, subcategory, depth, inlined int32) int32 {
	n := int32(len(b.fn))
	b.prefix = append(b.prefix, parent)
	b.fn = append(b.fn, fn)
	b.category = append(b.category, category)
	b.subcategory = append(b.subcategory, subcategory)
	b.depth = append(b.depth, depth)
	b.inlined = append(b.inlined, inlined)
	b.firstChild = append(b.firstChild, sentinel)
	b.lastChild = append(b.lastChild, sentinel)
	b.nextSibling = append(b.nextSibling, sentinel)
	if parent == sentinel {
		if b.lastRoot == sentinel {
			b.firstRoot = n
		} else {
			b.nextSibling[b.lastRoot] = n
		}
		b.lastRoot = n
		return n
	}
	if b.lastChild[parent] == sentinel {
		b.firstChild[parent] = n
	} else {
		b.nextSibling[b.lastChild[parent]] = n
	}
	b.lastChild[parent] = n
	return n
}

// Build deduplicates the stacks of the thread into a call node table and
// returns it along with the stack to call node mapping. Stacks sharing
// the same parent call node and function collapse into one call node;
// conflicting categories are resolved with profile.ReconcileCategory.
//
// Build panics if a stack prefix is not smaller than the stack index.
func Build(thread *profile.Thread, defaultCategory int32) (*Table, []int32) {
	var (
		stacks    = &thread.Stacks
		frames    = &thread.Frames
		funcCount = thread.Funcs.Len()
		n         = stacks.Len()
	)
	stackToCallNode := make([]int32, n)
	if n == 0 {
		return newTable(0), stackToCallNode
	}

	b := initial{firstRoot: sentinel, lastRoot: sentinel}
	lookup := swiss.NewMap[int64, int32](uint32(n))
	for s := 0; s < n; s++ {
		parent := int32(sentinel)
		depth := int32(0)
		if p := stacks.Prefix[s]; p != profile.Null {
			if p < 0 || int(p) >= s {
				panic(fmt.Sprintf("stack %d has prefix %d: prefixes must precede their stacks", s, p))
			}
			parent = stackToCallNode[p]
			depth = b.depth[parent] + 1
		}
		frame := stacks.Frame[s]
		fn := frames.Func[frame]
		inlined := NotInlined
		if frames.InlineDepth[frame] > 0 {
			inlined = frames.NativeSymbol[frame]
		}
		category, subcategory := stacks.Category[s], stacks.Subcategory[s]

		key := lookupKey(parent, fn, funcCount)
		node, ok := lookup.Get(key)
		if !ok {
			node = b.add(parent, fn, category, subcategory, depth, inlined)
			lookup.Put(key, node)
		} else {
			b.category[node], b.subcategory[node] = profile.ReconcileCategory(
				b.category[node], b.subcategory[node], category, subcategory, defaultCategory)
			if b.inlined[node] != inlined {
				b.inlined[node] = DivergentInlining
			}
		}
		stackToCallNode[s] = node
	}

	table := b.depthFirst(stackToCallNode)
	return table, stackToCallNode
}

// depthFirst renumbers the call nodes so that each subtree is a
// contiguous index range, children keeping their order of first visit.
// stackToCallNode is remapped in place.
func (b *initial) depthFirst(stackToCallNode []int32) *Table {
	count := b.len()
	newIndex := slices.GrowLen(int32SlicePool.Get(), count)
	rangeEnd := slices.GrowLen(int32SlicePool.Get(), count)
	defer func() {
		int32SlicePool.Put(newIndex)
		int32SlicePool.Put(rangeEnd)
	}()

	next := int32(0)
	node := b.firstRoot
	for node != sentinel {
		newIndex[node] = next
		next++
		if fc := b.firstChild[node]; fc != sentinel {
			node = fc
			continue
		}
		for node != sentinel {
			rangeEnd[node] = next
			if ns := b.nextSibling[node]; ns != sentinel {
				node = ns
				break
			}
			node = b.prefix[node]
		}
	}

	t := newTable(count)
	for old := 0; old < count; old++ {
		i := newIndex[old]
		prefix := b.prefix[old]
		if prefix != sentinel {
			prefix = newIndex[prefix]
		}
		nextSibling := b.nextSibling[old]
		if nextSibling != sentinel {
			nextSibling = newIndex[nextSibling]
		}
		t.Prefix[i] = prefix
		t.Func[i] = b.fn[old]
		t.Category[i] = b.category[old]
		t.Subcategory[i] = b.subcategory[old]
		t.Depth[i] = b.depth[old]
		t.NextSibling[i] = nextSibling
		t.SubtreeRangeEnd[i] = rangeEnd[old]
		t.SourceFramesInlinedIntoSymbol[i] = b.inlined[old]
		if b.depth[old] > t.MaxDepth {
			t.MaxDepth = b.depth[old]
		}
	}
	for s, node := range stackToCallNode {
		stackToCallNode[s] = newIndex[node]
	}
	return t
}
