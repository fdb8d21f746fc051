package profile

import "github.com/dolthub/swiss"

type stackKey struct {
	prefix int32
	frame  int32
}

// StackIndex interns stacks while a thread is being built, so that equal
// (prefix, frame) pairs share one stack.
type StackIndex struct {
	stacks *StackTable
	index  *swiss.Map[stackKey, int32]
}

func NewStackIndex(stacks *StackTable) *StackIndex {
	return &StackIndex{
		stacks: stacks,
		index:  swiss.NewMap[stackKey, int32](uint32(stacks.Len() + 64)),
	}
}

// Stack returns the stack for frame called from prefix, appending it when
// it does not exist yet.
func (s *StackIndex) Stack(prefix, frame int32) int32 {
	k := stackKey{prefix: prefix, frame: frame}
	if i, ok := s.index.Get(k); ok {
		return i
	}
	i := s.stacks.Append(frame, prefix, 0, 0)
	s.index.Put(k, i)
	return i
}

// Path interns the stacks of a root-to-leaf frame sequence and returns
// the leaf stack, or Null for an empty sequence.
func (s *StackIndex) Path(frames []int32) int32 {
	stack := Null
	for _, f := range frames {
		stack = s.Stack(stack, f)
	}
	return stack
}
