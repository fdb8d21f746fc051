package model

import "sync"

var stackInt32Pool = sync.Pool{
	New: func() interface{} {
		return NewStack[int32]()
	},
}

// GetInt32Stack returns an empty stack from the pool. Release it with
// PutInt32Stack once done.
func GetInt32Stack() *Stack[int32] {
	return stackInt32Pool.Get().(*Stack[int32])
}

func PutInt32Stack(s *Stack[int32]) {
	s.Reset()
	stackInt32Pool.Put(s)
}

// Stack is a stack of values. Pushing and popping values is O(1).
type Stack[T any] struct {
	values []T
}

func NewStack[T any]() *Stack[T] {
	return &Stack[T]{}
}

// Push adds a value to the top of the stack.
func (s *Stack[T]) Push(v T) {
	s.values = append(s.values, v)
}

// Pop removes and returns the top value from the stack.
func (s *Stack[T]) Pop() (result T, ok bool) {
	if len(s.values) == 0 {
		ok = false
		return
	}
	top := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return top, true
}

// Peek returns the top value without removing it.
func (s *Stack[T]) Peek() (result T, ok bool) {
	if len(s.values) == 0 {
		return result, false
	}
	return s.values[len(s.values)-1], true
}

func (s *Stack[T]) Len() int { return len(s.values) }

// Reset releases the stack's resources.
func (s *Stack[T]) Reset() {
	s.values = s.values[:0]
}
