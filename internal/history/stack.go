package history

// DefaultLimit is the number of entries kept per stack
const DefaultLimit = 50

// Stack is a bounded LIFO. Pushing past the limit drops the oldest entry.
type Stack[T any] struct {
	items []T
	limit int
}

// NewStack creates a stack holding at most limit entries
func NewStack[T any](limit int) *Stack[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack[T]{
		items: make([]T, 0, limit),
		limit: limit,
	}
}

// Push adds v on top, evicting the oldest entry when full.
// It reports whether an entry was evicted.
func (s *Stack[T]) Push(v T) bool {
	evicted := false
	if len(s.items) == s.limit {
		var zero T
		s.items[0] = zero
		s.items = append(s.items[:0], s.items[1:]...)
		evicted = true
	}
	s.items = append(s.items, v)
	return evicted
}

// Pop removes and returns the top entry
func (s *Stack[T]) Pop() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	top := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = zero
	s.items = s.items[:len(s.items)-1]
	return top, true
}

// Peek returns the top entry without removing it
func (s *Stack[T]) Peek() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

// ReplaceTop overwrites the top entry; it is a no-op on an empty stack
func (s *Stack[T]) ReplaceTop(v T) {
	if len(s.items) == 0 {
		return
	}
	s.items[len(s.items)-1] = v
}

// Len returns the number of entries
func (s *Stack[T]) Len() int {
	return len(s.items)
}

// Limit returns the capacity
func (s *Stack[T]) Limit() int {
	return s.limit
}

// Clear drops every entry
func (s *Stack[T]) Clear() {
	var zero T
	for i := range s.items {
		s.items[i] = zero
	}
	s.items = s.items[:0]
}
