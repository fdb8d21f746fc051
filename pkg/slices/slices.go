package slices

// RemoveInPlace removes all elements from a slice that match the given predicate.
// Does not allocate a new slice.
func RemoveInPlace[T any](collection []T, predicate func(T, int) bool) []T {
	i := 0
	for j, x := range collection {
		if !predicate(x, j) {
			collection[i] = x
			i++
		}
	}
	return collection[:i]
}

// GrowLen returns a slice of length n, reusing s when its capacity allows.
// The contents are not cleared.
func GrowLen[S ~[]E, E any](s S, n int) S {
	if cap(s) < n {
		return make(S, n)
	}
	return s[:n]
}

// Fill sets every element of s to v and returns s.
func Fill[S ~[]E, E any](s S, v E) S {
	for i := range s {
		s[i] = v
	}
	return s
}
