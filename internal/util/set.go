package util

// Set holds a unique collection of comparable values
type Set[K comparable] map[K]struct{}

// SetOf builds a Set from the provided values
func SetOf[K comparable](values ...K) Set[K] {
	res := make(Set[K], len(values))
	for _, v := range values {
		res.Add(v)
	}
	return res
}

// Add inserts a value, a no-op if already present
func (s Set[K]) Add(value K) {
	s[value] = struct{}{}
}

// Remove drops a value, a no-op if absent
func (s Set[K]) Remove(value K) {
	delete(s, value)
}

// Contains reports whether the value is in the Set
func (s Set[K]) Contains(value K) bool {
	_, ok := s[value]
	return ok
}

// IsEmpty reports whether the Set has no values
func (s Set[K]) IsEmpty() bool {
	return len(s) == 0
}
