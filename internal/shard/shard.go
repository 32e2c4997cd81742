// Package shard splits keyed state into independently locked partitions so
// work on different keys never serializes on one lock.
package shard

import "math/bits"

const (
	DefaultCount = 64
	maxCount     = 1 << 16

	golden = 0x9E3779B97F4A7C15
)

// Set is a fixed power-of-two array of partitions.
type Set[T any] struct {
	parts []T
	shift uint
}

// New allocates at least n partitions, rounded up to a power of two.
// n <= 0 uses DefaultCount.
func New[T any](n int, init func(*T)) *Set[T] {
	n = Normalize(n)
	s := &Set[T]{
		parts: make([]T, n),
		shift: uint(64 - bits.TrailingZeros(uint(n))),
	}
	if init != nil {
		for i := range s.parts {
			init(&s.parts[i])
		}
	}
	return s
}

// Normalize returns the partition count New would use for n.
func Normalize(n int) int {
	if n <= 0 {
		return DefaultCount
	}
	if n > maxCount {
		n = maxCount
	}
	if n&(n-1) != 0 {
		n = 1 << bits.Len(uint(n))
	}
	return n
}

// For returns the partition owning key.
func (s *Set[T]) For(key int64) *T {
	return &s.parts[s.Index(key)]
}

// Index returns the partition index of key.
func (s *Set[T]) Index(key int64) int {
	return int((uint64(key) * golden) >> s.shift)
}

func (s *Set[T]) Len() int {
	return len(s.parts)
}

// Each calls fn for every partition in index order.
func (s *Set[T]) Each(fn func(*T)) {
	for i := range s.parts {
		fn(&s.parts[i])
	}
}
