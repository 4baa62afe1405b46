package graph

import (
	"iter"
	"slices"
)

// IDSet is an immutable sorted set of system IDs with O(log n) membership.
type IDSet struct {
	ids []int64
}

// NewIDSet builds a set from an unsorted slice. The input is copied; duplicates are kept
// out of the backing array.
func NewIDSet(ids []int64) *IDSet {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return &IDSet{ids: sorted}
}

// Contains reports whether id is in the set (binary search).
func (s *IDSet) Contains(id int64) bool {
	if s == nil {
		return false
	}
	lo, hi := 0, len(s.ids)
	for lo < hi {
		mid := lo + (hi-lo)/2
		switch v := s.ids[mid]; {
		case v == id:
			return true
		case v > id:
			hi = mid
		default:
			lo = mid + 1
		}
	}
	return false
}

// Len returns the number of IDs in the set.
func (s *IDSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Values yields the IDs in ascending order. Each call starts a fresh pass.
func (s *IDSet) Values() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		if s == nil {
			return
		}
		for _, id := range s.ids {
			if !yield(id) {
				return
			}
		}
	}
}
