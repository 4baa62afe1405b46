package graph

import "fmt"

// JumpFrontier holds one IDSet per jump level 0..MaxJumps, computed from a single origin.
//
// In inclusive mode level k holds every system reachable within k jumps; otherwise it
// holds only the systems first reached at exactly k jumps.
type JumpFrontier struct {
	levels    []*IDSet
	inclusive bool
}

// FrontierFault is raised (via panic) when a system that the frontier was built to
// contain is missing from every level. It means frontier construction is broken, not
// that the data is unusual.
type FrontierFault struct {
	SystemID int64
	Levels   int
}

func (f *FrontierFault) Error() string {
	return fmt.Sprintf("frontier fault: system %d not present in any of %d jump levels", f.SystemID, f.Levels)
}

// NewJumpFrontier creates a frontier with empty levels 0..maxJumps.
func NewJumpFrontier(maxJumps int, inclusive bool) *JumpFrontier {
	if maxJumps < 0 {
		maxJumps = 0
	}
	levels := make([]*IDSet, maxJumps+1)
	for i := range levels {
		levels[i] = NewIDSet(nil)
	}
	return &JumpFrontier{levels: levels, inclusive: inclusive}
}

// SetLevel replaces the IDs stored at jump level k.
func (f *JumpFrontier) SetLevel(k int, ids []int64) {
	f.levels[k] = NewIDSet(ids)
}

// MaxJumps is the highest level index.
func (f *JumpFrontier) MaxJumps() int {
	return len(f.levels) - 1
}

// Inclusive reports whether levels accumulate.
func (f *JumpFrontier) Inclusive() bool {
	return f.inclusive
}

// Level returns the set at jump level k, or nil and false when k is out of range.
func (f *JumpFrontier) Level(k int) (*IDSet, bool) {
	if f == nil || k < 0 || k >= len(f.levels) {
		return nil, false
	}
	return f.levels[k], true
}

// Outermost returns the set at MaxJumps.
func (f *JumpFrontier) Outermost() *IDSet {
	return f.levels[len(f.levels)-1]
}

// FindJumpsFor returns the first level containing id. The frontier is always built so
// that every discovered system sits in some level; a miss panics with *FrontierFault.
func (f *JumpFrontier) FindJumpsFor(id int64) int {
	for k, set := range f.levels {
		if set.Contains(id) {
			return k
		}
	}
	panic(&FrontierFault{SystemID: id, Levels: len(f.levels)})
}
