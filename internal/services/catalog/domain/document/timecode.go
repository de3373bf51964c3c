package document

import (
	"slices"
)

// Timecode is a [start, end] range in seconds.
type Timecode [2]int

// Start of the range.
func (t Timecode) Start() int { return t[0] }

// End of the range.
func (t Timecode) End() int { return t[1] }

// Timecodes is an ordered list of ranges.
type Timecodes []Timecode

// Sorted returns a copy ordered by start, then end.
func (t Timecodes) Sorted() Timecodes {
	out := slices.Clone(t)
	slices.SortStableFunc(out, func(a, b Timecode) int {
		if a[0] != b[0] {
			return a[0] - b[0]
		}
		return a[1] - b[1]
	})
	return out
}

// Valid reports whether every range starts at or after zero and does not
// end before it starts.
func (t Timecodes) Valid() bool {
	for _, tc := range t {
		if tc[0] < 0 || tc[1] < tc[0] {
			return false
		}
	}
	return true
}
