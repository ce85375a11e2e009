package filter

import "fmt"

// DataSlice is one [Start, End) byte range applied to outbound account
// payloads (spec.md §4.3).
type DataSlice struct {
	Start int
	End   int
}

// DataSliceList is a validated, sorted, non-overlapping set of ranges. The
// zero value is a valid empty list (pass-through).
type DataSliceList struct {
	slices []DataSlice
}

// NewDataSliceList validates slices are sorted by Start ascending and
// pairwise non-overlapping, mirroring the original's nested-loop check
// (plugin/filter/filter.rs FilterAccountsDataSlice::new): for every later
// slice whose Start precedes an earlier slice's Start, that is
// out-of-order; for every earlier slice whose End runs past a later
// slice's Start, that is an overlap.
func NewDataSliceList(slices []DataSlice) (DataSliceList, error) {
	for i := 0; i < len(slices); i++ {
		for j := i + 1; j < len(slices); j++ {
			if slices[j].Start < slices[i].Start {
				return DataSliceList{}, fmt.Errorf("%w: slice %d starts before slice %d", ErrDataSliceOutOfOrder, j, i)
			}
			if slices[i].End > slices[j].Start {
				return DataSliceList{}, fmt.Errorf("%w: slice %d overlaps slice %d", ErrDataSliceOverlap, j, i)
			}
		}
	}
	out := make([]DataSlice, len(slices))
	copy(out, slices)
	return DataSliceList{slices: out}, nil
}

// Empty reports whether the list has no slices (pass-through case).
func (l DataSliceList) Empty() bool { return len(l.slices) == 0 }

// Apply projects data through the configured ranges, concatenating
// data[s.Start:s.End] for each slice and silently skipping any slice whose
// End exceeds len(data). An empty list returns data unchanged.
func (l DataSliceList) Apply(data []byte) []byte {
	if l.Empty() {
		return data
	}
	out := make([]byte, 0, len(data))
	for _, s := range l.slices {
		if s.End > len(data) {
			continue
		}
		out = append(out, data[s.Start:s.End]...)
	}
	return out
}
