package segment

import (
	"fmt"
	"sort"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// Bounds are the fixed constraints of one track
type Bounds struct {
	Mode      types.Mode
	Duration  float64
	MinLength float64
	Tolerance float64
}

// Timeline owns the ordered segments of one track. Segments are looked up by
// their stable id; positions in the slice are an implementation detail.
type Timeline struct {
	bounds Bounds
	segs   []types.Segment
	index  map[string]int
}

// NewTimeline takes ownership of a copy of segs, which must already be normalized
func NewTimeline(segs []types.Segment, bounds Bounds) *Timeline {
	tl := &Timeline{
		bounds: bounds,
		segs:   types.CloneSegments(segs),
	}
	tl.sortAndIndex()
	return tl
}

// Bounds returns the track constraints
func (tl *Timeline) Bounds() Bounds {
	return tl.bounds
}

// Len returns the number of segments
func (tl *Timeline) Len() int {
	return len(tl.segs)
}

// Segments returns a deep copy of the ordered segments
func (tl *Timeline) Segments() []types.Segment {
	return types.CloneSegments(tl.segs)
}

// At returns a copy of the i-th segment
func (tl *Timeline) At(i int) types.Segment {
	return tl.segs[i].Clone()
}

// IndexOf returns the position of the segment with id, or -1
func (tl *Timeline) IndexOf(id string) int {
	if i, ok := tl.index[id]; ok {
		return i
	}
	return -1
}

// Get returns a copy of the segment with id
func (tl *Timeline) Get(id string) (types.Segment, bool) {
	i := tl.IndexOf(id)
	if i < 0 {
		return types.Segment{}, false
	}
	return tl.segs[i].Clone(), true
}

// Locate returns the index of the segment covering t, or -1.
// The end of the last segment counts as covered.
func (tl *Timeline) Locate(t float64) int {
	if tl.bounds.Mode == types.ModeContinuous {
		i := sort.Search(len(tl.segs), func(i int) bool { return tl.segs[i].End > t })
		if i < len(tl.segs) && tl.segs[i].Start <= t {
			return i
		}
		if n := len(tl.segs); n > 0 && t == tl.segs[n-1].End {
			return n - 1
		}
		return -1
	}
	for i, s := range tl.segs {
		if s.Start <= t && t < s.End {
			return i
		}
	}
	return -1
}

// replace swaps the segments with oldIDs for the given segments
func (tl *Timeline) replace(oldIDs []string, next []types.Segment) error {
	drop := make(map[string]bool, len(oldIDs))
	for _, id := range oldIDs {
		if _, ok := tl.index[id]; !ok {
			return fmt.Errorf("replace %s: %w", id, ErrSegmentNotFound)
		}
		drop[id] = true
	}
	for _, s := range next {
		if _, ok := tl.index[s.ID]; ok && !drop[s.ID] {
			return fmt.Errorf("replace: duplicate segment id %s", s.ID)
		}
	}

	kept := tl.segs[:0:0]
	for _, s := range tl.segs {
		if !drop[s.ID] {
			kept = append(kept, s)
		}
	}
	for _, s := range next {
		kept = append(kept, s.Clone())
	}
	tl.segs = kept
	tl.sortAndIndex()
	return nil
}

// setSpan moves one segment without touching its content
func (tl *Timeline) setSpan(id string, start, end float64) error {
	i := tl.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("set span %s: %w", id, ErrSegmentNotFound)
	}
	tl.segs[i].Start = start
	tl.segs[i].End = end
	return nil
}

func (tl *Timeline) sortAndIndex() {
	sort.SliceStable(tl.segs, func(i, j int) bool {
		if tl.segs[i].Start != tl.segs[j].Start {
			return tl.segs[i].Start < tl.segs[j].Start
		}
		return tl.segs[i].End < tl.segs[j].End
	})
	tl.index = make(map[string]int, len(tl.segs))
	for i, s := range tl.segs {
		tl.index[s.ID] = i
	}
}

// fits reports whether [start,end) may hold segment id in overlap mode
func (tl *Timeline) fits(id string, start, end float64) bool {
	b := tl.bounds
	if start < -eps || end > b.Duration+eps || end-start < b.MinLength-eps {
		return false
	}
	for _, s := range tl.segs {
		if s.ID == id {
			continue
		}
		overlap := minf(end, s.End) - maxf(start, s.Start)
		if overlap > b.Tolerance+eps {
			return false
		}
	}
	return true
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
