package segment

import (
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// Split cuts the segment under at into two. Within the minimum length of an
// existing anchor the split becomes a move of that anchor instead.
func (e *Editor) Split(at float64, rules *SplitRules) Result {
	return e.exec(e.resolveSplit(at, rules))
}

// SplitRange splits at both ends of [a,b] as a single history entry
func (e *Editor) SplitRange(a, b float64, rules *SplitRules) Result {
	if a > b {
		a, b = b, a
	}

	var applied []Command
	for _, t := range []float64{a, b} {
		cmd := e.resolveSplit(t, rules)
		if cmd == nil {
			continue
		}
		if err := cmd.Apply(e.tl); err != nil {
			continue
		}
		applied = append(applied, cmd)
	}

	switch len(applied) {
	case 0:
		return e.noop()
	case 1:
		return e.commit(applied[0])
	}
	return e.commit(&compositeCmd{Op: OpLination, Steps: applied})
}

// SplitSelection double-splits around the temp selection
func (e *Editor) SplitSelection(rules *SplitRules) Result {
	if e.sel.Kind != SelectTemp {
		return e.noop()
	}
	a, b := e.sel.Start, e.sel.End
	e.sel = Selection{Kind: SelectNone}
	return e.SplitRange(a, b, rules)
}

func (e *Editor) resolveSplit(at float64, rules *SplitRules) Command {
	b := e.tl.bounds
	i := e.tl.Locate(at)
	if i < 0 {
		return nil
	}
	seg := e.tl.segs[i]
	if !seg.Contains(at) {
		return nil
	}

	leftLen := at - seg.Start
	rightLen := seg.End - at
	if leftLen < b.MinLength-eps || rightLen < b.MinLength-eps {
		if b.Mode != types.ModeContinuous {
			return nil
		}
		// Too close to a boundary: nudge the nearer interior anchor instead.
		if leftLen <= rightLen && i > 0 {
			return e.resolveAnchor(seg.ID, at, false, false)
		}
		if rightLen < leftLen && i < len(e.tl.segs)-1 {
			return e.resolveAnchor(e.tl.segs[i+1].ID, at, false, false)
		}
		return nil
	}

	content := seg.Content
	left := seg.Clone()
	left.End = at
	right := seg.Clone()
	right.ID = e.newID()
	right.Start = at
	right.QAChecked, right.QAComment, right.QAReason, right.QAWorkerName = nil, "", "", ""
	left.Content, right.Content = splitContent(content, rules)

	return &splitCmd{Original: seg.Clone(), Left: left, Right: right}
}

// Merge removes the anchor in front of segment anchorID, folding that segment
// into its left neighbour.
func (e *Editor) Merge(anchorID string) Result {
	if e.tl.bounds.Mode != types.ModeContinuous {
		return e.noop()
	}
	i := e.tl.IndexOf(anchorID)
	if i <= 0 {
		return e.noop()
	}
	left := e.tl.segs[i-1].Clone()
	right := e.tl.segs[i].Clone()

	merged := left.Clone()
	merged.End = right.End
	merged.Content = MergeContent(left.Content, right.Content)
	merged.Attributes = fillMissing(merged.Attributes, right.Clone().Attributes)

	return e.exec(&mergeCmd{Left: left, Right: right, Merged: merged})
}

// DragAnchor moves an anchor to pos, clamped so both neighbours keep the
// minimum length
func (e *Editor) DragAnchor(anchorID string, pos float64) Result {
	return e.exec(e.resolveAnchor(anchorID, pos, true, false))
}

// StepAnchor nudges an anchor by delta. Consecutive steps of the same anchor
// form one history entry.
func (e *Editor) StepAnchor(anchorID string, delta float64) Result {
	i := e.tl.IndexOf(anchorID)
	if i <= 0 || e.tl.bounds.Mode != types.ModeContinuous {
		return e.noop()
	}
	return e.exec(e.resolveAnchor(anchorID, e.tl.segs[i].Start+delta, true, true))
}

func (e *Editor) resolveAnchor(anchorID string, pos float64, clampPos, trim bool) Command {
	b := e.tl.bounds
	if b.Mode != types.ModeContinuous {
		return nil
	}
	i := e.tl.IndexOf(anchorID)
	if i <= 0 {
		return nil
	}
	left, right := e.tl.segs[i-1], e.tl.segs[i]
	lo := left.Start + b.MinLength
	hi := right.End - b.MinLength
	if lo > hi+eps {
		return nil
	}
	if clampPos {
		pos = clamp(pos, lo, hi)
	} else if pos < lo-eps || pos > hi+eps {
		return nil
	}
	if pos == right.Start {
		return nil
	}
	return &moveAnchorCmd{AnchorID: anchorID, From: right.Start, To: pos, Trim: trim}
}

// BatchShift moves every anchor (continuous) or every region (overlap) by
// delta. The delta is clamped so that everything stays inside the track.
func (e *Editor) BatchShift(delta float64) Result {
	b := e.tl.bounds
	segs := e.tl.segs
	if len(segs) == 0 || delta == 0 {
		return e.noop()
	}

	var lo, hi float64
	if b.Mode == types.ModeContinuous {
		if len(segs) < 2 {
			return e.noop()
		}
		lo = -(segs[0].Length() - b.MinLength)
		hi = segs[len(segs)-1].Length() - b.MinLength
	} else {
		minStart, maxEnd := segs[0].Start, segs[0].End
		for _, s := range segs {
			minStart = minf(minStart, s.Start)
			maxEnd = maxf(maxEnd, s.End)
		}
		lo = -minStart
		hi = b.Duration - maxEnd
	}
	if lo > 0 || hi < 0 {
		return e.noop()
	}
	delta = clamp(delta, lo, hi)
	if delta == 0 {
		return e.noop()
	}

	cmd := &shiftCmd{Delta: delta}
	for i, s := range segs {
		before := span{ID: s.ID, Start: s.Start, End: s.End}
		after := before
		if b.Mode == types.ModeContinuous {
			if i > 0 {
				after.Start += delta
			}
			if i < len(segs)-1 {
				after.End += delta
			}
		} else {
			after.Start += delta
			after.End += delta
		}
		cmd.Before = append(cmd.Before, before)
		cmd.After = append(cmd.After, after)
	}
	return e.exec(cmd)
}

// DragRegion moves a segment by delta in overlap mode
func (e *Editor) DragRegion(id string, delta float64) Result {
	seg, ok := e.tl.Get(id)
	if !ok || e.tl.bounds.Mode != types.ModeOverlap {
		return e.noop()
	}
	delta = clamp(delta, -seg.Start, e.tl.bounds.Duration-seg.End)
	if delta == 0 {
		return e.noop()
	}
	return e.ResizeRegion(id, seg.Start+delta, seg.End+delta)
}

// ResizeRegion sets a segment's range in overlap mode
func (e *Editor) ResizeRegion(id string, start, end float64) Result {
	seg, ok := e.tl.Get(id)
	if !ok || e.tl.bounds.Mode != types.ModeOverlap {
		return e.noop()
	}
	start = clamp(start, 0, e.tl.bounds.Duration)
	end = clamp(end, 0, e.tl.bounds.Duration)
	if (start == seg.Start && end == seg.End) || !e.tl.fits(id, start, end) {
		return e.noop()
	}
	next := seg.Clone()
	next.Start, next.End = start, end
	return e.exec(&replaceCmd{Op: OpRegion, Before: []types.Segment{seg}, After: []types.Segment{next}})
}

// DeleteSegment removes a segment in overlap mode. Continuous tracks merge instead.
func (e *Editor) DeleteSegment(id string) Result {
	seg, ok := e.tl.Get(id)
	if !ok || e.tl.bounds.Mode != types.ModeOverlap {
		return e.noop()
	}
	return e.exec(&replaceCmd{Op: OpDelete, Before: []types.Segment{seg}})
}

// ClearAll drops every segment. A continuous track is left with one empty
// segment spanning the whole duration.
func (e *Editor) ClearAll() Result {
	b := e.tl.bounds
	before := e.tl.Segments()

	var after []types.Segment
	if b.Mode == types.ModeContinuous {
		if len(before) == 1 && isBlank(before[0]) {
			return e.noop()
		}
		after = []types.Segment{{
			ID:         e.newID(),
			Start:      0,
			End:        b.Duration,
			Attributes: e.cfg.SegmentDefaults(),
			Content:    []types.Line{{Role: types.RoleNone, Attributes: e.cfg.LineDefaults()}},
		}}
	} else if len(before) == 0 {
		return e.noop()
	}

	return e.exec(&replaceCmd{Op: OpClear, Before: before, After: after})
}

func isBlank(s types.Segment) bool {
	return len(s.Content) == 1 && s.Content[0].Role == types.RoleNone && s.Content[0].Text == ""
}
