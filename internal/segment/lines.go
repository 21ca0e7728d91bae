package segment

import (
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// PushLine appends a line with role to a segment. An empty role means none.
func (e *Editor) PushLine(segID, role string) Result {
	if role == "" {
		role = types.RoleNone
	}
	return e.editSegment(segID, OpLine, -1, func(seg *types.Segment) bool {
		if !e.roleAllowed(seg.Content, role, -1) {
			return false
		}
		seg.Content = append(seg.Content, types.Line{Role: role, Attributes: e.cfg.LineDefaults()})
		return true
	})
}

// DeleteLine removes a line. The last line of a segment cannot be removed.
func (e *Editor) DeleteLine(segID string, line int) Result {
	return e.editSegment(segID, OpLine, -1, func(seg *types.Segment) bool {
		if len(seg.Content) <= 1 || !validLine(seg, line) {
			return false
		}
		seg.Content = append(seg.Content[:line], seg.Content[line+1:]...)
		return true
	})
}

// ToppingLine moves a line to the front of its segment
func (e *Editor) ToppingLine(segID string, line int) Result {
	return e.editSegment(segID, OpLine, -1, func(seg *types.Segment) bool {
		if line == 0 || !validLine(seg, line) {
			return false
		}
		top := seg.Content[line]
		copy(seg.Content[1:line+1], seg.Content[:line])
		seg.Content[0] = top
		return true
	})
}

// SetLineRole assigns a role to a line. The role must be in the ontology and
// not used by another line of the same segment.
func (e *Editor) SetLineRole(segID string, line int, role string) Result {
	if role == "" {
		role = types.RoleNone
	}
	return e.editSegment(segID, OpLine, -1, func(seg *types.Segment) bool {
		if !validLine(seg, line) || seg.Content[line].Role == role {
			return false
		}
		if !e.roleAllowed(seg.Content, role, line) {
			return false
		}
		seg.Content[line].Role = role
		return true
	})
}

// SetLineText replaces the text of a line. Consecutive edits of the same line
// are one history entry.
func (e *Editor) SetLineText(segID string, line int, text string) Result {
	return e.editSegment(segID, OpText, line, func(seg *types.Segment) bool {
		if !validLine(seg, line) || seg.Content[line].Text == text {
			return false
		}
		seg.Content[line].Text = text
		return true
	})
}

// SetSegmentAttribute sets a configured segment attribute; a nil value removes it
func (e *Editor) SetSegmentAttribute(segID, key string, value any) Result {
	f, ok := e.cfg.SegmentField(key)
	if e.cfg.SegmentFieldsDeclared && (!ok || !e.cfg.Allows(f, value)) {
		return e.noop()
	}
	return e.editSegment(segID, OpAttribute, -1, func(seg *types.Segment) bool {
		return setAttr(&seg.Attributes, key, value)
	})
}

// SetLineAttribute sets a configured line attribute; a nil value removes it
func (e *Editor) SetLineAttribute(segID string, line int, key string, value any) Result {
	f, ok := e.cfg.LineField(key)
	if e.cfg.LineFieldsDeclared && (!ok || !e.cfg.Allows(f, value)) {
		return e.noop()
	}
	return e.editSegment(segID, OpAttribute, -1, func(seg *types.Segment) bool {
		if !validLine(seg, line) {
			return false
		}
		return setAttr(&seg.Content[line].Attributes, key, value)
	})
}

// SetReview replaces the QA fields of a segment
func (e *Editor) SetReview(segID string, r types.Review) Result {
	return e.editSegment(segID, OpReview, -1, func(seg *types.Segment) bool {
		before := *seg
		seg.QAChecked = nil
		if r.QAChecked != nil {
			v := *r.QAChecked
			seg.QAChecked = &v
		}
		seg.QAComment, seg.QAReason, seg.QAWorkerName = r.QAComment, r.QAReason, r.QAWorkerName
		return !sameReview(before, *seg)
	})
}

func sameReview(a, b types.Segment) bool {
	if (a.QAChecked == nil) != (b.QAChecked == nil) {
		return false
	}
	if a.QAChecked != nil && *a.QAChecked != *b.QAChecked {
		return false
	}
	return a.QAComment == b.QAComment && a.QAReason == b.QAReason && a.QAWorkerName == b.QAWorkerName
}

// editSegment runs edit on a copy of the segment and records the swap when
// edit reports a change
func (e *Editor) editSegment(segID string, op OpKind, line int, edit func(seg *types.Segment) bool) Result {
	before, ok := e.tl.Get(segID)
	if !ok {
		return e.noop()
	}
	after := before.Clone()
	if !edit(&after) {
		return e.noop()
	}
	return e.exec(&replaceCmd{
		Op:     op,
		Before: []types.Segment{before},
		After:  []types.Segment{after},
		Line:   line,
	})
}

func (e *Editor) roleAllowed(lines []types.Line, role string, skip int) bool {
	if e.cfg.RolesDeclared && !e.cfg.HasRole(role) {
		return false
	}
	return !roleTaken(lines, role, skip)
}

func validLine(seg *types.Segment, line int) bool {
	return line >= 0 && line < len(seg.Content)
}

func setAttr(attrs *map[string]any, key string, value any) bool {
	if value == nil {
		if _, ok := (*attrs)[key]; !ok {
			return false
		}
		delete(*attrs, key)
		return true
	}
	if cur, ok := (*attrs)[key]; ok && sameValue(cur, value) {
		return false
	}
	if *attrs == nil {
		*attrs = make(map[string]any)
	}
	(*attrs)[key] = value
	return true
}

func sameValue(a, b any) bool {
	switch av := a.(type) {
	case string, bool, float64, int:
		return av == b
	}
	return false
}
