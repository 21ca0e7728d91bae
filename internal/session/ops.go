package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codebuildervaibhav/segment-annotator/internal/keymap"
	"github.com/codebuildervaibhav/segment-annotator/internal/qa"
	"github.com/codebuildervaibhav/segment-annotator/internal/segment"
)

// ErrUnknownOp is returned for an op name the session does not handle
var ErrUnknownOp = errors.New("unknown operation")

// Op is one edit request from the client
type Op struct {
	Name  string          `json:"op"`
	Track int             `json:"track"`
	Args  json.RawMessage `json:"args,omitempty"`
}

// Outcome is the answer to an op
type Outcome struct {
	segment.Result
	Op           string                `json:"op"`
	Track        int                   `json:"track"`
	Cursor       *segment.CursorUpdate `json:"cursor,omitempty"`
	Binding      *keymap.Binding       `json:"binding,omitempty"`
	NeedsConfirm bool                  `json:"needsConfirm,omitempty"`
	Suppressed   bool                  `json:"suppressed,omitempty"`
}

type opArgs struct {
	At        float64             `json:"at"`
	From      float64             `json:"from"`
	To        float64             `json:"to"`
	T         float64             `json:"t"`
	Pos       float64             `json:"pos"`
	Delta     float64             `json:"delta"`
	Start     float64             `json:"start"`
	End       float64             `json:"end"`
	ID        string              `json:"id"`
	AnchorID  string              `json:"anchorId"`
	SegmentID string              `json:"segmentId"`
	Line      int                 `json:"line"`
	Role      string              `json:"role"`
	Text      string              `json:"text"`
	Key       string              `json:"key"`
	Value     any                 `json:"value"`
	Rules     *segment.SplitRules `json:"rules,omitempty"`
	Worker    string              `json:"worker"`
	Reason    string              `json:"reason"`
	Comment   string              `json:"comment"`
	Scope     string              `json:"scope"`
	Chord     string              `json:"chord"`
	Confirmed bool                `json:"confirmed"`
}

// Apply runs one op on its track
func (s *Session) Apply(op Op) (Outcome, error) {
	var a opArgs
	if len(op.Args) > 0 {
		if err := json.Unmarshal(op.Args, &a); err != nil {
			return Outcome{}, fmt.Errorf("invalid args for %s: %w", op.Name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return Outcome{}, err
	}

	// focus changes are session wide
	switch op.Name {
	case "focus":
		s.focus.Acquire(a.Scope)
		return Outcome{Op: op.Name, Track: op.Track, Suppressed: s.focus.Suppressed()}, nil
	case "blur":
		s.focus.Release(a.Scope)
		return Outcome{Op: op.Name, Track: op.Track, Suppressed: s.focus.Suppressed()}, nil
	}

	t, err := s.trackAt(op.Track)
	if err != nil {
		return Outcome{}, err
	}
	s.lastActive = s.now()

	out := Outcome{Op: op.Name, Track: op.Track}
	ed := t.editor
	switch op.Name {
	case "key":
		out, err = s.key(op.Track, t, a.Chord, a.Confirmed)
		out.Op = op.Name
	case "cursor":
		t.cursor = a.T
		cu := ed.SetCursor(a.T)
		out.Cursor = &cu
		out.Selection = ed.Selection()
	case "split":
		out.Result = ed.Split(a.At, a.Rules)
	case "splitRange":
		out.Result = ed.SplitRange(a.From, a.To, a.Rules)
	case "splitSelection":
		out.Result = ed.SplitSelection(a.Rules)
	case "merge":
		out.Result = ed.Merge(a.AnchorID)
	case "dragAnchor":
		out.Result = ed.DragAnchor(a.AnchorID, a.Pos)
	case "stepAnchor":
		out.Result = ed.StepAnchor(a.AnchorID, a.Delta)
	case "batchShift":
		out.Result = ed.BatchShift(a.Delta)
	case "dragRegion":
		out.Result = ed.DragRegion(a.ID, a.Delta)
	case "resizeRegion":
		out.Result = ed.ResizeRegion(a.ID, a.Start, a.End)
	case "deleteSegment":
		out.Result = ed.DeleteSegment(a.ID)
	case "clearAll":
		if !a.Confirmed {
			out.NeedsConfirm = true
			out.Selection = ed.Selection()
			break
		}
		out.Result = ed.ClearAll()
	case "beginDraw":
		out.Selection = ed.BeginDraw(a.T)
	case "updateDraw":
		out.Selection = ed.UpdateDraw(a.T)
	case "endDraw":
		out.Result = ed.EndDraw()
	case "selectSegment":
		out.Selection = ed.SelectSegment(a.ID)
	case "selectAnchor":
		out.Selection = ed.SelectAnchor(a.ID)
	case "clearSelection":
		out.Selection = ed.ClearSelection()
	case "pushLine":
		out.Result = ed.PushLine(a.SegmentID, a.Role)
	case "deleteLine":
		out.Result = ed.DeleteLine(a.SegmentID, a.Line)
	case "toppingLine":
		out.Result = ed.ToppingLine(a.SegmentID, a.Line)
	case "setLineRole":
		out.Result = ed.SetLineRole(a.SegmentID, a.Line, a.Role)
	case "setLineText":
		out.Result = ed.SetLineText(a.SegmentID, a.Line, a.Text)
	case "setSegmentAttribute":
		out.Result = ed.SetSegmentAttribute(a.SegmentID, a.Key, a.Value)
	case "setLineAttribute":
		out.Result = ed.SetLineAttribute(a.SegmentID, a.Line, a.Key, a.Value)
	case "accept", "reject":
		out.Result, err = s.review(ed, op.Name == "accept", a)
	case "undo":
		out.Result = ed.Undo()
	case "redo":
		out.Result = ed.Redo()
	default:
		return Outcome{}, fmt.Errorf("%q: %w", op.Name, ErrUnknownOp)
	}
	if err != nil {
		return Outcome{}, err
	}

	if out.Applied {
		s.emit(op.Track, out.Intents)
	}
	return out, nil
}

func (s *Session) review(ed *segment.Editor, accept bool, a opArgs) (segment.Result, error) {
	if !s.reviewEnabled() {
		return segment.Result{}, ErrReviewDisabled
	}
	seg, ok := ed.Timeline().Get(a.SegmentID)
	if !ok {
		return segment.Result{}, fmt.Errorf("%s: %w", a.SegmentID, segment.ErrSegmentNotFound)
	}
	if accept {
		r, err := qa.Accept(seg, s.rules, a.Worker)
		if err != nil {
			return segment.Result{}, err
		}
		return ed.SetReview(seg.ID, r), nil
	}
	r, err := qa.Reject(seg, s.rules, a.Worker, a.Reason, a.Comment)
	if err != nil {
		return segment.Result{}, err
	}
	return ed.SetReview(seg.ID, r), nil
}

// key turns a shortcut into its edit; called with s.mu held
func (s *Session) key(trackIdx int, t *track, chord string, confirmed bool) (Outcome, error) {
	out := Outcome{Track: trackIdx}
	b, ok := s.keys.Dispatch(s.focus, chord)
	if !ok {
		out.Suppressed = s.focus.Suppressed()
		out.Selection = t.editor.Selection()
		return out, nil
	}
	out.Binding = &b

	ed := t.editor
	switch b.Action {
	case keymap.ActionSplit:
		out.Result = ed.Split(t.cursor, nil)
	case keymap.ActionDoubleSplit:
		out.Result = ed.SplitSelection(nil)
	case keymap.ActionUndo:
		out.Result = ed.Undo()
	case keymap.ActionRedo:
		out.Result = ed.Redo()
	case keymap.ActionClearAll:
		if b.Confirm && !confirmed {
			out.NeedsConfirm = true
			out.Selection = ed.Selection()
			break
		}
		out.Result = ed.ClearAll()
	case keymap.ActionStepBack, keymap.ActionStepForward:
		sel := ed.Selection()
		if sel.Kind != segment.SelectAnchor {
			out.Selection = sel
			break
		}
		out.Result = ed.StepAnchor(sel.ID, b.Delta)
	case keymap.ActionShiftBack, keymap.ActionShiftForward:
		out.Result = ed.BatchShift(b.Delta)
	default:
		// playback is driven by the client
		out.Selection = ed.Selection()
	}
	return out, nil
}
