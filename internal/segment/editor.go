package segment

import (
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/segment-annotator/internal/history"
	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/render"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// SelectionKind is the state of the editor's selection machine
type SelectionKind string

const (
	SelectNone    SelectionKind = "none"
	SelectSegment SelectionKind = "segment"
	SelectAnchor  SelectionKind = "anchor"
	SelectTemp    SelectionKind = "temp"
)

// Selection is what the user currently has selected. Start and End are the
// drawn range of a temp selection.
type Selection struct {
	Kind  SelectionKind `json:"kind"`
	ID    string        `json:"id,omitempty"`
	Start float64       `json:"start,omitempty"`
	End   float64       `json:"end,omitempty"`
}

// Result is what an edit returns: whether it applied and what to draw
type Result struct {
	Applied   bool            `json:"applied"`
	Kind      OpKind          `json:"kind,omitempty"`
	Intents   []render.Intent `json:"intents,omitempty"`
	Selection Selection       `json:"selection"`
}

// EditorOptions configure a track editor
type EditorOptions struct {
	Bounds       Bounds
	Config       *labelconfig.Config
	HistoryLimit int
	NewID        func() string
}

// Editor applies edit operations to one track. It is not safe for concurrent
// use; the owning session serializes calls.
type Editor struct {
	tl      *Timeline
	hist    *History
	cfg     *labelconfig.Config
	newID   func() string
	scene   render.Scene
	sel     Selection
	cursor  string
	version uint64
}

// NewEditor creates an editor over normalized segments
func NewEditor(segs []types.Segment, opts EditorOptions) *Editor {
	if opts.Config == nil {
		opts.Config = labelconfig.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = history.DefaultLimit
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Bounds.Mode == "" {
		opts.Bounds.Mode = types.ModeContinuous
	}
	if opts.Bounds.MinLength <= 0 {
		opts.Bounds.MinLength = opts.Config.Global.MinSegmentLength
	}

	e := &Editor{
		tl:    NewTimeline(segs, opts.Bounds),
		hist:  NewHistory(opts.HistoryLimit),
		cfg:   opts.Config,
		newID: opts.NewID,
		sel:   Selection{Kind: SelectNone},
	}
	e.scene = e.buildScene()
	return e
}

// Segments returns a copy of the current segments
func (e *Editor) Segments() []types.Segment {
	return e.tl.Segments()
}

// Timeline exposes read access for callers that need lookups
func (e *Editor) Timeline() *Timeline {
	return e.tl
}

// Scene returns the current visual state
func (e *Editor) Scene() render.Scene {
	return e.scene
}

// Selection returns the current selection
func (e *Editor) Selection() Selection {
	return e.sel
}

// Version increases on every applied change, undo and redo included
func (e *Editor) Version() uint64 {
	return e.version
}

// HistoryDepth returns the undo and redo stack sizes
func (e *Editor) HistoryDepth() (undo, redo int) {
	return e.hist.Depth()
}

// Replace swaps every segment for segs, e.g. after a reload. History is reset.
func (e *Editor) Replace(segs []types.Segment) Result {
	e.tl = NewTimeline(segs, e.tl.bounds)
	e.hist.Reset()
	e.sel = Selection{Kind: SelectNone}
	e.cursor = ""
	e.scene = e.buildScene()
	e.version++
	return Result{Applied: true, Kind: OpClear, Intents: render.Redraw(e.scene), Selection: e.sel}
}

func (e *Editor) buildScene() render.Scene {
	return render.Build(e.tl.segs, e.tl.bounds.Mode, e.cfg.Color)
}

func (e *Editor) noop() Result {
	return Result{Selection: e.sel}
}

// exec applies cmd and records it
func (e *Editor) exec(cmd Command) Result {
	if cmd == nil {
		return e.noop()
	}
	if err := cmd.Apply(e.tl); err != nil {
		return e.noop()
	}
	return e.commit(cmd)
}

// commit records an already applied command and refreshes the scene
func (e *Editor) commit(cmd Command) Result {
	e.hist.Record(cmd)
	return e.refresh(cmd)
}

func (e *Editor) refresh(cmd Command) Result {
	e.version++
	next := e.buildScene()
	var intents []render.Intent
	if structural(cmd) {
		intents = render.Redraw(next)
	} else {
		intents = render.Diff(e.scene, next)
	}
	e.scene = next
	e.fixSelection()
	return Result{Applied: true, Kind: cmd.Kind(), Intents: intents, Selection: e.sel}
}

func (e *Editor) fixSelection() {
	switch e.sel.Kind {
	case SelectSegment:
		if e.tl.IndexOf(e.sel.ID) < 0 {
			e.sel = Selection{Kind: SelectNone}
		}
	case SelectAnchor:
		if _, ok := e.scene.Anchor(e.sel.ID); !ok {
			e.sel = Selection{Kind: SelectNone}
		}
	}
}

// Undo reverts the most recent edit; an empty history is a no-op
func (e *Editor) Undo() Result {
	cmd, err := e.hist.Undo(e.tl)
	if err != nil {
		return e.noop()
	}
	return e.refresh(cmd)
}

// Redo reapplies the most recently undone edit
func (e *Editor) Redo() Result {
	cmd, err := e.hist.Redo(e.tl)
	if err != nil {
		return e.noop()
	}
	return e.refresh(cmd)
}

// SelectSegment selects a segment by id
func (e *Editor) SelectSegment(id string) Selection {
	if e.tl.IndexOf(id) >= 0 {
		e.sel = Selection{Kind: SelectSegment, ID: id}
	}
	return e.sel
}

// SelectAnchor selects an anchor by id
func (e *Editor) SelectAnchor(id string) Selection {
	if _, ok := e.scene.Anchor(id); ok {
		e.sel = Selection{Kind: SelectAnchor, ID: id}
	}
	return e.sel
}

// ClearSelection drops the selection, discarding any temp range
func (e *Editor) ClearSelection() Selection {
	e.sel = Selection{Kind: SelectNone}
	return e.sel
}

// BeginDraw starts a temp selection at t
func (e *Editor) BeginDraw(t float64) Selection {
	t = clamp(t, 0, e.tl.bounds.Duration)
	e.sel = Selection{Kind: SelectTemp, Start: t, End: t}
	return e.sel
}

// UpdateDraw extends the temp selection to t
func (e *Editor) UpdateDraw(t float64) Selection {
	if e.sel.Kind != SelectTemp {
		return e.sel
	}
	e.sel.End = clamp(t, 0, e.tl.bounds.Duration)
	return e.sel
}

// EndDraw finishes a drag-select. In overlap mode a range of at least the
// minimum length becomes a segment; shorter ranges are discarded. In
// continuous mode the range stays selected for a double split.
func (e *Editor) EndDraw() Result {
	if e.sel.Kind != SelectTemp {
		return e.noop()
	}
	start, end := e.sel.Start, e.sel.End
	if start > end {
		start, end = end, start
	}

	if e.tl.bounds.Mode == types.ModeContinuous {
		if end-start < e.tl.bounds.MinLength-eps {
			e.sel = Selection{Kind: SelectNone}
			return e.noop()
		}
		e.sel = Selection{Kind: SelectTemp, Start: start, End: end}
		return e.noop()
	}

	e.sel = Selection{Kind: SelectNone}
	if !e.tl.fits("", start, end) {
		return e.noop()
	}
	seg := types.Segment{
		ID:         e.newID(),
		Start:      start,
		End:        end,
		Attributes: e.cfg.SegmentDefaults(),
		Content:    []types.Line{{Role: types.RoleNone, Attributes: e.cfg.LineDefaults()}},
	}
	res := e.exec(&replaceCmd{Op: OpDraw, After: []types.Segment{seg}})
	if res.Applied {
		e.sel = Selection{Kind: SelectSegment, ID: seg.ID}
		res.Selection = e.sel
	}
	return res
}

// CursorUpdate is the outcome of a playback position report
type CursorUpdate struct {
	SegmentID string `json:"segmentId,omitempty"`
	Index     int    `json:"index"`
	Crossed   bool   `json:"crossed"`
}

// SetCursor records the playback position and reports whether it moved into
// another segment, which is when the view scrolls to the new boundary.
func (e *Editor) SetCursor(t float64) CursorUpdate {
	i := e.tl.Locate(t)
	if i < 0 {
		crossed := e.cursor != ""
		e.cursor = ""
		return CursorUpdate{Index: -1, Crossed: crossed}
	}
	id := e.tl.segs[i].ID
	crossed := id != e.cursor
	e.cursor = id
	// an anchor or drawn range stays selected so the step shortcuts keep working
	if crossed && e.sel.Kind != SelectTemp && e.sel.Kind != SelectAnchor {
		e.sel = Selection{Kind: SelectSegment, ID: id}
	}
	return CursorUpdate{SegmentID: id, Index: i, Crossed: crossed}
}
