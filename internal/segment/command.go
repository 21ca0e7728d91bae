package segment

import (
	"fmt"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// OpKind tags history entries
type OpKind string

const (
	OpSplit     OpKind = "split"
	OpMerge     OpKind = "merge"
	OpAnchor    OpKind = "anchor"
	OpTrim      OpKind = "trim"
	OpShift     OpKind = "shift"
	OpLine      OpKind = "line"
	OpText      OpKind = "text"
	OpAttribute OpKind = "attribute"
	OpDraw      OpKind = "draw"
	OpRegion    OpKind = "region"
	OpDelete    OpKind = "delete"
	OpClear     OpKind = "clear"
	OpLination  OpKind = "lination"
	OpReview    OpKind = "review"
)

// Command is one reversible edit. Apply must be deterministic so that redo
// reproduces the original edit exactly, ids included.
type Command interface {
	Kind() OpKind
	Apply(tl *Timeline) error
	Invert() Command
}

// coalescer is implemented by commands that fold into the previous history entry
type coalescer interface {
	coalesce(prev Command) (Command, bool)
}

// splitCmd replaces Original with Left and Right
type splitCmd struct {
	Original types.Segment
	Left     types.Segment
	Right    types.Segment
}

func (c *splitCmd) Kind() OpKind { return OpSplit }

func (c *splitCmd) Apply(tl *Timeline) error {
	return tl.replace([]string{c.Original.ID}, []types.Segment{c.Left, c.Right})
}

func (c *splitCmd) Invert() Command {
	return &mergeCmd{Left: c.Left, Right: c.Right, Merged: c.Original}
}

// mergeCmd replaces Left and Right with Merged
type mergeCmd struct {
	Left   types.Segment
	Right  types.Segment
	Merged types.Segment
}

func (c *mergeCmd) Kind() OpKind { return OpMerge }

func (c *mergeCmd) Apply(tl *Timeline) error {
	return tl.replace([]string{c.Left.ID, c.Right.ID}, []types.Segment{c.Merged})
}

func (c *mergeCmd) Invert() Command {
	return &splitCmd{Original: c.Merged, Left: c.Left, Right: c.Right}
}

// moveAnchorCmd moves the boundary in front of segment AnchorID
type moveAnchorCmd struct {
	AnchorID string
	From     float64
	To       float64
	Trim     bool
}

func (c *moveAnchorCmd) Kind() OpKind {
	if c.Trim {
		return OpTrim
	}
	return OpAnchor
}

func (c *moveAnchorCmd) Apply(tl *Timeline) error {
	i := tl.IndexOf(c.AnchorID)
	if i <= 0 {
		return fmt.Errorf("anchor %s: %w", c.AnchorID, ErrSegmentNotFound)
	}
	tl.segs[i-1].End = c.To
	tl.segs[i].Start = c.To
	return nil
}

func (c *moveAnchorCmd) Invert() Command {
	return &moveAnchorCmd{AnchorID: c.AnchorID, From: c.To, To: c.From, Trim: c.Trim}
}

func (c *moveAnchorCmd) coalesce(prev Command) (Command, bool) {
	p, ok := prev.(*moveAnchorCmd)
	if !ok || !c.Trim || !p.Trim || p.AnchorID != c.AnchorID {
		return nil, false
	}
	return &moveAnchorCmd{AnchorID: c.AnchorID, From: p.From, To: c.To, Trim: true}, true
}

// span is the time range of one segment
type span struct {
	ID    string
	Start float64
	End   float64
}

// shiftCmd moves many segments at once
type shiftCmd struct {
	Delta  float64
	Before []span
	After  []span
}

func (c *shiftCmd) Kind() OpKind { return OpShift }

func (c *shiftCmd) Apply(tl *Timeline) error {
	for _, s := range c.After {
		if err := tl.setSpan(s.ID, s.Start, s.End); err != nil {
			return err
		}
	}
	tl.sortAndIndex()
	return nil
}

func (c *shiftCmd) Invert() Command {
	return &shiftCmd{Delta: -c.Delta, Before: c.After, After: c.Before}
}

// replaceCmd swaps a set of segments for another; Before or After may be empty
type replaceCmd struct {
	Op     OpKind
	Before []types.Segment
	After  []types.Segment
	// Line is the edited line for OpText, used for coalescing keystrokes
	Line int
}

func (c *replaceCmd) Kind() OpKind { return c.Op }

func (c *replaceCmd) Apply(tl *Timeline) error {
	ids := make([]string, len(c.Before))
	for i, s := range c.Before {
		ids[i] = s.ID
	}
	return tl.replace(ids, c.After)
}

func (c *replaceCmd) Invert() Command {
	return &replaceCmd{Op: c.Op, Before: c.After, After: c.Before, Line: c.Line}
}

func (c *replaceCmd) coalesce(prev Command) (Command, bool) {
	p, ok := prev.(*replaceCmd)
	if !ok || c.Op != OpText || p.Op != OpText || p.Line != c.Line {
		return nil, false
	}
	if len(p.After) != 1 || len(c.Before) != 1 || p.After[0].ID != c.Before[0].ID {
		return nil, false
	}
	return &replaceCmd{Op: OpText, Before: p.Before, After: c.After, Line: c.Line}, true
}

// compositeCmd applies several commands as one history entry
type compositeCmd struct {
	Op    OpKind
	Steps []Command
}

func (c *compositeCmd) Kind() OpKind { return c.Op }

func (c *compositeCmd) Apply(tl *Timeline) error {
	for i, step := range c.Steps {
		if err := step.Apply(tl); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = c.Steps[j].Invert().Apply(tl)
			}
			return err
		}
	}
	return nil
}

func (c *compositeCmd) Invert() Command {
	steps := make([]Command, len(c.Steps))
	for i, step := range c.Steps {
		steps[len(c.Steps)-1-i] = step.Invert()
	}
	return &compositeCmd{Op: c.Op, Steps: steps}
}

// structural reports whether undoing or applying cmd replaces the whole track
func structural(cmd Command) bool {
	return cmd.Kind() == OpClear
}
