package segment

import (
	"github.com/codebuildervaibhav/segment-annotator/internal/history"
)

// History keeps the undo and redo stacks of one track
type History struct {
	undo *history.Stack[Command]
	redo *history.Stack[Command]
}

// NewHistory creates a history bounded to limit entries per stack
func NewHistory(limit int) *History {
	return &History{
		undo: history.NewStack[Command](limit),
		redo: history.NewStack[Command](limit),
	}
}

// Record pushes an applied command. Trims of the same anchor and keystrokes
// on the same line fold into the most recent entry. Recording clears redo.
func (h *History) Record(cmd Command) {
	h.redo.Clear()
	if c, ok := cmd.(coalescer); ok {
		if prev, ok := h.undo.Peek(); ok {
			if merged, ok := c.coalesce(prev); ok {
				h.undo.ReplaceTop(merged)
				return
			}
		}
	}
	h.undo.Push(cmd)
}

// Undo reverts the most recent command and moves it to the redo stack
func (h *History) Undo(tl *Timeline) (Command, error) {
	cmd, ok := h.undo.Pop()
	if !ok {
		return nil, ErrNothingToUndo
	}
	if err := cmd.Invert().Apply(tl); err != nil {
		h.undo.Push(cmd)
		return nil, err
	}
	h.redo.Push(cmd)
	return cmd, nil
}

// Redo reapplies the most recently undone command
func (h *History) Redo(tl *Timeline) (Command, error) {
	cmd, ok := h.redo.Pop()
	if !ok {
		return nil, ErrNothingToUndo
	}
	if err := cmd.Apply(tl); err != nil {
		h.redo.Push(cmd)
		return nil, err
	}
	h.undo.Push(cmd)
	return cmd, nil
}

// Depth returns the sizes of the undo and redo stacks
func (h *History) Depth() (undo, redo int) {
	return h.undo.Len(), h.redo.Len()
}

// Reset drops both stacks
func (h *History) Reset() {
	h.undo.Clear()
	h.redo.Clear()
}
