package render

import (
	"strconv"
	"sync"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// Anchor is the draggable boundary in front of the segment it is keyed by
type Anchor struct {
	ID       string  `json:"id"`
	Position float64 `json:"position"`
}

// Region is one rendered rectangle on the timeline
type Region struct {
	ID        string  `json:"id"`
	SegmentID string  `json:"segmentId"`
	Line      int     `json:"line"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Role      string  `json:"role"`
	Color     string  `json:"color"`
}

// Scene is the visual state of one track. It is derived from segments and
// never edited directly.
type Scene struct {
	Anchors []Anchor `json:"anchors"`
	Regions []Region `json:"regions"`
}

// ColorFunc maps a role to its display color
type ColorFunc func(role string) string

// Build derives the scene for a sorted segment list
func Build(segs []types.Segment, mode types.Mode, color ColorFunc) Scene {
	scene := Scene{
		Anchors: make([]Anchor, 0, len(segs)),
		Regions: make([]Region, 0, len(segs)),
	}

	for i, seg := range segs {
		if mode == types.ModeOverlap {
			role := types.RoleNone
			if len(seg.Content) > 0 {
				role = seg.Content[0].Role
			}
			scene.Regions = append(scene.Regions, Region{
				ID:        seg.ID,
				SegmentID: seg.ID,
				Start:     seg.Start,
				End:       seg.End,
				Role:      role,
				Color:     color(role),
			})
			continue
		}

		if i > 0 {
			scene.Anchors = append(scene.Anchors, Anchor{ID: seg.ID, Position: seg.Start})
		}
		for j, line := range seg.Content {
			scene.Regions = append(scene.Regions, Region{
				ID:        RegionID(seg.ID, j),
				SegmentID: seg.ID,
				Line:      j,
				Start:     seg.Start,
				End:       seg.End,
				Role:      line.Role,
				Color:     color(line.Role),
			})
		}
	}

	return scene
}

// RegionID returns the id of the region drawn for a segment line
func RegionID(segmentID string, line int) string {
	return segmentID + "/" + strconv.Itoa(line)
}

// Anchor returns the anchor with the given id
func (s Scene) Anchor(id string) (Anchor, bool) {
	for _, a := range s.Anchors {
		if a.ID == id {
			return a, true
		}
	}
	return Anchor{}, false
}

// Renderer is the effect layer that performs the imperative drawing calls.
// Calls to one renderer are sequential.
type Renderer interface {
	Render(track int, intents []Intent) error
}

// Batch is one Render call captured by a Recorder
type Batch struct {
	Track   int
	Intents []Intent
}

// Recorder is a Renderer that keeps every batch in memory
type Recorder struct {
	mu      sync.Mutex
	batches []Batch
}

// Render records the batch
func (r *Recorder) Render(track int, intents []Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, Batch{Track: track, Intents: intents})
	return nil
}

// Batches returns a copy of the recorded batches
func (r *Recorder) Batches() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Batch, len(r.batches))
	copy(out, r.batches)
	return out
}
