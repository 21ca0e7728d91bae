package qa

import (
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// Problem is one reason a submit was blocked
type Problem struct {
	Track     int    `json:"track"`
	SegmentID string `json:"segmentId,omitempty"`
	Message   string `json:"message"`
}

// ValidationError aggregates every problem found at submit time
type ValidationError struct {
	Problems []Problem `json:"problems"`
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		p := e.Problems[0]
		return fmt.Sprintf("validation failed: track %d segment %s: %s", p.Track, p.SegmentID, p.Message)
	}
	return fmt.Sprintf("validation failed: %d problems", len(e.Problems))
}

func (e *ValidationError) add(track int, segID, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{Track: track, SegmentID: segID, Message: fmt.Sprintf(format, args...)})
}

// ValidateSubmit checks every segment of every track. It returns nil or a
// *ValidationError listing all problems at once.
func ValidateSubmit(results [][]types.Segment, rules Rules) error {
	verr := &ValidationError{}
	for track, segs := range results {
		for _, s := range segs {
			if missing := Missing(s, rules); len(missing) > 0 {
				verr.add(track, s.ID, "unfinished: %s", strings.Join(missing, "; "))
			}
			if s.QAChecked != nil && !*s.QAChecked && strings.TrimSpace(s.QAReason) == "" {
				verr.add(track, s.ID, "rejected without a reason")
			}
		}
	}
	if len(verr.Problems) == 0 {
		return nil
	}
	return verr
}

// CountUnfinished returns how many segments of a track are unfinished
func CountUnfinished(segs []types.Segment, rules Rules) int {
	n := 0
	for _, s := range segs {
		if Unfinished(s, rules) {
			n++
		}
	}
	return n
}
