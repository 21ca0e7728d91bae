package media

import (
	"encoding/json"
	"fmt"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// DiarizationResult represents speaker turns from an external diarizer
type DiarizationResult struct {
	Speakers []SpeakerSegment `json:"speakers"`
}

// SpeakerSegment represents when a speaker is talking
type SpeakerSegment struct {
	SpeakerID string  `json:"speaker_id"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

// ParseDiarization decodes a diarization JSON document
func ParseDiarization(data []byte) (*DiarizationResult, error) {
	var out DiarizationResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse diarization JSON: %w", err)
	}
	return &out, nil
}

// AssignSpeakers sets the role of single-line transcript segments to the
// speaker overlapping them the most. Speakers missing from roles are ignored.
func AssignSpeakers(segs []types.RawSegment, d *DiarizationResult, roles map[string]string) int {
	assigned := 0
	for i := range segs {
		start, ok1 := segs[i].Start.(float64)
		end, ok2 := segs[i].End.(float64)
		if !ok1 || !ok2 || len(segs[i].Content) != 1 {
			continue
		}

		best, bestOverlap := "", 0.0
		for _, sp := range d.Speakers {
			overlap := min(end, sp.End) - max(start, sp.Start)
			if overlap > bestOverlap {
				best, bestOverlap = sp.SpeakerID, overlap
			}
		}
		role, ok := roles[best]
		if best == "" || !ok {
			continue
		}
		segs[i].Content[0].Role = role
		assigned++
	}
	return assigned
}
