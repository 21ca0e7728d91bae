package media

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// WhisperOutput matches Whisper's JSON output format
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from Whisper
type WhisperSegment struct {
	ID      int     `json:"id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// ImportOptions control how a transcript becomes raw segments
type ImportOptions struct {
	// Role is assigned to every line when no speaker information exists
	Role string
	// Speakers maps transcript speaker labels to ontology roles
	Speakers map[string]string
	// Language is stored as a segment attribute when set
	LanguageAttribute string
}

// ParseWhisper decodes a Whisper JSON transcript
func ParseWhisper(data []byte) (*WhisperOutput, error) {
	var out WhisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}
	return &out, nil
}

// ImportWhisper converts a transcript into raw segments, one line each. The
// result still has to go through normalization.
func ImportWhisper(out *WhisperOutput, opts ImportOptions) []types.RawSegment {
	role := opts.Role
	if role == "" {
		role = types.RoleNone
	}

	segments := make([]types.RawSegment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		lineRole := role
		if seg.Speaker != "" {
			if mapped, ok := opts.Speakers[seg.Speaker]; ok {
				lineRole = mapped
			}
		}
		raw := types.RawSegment{
			Start:   seg.Start,
			End:     seg.End,
			Content: []types.Line{{Role: lineRole, Text: strings.TrimSpace(seg.Text)}},
		}
		if opts.LanguageAttribute != "" && out.Language != "" {
			raw.Attributes = map[string]any{opts.LanguageAttribute: out.Language}
		}
		segments = append(segments, raw)
	}
	return segments
}

// Duration is the end of the last transcript segment
func (w *WhisperOutput) Duration() float64 {
	var d float64
	for _, s := range w.Segments {
		if s.End > d {
			d = s.End
		}
	}
	return d
}
