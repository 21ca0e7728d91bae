package jobproxy

import (
	"strings"
	"unicode"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// ValidateContent runs the line script checks over every track
func ValidateContent(results [][]types.Segment) []types.ScriptValidationResult {
	var out []types.ScriptValidationResult
	for track, segs := range results {
		for _, s := range segs {
			for i, l := range s.Content {
				add := func(level, msg string) {
					out = append(out, types.ScriptValidationResult{
						Track: track, SegmentID: s.ID, Line: i, Level: level, Message: msg,
					})
				}
				text := strings.TrimSpace(l.Text)
				switch {
				case l.Role != types.RoleNone && text == "":
					add(types.LevelError, "line has a role but no text")
				case l.Role == types.RoleNone && text != "":
					add(types.LevelWarning, "line has text but no role")
				}
				if strings.IndexFunc(l.Text, isControl) >= 0 {
					add(types.LevelError, "text contains control characters")
				}
				if text != l.Text && text != "" {
					add(types.LevelWarning, "text has leading or trailing whitespace")
				}
			}
		}
	}
	return out
}

func isControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n'
}

// HasErrors reports whether any finding blocks submission
func HasErrors(findings []types.ScriptValidationResult) bool {
	for _, f := range findings {
		if f.Level == types.LevelError {
			return true
		}
	}
	return false
}
