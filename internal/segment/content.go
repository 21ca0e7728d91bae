package segment

import "github.com/codebuildervaibhav/segment-annotator/internal/types"

// SplitRules say which roles end up on each side of a split.
// A role listed only on the right moves there with its text, a role listed on
// both sides stays left and gets an empty copy on the right, anything else
// stays left.
type SplitRules struct {
	Left  []string `json:"left,omitempty"`
	Right []string `json:"right,omitempty"`
}

// MergeContent combines the lines of a right-hand segment into a left-hand one.
// Lines whose role already exists on the left have their text appended; other
// lines are appended as new lines, except empty lines of role none.
func MergeContent(left, right []types.Line) []types.Line {
	out := make([]types.Line, len(left))
	for i, l := range left {
		out[i] = l.Clone()
	}

	for _, r := range right {
		idx := findRole(out, r.Role)
		if idx >= 0 {
			out[idx].Text += r.Text
			out[idx].Attributes = fillMissing(out[idx].Attributes, r.Attributes)
			continue
		}
		if r.Role == types.RoleNone && r.Text == "" && len(r.Attributes) == 0 {
			continue
		}
		out = append(out, r.Clone())
	}

	if len(out) == 0 {
		out = append(out, types.Line{Role: types.RoleNone})
	}
	return out
}

func splitContent(content []types.Line, rules *SplitRules) (left, right []types.Line) {
	if rules == nil || (len(rules.Left) == 0 && len(rules.Right) == 0) {
		for _, l := range content {
			left = append(left, l.Clone())
			right = append(right, types.Line{Role: l.Role, Attributes: l.Clone().Attributes})
		}
		return ensureLine(left), ensureLine(right)
	}

	inLeft := toSet(rules.Left)
	inRight := toSet(rules.Right)
	for _, l := range content {
		switch {
		case inRight[l.Role] && !inLeft[l.Role]:
			right = append(right, l.Clone())
		case inRight[l.Role]:
			left = append(left, l.Clone())
			right = append(right, types.Line{Role: l.Role, Attributes: l.Clone().Attributes})
		default:
			left = append(left, l.Clone())
		}
	}
	return ensureLine(left), ensureLine(right)
}

func ensureLine(lines []types.Line) []types.Line {
	if len(lines) == 0 {
		return []types.Line{{Role: types.RoleNone}}
	}
	return lines
}

func findRole(lines []types.Line, role string) int {
	for i, l := range lines {
		if l.Role == role {
			return i
		}
	}
	return -1
}

// roleTaken reports whether another line than skip already uses role.
// The none role may repeat.
func roleTaken(lines []types.Line, role string, skip int) bool {
	if role == types.RoleNone {
		return false
	}
	for i, l := range lines {
		if i != skip && l.Role == role {
			return true
		}
	}
	return false
}

func fillMissing(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	return dst
}

func toSet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}
