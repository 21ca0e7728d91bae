package qa

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

var (
	// ErrUnfinished is returned when accepting or rejecting an incomplete segment
	ErrUnfinished = errors.New("segment is unfinished")
	// ErrReasonRequired is returned when a rejection has no reason
	ErrReasonRequired = errors.New("rejection requires a reason")
)

// Rules decide when a segment counts as finished
type Rules struct {
	RequireRole   bool
	SegmentFields []string
	LineFields    []string
}

// RulesFromConfig collects the required fields of a template
func RulesFromConfig(cfg *labelconfig.Config) Rules {
	r := Rules{RequireRole: cfg.Global.RequireRole}
	for _, f := range cfg.SegmentFields {
		if f.Required {
			r.SegmentFields = append(r.SegmentFields, f.Name)
		}
	}
	for _, f := range cfg.LineFields {
		if f.Required {
			r.LineFields = append(r.LineFields, f.Name)
		}
	}
	return r
}

// Missing lists why a segment is unfinished; empty means finished
func Missing(seg types.Segment, rules Rules) []string {
	var out []string
	if !(seg.End > seg.Start) {
		out = append(out, "invalid time range")
	}
	for _, name := range rules.SegmentFields {
		if empty(seg.Attributes[name]) {
			out = append(out, fmt.Sprintf("missing segment attribute %q", name))
		}
	}
	for i, line := range seg.Content {
		if rules.RequireRole && line.Role == types.RoleNone {
			out = append(out, fmt.Sprintf("line %d has no role", i))
		}
		for _, name := range rules.LineFields {
			if empty(line.Attributes[name]) {
				out = append(out, fmt.Sprintf("line %d missing attribute %q", i, name))
			}
		}
	}
	return out
}

// Unfinished reports whether seg lacks required data
func Unfinished(seg types.Segment, rules Rules) bool {
	return len(Missing(seg, rules)) > 0
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

// Accept returns the review marking seg as accepted
func Accept(seg types.Segment, rules Rules, worker string) (types.Review, error) {
	if Unfinished(seg, rules) {
		return types.Review{}, fmt.Errorf("accept %s: %w", seg.ID, ErrUnfinished)
	}
	ok := true
	return types.Review{QAChecked: &ok, QAComment: seg.QAComment, QAWorkerName: worker}, nil
}

// Reject returns the review marking seg as rejected
func Reject(seg types.Segment, rules Rules, worker, reason, comment string) (types.Review, error) {
	if Unfinished(seg, rules) {
		return types.Review{}, fmt.Errorf("reject %s: %w", seg.ID, ErrUnfinished)
	}
	if strings.TrimSpace(reason) == "" {
		return types.Review{}, fmt.Errorf("reject %s: %w", seg.ID, ErrReasonRequired)
	}
	ok := false
	return types.Review{QAChecked: &ok, QAReason: reason, QAComment: comment, QAWorkerName: worker}, nil
}

// MergeReviews copies the QA fields of reviews onto the matching segments, in place
func MergeReviews(results [][]types.Segment, reviews types.Reviews) {
	for track, segs := range results {
		if track >= len(reviews) {
			return
		}
		for i := range segs {
			r, ok := reviews[track][segs[i].ID]
			if !ok {
				continue
			}
			ApplyReview(&segs[i], r)
		}
	}
}

// ApplyReview sets the QA fields of seg from r
func ApplyReview(seg *types.Segment, r types.Review) {
	if r.QAChecked != nil {
		v := *r.QAChecked
		seg.QAChecked = &v
	} else {
		seg.QAChecked = nil
	}
	seg.QAComment = r.QAComment
	seg.QAReason = r.QAReason
	seg.QAWorkerName = r.QAWorkerName
}

// ExtractReviews collects the QA fields of every reviewed segment
func ExtractReviews(results [][]types.Segment) types.Reviews {
	out := make(types.Reviews, len(results))
	for track, segs := range results {
		out[track] = make(map[string]types.Review)
		for _, s := range segs {
			if s.QAChecked == nil && s.QAComment == "" && s.QAReason == "" {
				continue
			}
			r := types.Review{
				QAComment:    s.QAComment,
				QAReason:     s.QAReason,
				QAWorkerName: s.QAWorkerName,
				Label:        label(s),
			}
			if s.QAChecked != nil {
				v := *s.QAChecked
				r.QAChecked = &v
			}
			out[track][s.ID] = r
		}
	}
	return out
}

func label(s types.Segment) string {
	roles := make([]string, 0, len(s.Content))
	for _, l := range s.Content {
		roles = append(roles, l.Role)
	}
	return strings.Join(roles, ",")
}

// StripReviews clears the QA fields of every segment, in place
func StripReviews(results [][]types.Segment) {
	for _, segs := range results {
		for i := range segs {
			ApplyReview(&segs[i], types.Review{})
		}
	}
}
