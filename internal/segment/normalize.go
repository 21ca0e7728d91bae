package segment

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// Options configure ParseSegments
type Options struct {
	Duration  float64
	MinLength float64
	Mode      types.Mode
	Tolerance float64
	Config    *labelconfig.Config
	NewID     func() string
}

// Dropped records a raw segment that did not survive normalization
type Dropped struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// KeyChange records an unconfigured attribute or role seen during normalization
type KeyChange struct {
	SegmentID string `json:"segmentId"`
	Line      int    `json:"line"` // -1 for segment attributes
	Kind      string `json:"kind"` // "attribute" or "role"
	Key       string `json:"key"`
	Kept      bool   `json:"kept"`
}

// Report describes everything normalization changed
type Report struct {
	Dropped     []Dropped   `json:"dropped,omitempty"`
	Clipped     []string    `json:"clipped,omitempty"`
	Trimmed     []string    `json:"trimmed,omitempty"`
	Merged      []string    `json:"merged,omitempty"`
	Reassigned  []string    `json:"reassigned,omitempty"`
	Synthesized int         `json:"synthesized"`
	Snapped     int         `json:"snapped"`
	Keys        []KeyChange `json:"keys,omitempty"`
}

// Changed reports whether normalization altered anything
func (r *Report) Changed() bool {
	return len(r.Dropped) > 0 || len(r.Clipped) > 0 || len(r.Trimmed) > 0 ||
		len(r.Merged) > 0 || len(r.Reassigned) > 0 || r.Synthesized > 0 || r.Snapped > 0 ||
		r.stripped() > 0
}

func (r *Report) stripped() int {
	n := 0
	for _, k := range r.Keys {
		if !k.Kept {
			n++
		}
	}
	return n
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Config == nil {
		out.Config = labelconfig.Default()
	}
	if out.MinLength <= 0 {
		out.MinLength = out.Config.Global.MinSegmentLength
	}
	if out.Mode == "" {
		out.Mode = out.Config.Global.Mode
	}
	if out.Mode == "" {
		out.Mode = types.ModeContinuous
	}
	if out.NewID == nil {
		out.NewID = uuid.NewString
	}
	return out
}

// ParseSegments turns untrusted raw segments into a valid, sorted segment list
// for a track of the given duration.
func ParseSegments(raw []types.RawSegment, opts Options) ([]types.Segment, *Report, error) {
	o := opts.withDefaults()
	report := &Report{}

	if math.IsNaN(o.Duration) || math.IsInf(o.Duration, 0) || o.Duration <= 0 {
		return nil, nil, fmt.Errorf("duration %v: %w", o.Duration, ErrInvalidDuration)
	}

	seen := make(map[string]bool, len(raw))
	segs := make([]types.Segment, 0, len(raw))
	for i, r := range raw {
		start, err := coerceTime(r.Start)
		if err != nil {
			return nil, nil, fmt.Errorf("segment %d start: %w", i, err)
		}
		end, err := coerceTime(r.End)
		if err != nil {
			return nil, nil, fmt.Errorf("segment %d end: %w", i, err)
		}

		id := r.ID
		if id == "" || seen[id] {
			if id != "" {
				report.Reassigned = append(report.Reassigned, id)
			}
			id = o.NewID()
		}
		seen[id] = true

		if end > o.Duration {
			end = o.Duration
			report.Clipped = append(report.Clipped, id)
		}
		if start < 0 || end < 0 || start > end {
			report.Dropped = append(report.Dropped, Dropped{Index: i, ID: id, Reason: "invalid range"})
			continue
		}

		seg := types.Segment{
			ID:           id,
			Start:        start,
			End:          end,
			Attributes:   r.Attributes,
			Content:      r.Content,
			QAChecked:    r.QAChecked,
			QAComment:    r.QAComment,
			QAReason:     r.QAReason,
			QAWorkerName: r.QAWorkerName,
		}
		seg = seg.Clone()
		if err := applySchema(&seg, o.Config, report); err != nil {
			return nil, nil, fmt.Errorf("segment %d: %w", i, err)
		}
		segs = append(segs, seg)
	}

	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].Start != segs[j].Start {
			return segs[i].Start < segs[j].Start
		}
		return segs[i].End < segs[j].End
	})

	if o.Mode == types.ModeOverlap {
		return resolveOverlaps(segs, o, report), report, nil
	}
	return fillContinuous(segs, o, report), report, nil
}

func coerceTime(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("null: %w", ErrInvalidTime)
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q: %w", t.String(), ErrInvalidTime)
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", t, ErrInvalidTime)
		}
		f = n
	default:
		return 0, fmt.Errorf("%T: %w", v, ErrInvalidTime)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v: %w", f, ErrInvalidTime)
	}
	return f, nil
}

// applySchema fills defaults and applies the attribute policy
func applySchema(seg *types.Segment, cfg *labelconfig.Config, report *Report) error {
	policy := cfg.Global.AttributePolicy

	seg.Attributes = fillMissing(seg.Attributes, cfg.SegmentDefaults())
	if cfg.SegmentFieldsDeclared {
		for _, key := range sortedKeys(seg.Attributes) {
			if cfg.HasSegmentField(key) {
				continue
			}
			if err := handleUnknown(policy, report, KeyChange{SegmentID: seg.ID, Line: -1, Kind: "attribute", Key: key}); err != nil {
				return err
			}
			if policy == labelconfig.PolicyStrip {
				delete(seg.Attributes, key)
			}
		}
	}

	if len(seg.Content) == 0 {
		seg.Content = []types.Line{{Role: types.RoleNone}}
	}
	for j := range seg.Content {
		line := &seg.Content[j]
		if line.Role == "" {
			line.Role = types.RoleNone
		}
		if cfg.RolesDeclared && !cfg.HasRole(line.Role) {
			if err := handleUnknown(policy, report, KeyChange{SegmentID: seg.ID, Line: j, Kind: "role", Key: line.Role}); err != nil {
				return err
			}
			if policy == labelconfig.PolicyStrip {
				line.Role = types.RoleNone
			}
		}
		line.Attributes = fillMissing(line.Attributes, cfg.LineDefaults())
		if cfg.LineFieldsDeclared {
			for _, key := range sortedKeys(line.Attributes) {
				if cfg.HasLineField(key) {
					continue
				}
				if err := handleUnknown(policy, report, KeyChange{SegmentID: seg.ID, Line: j, Kind: "attribute", Key: key}); err != nil {
					return err
				}
				if policy == labelconfig.PolicyStrip {
					delete(line.Attributes, key)
				}
			}
		}
	}
	return nil
}

func handleUnknown(policy labelconfig.AttributePolicy, report *Report, change KeyChange) error {
	switch policy {
	case labelconfig.PolicyReject:
		return fmt.Errorf("%s %q: %w", change.Kind, change.Key, ErrUnknownKey)
	case labelconfig.PolicyKeep:
		change.Kept = true
	}
	report.Keys = append(report.Keys, change)
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func filler(o Options, start, end float64) types.Segment {
	return types.Segment{
		ID:         o.NewID(),
		Start:      start,
		End:        end,
		Attributes: o.Config.SegmentDefaults(),
		Content:    []types.Line{{Role: types.RoleNone, Attributes: o.Config.LineDefaults()}},
	}
}

// fillContinuous trims overlaps, closes gaps and folds short segments into neighbours
func fillContinuous(segs []types.Segment, o Options, report *Report) []types.Segment {
	out := make([]types.Segment, 0, len(segs)+2)
	cursor := 0.0

	for _, s := range segs {
		if s.Start < cursor-eps {
			s.Start = cursor
			if s.End < s.Start {
				s.End = s.Start
			}
			report.Trimmed = append(report.Trimmed, s.ID)
		}

		gap := s.Start - cursor
		switch {
		case gap > o.MinLength+eps:
			out = append(out, filler(o, cursor, s.Start))
			report.Synthesized++
		case gap > eps:
			s.Start = cursor
			report.Snapped++
		}

		out = append(out, s)
		cursor = maxf(cursor, s.End)
	}

	tail := o.Duration - cursor
	switch {
	case len(out) == 0:
		out = append(out, filler(o, 0, o.Duration))
		report.Synthesized++
	case tail > o.MinLength+eps:
		out = append(out, filler(o, cursor, o.Duration))
		report.Synthesized++
	case tail > eps:
		out[len(out)-1].End = o.Duration
		report.Snapped++
	}

	i := 0
	for i < len(out) && len(out) > 1 {
		if out[i].Length() >= o.MinLength-eps {
			i++
			continue
		}
		report.Merged = append(report.Merged, out[i].ID)
		if i > 0 {
			prev := out[i-1]
			prev.End = out[i].End
			prev.Content = MergeContent(prev.Content, out[i].Content)
			prev.Attributes = fillMissing(prev.Attributes, out[i].Attributes)
			out[i-1] = prev
			out = append(out[:i], out[i+1:]...)
			continue
		}
		next := out[1]
		next.Start = out[0].Start
		next.Content = MergeContent(out[0].Content, next.Content)
		next.Attributes = fillMissing(next.Attributes, out[0].Attributes)
		out[1] = next
		out = out[1:]
	}

	return out
}

// resolveOverlaps trims overlaps beyond the tolerance and drops short segments
func resolveOverlaps(segs []types.Segment, o Options, report *Report) []types.Segment {
	out := make([]types.Segment, 0, len(segs))
	maxEnd := math.Inf(-1)

	for i, s := range segs {
		trimmed := len(out) > 0 && s.Start < maxEnd-o.Tolerance-eps
		if trimmed {
			s.Start = maxEnd - o.Tolerance
		}
		if s.Length() < o.MinLength-eps {
			report.Dropped = append(report.Dropped, Dropped{Index: i, ID: s.ID, Reason: "shorter than minimum length"})
			continue
		}
		if trimmed {
			report.Trimmed = append(report.Trimmed, s.ID)
		}
		out = append(out, s)
		maxEnd = maxf(maxEnd, s.End)
	}

	return out
}
