package types

import "encoding/json"

// RoleNone is the sentinel role every ontology carries
const RoleNone = "none"

// Mode controls how segments on a track relate to each other
type Mode string

const (
	// ModeContinuous keeps segments gap-free and non-overlapping across the whole track
	ModeContinuous Mode = "continuous"
	// ModeOverlap allows drawn segments with gaps and bounded overlap
	ModeOverlap Mode = "overlap"
)

// Tool mode constants
const (
	ToolModeLabel  = "label"
	ToolModeReview = "review"
	ToolModeAudit  = "audit"
)

// Line is one speaker turn inside a segment
type Line struct {
	Role       string         `json:"role"`
	Text       string         `json:"text"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Segment is a time-bounded annotation unit on one track
type Segment struct {
	ID           string         `json:"id"`
	Start        float64        `json:"start"`
	End          float64        `json:"end"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Content      []Line         `json:"content"`
	QAChecked    *bool          `json:"qaChecked,omitempty"`
	QAComment    string         `json:"qaComment,omitempty"`
	QAReason     string         `json:"qaReason,omitempty"`
	QAWorkerName string         `json:"qaWorkerName,omitempty"`
}

// Length returns End - Start
func (s Segment) Length() float64 {
	return s.End - s.Start
}

// Contains reports whether t lies strictly inside the segment
func (s Segment) Contains(t float64) bool {
	return t > s.Start && t < s.End
}

// Clone returns a deep copy of the segment
func (s Segment) Clone() Segment {
	out := s
	out.Attributes = cloneMap(s.Attributes)
	out.Content = make([]Line, len(s.Content))
	for i, l := range s.Content {
		out.Content[i] = l.Clone()
	}
	if s.QAChecked != nil {
		v := *s.QAChecked
		out.QAChecked = &v
	}
	return out
}

// Clone returns a deep copy of the line
func (l Line) Clone() Line {
	out := l
	out.Attributes = cloneMap(l.Attributes)
	return out
}

// CloneSegments deep-copies a segment list
func CloneSegments(segs []Segment) []Segment {
	out := make([]Segment, len(segs))
	for i, s := range segs {
		out[i] = s.Clone()
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RawSegment is a segment as loaded from storage, before normalization.
// Start and End may hold numbers, numeric strings or null.
type RawSegment struct {
	ID           string         `json:"id"`
	Start        any            `json:"start"`
	End          any            `json:"end"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Content      []Line         `json:"content,omitempty"`
	QAChecked    *bool          `json:"qaChecked,omitempty"`
	QAComment    string         `json:"qaComment,omitempty"`
	QAReason     string         `json:"qaReason,omitempty"`
	QAWorkerName string         `json:"qaWorkerName,omitempty"`
}

// RawFromSegment converts a normalized segment back into its raw form
func RawFromSegment(s Segment) RawSegment {
	c := s.Clone()
	return RawSegment{
		ID:           c.ID,
		Start:        c.Start,
		End:          c.End,
		Attributes:   c.Attributes,
		Content:      c.Content,
		QAChecked:    c.QAChecked,
		QAComment:    c.QAComment,
		QAReason:     c.QAReason,
		QAWorkerName: c.QAWorkerName,
	}
}

// Track is one loaded media file
type Track struct {
	URL        string         `json:"url"`
	Duration   float64        `json:"duration"`
	Zoom       float64        `json:"zoom,omitempty"`
	Speed      float64        `json:"speed,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Ready      bool           `json:"ready"`
}

// Review holds the QA fields of one segment
type Review struct {
	QAChecked    *bool  `json:"qaChecked"`
	QAComment    string `json:"qaComment,omitempty"`
	QAReason     string `json:"qaReason,omitempty"`
	QAWorkerName string `json:"qaWorkerName,omitempty"`
	Label        string `json:"label,omitempty"`
}

// Reviews maps segment id to review, one map per track
type Reviews []map[string]Review

// TrackStatistics summarizes one track's annotation
type TrackStatistics struct {
	Segments        int            `json:"segments"`
	Lines           int            `json:"lines"`
	AnnotatedSecs   float64        `json:"annotatedSeconds"`
	MeanLength      float64        `json:"meanLength"`
	StdDevLength    float64        `json:"stdDevLength"`
	WordCount       int            `json:"wordCount"`
	RoleLineCounts  map[string]int `json:"roleLineCounts"`
	UnfinishedCount int            `json:"unfinished"`
}

// Statistics summarizes a whole result
type Statistics struct {
	Tracks        []TrackStatistics `json:"tracks"`
	TotalSegments int               `json:"totalSegments"`
	TotalWords    int               `json:"totalWords"`
}

// ResultPayload is the persisted save/submit body
type ResultPayload struct {
	Results        [][]Segment     `json:"results"`
	Audios         []Track         `json:"audios"`
	KeyAttribute   string          `json:"keyAttribute,omitempty"`
	AuditID        string          `json:"auditId,omitempty"`
	Statistics     *Statistics     `json:"statistics,omitempty"`
	TemplateConfig json.RawMessage `json:"templateConfig,omitempty"`
	ValidAudios    []int           `json:"validAudios,omitempty"`
	InvalidAudios  []int           `json:"invalidAudios,omitempty"`
}

// LoadedResult is what a job proxy returns on load
type LoadedResult struct {
	Results [][]RawSegment `json:"results"`
	Audios  []Track        `json:"audios"`
	AuditID string         `json:"auditId,omitempty"`
}

// ScriptValidationResult is one finding of content validation
type ScriptValidationResult struct {
	Track     int    `json:"track"`
	SegmentID string `json:"segmentId"`
	Line      int    `json:"line"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Validation levels
const (
	LevelError   = "error"
	LevelWarning = "warning"
)
