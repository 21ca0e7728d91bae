package segment

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func raw(id string, start, end any, roles ...string) types.RawSegment {
	r := types.RawSegment{ID: id, Start: start, End: end}
	for _, role := range roles {
		r.Content = append(r.Content, types.Line{Role: role})
	}
	return r
}

func TestParseSegmentsEmptyTrack(t *testing.T) {
	segs, report, err := ParseSegments(nil, Options{Duration: 10, NewID: sequence("n")})
	require.NoError(t, err)
	require.Len(t, segs, 1)

	assert.Equal(t, "n1", segs[0].ID)
	assert.Equal(t, 0.0, segs[0].Start)
	assert.Equal(t, 10.0, segs[0].End)
	assert.Equal(t, []types.Line{{Role: types.RoleNone}}, segs[0].Content)
	assert.Nil(t, segs[0].Attributes)
	assert.Equal(t, 1, report.Synthesized)
}

func TestParseSegmentsFillsGaps(t *testing.T) {
	in := []types.RawSegment{
		raw("b", 5.0, 8.0, "A"),
		raw("a", 2.0, "5", "B"),
	}
	segs, report, err := ParseSegments(in, Options{Duration: 10, NewID: sequence("n")})
	require.NoError(t, err)
	require.Len(t, segs, 4)

	var spans [][2]float64
	for _, s := range segs {
		spans = append(spans, [2]float64{s.Start, s.End})
	}
	assert.Equal(t, [][2]float64{{0, 2}, {2, 5}, {5, 8}, {8, 10}}, spans)
	assert.Equal(t, "a", segs[1].ID)
	assert.Equal(t, "b", segs[2].ID)
	assert.Equal(t, 2, report.Synthesized)
}

func TestParseSegmentsSnapsSmallGapsAndTrimsOverlaps(t *testing.T) {
	in := []types.RawSegment{
		raw("a", 0.0, 4.0, "A"),
		raw("b", 4.01, 7.0, "A"),
		raw("c", 6.5, 10.0, "A"),
	}
	segs, report, err := ParseSegments(in, Options{Duration: 10, NewID: sequence("n")})
	require.NoError(t, err)
	require.Len(t, segs, 3)

	assert.Equal(t, 4.0, segs[1].Start)
	assert.Equal(t, 7.0, segs[2].Start)
	assert.Equal(t, 1, report.Snapped)
	assert.Equal(t, []string{"c"}, report.Trimmed)
}

func TestParseSegmentsMergesShortSegments(t *testing.T) {
	in := []types.RawSegment{
		{ID: "a", Start: 0.0, End: 0.02, Content: []types.Line{{Role: "A", Text: "hi"}}},
		{ID: "b", Start: 0.02, End: 10.0, Content: []types.Line{{Role: "A", Text: " there"}}},
	}
	segs, report, err := ParseSegments(in, Options{Duration: 10, NewID: sequence("n")})
	require.NoError(t, err)
	require.Len(t, segs, 1)

	assert.Equal(t, "b", segs[0].ID)
	assert.Equal(t, 0.0, segs[0].Start)
	assert.Equal(t, "hi there", segs[0].Content[0].Text)
	assert.Equal(t, []string{"a"}, report.Merged)
}

func TestParseSegmentsClipsAndDrops(t *testing.T) {
	in := []types.RawSegment{
		raw("a", 0.0, 12.0, "A"),
		raw("b", 6.0, 3.0, "A"),
		raw("c", -1.0, 2.0, "A"),
	}
	segs, report, err := ParseSegments(in, Options{Duration: 10, NewID: sequence("n")})
	require.NoError(t, err)
	require.Len(t, segs, 1)

	assert.Equal(t, 10.0, segs[0].End)
	assert.Equal(t, []string{"a"}, report.Clipped)
	require.Len(t, report.Dropped, 2)
	assert.Equal(t, "b", report.Dropped[0].ID)
	assert.Equal(t, "c", report.Dropped[1].ID)
}

func TestParseSegmentsIsIdempotent(t *testing.T) {
	in := []types.RawSegment{
		raw("a", 1.0, 3.0, "A", "B"),
		raw("b", 3.02, 6.0),
		raw("c", 5.0, 9.99, "A"),
	}
	first, _, err := ParseSegments(in, Options{Duration: 10, NewID: sequence("n")})
	require.NoError(t, err)

	again := make([]types.RawSegment, len(first))
	for i, s := range first {
		again[i] = types.RawFromSegment(s)
	}
	second, report, err := ParseSegments(again, Options{Duration: 10, NewID: sequence("m")})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, report.Changed())
}

func TestParseSegmentsRejectsBadInput(t *testing.T) {
	_, _, err := ParseSegments(nil, Options{Duration: math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, _, err = ParseSegments(nil, Options{Duration: 0})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, _, err = ParseSegments([]types.RawSegment{raw("a", math.NaN(), 2.0)}, Options{Duration: 10})
	assert.ErrorIs(t, err, ErrInvalidTime)

	_, _, err = ParseSegments([]types.RawSegment{raw("a", 0.0, nil)}, Options{Duration: 10})
	assert.ErrorIs(t, err, ErrInvalidTime)

	_, _, err = ParseSegments([]types.RawSegment{raw("a", "soon", 2.0)}, Options{Duration: 10})
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestParseSegmentsReassignsDuplicateIDs(t *testing.T) {
	in := []types.RawSegment{
		raw("a", 0.0, 5.0),
		raw("a", 5.0, 10.0),
	}
	segs, report, err := ParseSegments(in, Options{Duration: 10, NewID: sequence("n")})
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.Equal(t, "a", segs[0].ID)
	assert.Equal(t, "n1", segs[1].ID)
	assert.Equal(t, []string{"a"}, report.Reassigned)
}

func policyConfig(policy labelconfig.AttributePolicy) *labelconfig.Config {
	cfg := labelconfig.Default()
	cfg.SegmentFields = []labelconfig.Field{{Name: "topic", Default: "news"}}
	cfg.SegmentFieldsDeclared = true
	cfg.Ontology = append(cfg.Ontology, labelconfig.Role{Key: "A", Color: "#fff"})
	cfg.RolesDeclared = true
	cfg.Global.AttributePolicy = policy
	return cfg
}

func TestParseSegmentsAttributePolicy(t *testing.T) {
	in := []types.RawSegment{{
		ID:         "a",
		Start:      0.0,
		End:        10.0,
		Attributes: map[string]any{"legacy": 1.0},
		Content:    []types.Line{{Role: "A"}, {Role: "Ghost"}},
	}}

	t.Run("strip", func(t *testing.T) {
		segs, report, err := ParseSegments(in, Options{Duration: 10, Config: policyConfig(labelconfig.PolicyStrip)})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"topic": "news"}, segs[0].Attributes)
		assert.Equal(t, types.RoleNone, segs[0].Content[1].Role)
		require.Len(t, report.Keys, 2)
		assert.False(t, report.Keys[0].Kept)
		assert.True(t, report.Changed())
	})

	t.Run("keep", func(t *testing.T) {
		segs, report, err := ParseSegments(in, Options{Duration: 10, Config: policyConfig(labelconfig.PolicyKeep)})
		require.NoError(t, err)
		assert.Equal(t, 1.0, segs[0].Attributes["legacy"])
		assert.Equal(t, "Ghost", segs[0].Content[1].Role)
		require.Len(t, report.Keys, 2)
		assert.True(t, report.Keys[1].Kept)
	})

	t.Run("reject", func(t *testing.T) {
		_, _, err := ParseSegments(in, Options{Duration: 10, Config: policyConfig(labelconfig.PolicyReject)})
		assert.ErrorIs(t, err, ErrUnknownKey)
	})

	t.Run("undeclared schema keeps keys", func(t *testing.T) {
		segs, report, err := ParseSegments(in, Options{Duration: 10})
		require.NoError(t, err)
		assert.Equal(t, 1.0, segs[0].Attributes["legacy"])
		assert.Empty(t, report.Keys)
	})
}

func TestParseSegmentsOverlapMode(t *testing.T) {
	in := []types.RawSegment{
		raw("a", 0.0, 5.0),
		raw("b", 4.0, 8.0),
		raw("c", 4.5, 4.52),
	}
	segs, report, err := ParseSegments(in, Options{Duration: 10, Mode: types.ModeOverlap})
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.Equal(t, 5.0, segs[1].Start)
	// c was trimmed below the minimum and dropped, so it is only reported once
	assert.Equal(t, []string{"b"}, report.Trimmed)
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, "c", report.Dropped[0].ID)
	assert.Zero(t, report.Synthesized)
}

func TestMergeContent(t *testing.T) {
	left := []types.Line{{Role: "A", Text: "one "}}
	right := []types.Line{{Role: "A", Text: "two"}, {Role: "B", Text: "three"}, {Role: types.RoleNone}}

	got := MergeContent(left, right)
	assert.Equal(t, []types.Line{{Role: "A", Text: "one two"}, {Role: "B", Text: "three"}}, got)
	assert.Equal(t, "one ", left[0].Text)
}
