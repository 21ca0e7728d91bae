package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/qa"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

func TestTrackStatistics(t *testing.T) {
	segs := []types.Segment{
		{ID: "a", Start: 0, End: 2, Content: []types.Line{{Role: types.RoleNone}}},
		{ID: "b", Start: 2, End: 6, Content: []types.Line{{Role: "A", Text: "hello there"}, {Role: "B", Text: "hi"}}},
		{ID: "c", Start: 6, End: 12, Content: []types.Line{{Role: "A", Text: "bye"}}},
	}

	ts := Track(segs, qa.Rules{RequireRole: true})
	assert.Equal(t, 3, ts.Segments)
	assert.Equal(t, 4, ts.Lines)
	assert.Equal(t, 4, ts.WordCount)
	assert.Equal(t, 10.0, ts.AnnotatedSecs)
	assert.Equal(t, 4.0, ts.MeanLength)
	assert.Equal(t, 2.0, ts.StdDevLength)
	assert.Equal(t, map[string]int{types.RoleNone: 1, "A": 2, "B": 1}, ts.RoleLineCounts)
	assert.Equal(t, 1, ts.UnfinishedCount)
}

func TestComputeTotals(t *testing.T) {
	results := [][]types.Segment{
		{{ID: "a", Start: 0, End: 1, Content: []types.Line{{Role: "A", Text: "one two"}}}},
		{},
	}
	s := Compute(results, qa.Rules{})
	require.Len(t, s.Tracks, 2)
	assert.Equal(t, 1, s.TotalSegments)
	assert.Equal(t, 2, s.TotalWords)
	assert.Zero(t, s.Tracks[1].MeanLength)
}

func TestQuantiles(t *testing.T) {
	segs := []types.Segment{
		{Start: 0, End: 4}, {Start: 4, End: 5}, {Start: 5, End: 7},
	}
	assert.Equal(t, []float64{1, 2, 4}, Quantiles(segs, 0, 0.5, 1))
	assert.Equal(t, []float64{0}, Quantiles(nil, 0.5))
}
