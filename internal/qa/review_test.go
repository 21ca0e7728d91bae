package qa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

func segment(id string, roles ...string) types.Segment {
	s := types.Segment{ID: id, Start: 0, End: 1}
	for _, r := range roles {
		s.Content = append(s.Content, types.Line{Role: r})
	}
	return s
}

func TestRulesFromConfig(t *testing.T) {
	cfg := labelconfig.Default()
	cfg.Global.RequireRole = true
	cfg.SegmentFields = []labelconfig.Field{{Name: "topic", Required: true}, {Name: "note"}}
	cfg.LineFields = []labelconfig.Field{{Name: "emotion", Required: true}}

	r := RulesFromConfig(cfg)
	assert.True(t, r.RequireRole)
	assert.Equal(t, []string{"topic"}, r.SegmentFields)
	assert.Equal(t, []string{"emotion"}, r.LineFields)
}

func TestUnfinished(t *testing.T) {
	rules := Rules{RequireRole: true, SegmentFields: []string{"topic"}}

	s := segment("a", "A")
	assert.True(t, Unfinished(s, rules))

	s.Attributes = map[string]any{"topic": "news"}
	assert.False(t, Unfinished(s, rules))

	s.Content = append(s.Content, types.Line{Role: types.RoleNone})
	assert.Equal(t, []string{"line 1 has no role"}, Missing(s, rules))

	assert.True(t, Unfinished(types.Segment{ID: "z", Start: 2, End: 2}, Rules{}))
}

func TestAcceptReject(t *testing.T) {
	rules := Rules{RequireRole: true}

	_, err := Accept(segment("a", types.RoleNone), rules, "qa1")
	assert.ErrorIs(t, err, ErrUnfinished)

	r, err := Accept(segment("a", "A"), rules, "qa1")
	require.NoError(t, err)
	require.NotNil(t, r.QAChecked)
	assert.True(t, *r.QAChecked)
	assert.Equal(t, "qa1", r.QAWorkerName)

	_, err = Reject(segment("a", "A"), rules, "qa1", " ", "")
	assert.ErrorIs(t, err, ErrReasonRequired)

	r, err = Reject(segment("a", "A"), rules, "qa1", "wrong speaker", "see 0:03")
	require.NoError(t, err)
	assert.False(t, *r.QAChecked)
	assert.Equal(t, "wrong speaker", r.QAReason)
}

func TestReviewRoundTrip(t *testing.T) {
	yes := true
	results := [][]types.Segment{
		{segment("a", "A"), segment("b", "A", "B")},
		{segment("c", "A")},
	}
	reviews := types.Reviews{
		{"b": {QAChecked: &yes, QAWorkerName: "qa1"}, "gone": {QAReason: "x"}},
	}

	MergeReviews(results, reviews)
	assert.Nil(t, results[0][0].QAChecked)
	require.NotNil(t, results[0][1].QAChecked)
	assert.Equal(t, "qa1", results[0][1].QAWorkerName)

	out := ExtractReviews(results)
	require.Len(t, out, 2)
	assert.Len(t, out[0], 1)
	assert.Equal(t, "A,B", out[0]["b"].Label)
	assert.Empty(t, out[1])

	StripReviews(results)
	assert.Nil(t, results[0][1].QAChecked)
	assert.Empty(t, results[0][1].QAWorkerName)
}

func TestValidateSubmitAggregates(t *testing.T) {
	no := false
	rejected := segment("b", "A")
	rejected.QAChecked = &no

	results := [][]types.Segment{
		{segment("a", types.RoleNone), rejected},
		{segment("c", "A")},
	}

	err := ValidateSubmit(results, Rules{RequireRole: true})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Problems, 2)
	assert.Equal(t, "a", verr.Problems[0].SegmentID)
	assert.Equal(t, "b", verr.Problems[1].SegmentID)
	assert.Contains(t, err.Error(), "2 problems")

	assert.NoError(t, ValidateSubmit(results[1:], Rules{RequireRole: true}))
	assert.Equal(t, 1, CountUnfinished(results[0], Rules{RequireRole: true}))
}
