package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

func colorOf(role string) string {
	if role == "A" {
		return "#f00"
	}
	return "transparent"
}

func twoSegments() []types.Segment {
	return []types.Segment{
		{ID: "s1", Start: 0, End: 4, Content: []types.Line{{Role: "A"}}},
		{ID: "s2", Start: 4, End: 10, Content: []types.Line{{Role: "A"}, {Role: "none"}}},
	}
}

func TestBuildContinuous(t *testing.T) {
	scene := Build(twoSegments(), types.ModeContinuous, colorOf)

	require.Len(t, scene.Anchors, 1)
	assert.Equal(t, Anchor{ID: "s2", Position: 4}, scene.Anchors[0])
	require.Len(t, scene.Regions, 3)
	assert.Equal(t, "s2/1", scene.Regions[2].ID)
	assert.Equal(t, "#f00", scene.Regions[0].Color)
}

func TestBuildOverlapHasNoAnchors(t *testing.T) {
	scene := Build(twoSegments(), types.ModeOverlap, colorOf)

	assert.Empty(t, scene.Anchors)
	require.Len(t, scene.Regions, 2)
	assert.Equal(t, "s1", scene.Regions[0].ID)
}

func TestDiff(t *testing.T) {
	old := Build([]types.Segment{{ID: "s1", Start: 0, End: 10, Content: []types.Line{{Role: "A"}}}}, types.ModeContinuous, colorOf)
	next := Build(twoSegments(), types.ModeContinuous, colorOf)

	intents := Diff(old, next)

	kinds := make([]IntentKind, len(intents))
	for i, in := range intents {
		kinds[i] = in.Kind
	}
	assert.Equal(t, []IntentKind{IntentUpdateRegion, IntentAddRegion, IntentAddRegion, IntentAddAnchor}, kinds)

	back := Diff(next, old)
	kinds = kinds[:0]
	for _, in := range back {
		kinds = append(kinds, in.Kind)
	}
	assert.Equal(t, []IntentKind{IntentRemoveRegion, IntentRemoveRegion, IntentRemoveAnchor, IntentUpdateRegion}, kinds)

	assert.Empty(t, Diff(next, next))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Render(1, Redraw(Scene{})))
	batches := r.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, 1, batches[0].Track)
	assert.Equal(t, IntentRedraw, batches[0].Intents[0].Kind)
}
