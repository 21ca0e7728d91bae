package labelconfig

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

func encode(t *testing.T, v any) string {
	t.Helper()
	s, err := Encode(v)
	require.NoError(t, err)
	return s
}

func TestParseFullDocument(t *testing.T) {
	doc := Document{
		TagGroup:      encode(t, []TagGroup{{Name: "mood", Tags: []string{"calm", "angry"}}}),
		LabelConfig:   encode(t, []Field{{Name: "emotion", Type: "select", TagGroup: "mood", Default: "calm"}}),
		SegmentConfig: encode(t, []Field{{Name: "noise", Type: "bool", Default: false, Required: true}}),
		StyleConfig:   encode(t, []Role{{Key: "host", Color: "#ff0000"}, {Key: "guest"}}),
		GlobalConfig:  encode(t, map[string]any{"minSegmentLength": 0.2, "mode": "overlap", "overlapTolerance": 0.5}),
	}

	cfg := Parse(doc)

	assert.Empty(t, cfg.Notices)
	require.Len(t, cfg.Ontology, 3)
	assert.Equal(t, types.RoleNone, cfg.Ontology[0].Key)
	assert.Equal(t, "host", cfg.Ontology[1].Key)
	assert.NotEmpty(t, cfg.Color("guest"))
	assert.Equal(t, NoneColor, cfg.Color("missing"))
	assert.True(t, cfg.HasRole("guest"))
	assert.Equal(t, []string{"calm", "angry"}, cfg.Options(cfg.LineFields[0]))
	assert.Equal(t, 0.2, cfg.Global.MinSegmentLength)
	assert.Equal(t, types.ModeOverlap, cfg.Global.Mode)
	assert.Equal(t, PolicyStrip, cfg.Global.AttributePolicy)
	assert.Equal(t, map[string]any{"noise": false}, cfg.SegmentDefaults())
	assert.True(t, cfg.RolesDeclared)
	assert.True(t, cfg.LineFieldsDeclared)
}

func TestParseDegradesMalformedDocuments(t *testing.T) {
	doc := Document{
		LabelConfig:  "%%%not-base64",
		StyleConfig:  base64.StdEncoding.EncodeToString([]byte("{broken")),
		GlobalConfig: encode(t, map[string]any{"mode": "sideways"}),
	}

	cfg := Parse(doc)

	require.Len(t, cfg.Notices, 3)
	assert.Equal(t, SourceLabel, cfg.Notices[0].Source)
	assert.Equal(t, []Role{{Key: types.RoleNone, Color: NoneColor}}, cfg.Ontology)
	assert.Equal(t, types.ModeContinuous, cfg.Global.Mode)
	assert.Equal(t, DefaultMinSegmentLength, cfg.Global.MinSegmentLength)
	assert.False(t, cfg.RolesDeclared)
	assert.False(t, cfg.LineFieldsDeclared)
	assert.Nil(t, cfg.SegmentDefaults())
	assert.Nil(t, cfg.LineDefaults())
}

func TestParseRejectsDuplicateAttributeNames(t *testing.T) {
	doc := Document{
		SegmentConfig: encode(t, []Field{{Name: "a"}, {Name: "a"}}),
	}

	cfg := Parse(doc)

	require.Len(t, cfg.Notices, 1)
	assert.Contains(t, cfg.Notices[0].Message, "duplicate attribute")
	assert.Empty(t, cfg.SegmentFields)
	assert.False(t, cfg.SegmentFieldsDeclared)
}

func TestParseUnknownTagGroup(t *testing.T) {
	doc := Document{
		LabelConfig: encode(t, []Field{{Name: "x", TagGroup: "nope"}}),
	}

	cfg := Parse(doc)

	require.Len(t, cfg.Notices, 1)
	assert.Contains(t, cfg.Notices[0].Message, "unknown tag group")
}
