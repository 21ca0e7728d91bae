package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
)

func TestDefaultBindings(t *testing.T) {
	km := Default()

	cases := map[string]Action{
		" ":              ActionPlayPause,
		"S":              ActionSplit,
		"d":              ActionDoubleSplit,
		"Ctrl+Z":         ActionUndo,
		"control+y":      ActionRedo,
		"ctrl+Backspace": ActionClearAll,
		"ctrl+del":       ActionClearAll,
		",":              ActionStepBack,
		"ctrl+period":    ActionShiftForward,
	}
	for chord, want := range cases {
		b, ok := km.Resolve(chord)
		require.True(t, ok, chord)
		assert.Equal(t, want, b.Action, chord)
	}

	b, _ := km.Resolve("ctrl+delete")
	assert.True(t, b.Confirm)
	b, _ = km.Resolve("ctrl+,")
	assert.Equal(t, -StepSeconds, b.Delta)

	_, ok := km.Resolve("x")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("Shift+Ctrl+Z")
	require.NoError(t, err)
	assert.Equal(t, "ctrl+shift+z", got)

	got, err = Normalize("ctrl++")
	require.NoError(t, err)
	assert.Equal(t, "ctrl++", got)

	_, err = Normalize("ctrl+shift")
	assert.ErrorIs(t, err, ErrInvalidChord)
	_, err = Normalize("a+b")
	assert.ErrorIs(t, err, ErrInvalidChord)
}

func TestCustomBindings(t *testing.T) {
	km, err := New(map[string]string{"split": "x|ctrl+s"})
	require.NoError(t, err)

	b, ok := km.Resolve("x")
	require.True(t, ok)
	assert.Equal(t, ActionSplit, b.Action)
	_, ok = km.Resolve("s")
	assert.False(t, ok)

	_, err = New(map[string]string{"split": "d"})
	assert.ErrorIs(t, err, ErrDuplicateShortcut)

	_, err = New(map[string]string{"explode": "e"})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestFromConfigFallsBack(t *testing.T) {
	cfg := labelconfig.Default()
	cfg.Global.Shortcuts = map[string]string{"undo": "ctrl+y"}

	km, notices := FromConfig(cfg)
	require.Len(t, notices, 1)
	assert.Equal(t, labelconfig.SourceGlobal, notices[0].Source)

	b, ok := km.Resolve("ctrl+z")
	require.True(t, ok)
	assert.Equal(t, ActionUndo, b.Action)
}

func TestFocusSuppressesShortcuts(t *testing.T) {
	km := Default()
	f := NewFocus()

	_, ok := km.Dispatch(f, "s")
	assert.True(t, ok)

	release := f.Acquire("line-text")
	inner := f.Acquire("line-text")
	_, ok = km.Dispatch(f, "s")
	assert.False(t, ok)

	inner()
	inner()
	assert.True(t, f.Suppressed())

	release()
	assert.False(t, f.Suppressed())
	_, ok = km.Dispatch(f, "s")
	assert.True(t, ok)
}
