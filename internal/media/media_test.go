package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

func writeWAV(t *testing.T, path string, sampleRate, samples int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, samples),
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestValidateMediaFormat(t *testing.T) {
	assert.True(t, ValidateMediaFormat("talk.MP3"))
	assert.True(t, ValidateMediaFormat("clip.mp4"))
	assert.False(t, ValidateMediaFormat("notes.txt"))
	assert.True(t, ValidateMediaFormat("https://cdn.example.com/a.mp3?sig=abc"))
	assert.False(t, ValidateMediaFormat("https://cdn.example.com/notes.txt?x=a.mp3"))
}

func TestWAVDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 8000, 16000)

	secs, err := WAVDuration(path)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, secs, 0.01)

	p := NewProber(t.TempDir())
	secs, err = p.Duration(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, secs, 0.01)

	_, err = p.Duration(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// fakeFFprobe installs a script that records its last argument and prints a duration
func fakeFFprobe(t *testing.T) (script, argFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for ffprobe")
	}
	dir := t.TempDir()
	script = filepath.Join(dir, "ffprobe")
	argFile = filepath.Join(dir, "arg")
	body := "#!/bin/sh\nfor a; do last=$a; done\nprintf '%s' \"$last\" > " + argFile + "\necho 42.5\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))
	return script, argFile
}

func TestDurationOfRemoteMedia(t *testing.T) {
	script, argFile := fakeFFprobe(t)
	p := NewProber(t.TempDir())
	p.FFprobe = script
	p.FFmpeg = filepath.Join(t.TempDir(), "missing-ffmpeg")

	for _, u := range []string{
		"https://cdn.example.com/a.wav",
		"https://cdn.example.com/a.mp3?sig=abc",
	} {
		secs, err := p.Duration(context.Background(), u)
		require.NoError(t, err, u)
		assert.Equal(t, 42.5, secs)

		got, err := os.ReadFile(argFile)
		require.NoError(t, err)
		assert.Equal(t, u, string(got))
	}

	_, err := p.Duration(context.Background(), "https://cdn.example.com/a.txt?f=.mp3")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseProbeOutput(t *testing.T) {
	secs, err := parseProbeOutput("12.480000\n")
	require.NoError(t, err)
	assert.Equal(t, 12.48, secs)

	_, err = parseProbeOutput("N/A")
	assert.Error(t, err)
}

func TestImportWhisperWithSpeakers(t *testing.T) {
	data := []byte(`{"text":"hi there. bye","language":"en","segments":[
		{"id":0,"start":0.0,"end":2.5,"text":" hi there."},
		{"id":1,"start":2.5,"end":4.0,"text":" bye","speaker":"SPK_2"}]}`)

	out, err := ParseWhisper(data)
	require.NoError(t, err)
	assert.Equal(t, 4.0, out.Duration())

	raw := ImportWhisper(out, ImportOptions{Speakers: map[string]string{"SPK_2": "B"}, LanguageAttribute: "lang"})
	require.Len(t, raw, 2)
	assert.Equal(t, []types.Line{{Role: types.RoleNone, Text: "hi there."}}, raw[0].Content)
	assert.Equal(t, "B", raw[1].Content[0].Role)
	assert.Equal(t, "en", raw[0].Attributes["lang"])

	d, err := ParseDiarization([]byte(`{"speakers":[{"speaker_id":"s1","start":0,"end":2},{"speaker_id":"s2","start":2,"end":4}]}`))
	require.NoError(t, err)
	n := AssignSpeakers(raw, d, map[string]string{"s1": "A"})
	assert.Equal(t, 1, n)
	assert.Equal(t, "A", raw[0].Content[0].Role)
	assert.Equal(t, "B", raw[1].Content[0].Role)
}
