package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// ErrUnsupportedFormat is returned for files that are not audio or video
var ErrUnsupportedFormat = errors.New("unsupported media format")

var audioFormats = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma"}
var videoFormats = []string{".mp4", ".mov", ".mkv", ".avi", ".webm"}

// ValidateMediaFormat checks if the file extension is a supported audio or video format
func ValidateMediaFormat(filename string) bool {
	ext := mediaExt(filename)
	for _, format := range audioFormats {
		if ext == format {
			return true
		}
	}
	for _, format := range videoFormats {
		if ext == format {
			return true
		}
	}
	return false
}

func isRemote(path string) bool {
	return strings.Contains(path, "://")
}

// mediaExt returns the lowercased extension, ignoring any URL query or fragment
func mediaExt(path string) string {
	if isRemote(path) {
		if u, err := url.Parse(path); err == nil {
			path = u.Path
		}
	}
	return strings.ToLower(filepath.Ext(path))
}

// Prober reads media durations. The ffmpeg tools are only needed for
// formats other than WAV.
type Prober struct {
	FFprobe string
	FFmpeg  string
	TempDir string
}

// NewProber returns a prober using the ffmpeg tools on PATH
func NewProber(tempDir string) *Prober {
	return &Prober{FFprobe: "ffprobe", FFmpeg: "ffmpeg", TempDir: tempDir}
}

// Duration returns the length of a media file in seconds
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	if !ValidateMediaFormat(path) {
		return 0, fmt.Errorf("%s: %w", mediaExt(path), ErrUnsupportedFormat)
	}
	// the header shortcut needs a local file; URLs go to ffprobe as given
	if !isRemote(path) && mediaExt(path) == ".wav" {
		return WAVDuration(path)
	}

	secs, err := p.ffprobe(ctx, path)
	if err == nil {
		return secs, nil
	}

	// No usable ffprobe: convert and read the WAV header instead
	wavPath, convErr := p.ConvertToWAV(ctx, path)
	if convErr != nil {
		return 0, fmt.Errorf("probe %s: %v; convert: %w", path, err, convErr)
	}
	defer os.Remove(wavPath)
	return WAVDuration(wavPath)
}

func (p *Prober) ffprobe(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeOutput(string(output))
}

func parseProbeOutput(out string) (float64, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe output %q: %w", strings.TrimSpace(out), err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("ffprobe reported duration %v", secs)
	}
	return secs, nil
}

// ConvertToWAV converts any media file to a 16kHz mono WAV in the temp dir
func (p *Prober) ConvertToWAV(ctx context.Context, inputPath string) (string, error) {
	if err := os.MkdirAll(p.TempDir, 0755); err != nil {
		return "", err
	}
	outputPath := filepath.Join(p.TempDir, fmt.Sprintf("probe_%s.wav", uuid.New().String()))

	cmd := exec.CommandContext(ctx, p.FFmpeg,
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, string(output))
	}
	return outputPath, nil
}

// WAVDuration reads the duration from a WAV header
func WAVDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return 0, fmt.Errorf("%s: invalid wav file", path)
	}
	dur, err := d.Duration()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return dur.Seconds(), nil
}
