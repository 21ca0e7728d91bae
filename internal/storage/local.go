package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// LocalStorage writes exported results to the local filesystem
type LocalStorage struct {
	outputDir string
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// SaveExport writes the result as JSON plus a readable transcript and
// returns the JSON path
func (ls *LocalStorage) SaveExport(requestName string, payload *types.ResultPayload) (string, error) {
	// Dated directory structure: outputs/2025/01/23/
	now := ls.now()
	dateDir := filepath.Join(ls.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	// 20250123_143022_podcast_episode
	timestamp := now.Format("20060102_150405")
	baseFilename := fmt.Sprintf("%s_%s", timestamp, sanitizeFilename(requestName))

	jsonPath := filepath.Join(dateDir, baseFilename+".json")
	txtPath := filepath.Join(dateDir, baseFilename+".txt")

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save result: %w", err)
	}
	if err := os.WriteFile(txtPath, []byte(Transcript(payload)), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	return jsonPath, nil
}

// RemoveExport deletes an export written by SaveExport
func (ls *LocalStorage) RemoveExport(jsonPath string) error {
	txtPath := strings.TrimSuffix(jsonPath, ".json") + ".txt"
	for _, p := range []string{jsonPath, txtPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Transcript renders every non-empty line as "[start - end] role: text"
func Transcript(payload *types.ResultPayload) string {
	var b strings.Builder
	for track, segs := range payload.Results {
		if len(payload.Results) > 1 {
			fmt.Fprintf(&b, "# track %d\n", track+1)
		}
		for _, s := range segs {
			for _, l := range s.Content {
				if strings.TrimSpace(l.Text) == "" {
					continue
				}
				fmt.Fprintf(&b, "[%s - %s] %s: %s\n", clock(s.Start), clock(s.End), l.Role, l.Text)
			}
		}
	}
	return b.String()
}

func clock(secs float64) string {
	d := time.Duration(secs * float64(time.Second)).Round(time.Millisecond)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	ms := int(d/time.Millisecond) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// sanitizeFilename removes invalid characters from filename
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, c := range invalid {
		result = strings.ReplaceAll(result, c, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" {
		result = "result"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
