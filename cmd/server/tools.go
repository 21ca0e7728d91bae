package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/qa"
	"github.com/codebuildervaibhav/segment-annotator/internal/segment"
	"github.com/codebuildervaibhav/segment-annotator/internal/stats"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// resultFlags are shared by the offline result commands
type resultFlags struct {
	duration float64
	template string
}

func (f *resultFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.duration, "duration", 0, "track duration in seconds when the file has no audios")
	cmd.Flags().StringVar(&f.template, "template", "", "template JSON file with the base64 config documents")
}

// load reads a saved result file and normalizes every track
func (f *resultFlags) load(path string) (*labelconfig.Config, [][]types.Segment, []*segment.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	var loaded types.LoadedResult
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var doc labelconfig.Document
	if f.template != "" {
		data, err := os.ReadFile(f.template)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to parse template %s: %w", f.template, err)
		}
	}
	cfg := labelconfig.Parse(doc)

	results := make([][]types.Segment, len(loaded.Results))
	reports := make([]*segment.Report, len(loaded.Results))
	for i, raw := range loaded.Results {
		duration := f.duration
		if i < len(loaded.Audios) && loaded.Audios[i].Duration > 0 {
			duration = loaded.Audios[i].Duration
		}
		segs, report, err := segment.ParseSegments(raw, segment.Options{Duration: duration, Config: cfg})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("track %d: %w", i, err)
		}
		results[i] = segs
		reports[i] = report
	}
	return cfg, results, reports, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func normalizeCmd() *cobra.Command {
	var flags resultFlags

	cmd := &cobra.Command{
		Use:   "normalize [result.json]",
		Short: "Normalize a saved result and report what changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, results, reports, err := flags.load(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"results": results,
				"reports": reports,
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func statsCmd() *cobra.Command {
	var flags resultFlags

	cmd := &cobra.Command{
		Use:   "stats [result.json]",
		Short: "Print statistics and segment length quantiles of a saved result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, results, _, err := flags.load(args[0])
			if err != nil {
				return err
			}

			quantiles := make([][]float64, len(results))
			for i, segs := range results {
				quantiles[i] = stats.Quantiles(segs, 0.1, 0.5, 0.9)
			}
			return printJSON(cmd, map[string]any{
				"statistics": stats.Compute(results, qa.RulesFromConfig(cfg)),
				"quantiles":  quantiles,
			})
		},
	}
	flags.register(cmd)
	return cmd
}
