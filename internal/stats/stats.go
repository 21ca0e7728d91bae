package stats

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/codebuildervaibhav/segment-annotator/internal/qa"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// Track summarizes one track. Segments that carry only a blank none line
// are not counted as annotated time.
func Track(segs []types.Segment, rules qa.Rules) types.TrackStatistics {
	ts := types.TrackStatistics{
		Segments:       len(segs),
		RoleLineCounts: make(map[string]int),
	}

	lengths := make([]float64, 0, len(segs))
	annotated := make([]float64, 0, len(segs))
	for _, s := range segs {
		lengths = append(lengths, s.Length())
		blank := true
		for _, l := range s.Content {
			ts.Lines++
			ts.RoleLineCounts[l.Role]++
			ts.WordCount += len(strings.Fields(l.Text))
			if l.Role != types.RoleNone || strings.TrimSpace(l.Text) != "" {
				blank = false
			}
		}
		if !blank {
			annotated = append(annotated, s.Length())
		}
		if qa.Unfinished(s, rules) {
			ts.UnfinishedCount++
		}
	}

	if len(annotated) > 0 {
		ts.AnnotatedSecs = round(floats.Sum(annotated))
	}
	if len(lengths) > 0 {
		mean, std := stat.MeanStdDev(lengths, nil)
		ts.MeanLength = round(mean)
		if len(lengths) > 1 {
			ts.StdDevLength = round(std)
		}
	}
	return ts
}

// Compute summarizes every track of a result
func Compute(results [][]types.Segment, rules qa.Rules) *types.Statistics {
	out := &types.Statistics{Tracks: make([]types.TrackStatistics, 0, len(results))}
	for _, segs := range results {
		ts := Track(segs, rules)
		out.Tracks = append(out.Tracks, ts)
		out.TotalSegments += ts.Segments
		out.TotalWords += ts.WordCount
	}
	return out
}

// Quantiles returns the segment-length quantiles at ps, used by the stats command
func Quantiles(segs []types.Segment, ps ...float64) []float64 {
	if len(segs) == 0 {
		return make([]float64, len(ps))
	}
	lengths := make([]float64, len(segs))
	for i, s := range segs {
		lengths[i] = s.Length()
	}
	floats.Argsort(lengths, make([]int, len(lengths)))
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = round(stat.Quantile(p, stat.Empirical, lengths, nil))
	}
	return out
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
