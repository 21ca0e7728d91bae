package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codebuildervaibhav/segment-annotator/internal/jobproxy"
	"github.com/codebuildervaibhav/segment-annotator/internal/qa"
	"github.com/codebuildervaibhav/segment-annotator/internal/queue"
	"github.com/codebuildervaibhav/segment-annotator/internal/stats"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// SaveOutcome reports a successful save
type SaveOutcome struct {
	Ack        jobproxy.SaveAck               `json:"ack"`
	Submitted  bool                           `json:"submitted"`
	Findings   []types.ScriptValidationResult `json:"findings,omitempty"`
	Statistics *types.Statistics              `json:"statistics"`
	ExportID   string                         `json:"exportId,omitempty"`
}

type snapshot struct {
	results  [][]types.Segment
	audios   []types.Track
	versions []uint64
}

func (s *Session) snapshot() snapshot {
	snap := snapshot{
		results:  make([][]types.Segment, len(s.tracks)),
		audios:   make([]types.Track, len(s.tracks)),
		versions: make([]uint64, len(s.tracks)),
	}
	for i, t := range s.tracks {
		snap.results[i] = t.editor.Segments()
		snap.audios[i] = t.info
		snap.versions[i] = t.editor.Version()
	}
	return snap
}

// Save persists the current state. A submit is validated first and any
// problem blocks it with a *qa.ValidationError; a draft save is never blocked.
// Failures leave the session untouched so the caller can retry.
func (s *Session) Save(ctx context.Context, submit bool) (*SaveOutcome, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if err := s.usable(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snap := s.snapshot()
	s.lastActive = s.now()
	s.mu.Unlock()

	findings, err := s.proxy.ValidateContent(ctx, snap.results)
	if err != nil {
		return nil, fmt.Errorf("content validation failed: %w", err)
	}

	if submit {
		if err := s.validateSubmit(snap.results, findings); err != nil {
			s.log.Infow("submit blocked", "error", err)
			return nil, err
		}
	}

	st := stats.Compute(snap.results, s.rules)
	payload, reviews, err := s.payload(snap, st)
	if err != nil {
		return nil, err
	}

	ack, err := s.proxy.SaveResult(ctx, payload, submit)
	if err != nil {
		s.log.Warnw("save failed", "submit", submit, "error", err)
		return nil, fmt.Errorf("failed to save result: %w", err)
	}
	if reviews != nil {
		if err := s.proxy.SaveReviews(ctx, reviews, submit); err != nil {
			s.log.Warnw("review save failed", "submit", submit, "error", err)
			return nil, fmt.Errorf("failed to save reviews: %w", err)
		}
	}
	if err := s.proxy.SaveResultStat(ctx, st); err != nil {
		s.log.Warnw("statistics save failed", "error", err)
	}

	s.mu.Lock()
	for i, t := range s.tracks {
		t.saved = snap.versions[i]
	}
	s.lastAck = &ack
	s.mu.Unlock()

	out := &SaveOutcome{Ack: ack, Submitted: submit, Findings: findings, Statistics: st}
	if submit && s.exports != nil {
		job := queue.NewExportJob(s.task.ID, s.task.Name, payload)
		if err := s.exports.Enqueue(job); err != nil {
			s.log.Warnw("export not queued", "error", err)
		} else {
			out.ExportID = job.ID
		}
	}
	s.log.Infow("saved", "submit", submit, "version", ack.Version, "segments", st.TotalSegments)
	return out, nil
}

// validateSubmit aggregates review rule problems and content errors
func (s *Session) validateSubmit(results [][]types.Segment, findings []types.ScriptValidationResult) error {
	verr := &qa.ValidationError{}
	if err := qa.ValidateSubmit(results, s.rules); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	for _, f := range findings {
		if f.Level != types.LevelError {
			continue
		}
		verr.Problems = append(verr.Problems, qa.Problem{
			Track:     f.Track,
			SegmentID: f.SegmentID,
			Message:   fmt.Sprintf("line %d: %s", f.Line, f.Message),
		})
	}
	if len(verr.Problems) == 0 {
		return nil
	}
	return verr
}

func (s *Session) payload(snap snapshot, st *types.Statistics) (*types.ResultPayload, types.Reviews, error) {
	template, err := json.Marshal(s.task.Template)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode template: %w", err)
	}

	keyAttr := s.task.KeyAttribute
	if keyAttr == "" {
		keyAttr = s.cfg.Global.KeyAttribute
	}

	p := &types.ResultPayload{
		Results:        snap.results,
		Audios:         snap.audios,
		KeyAttribute:   keyAttr,
		AuditID:        s.auditID,
		Statistics:     st,
		TemplateConfig: template,
	}
	for i, a := range snap.audios {
		if a.Ready {
			p.ValidAudios = append(p.ValidAudios, i)
		} else {
			p.InvalidAudios = append(p.InvalidAudios, i)
		}
	}

	if !s.reviewEnabled() {
		return p, nil, nil
	}
	reviews := qa.ExtractReviews(snap.results)
	qa.StripReviews(p.Results)
	return p, reviews, nil
}
