package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/segment-annotator/internal/jobproxy"
	"github.com/codebuildervaibhav/segment-annotator/internal/keymap"
	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
	"github.com/codebuildervaibhav/segment-annotator/internal/qa"
	"github.com/codebuildervaibhav/segment-annotator/internal/queue"
	"github.com/codebuildervaibhav/segment-annotator/internal/render"
	"github.com/codebuildervaibhav/segment-annotator/internal/segment"
	"github.com/codebuildervaibhav/segment-annotator/internal/storage"
	"github.com/codebuildervaibhav/segment-annotator/internal/types"
)

// State is the lifecycle state of a session
type State string

const (
	StateReady  State = "ready"
	StateFailed State = "failed"
	StateClosed State = "closed"
)

var (
	// ErrSessionFailed blocks edits on a session whose data could not be loaded
	ErrSessionFailed = errors.New("session failed to load")
	// ErrSessionClosed is returned for calls on a closed session
	ErrSessionClosed = errors.New("session is closed")
	// ErrBadTrack is returned for a track index that does not exist
	ErrBadTrack = errors.New("no such track")
	// ErrReviewDisabled is returned for QA operations on a task without review
	ErrReviewDisabled = errors.New("review is not enabled for this task")
)

// Prober reads the duration of a media file
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// ExportQueue accepts submitted results for export
type ExportQueue interface {
	Enqueue(job *queue.ExportJob) error
}

// Options configure Open
type Options struct {
	ID           string
	Prober       Prober
	MediaRoot    string
	HistoryLimit int
	Exports      ExportQueue
	Log          *zap.SugaredLogger
	NewID        func() string
	Now          func() time.Time
	// RenderBuffer bounds the batches queued per renderer, DefaultRenderBuffer if zero
	RenderBuffer int
}

type track struct {
	info   types.Track
	editor *segment.Editor
	report *segment.Report
	cursor float64
	saved  uint64
}

// Session is one annotator's editing session over a task. All methods are
// safe for concurrent use; edits are serialized.
type Session struct {
	mu     sync.Mutex
	saveMu sync.Mutex

	id      string
	proxy   jobproxy.JobProxy
	task    *storage.Task
	cfg     *labelconfig.Config
	keys    *keymap.Keymap
	focus   *keymap.Focus
	rules   qa.Rules
	notices []labelconfig.Notice
	auditID string
	tracks  []*track

	state   State
	failure error

	lastAck    *jobproxy.SaveAck
	lastActive time.Time

	renderers    map[int]*outbox
	nextRef      int
	renderBuffer int

	exports ExportQueue
	log     *zap.SugaredLogger
	now     func() time.Time
}

// Open loads a task through proxy and builds one editor per track. It only
// fails when the task itself cannot be read; bad result data leaves the
// session in the failed state, which blocks edits until it is reopened.
func Open(ctx context.Context, proxy jobproxy.JobProxy, opts Options) (*Session, error) {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RenderBuffer <= 0 {
		opts.RenderBuffer = DefaultRenderBuffer
	}

	task, err := proxy.Task(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	cfg := labelconfig.Parse(task.Template)
	keys, keyNotices := keymap.FromConfig(cfg)

	s := &Session{
		id:           opts.ID,
		proxy:        proxy,
		task:         task,
		cfg:          cfg,
		keys:         keys,
		focus:        keymap.NewFocus(),
		rules:        qa.RulesFromConfig(cfg),
		notices:      append(append([]labelconfig.Notice(nil), cfg.Notices...), keyNotices...),
		state:        StateReady,
		renderers:    make(map[int]*outbox),
		renderBuffer: opts.RenderBuffer,
		exports:      opts.Exports,
		log:          opts.Log.With("session", opts.ID, "task", task.ID),
		now:          opts.Now,
		lastActive:   opts.Now(),
	}
	for _, n := range s.notices {
		s.log.Warnw("configuration notice", "source", n.Source, "message", n.Message)
	}

	if err := s.load(ctx, opts); err != nil {
		s.state = StateFailed
		s.failure = err
		s.log.Errorw("session failed to load", "error", err)
		return s, nil
	}
	s.log.Infow("session opened", "tracks", len(s.tracks), "mode", cfg.Global.Mode)
	return s, nil
}

func (s *Session) load(ctx context.Context, opts Options) error {
	loaded, err := s.proxy.LoadResult(ctx)
	switch {
	case errors.Is(err, jobproxy.ErrNoResult):
		loaded = &types.LoadedResult{}
	case err != nil:
		return fmt.Errorf("failed to load result: %w", err)
	}
	s.auditID = loaded.AuditID

	audios := loaded.Audios
	if len(audios) == 0 {
		audios = s.task.Audios
	}
	if len(loaded.Results) > len(audios) {
		return fmt.Errorf("result has %d tracks but the task has %d media files", len(loaded.Results), len(audios))
	}

	var reviews types.Reviews
	if s.reviewEnabled() {
		if reviews, err = s.proxy.LoadReviews(ctx); err != nil {
			return fmt.Errorf("failed to load reviews: %w", err)
		}
	}

	results := make([][]types.Segment, len(audios))
	reports := make([]*segment.Report, len(audios))
	for i := range audios {
		info := audios[i]
		if info.Duration <= 0 {
			d, err := s.probe(ctx, opts, info.URL)
			if err != nil {
				return fmt.Errorf("track %d: %w", i, err)
			}
			info.Duration = d
		}
		info.Ready = true
		audios[i] = info

		var raw []types.RawSegment
		if i < len(loaded.Results) {
			raw = loaded.Results[i]
		}
		segs, report, err := segment.ParseSegments(raw, segment.Options{
			Duration: info.Duration,
			Config:   s.cfg,
			NewID:    opts.NewID,
		})
		if err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
		s.logReport(i, report)
		results[i] = segs
		reports[i] = report
	}
	qa.MergeReviews(results, reviews)

	for i, segs := range results {
		ed := segment.NewEditor(segs, segment.EditorOptions{
			Bounds: segment.Bounds{
				Mode:      s.cfg.Global.Mode,
				Duration:  audios[i].Duration,
				MinLength: s.cfg.Global.MinSegmentLength,
				Tolerance: s.cfg.Global.OverlapTolerance,
			},
			Config:       s.cfg,
			HistoryLimit: opts.HistoryLimit,
			NewID:        opts.NewID,
		})
		s.tracks = append(s.tracks, &track{info: audios[i], editor: ed, report: reports[i], saved: ed.Version()})
	}
	return nil
}

func (s *Session) probe(ctx context.Context, opts Options, url string) (float64, error) {
	if opts.Prober == nil {
		return 0, fmt.Errorf("media %s has no duration and no prober is configured", url)
	}
	path := url
	if !strings.Contains(url, "://") && !filepath.IsAbs(url) && opts.MediaRoot != "" {
		path = filepath.Join(opts.MediaRoot, url)
	}
	d, err := opts.Prober.Duration(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to probe %s: %w", url, err)
	}
	s.log.Infow("probed media duration", "url", url, "duration", d)
	return d, nil
}

func (s *Session) logReport(trackIdx int, r *segment.Report) {
	for _, k := range r.Keys {
		if k.Kept {
			s.log.Infow("kept unconfigured key", "track", trackIdx, "segment", k.SegmentID, "kind", k.Kind, "key", k.Key)
		} else {
			s.log.Warnw("stripped unconfigured key", "track", trackIdx, "segment", k.SegmentID, "kind", k.Kind, "key", k.Key)
		}
	}
	if r.Changed() {
		s.log.Infow("normalized track",
			"track", trackIdx,
			"dropped", len(r.Dropped),
			"clipped", len(r.Clipped),
			"merged", len(r.Merged),
			"synthesized", r.Synthesized,
			"reassigned", len(r.Reassigned))
	}
}

func (s *Session) reviewEnabled() bool {
	return s.task.ReviewEnabled || s.task.ToolMode == types.ToolModeReview || s.task.ToolMode == types.ToolModeAudit
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// TaskID returns the id of the task being edited
func (s *Session) TaskID() string { return s.task.ID }

// State returns the lifecycle state and, when failed, the load error
func (s *Session) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.failure
}

// Config returns the parsed template configuration
func (s *Session) Config() *labelconfig.Config { return s.cfg }

// Keymap returns the resolved shortcuts
func (s *Session) Keymap() *keymap.Keymap { return s.keys }

// Focus returns the input focus context of this session
func (s *Session) Focus() *keymap.Focus { return s.focus }

// LastActive is when the session was last used
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

// Dirty reports whether any track changed since the last successful save
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

func (s *Session) dirtyLocked() bool {
	for _, t := range s.tracks {
		if t.editor.Version() != t.saved {
			return true
		}
	}
	return false
}

// Attach registers a renderer that receives the intents of every applied
// edit. Delivery runs on its own goroutine; a renderer that fails or falls
// more than the render buffer behind is detached. The returned func detaches it.
func (s *Session) Attach(r render.Renderer) (detach func()) {
	o := newOutbox(r, s.renderBuffer)

	s.mu.Lock()
	ref := s.nextRef
	s.nextRef++
	s.renderers[ref] = o
	s.mu.Unlock()

	go o.run(func(err error) {
		s.log.Warnw("renderer failed, detaching", "ref", ref, "error", err)
		s.mu.Lock()
		s.dropRendererLocked(ref)
		s.mu.Unlock()
	})

	return func() {
		s.mu.Lock()
		s.dropRendererLocked(ref)
		s.mu.Unlock()
	}
}

func (s *Session) dropRendererLocked(ref int) {
	if o, ok := s.renderers[ref]; ok {
		delete(s.renderers, ref)
		o.stop()
	}
}

// emit queues intents for every attached renderer; called with s.mu held
func (s *Session) emit(trackIdx int, intents []render.Intent) {
	if len(intents) == 0 {
		return
	}
	for ref, o := range s.renderers {
		if !o.offer(renderBatch{track: trackIdx, intents: intents}) {
			s.log.Warnw("renderer is not keeping up, detaching", "ref", ref)
			s.dropRendererLocked(ref)
		}
	}
}

// usable checks the session can be edited; called with s.mu held
func (s *Session) usable() error {
	switch s.state {
	case StateFailed:
		return fmt.Errorf("%w: %v", ErrSessionFailed, s.failure)
	case StateClosed:
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) trackAt(i int) (*track, error) {
	if i < 0 || i >= len(s.tracks) {
		return nil, fmt.Errorf("track %d: %w", i, ErrBadTrack)
	}
	return s.tracks[i], nil
}

// TrackView is the state of one track as shown to the client
type TrackView struct {
	Index      int               `json:"index"`
	Track      types.Track       `json:"track"`
	Segments   []types.Segment   `json:"segments"`
	Scene      render.Scene      `json:"scene"`
	Selection  segment.Selection `json:"selection"`
	Report     *segment.Report   `json:"report,omitempty"`
	Undo       int               `json:"undo"`
	Redo       int               `json:"redo"`
	Unfinished int               `json:"unfinished"`
}

// View is a snapshot of the whole session
type View struct {
	ID        string                    `json:"id"`
	TaskID    string                    `json:"taskId"`
	Name      string                    `json:"name"`
	ToolMode  string                    `json:"toolMode"`
	State     State                     `json:"state"`
	Error     string                    `json:"error,omitempty"`
	Dirty     bool                      `json:"dirty"`
	Review    bool                      `json:"review"`
	Notices   []labelconfig.Notice      `json:"notices,omitempty"`
	Config    *labelconfig.Config       `json:"config"`
	Shortcuts map[string]keymap.Binding `json:"shortcuts"`
	LastSaved *jobproxy.SaveAck         `json:"lastSaved,omitempty"`
	Tracks    []TrackView               `json:"tracks"`
}

// View returns a snapshot of the session
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:        s.id,
		TaskID:    s.task.ID,
		Name:      s.task.Name,
		ToolMode:  s.task.ToolMode,
		State:     s.state,
		Dirty:     s.dirtyLocked(),
		Review:    s.reviewEnabled(),
		Notices:   s.notices,
		Config:    s.cfg,
		Shortcuts: s.keys.Chords(),
		LastSaved: s.lastAck,
	}
	if s.failure != nil {
		v.Error = s.failure.Error()
	}
	for i, t := range s.tracks {
		undo, redo := t.editor.HistoryDepth()
		segs := t.editor.Segments()
		v.Tracks = append(v.Tracks, TrackView{
			Index:      i,
			Track:      t.info,
			Segments:   segs,
			Scene:      t.editor.Scene(),
			Selection:  t.editor.Selection(),
			Report:     t.report,
			Undo:       undo,
			Redo:       redo,
			Unfinished: qa.CountUnfinished(segs, s.rules),
		})
	}
	return v
}

// Segments returns the current segments of one track
func (s *Session) Segments(trackIdx int) ([]types.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.trackAt(trackIdx)
	if err != nil {
		return nil, err
	}
	return t.editor.Segments(), nil
}

// Import replaces a track's segments with pre-annotated raw segments, e.g.
// from a speech recognizer. History of that track is reset.
func (s *Session) Import(trackIdx int, raw []types.RawSegment) (*segment.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	t, err := s.trackAt(trackIdx)
	if err != nil {
		return nil, err
	}

	segs, report, err := segment.ParseSegments(raw, segment.Options{
		Duration: t.info.Duration,
		Config:   s.cfg,
	})
	if err != nil {
		return nil, err
	}
	s.logReport(trackIdx, report)

	res := t.editor.Replace(segs)
	t.report = report
	s.lastActive = s.now()
	s.emit(trackIdx, res.Intents)
	s.log.Infow("imported segments", "track", trackIdx, "segments", len(segs))
	return report, nil
}

// close marks the session closed and drops its renderers
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed {
		s.state = StateClosed
	}
	for ref := range s.renderers {
		s.dropRendererLocked(ref)
	}
}
