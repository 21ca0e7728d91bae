package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/segment-annotator/internal/jobproxy"
)

// ErrNotFound is returned for an unknown session id
var ErrNotFound = errors.New("session not found")

// ProxyFactory returns the job proxy of a task
type ProxyFactory func(taskID string) jobproxy.JobProxy

type entry struct {
	session   *Session
	autosaver *Autosaver
}

// Manager owns the open sessions. One task has at most one open session.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	byTask   map[string]string

	proxies  ProxyFactory
	opts     Options
	autosave time.Duration
	log      *zap.SugaredLogger
}

// NewManager creates a manager. opts is the template for every opened
// session; its ID is ignored.
func NewManager(proxies ProxyFactory, opts Options, autosave time.Duration) *Manager {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	return &Manager{
		sessions: make(map[string]*entry),
		byTask:   make(map[string]string),
		proxies:  proxies,
		opts:     opts,
		autosave: autosave,
		log:      opts.Log,
	}
}

// Open returns the open session of a task, opening it if needed. A failed
// session is replaced, which is how a user reloads after a data error.
func (m *Manager) Open(ctx context.Context, taskID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byTask[taskID]; ok {
		e := m.sessions[id]
		if st, _ := e.session.State(); st == StateReady {
			e.session.touch()
			return e.session, nil
		}
		_ = m.shutdown(ctx, m.unlinkLocked(id))
	}

	opts := m.opts
	opts.ID = ""
	s, err := Open(ctx, m.proxies(taskID), opts)
	if err != nil {
		return nil, err
	}

	e := &entry{session: s}
	if st, _ := s.State(); st == StateReady {
		e.autosaver = NewAutosaver(s, m.autosave)
		e.autosaver.Start()
	}
	m.sessions[s.ID()] = e
	m.byTask[taskID] = s.ID()
	return s, nil
}

// Get returns an open session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.session, nil
}

// Close saves a dirty session as a draft and closes it. The session is
// closed even when the final save fails.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	var e *entry
	if ok {
		e = m.unlinkLocked(id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return m.shutdown(ctx, e)
}

func (m *Manager) unlinkLocked(id string) *entry {
	e := m.sessions[id]
	delete(m.sessions, id)
	if m.byTask[e.session.TaskID()] == id {
		delete(m.byTask, e.session.TaskID())
	}
	return e
}

func (m *Manager) shutdown(ctx context.Context, e *entry) error {
	if e.autosaver != nil {
		e.autosaver.Stop()
	}
	var err error
	if st, _ := e.session.State(); st == StateReady && e.session.Dirty() {
		_, err = e.session.Save(ctx, false)
	}
	e.session.close()
	m.log.Infow("session closed", "session", e.session.ID(), "task", e.session.TaskID())
	return err
}

// EvictIdle closes every session unused for longer than maxIdle and returns their ids
func (m *Manager) EvictIdle(ctx context.Context, maxIdle time.Duration) []string {
	now := m.opts.clock()

	m.mu.Lock()
	var idle []*entry
	for id, e := range m.sessions {
		if now.Sub(e.session.LastActive()) > maxIdle {
			idle = append(idle, m.unlinkLocked(id))
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(idle))
	for _, e := range idle {
		if err := m.shutdown(ctx, e); err != nil {
			m.log.Warnw("final save of idle session failed", "session", e.session.ID(), "error", err)
		}
		ids = append(ids, e.session.ID())
	}
	sort.Strings(ids)
	return ids
}

// CloseAll closes every session, e.g. on shutdown
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		all = append(all, e)
	}
	m.sessions = make(map[string]*entry)
	m.byTask = make(map[string]string)
	m.mu.Unlock()

	for _, e := range all {
		if err := m.shutdown(ctx, e); err != nil {
			m.log.Warnw("final save failed", "session", e.session.ID(), "error", err)
		}
	}
}

// Len returns the number of open sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (o Options) clock() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}
