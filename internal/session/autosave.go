package session

import (
	"context"
	"sync"
	"time"
)

// DefaultAutosaveInterval is how often a dirty session is re-saved
const DefaultAutosaveInterval = 2 * time.Minute

// Autosaver saves a session as a draft on a fixed interval, only when it changed
type Autosaver struct {
	session  *Session
	interval time.Duration
	timeout  time.Duration
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewAutosaver creates an autosaver for s
func NewAutosaver(s *Session, interval time.Duration) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{
		session:  s,
		interval: interval,
		timeout:  30 * time.Second,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the autosave loop
func (a *Autosaver) Start() {
	ticker := time.NewTicker(a.interval)

	go func() {
		defer close(a.done)
		for {
			select {
			case <-ticker.C:
				a.tick()
			case <-a.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	a.session.log.Debugw("autosave started", "interval", a.interval)
}

// Stop ends the loop and waits for a running save to finish
func (a *Autosaver) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		<-a.done
	})
}

func (a *Autosaver) tick() {
	if st, _ := a.session.State(); st != StateReady || !a.session.Dirty() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if _, err := a.session.Save(ctx, false); err != nil {
		a.session.log.Warnw("autosave failed", "error", err)
	}
}
