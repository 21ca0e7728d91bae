package keymap

import "sync"

// Focus tracks which input scopes currently own the keyboard. While any
// text-entry scope holds focus, shortcuts are suppressed.
type Focus struct {
	mu     sync.Mutex
	scopes map[string]int
}

// NewFocus returns an empty focus context
func NewFocus() *Focus {
	return &Focus{scopes: make(map[string]int)}
}

// Acquire marks scope as focused and returns the matching release. Scopes
// nest: a scope stays focused until every acquire has been released.
func (f *Focus) Acquire(scope string) (release func()) {
	f.mu.Lock()
	f.scopes[scope]++
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { f.Release(scope) })
	}
}

// Release drops one hold on scope
func (f *Focus) Release(scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scopes[scope] <= 1 {
		delete(f.scopes, scope)
		return
	}
	f.scopes[scope]--
}

// Suppressed reports whether shortcuts are currently disabled
func (f *Focus) Suppressed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scopes) > 0
}

// Scopes returns the focused scopes
func (f *Focus) Scopes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.scopes))
	for s := range f.scopes {
		out = append(out, s)
	}
	return out
}

// Dispatch resolves chord unless focus suppresses shortcuts
func (k *Keymap) Dispatch(f *Focus, chord string) (Binding, bool) {
	if f != nil && f.Suppressed() {
		return Binding{}, false
	}
	return k.Resolve(chord)
}
