package keymap

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/codebuildervaibhav/segment-annotator/internal/labelconfig"
)

// Action is what a shortcut triggers
type Action string

const (
	ActionPlayPause    Action = "playPause"
	ActionSplit        Action = "split"
	ActionDoubleSplit  Action = "doubleSplit"
	ActionUndo         Action = "undo"
	ActionRedo         Action = "redo"
	ActionClearAll     Action = "clearAll"
	ActionStepBack     Action = "stepBack"
	ActionStepForward  Action = "stepForward"
	ActionShiftBack    Action = "shiftBack"
	ActionShiftForward Action = "shiftForward"
)

// StepSeconds is how far one step or batch-shift key press moves
const StepSeconds = 0.1

var (
	ErrDuplicateShortcut = errors.New("duplicate shortcut")
	ErrUnknownAction     = errors.New("unknown shortcut action")
	ErrInvalidChord      = errors.New("invalid key chord")
)

// Binding is a resolved shortcut
type Binding struct {
	Action  Action  `json:"action"`
	Delta   float64 `json:"delta,omitempty"`
	Confirm bool    `json:"confirm,omitempty"`
}

var defaults = map[Action][]string{
	ActionPlayPause:    {"space"},
	ActionSplit:        {"s"},
	ActionDoubleSplit:  {"d"},
	ActionUndo:         {"ctrl+z"},
	ActionRedo:         {"ctrl+y"},
	ActionClearAll:     {"ctrl+backspace", "ctrl+delete"},
	ActionStepBack:     {","},
	ActionStepForward:  {"."},
	ActionShiftBack:    {"ctrl+,"},
	ActionShiftForward: {"ctrl+."},
}

func bindingFor(a Action) Binding {
	b := Binding{Action: a}
	switch a {
	case ActionStepBack, ActionShiftBack:
		b.Delta = -StepSeconds
	case ActionStepForward, ActionShiftForward:
		b.Delta = StepSeconds
	case ActionClearAll:
		b.Confirm = true
	}
	return b
}

// Keymap resolves key chords to bindings
type Keymap struct {
	chords map[string]Binding
}

// Default returns the built-in shortcuts
func Default() *Keymap {
	km, err := New(nil)
	if err != nil {
		panic(err)
	}
	return km
}

// New builds a keymap from the defaults with custom overriding the chords of
// the actions it names. Custom values may list several chords separated by "|".
func New(custom map[string]string) (*Keymap, error) {
	table := make(map[Action][]string, len(defaults))
	for a, chords := range defaults {
		table[a] = chords
	}

	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a := Action(name)
		if _, ok := defaults[a]; !ok {
			return nil, fmt.Errorf("%q: %w", name, ErrUnknownAction)
		}
		table[a] = strings.Split(custom[name], "|")
	}

	km := &Keymap{chords: make(map[string]Binding)}
	actions := make([]string, 0, len(table))
	for a := range table {
		actions = append(actions, string(a))
	}
	sort.Strings(actions)
	for _, name := range actions {
		a := Action(name)
		for _, raw := range table[a] {
			chord, err := Normalize(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", a, err)
			}
			if prev, ok := km.chords[chord]; ok {
				return nil, fmt.Errorf("%q bound to %s and %s: %w", chord, prev.Action, a, ErrDuplicateShortcut)
			}
			km.chords[chord] = bindingFor(a)
		}
	}
	return km, nil
}

// FromConfig builds the keymap of a template. Invalid shortcut settings fall
// back to the defaults and produce a notice.
func FromConfig(cfg *labelconfig.Config) (*Keymap, []labelconfig.Notice) {
	if cfg == nil || len(cfg.Global.Shortcuts) == 0 {
		return Default(), nil
	}
	km, err := New(cfg.Global.Shortcuts)
	if err != nil {
		return Default(), []labelconfig.Notice{{Source: labelconfig.SourceGlobal, Message: err.Error()}}
	}
	return km, nil
}

// Resolve looks up a chord
func (k *Keymap) Resolve(chord string) (Binding, bool) {
	c, err := Normalize(chord)
	if err != nil {
		return Binding{}, false
	}
	b, ok := k.chords[c]
	return b, ok
}

// Chords returns a copy of the chord table
func (k *Keymap) Chords() map[string]Binding {
	out := make(map[string]Binding, len(k.chords))
	for c, b := range k.chords {
		out[c] = b
	}
	return out
}

var modifierOrder = []string{"ctrl", "alt", "shift", "meta"}

var aliases = map[string]string{
	"control": "ctrl",
	"cmd":     "meta",
	"command": "meta",
	"option":  "alt",
	"del":     "delete",
	"esc":     "escape",
	"comma":   ",",
	"period":  ".",
	" ":       "space",
}

// Normalize returns the canonical form of a chord such as "Shift+Ctrl+Z":
// lower case, modifiers in a fixed order, key last.
func Normalize(chord string) (string, error) {
	if chord == " " {
		return "space", nil
	}
	parts := strings.Split(strings.ToLower(strings.TrimSpace(chord)), "+")
	mods := make(map[string]bool)
	key := ""
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			// "ctrl++" binds the plus key
			if i == len(parts)-1 && i > 0 && parts[i-1] == "" {
				key = "+"
				continue
			}
			continue
		}
		if a, ok := aliases[p]; ok {
			p = a
		}
		if isModifier(p) {
			mods[p] = true
			continue
		}
		if key != "" {
			return "", fmt.Errorf("%q has two keys: %w", chord, ErrInvalidChord)
		}
		key = p
	}
	if key == "" {
		return "", fmt.Errorf("%q has no key: %w", chord, ErrInvalidChord)
	}

	var b strings.Builder
	for _, m := range modifierOrder {
		if mods[m] {
			b.WriteString(m)
			b.WriteByte('+')
		}
	}
	b.WriteString(key)
	return b.String(), nil
}

func isModifier(p string) bool {
	for _, m := range modifierOrder {
		if p == m {
			return true
		}
	}
	return false
}
