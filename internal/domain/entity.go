// Package domain contains core entities and interfaces of the keybinding daemon.
// This is the innermost layer - no external dependencies.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// NormalizedCommand is the canonical serialized form of exactly one command.
// Two commands are equal iff their normalized forms are byte-identical.
type NormalizedCommand string

func (n NormalizedCommand) String() string {
	return string(n)
}

// Keybind pairs a normalized command with a key combination.
type Keybind struct {
	Command  NormalizedCommand `json:"command"`
	Modifier []string          `json:"modifier"`
	Key      string            `json:"key"`
}

// Matches reports whether ev triggers this keybind.
// Modifiers are compared as sets.
func (k Keybind) Matches(ev KeyEvent) bool {
	return k.Key == ev.Key && sameModifiers(k.Modifier, ev.Modifiers)
}

func sameModifiers(a, b []string) bool {
	return strings.Join(modifierSet(a), "+") == strings.Join(modifierSet(b), "+")
}

func modifierSet(mods []string) []string {
	seen := make(map[string]struct{}, len(mods))
	out := make([]string, 0, len(mods))
	for _, m := range mods {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// KeyEvent is a key press reported by the key-capture service.
type KeyEvent struct {
	Modifiers []string
	Key       string
}

func (e KeyEvent) String() string {
	if len(e.Modifiers) == 0 {
		return e.Key
	}
	return strings.Join(e.Modifiers, "+") + "+" + e.Key
}

// ParseKeyCombo parses "Mod4+Shift+Return" into a KeyEvent.
// The last element is the key, everything before it is a modifier.
func ParseKeyCombo(s string) (KeyEvent, error) {
	parts := strings.Split(strings.TrimSpace(s), "+")
	key := strings.TrimSpace(parts[len(parts)-1])
	if key == "" {
		return KeyEvent{}, fmt.Errorf("invalid key combo %q: missing key", s)
	}

	var mods []string
	for _, p := range parts[:len(parts)-1] {
		p = strings.TrimSpace(p)
		if p == "" {
			return KeyEvent{}, fmt.Errorf("invalid key combo %q: empty modifier", s)
		}
		mods = append(mods, p)
	}
	return KeyEvent{Modifiers: mods, Key: key}, nil
}

// Status tells the event loop whether to keep running.
type Status int

const (
	StatusContinue Status = iota
	StatusReload
	StatusKill
)

func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusReload:
		return "reload"
	case StatusKill:
		return "kill"
	default:
		return "unknown"
	}
}

// ChordContext is the single active chord scope.
// Elapsed is a one-shot signal consumed by the event loop to pop the chord.
type ChordContext struct {
	keybinds []Keybind
	active   bool
	Elapsed  bool
}

// Enter replaces the active chord scope with children.
// A pending Elapsed signal is dropped: the new scope starts fresh.
func (c *ChordContext) Enter(children []Keybind) {
	c.keybinds = children
	c.active = true
	c.Elapsed = false
}

// Active reports whether the daemon is inside a chord.
// A chord without children is still active.
func (c *ChordContext) Active() bool {
	return c.active
}

// Keybinds returns the chord's keybinds, nil outside a chord.
func (c *ChordContext) Keybinds() []Keybind {
	return c.keybinds
}

// Clear leaves the chord.
func (c *ChordContext) Clear() {
	c.keybinds = nil
	c.active = false
	c.Elapsed = false
}

// Worker is the execution context commands run against.
// It has a single owner and must not be shared between goroutines.
type Worker struct {
	Keybinds []Keybind
	Chord    ChordContext
	Status   Status
	Spawner  Spawner
}

// NewWorker creates a worker with the global keybind set.
func NewWorker(keybinds []Keybind, spawner Spawner) *Worker {
	return &Worker{
		Keybinds: keybinds,
		Spawner:  spawner,
	}
}

// ActiveKeybinds returns the chord's keybinds inside a chord, the global set otherwise.
func (w *Worker) ActiveKeybinds() []Keybind {
	if w.Chord.Active() {
		return w.Chord.Keybinds()
	}
	return w.Keybinds
}

// Lookup returns the first active keybind matching ev.
func (w *Worker) Lookup(ev KeyEvent) (Keybind, bool) {
	for _, kb := range w.ActiveKeybinds() {
		if kb.Matches(ev) {
			return kb, true
		}
	}
	return Keybind{}, false
}

// Reset installs a new global keybind set and returns to the initial state.
func (w *Worker) Reset(keybinds []Keybind) {
	w.Keybinds = keybinds
	w.Chord.Clear()
	w.Status = StatusContinue
}

// DispatchRecord is one journaled dispatch.
type DispatchRecord struct {
	ID      string
	At      int64 // unix nanoseconds
	Command NormalizedCommand
	Outcome string
	Error   string
}

// DaemonInfo is the state a running daemon publishes for the CLI.
type DaemonInfo struct {
	PID        int    `json:"pid"`
	ConfigPath string `json:"config_path"`
	PipePath   string `json:"pipe_path"`
	StartedAt  int64  `json:"started_at"` // unix seconds
	Version    string `json:"version,omitempty"`
}
