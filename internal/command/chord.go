package command

import (
	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// Chord enters a nested keybind scope.
type Chord struct {
	Children []domain.Keybind
}

// NewChord creates a chord over children. Invalid UTF-8 in their keys,
// modifiers and commands is replaced with U+FFFD.
func NewChord(children []domain.Keybind) Chord {
	if children == nil {
		return Chord{Children: []domain.Keybind{}}
	}
	return Chord{Children: validKeybinds(children)}
}

// DenormalizeChord parses the canonical form of a Chord.
func DenormalizeChord(nc domain.NormalizedCommand) (Chord, bool) {
	var children []domain.Keybind
	if !decode(nc, NameChord, &children) || children == nil {
		return Chord{}, false
	}
	return Chord{Children: children}, true
}

func (c Chord) Name() string {
	return NameChord
}

func (c Chord) Normalize() domain.NormalizedCommand {
	children := validKeybinds(c.Children)
	if children == nil {
		children = []domain.Keybind{}
	}
	return encode(NameChord, children)
}

// Execute replaces the worker's chord scope with the children.
func (c Chord) Execute(w *domain.Worker) error {
	w.Chord.Enter(c.Children)
	return nil
}

var _ Command = Chord{}
