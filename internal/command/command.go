// Package command defines the actions a keybind can trigger and the registry
// that turns their canonical form back into live values.
//
// Every command type provides a pure Normalize, a denormalizer that never
// fails loudly, and an Execute that runs against a domain.Worker. New types
// are added by registering an Entry; dispatch code does not change.
package command

import (
	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// Built-in command names. They prefix every canonical string.
const (
	NameExecute   = "Execute"
	NameChord     = "Chord"
	NameExitChord = "ExitChord"
	NameReload    = "Reload"
	NameKill      = "Kill"
)

// Command is an action a keybind can trigger.
type Command interface {
	// Name returns the type tag used in the canonical form.
	Name() string

	// Normalize returns the canonical form. It never fails.
	Normalize() domain.NormalizedCommand

	// Execute performs the action against the worker.
	Execute(w *domain.Worker) error
}
