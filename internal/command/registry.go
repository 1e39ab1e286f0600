package command

import (
	"errors"
	"fmt"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

var (
	// ErrUnrecognizedCommand is returned when no registered type accepts a canonical string.
	ErrUnrecognizedCommand = errors.New("unrecognized command")

	// ErrDuplicateCommand is returned when a name is registered twice.
	ErrDuplicateCommand = errors.New("command already registered")

	// ErrRegistrySealed is returned when registering after Seal.
	ErrRegistrySealed = errors.New("registry is sealed")
)

// Denormalizer attempts to parse a canonical string into one concrete command type.
type Denormalizer func(nc domain.NormalizedCommand) (Command, bool)

// Entry registers one command type.
type Entry struct {
	Name        string
	Denormalize Denormalizer
}

// EntryFor adapts a typed denormalizer into an Entry.
func EntryFor[T Command](name string, fn func(domain.NormalizedCommand) (T, bool)) Entry {
	return Entry{
		Name: name,
		Denormalize: func(nc domain.NormalizedCommand) (Command, bool) {
			c, ok := fn(nc)
			if !ok {
				return nil, false
			}
			return c, true
		},
	}
}

// BuiltinEntries returns the entries of the built-in commands in registration order.
func BuiltinEntries() []Entry {
	return []Entry{
		EntryFor(NameExecute, DenormalizeExecute),
		EntryFor(NameChord, DenormalizeChord),
		EntryFor(NameExitChord, DenormalizeExitChord),
		EntryFor(NameReload, DenormalizeReload),
		EntryFor(NameKill, DenormalizeKill),
	}
}

// Registry resolves canonical strings back into commands.
// It is populated once at startup and read-only after Seal, so lookups
// need no locking.
type Registry struct {
	entries []Entry
	names   map[string]struct{}
	sealed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]struct{}),
	}
}

// BuildRegistry creates a sealed registry holding the built-in commands
// followed by extra.
func BuildRegistry(extra ...Entry) (*Registry, error) {
	r := NewRegistry()
	for _, e := range append(BuiltinEntries(), extra...) {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	r.Seal()
	return r, nil
}

// Register appends e. Names must be unique so that no two types accept
// the same canonical string.
func (r *Registry) Register(e Entry) error {
	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, e.Name)
	}
	if e.Name == "" {
		return errors.New("command entry has no name")
	}
	if e.Denormalize == nil {
		return fmt.Errorf("command entry %q has no denormalizer", e.Name)
	}
	if _, ok := r.names[e.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateCommand, e.Name)
	}

	r.names[e.Name] = struct{}{}
	r.entries = append(r.entries, e)
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.sealed = true
}

// Denormalize returns the command of the first entry, in registration
// order, that accepts nc.
func (r *Registry) Denormalize(nc domain.NormalizedCommand) (Command, error) {
	for _, e := range r.entries {
		if c, ok := e.Denormalize(nc); ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnrecognizedCommand, nc)
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}
