package command

import (
	"errors"
	"fmt"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// ErrNoSpawner is returned when an Execute runs against a worker without a spawner.
var ErrNoSpawner = errors.New("worker has no spawner")

// Execute launches an external program.
type Execute struct {
	Command string
}

// NewExecute creates an Execute for command. Invalid UTF-8 in command is
// replaced with U+FFFD.
func NewExecute(command string) Execute {
	return Execute{Command: validText(command)}
}

// DenormalizeExecute parses the canonical form of an Execute.
func DenormalizeExecute(nc domain.NormalizedCommand) (Execute, bool) {
	var command string
	if !decode(nc, NameExecute, &command) {
		return Execute{}, false
	}
	return Execute{Command: command}, true
}

func (e Execute) Name() string {
	return NameExecute
}

func (e Execute) Normalize() domain.NormalizedCommand {
	return encode(NameExecute, validText(e.Command))
}

// Execute hands the command to the worker's spawner. The spawned process
// is not awaited.
func (e Execute) Execute(w *domain.Worker) error {
	if w.Spawner == nil {
		return ErrNoSpawner
	}
	if err := w.Spawner.Spawn(e.Command); err != nil {
		return fmt.Errorf("failed to execute %q: %w", e.Command, err)
	}
	return nil
}

var _ Command = Execute{}
