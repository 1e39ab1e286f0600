package command

import (
	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// ExitChord asks the event loop to leave the active chord.
type ExitChord struct{}

// NewExitChord creates an ExitChord.
func NewExitChord() ExitChord {
	return ExitChord{}
}

// DenormalizeExitChord parses the canonical form of an ExitChord.
func DenormalizeExitChord(nc domain.NormalizedCommand) (ExitChord, bool) {
	return ExitChord{}, decode(nc, NameExitChord, nil)
}

func (ExitChord) Name() string {
	return NameExitChord
}

func (ExitChord) Normalize() domain.NormalizedCommand {
	return encode(NameExitChord, nil)
}

// Execute marks the chord elapsed. Outside a chord it does nothing.
func (ExitChord) Execute(w *domain.Worker) error {
	if w.Chord.Active() {
		w.Chord.Elapsed = true
	}
	return nil
}

var _ Command = ExitChord{}
