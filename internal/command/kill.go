package command

import (
	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// Kill asks the event loop to terminate.
type Kill struct{}

// NewKill creates a Kill.
func NewKill() Kill {
	return Kill{}
}

// DenormalizeKill parses the canonical form of a Kill.
func DenormalizeKill(nc domain.NormalizedCommand) (Kill, bool) {
	return Kill{}, decode(nc, NameKill, nil)
}

func (Kill) Name() string {
	return NameKill
}

func (Kill) Normalize() domain.NormalizedCommand {
	return encode(NameKill, nil)
}

func (Kill) Execute(w *domain.Worker) error {
	w.Status = domain.StatusKill
	return nil
}

var _ Command = Kill{}
