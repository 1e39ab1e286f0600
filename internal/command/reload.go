package command

import (
	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// Reload asks the event loop to reload its configuration.
type Reload struct{}

// NewReload creates a Reload.
func NewReload() Reload {
	return Reload{}
}

// DenormalizeReload parses the canonical form of a Reload.
func DenormalizeReload(nc domain.NormalizedCommand) (Reload, bool) {
	return Reload{}, decode(nc, NameReload, nil)
}

func (Reload) Name() string {
	return NameReload
}

func (Reload) Normalize() domain.NormalizedCommand {
	return encode(NameReload, nil)
}

func (Reload) Execute(w *domain.Worker) error {
	w.Status = domain.StatusReload
	return nil
}

var _ Command = Reload{}
