// Package daemon implements the hotkey daemon event loop.
package daemon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/usecase"
)

// Settings is everything the loop needs from configuration.
type Settings struct {
	Keybinds             []domain.Keybind
	ChordTimeout         time.Duration // 0 disables the timeout
	ExitChordOnUnmatched bool
	Journal              bool
}

// BindingLoader produces settings at startup and on every reload.
type BindingLoader interface {
	Load() (*Settings, error)
}

// LoaderFunc adapts a function to BindingLoader.
type LoaderFunc func() (*Settings, error)

// Load calls f.
func (f LoaderFunc) Load() (*Settings, error) {
	return f()
}

// JournalOpener opens the dispatch journal when the settings enable it.
type JournalOpener func() (domain.Journal, error)

// Sources are the event inputs. Any of them may be nil.
type Sources struct {
	Keys          domain.KeySource
	Commands      domain.CommandSource
	ConfigChanges <-chan struct{}
}

// Daemon owns the worker and serializes every event against it.
type Daemon struct {
	loader     BindingLoader
	dispatcher *usecase.Dispatcher
	spawner    domain.Spawner
	sources    Sources
	registry   domain.DaemonRegistry
	info       domain.DaemonInfo
	logger     *zap.Logger

	openJournal JournalOpener
	journal     domain.Journal

	settings *Settings
	worker   *domain.Worker
}

// New creates a daemon. registry may be nil.
func New(
	loader BindingLoader,
	dispatcher *usecase.Dispatcher,
	spawner domain.Spawner,
	sources Sources,
	registry domain.DaemonRegistry,
	info domain.DaemonInfo,
	logger *zap.Logger,
) *Daemon {
	return &Daemon{
		loader:     loader,
		dispatcher: dispatcher,
		spawner:    spawner,
		sources:    sources,
		registry:   registry,
		info:       info,
		logger:     logger,
	}
}

// WithJournal lets the daemon open and close the journal as the Journal
// setting changes across reloads. Without it the setting is ignored.
func (d *Daemon) WithJournal(open JournalOpener) *Daemon {
	d.openJournal = open
	return d
}

// Run loads keybinds and handles events until a Kill command is executed
// (returns nil) or ctx is cancelled (returns ctx.Err()).
func (d *Daemon) Run(ctx context.Context) error {
	settings, err := d.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load keybinds: %w", err)
	}
	d.settings = settings
	d.worker = domain.NewWorker(settings.Keybinds, d.spawner)
	d.applyJournal(settings.Journal)
	defer d.applyJournal(false)

	if d.registry != nil {
		if err := d.registry.Register(d.info); err != nil {
			d.logger.Error("failed to register daemon", zap.Error(err))
			return err
		}
		defer func() {
			if err := d.registry.Clear(); err != nil {
				d.logger.Warn("failed to clear registration", zap.Error(err))
			}
		}()
	}

	d.logger.Info("daemon started",
		zap.Int("pid", d.info.PID),
		zap.Int("keybinds", len(settings.Keybinds)),
		zap.Duration("chord_timeout", settings.ChordTimeout))

	var keys <-chan domain.KeyEvent
	if d.sources.Keys != nil {
		keys = d.sources.Keys.Events()
	}
	var commands <-chan domain.NormalizedCommand
	if d.sources.Commands != nil {
		commands = d.sources.Commands.Commands()
	}
	changes := d.sources.ConfigChanges

	// Nil while no chord is active
	var chordDeadline <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping")
			return ctx.Err()

		case ev, ok := <-keys:
			if !ok {
				d.logger.Info("key source closed")
				keys = nil
				continue
			}
			d.handleKey(ctx, ev)

		case nc, ok := <-commands:
			if !ok {
				d.logger.Info("command source closed")
				commands = nil
				continue
			}
			d.dispatcher.Run(ctx, d.worker, nc)

		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			d.logger.Info("config file changed")
			d.worker.Status = domain.StatusReload

		case <-chordDeadline:
			d.logger.Debug("chord timed out")
			d.worker.Chord.Elapsed = true
		}

		if d.settle() {
			d.logger.Info("kill requested, daemon exiting")
			return nil
		}

		chordDeadline = nil
		if d.worker.Chord.Active() && d.settings.ChordTimeout > 0 {
			chordDeadline = time.After(d.settings.ChordTimeout)
		}
	}
}

func (d *Daemon) handleKey(ctx context.Context, ev domain.KeyEvent) {
	inChord := d.worker.Chord.Active()
	res := d.dispatcher.HandleKey(ctx, d.worker, ev)
	if res.Outcome == usecase.OutcomeNoMatch && inChord && d.settings.ExitChordOnUnmatched {
		d.logger.Debug("unmatched key leaves chord", zap.Stringer("key", ev))
		d.worker.Chord.Elapsed = true
	}
}

// settle applies the signals commands left on the worker.
// It returns true when the daemon must stop.
func (d *Daemon) settle() bool {
	w := d.worker

	if w.Chord.Elapsed {
		w.Chord.Clear()
		d.logger.Debug("chord exited")
	}

	switch w.Status {
	case domain.StatusKill:
		return true
	case domain.StatusReload:
		d.reload()
	}
	return false
}

func (d *Daemon) reload() {
	settings, err := d.loader.Load()
	if err != nil {
		d.logger.Error("reload failed, keeping previous keybinds", zap.Error(err))
		d.worker.Reset(d.worker.Keybinds)
		return
	}

	d.settings = settings
	d.worker.Reset(settings.Keybinds)
	d.applyJournal(settings.Journal)
	d.logger.Info("keybinds reloaded", zap.Int("keybinds", len(settings.Keybinds)))
}

// applyJournal opens or closes the journal to match enabled. A journal that
// fails to open leaves dispatching unjournaled.
func (d *Daemon) applyJournal(enabled bool) {
	if d.openJournal == nil {
		return
	}

	switch {
	case enabled && d.journal == nil:
		j, err := d.openJournal()
		if err != nil {
			d.logger.Error("failed to open journal", zap.Error(err))
			return
		}
		d.journal = j
		d.dispatcher.SetJournal(j)
		d.logger.Info("journal enabled")

	case !enabled && d.journal != nil:
		d.dispatcher.SetJournal(nil)
		if err := d.journal.Close(); err != nil {
			d.logger.Warn("failed to close journal", zap.Error(err))
		}
		d.journal = nil
		d.logger.Info("journal disabled")
	}
}
