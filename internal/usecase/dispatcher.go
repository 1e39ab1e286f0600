// Package usecase contains application logic: turning key events and
// external commands into executed actions.
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/command"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// Resolver turns a canonical string back into a command.
type Resolver interface {
	Denormalize(nc domain.NormalizedCommand) (command.Command, error)
}

// Outcome labels the result of one dispatch.
type Outcome string

const (
	OutcomeExecuted     Outcome = "executed"
	OutcomeNoMatch      Outcome = "no_match"
	OutcomeUnrecognized Outcome = "unrecognized"
	OutcomeFailed       Outcome = "failed"
)

// Result captures what happened during a single dispatch.
type Result struct {
	Outcome Outcome
	Command domain.NormalizedCommand
	Err     error
}

// Dispatcher resolves and executes commands against a worker.
type Dispatcher struct {
	resolver Resolver
	journal  domain.Journal
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. journal may be nil.
func NewDispatcher(resolver Resolver, journal domain.Journal, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		journal:  journal,
		logger:   logger,
	}
}

// SetJournal replaces the journal. nil stops journaling.
func (d *Dispatcher) SetJournal(j domain.Journal) {
	d.journal = j
}

// HandleKey runs the active keybind matching ev, if any.
func (d *Dispatcher) HandleKey(ctx context.Context, w *domain.Worker, ev domain.KeyEvent) Result {
	kb, ok := w.Lookup(ev)
	if !ok {
		d.logger.Debug("no keybind for key", zap.Stringer("key", ev))
		return Result{Outcome: OutcomeNoMatch}
	}
	return d.Run(ctx, w, kb.Command)
}

// Run resolves nc and executes it against w. Failures are logged and
// reported in the result; they never stop the caller's loop.
func (d *Dispatcher) Run(ctx context.Context, w *domain.Worker, nc domain.NormalizedCommand) Result {
	result := Result{Command: nc}

	cmd, err := d.resolver.Denormalize(nc)
	if err != nil {
		d.logger.Error("cannot resolve command",
			zap.String("command", nc.String()),
			zap.Error(err))
		result.Outcome = OutcomeUnrecognized
		result.Err = err
		d.record(ctx, result)
		return result
	}

	if err := cmd.Execute(w); err != nil {
		d.logger.Warn("command failed",
			zap.String("command", cmd.Name()),
			zap.Error(err))
		result.Outcome = OutcomeFailed
		result.Err = err
		d.record(ctx, result)
		return result
	}

	d.logger.Debug("command executed",
		zap.String("command", cmd.Name()),
		zap.Stringer("status", w.Status))
	result.Outcome = OutcomeExecuted
	d.record(ctx, result)
	return result
}

func (d *Dispatcher) record(ctx context.Context, r Result) {
	if d.journal == nil {
		return
	}

	rec := domain.DispatchRecord{
		ID:      uuid.New().String(),
		At:      time.Now().UnixNano(),
		Command: r.Command,
		Outcome: string(r.Outcome),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}

	if err := d.journal.Record(ctx, rec); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("failed to journal dispatch", zap.Error(err))
	}
}
