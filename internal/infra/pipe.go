package infra

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// ErrDaemonNotListening is returned by SendCommand when no daemon has the pipe open.
var ErrDaemonNotListening = errors.New("daemon is not listening on the command pipe")

// CommandPipe implements domain.CommandSource with a named pipe.
// Each line written to the pipe is one normalized command.
type CommandPipe struct {
	path     string
	file     *os.File
	commands chan domain.NormalizedCommand
	logger   *zap.Logger
}

// NewCommandPipe creates a pipe source at path. Call Open before Run.
func NewCommandPipe(path string, logger *zap.Logger) *CommandPipe {
	return &CommandPipe{
		path:     path,
		commands: make(chan domain.NormalizedCommand),
		logger:   logger,
	}
}

// Path returns the FIFO location.
func (p *CommandPipe) Path() string {
	return p.path
}

// Open (re)creates the FIFO, removing any stale file left at path, and
// attaches the read side. Clients can send as soon as Open returns.
func (p *CommandPipe) Open() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create pipe directory: %w", err)
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale pipe: %w", err)
	}
	if err := syscall.Mkfifo(p.path, 0600); err != nil {
		return fmt.Errorf("failed to create pipe %s: %w", p.path, err)
	}

	// O_RDWR keeps a writer attached so the read side never sees EOF
	// between clients, and open doesn't block waiting for one.
	f, err := os.OpenFile(p.path, os.O_RDWR, os.ModeNamedPipe)
	if err != nil {
		return fmt.Errorf("failed to open pipe: %w", err)
	}
	p.file = f
	return nil
}

// Commands returns the command channel. It is closed when Run returns.
func (p *CommandPipe) Commands() <-chan domain.NormalizedCommand {
	return p.commands
}

// Run reads commands until ctx is cancelled.
func (p *CommandPipe) Run(ctx context.Context) error {
	defer close(p.commands)

	f := p.file
	if f == nil {
		return errors.New("pipe is not open")
	}

	go func() {
		<-ctx.Done()
		f.Close()
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.logger.Debug("pipe command", zap.String("command", line))
		select {
		case p.commands <- domain.NormalizedCommand(line):
		case <-ctx.Done():
			return nil
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

// Close detaches the read side and removes the FIFO.
func (p *CommandPipe) Close() error {
	if p.file != nil {
		_ = p.file.Close()
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SendCommand writes nc to the daemon listening on the pipe at path.
func SendCommand(path string, nc domain.NormalizedCommand) error {
	if strings.ContainsAny(string(nc), "\r\n") {
		return fmt.Errorf("command %q spans multiple lines", nc)
	}

	// Non-blocking open fails with ENXIO instead of hanging when nobody reads.
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeNamedPipe)
	if err != nil {
		if errors.Is(err, syscall.ENXIO) || errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDaemonNotListening, path)
		}
		return fmt.Errorf("failed to open pipe: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(string(nc) + "\n"); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

// Ensure CommandPipe implements domain.CommandSource.
var _ domain.CommandSource = (*CommandPipe)(nil)
