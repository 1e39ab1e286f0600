package infra

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// ExecSpawner implements domain.Spawner by running commands through sh.
type ExecSpawner struct {
	shell  string
	logger *zap.Logger
}

// NewExecSpawner creates a spawner using /bin/sh.
func NewExecSpawner(logger *zap.Logger) *ExecSpawner {
	return &ExecSpawner{shell: "/bin/sh", logger: logger}
}

// NewExecSpawnerWithShell creates a spawner using a custom shell (for testing).
func NewExecSpawnerWithShell(shell string, logger *zap.Logger) *ExecSpawner {
	return &ExecSpawner{shell: shell, logger: logger}
}

// Spawn starts `sh -c command` detached from the daemon: new session, no
// stdio. The child is reaped in the background and never awaited by the caller.
func (s *ExecSpawner) Spawn(command string) error {
	cmd := exec.Command(s.shell, "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %q: %w", command, err)
	}

	s.logger.Debug("spawned command",
		zap.String("command", command),
		zap.Int("pid", cmd.Process.Pid))

	go func() {
		if err := cmd.Wait(); err != nil {
			s.logger.Debug("spawned command exited with error",
				zap.String("command", command),
				zap.Error(err))
		}
	}()
	return nil
}

// StartDetached self-execs binary with args as a background daemon.
// The child is detached from the terminal (runs independently).
func StartDetached(binary string, args ...string) (int, error) {
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return 0, fmt.Errorf("failed to get executable path: %w", err)
		}
		binary = exe
	}

	cmd := exec.Command(binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// The daemon outlives us; don't leave a zombie if it exits first.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

// Ensure ExecSpawner implements domain.Spawner.
var _ domain.Spawner = (*ExecSpawner)(nil)
