package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// PIDFile implements domain.DaemonRegistry using a JSON file.
type PIDFile struct {
	path           string
	processManager domain.ProcessManager
}

// NewPIDFile creates a registry backed by the file at path.
func NewPIDFile(path string, pm domain.ProcessManager) *PIDFile {
	return &PIDFile{path: path, processManager: pm}
}

// Path returns the pid file location.
func (r *PIDFile) Path() string {
	return r.path
}

// Register saves info, stamping StartedAt when unset.
func (r *PIDFile) Register(info domain.DaemonInfo) error {
	if info.StartedAt == 0 {
		info.StartedAt = time.Now().Unix()
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	// Serialize writers (run and start may race on startup)
	lockFile, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	return r.atomicWrite(&info)
}

// Get returns the registered daemon, or nil if the file doesn't exist.
func (r *PIDFile) Get() (*domain.DaemonInfo, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var info domain.DaemonInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("corrupt pid file %s: %w", r.path, err)
	}
	return &info, nil
}

// IsAlive checks the registered PID. No registration = not alive.
func (r *PIDFile) IsAlive() (bool, error) {
	info, err := r.Get()
	if err != nil {
		return false, err
	}
	if info == nil {
		return false, nil
	}
	return r.processManager.IsRunning(info.PID), nil
}

// Clear removes the pid file. A missing file is not an error.
func (r *PIDFile) Clear() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	_ = os.Remove(r.path + ".lock")
	return nil
}

// atomicWrite writes info to file atomically (write + rename).
func (r *PIDFile) atomicWrite(info *domain.DaemonInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure PIDFile implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*PIDFile)(nil)
