package domain

import "context"

// Spawner launches external actions for Execute commands.
// Implementation: sh -c in a new session, not awaited.
type Spawner interface {
	// Spawn starts command and returns once it is launched.
	Spawn(command string) error
}

// KeybindConverter is implemented by richer configuration keybind types
// that can expand themselves into core keybinds.
type KeybindConverter interface {
	// ToCoreKeybinds returns the core keybinds imitating the receiver.
	ToCoreKeybinds() ([]Keybind, error)
}

// KeySource produces key press events.
// Implementation: X11 grabs in production, line-based reader for development.
type KeySource interface {
	// Events returns the event channel. It is closed when the source is exhausted.
	Events() <-chan KeyEvent
}

// CommandSource produces normalized commands sent from outside the daemon.
// Implementation: named pipe.
type CommandSource interface {
	// Commands returns the command channel.
	Commands() <-chan NormalizedCommand
}

// ProcessManager handles OS process queries.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// Journal persists dispatch records.
// Implementation: SQLCipher encrypted SQLite database.
type Journal interface {
	// Record appends one dispatch record.
	Record(ctx context.Context, rec DispatchRecord) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]DispatchRecord, error)

	// Close releases resources.
	Close() error
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// DaemonRegistry tracks the single running daemon instance.
// Implementation: JSON pid file guarded by flock.
type DaemonRegistry interface {
	// Register records info for the current daemon, replacing any previous entry.
	Register(info DaemonInfo) error

	// Get returns the registered daemon, or nil if none is registered.
	Get() (*DaemonInfo, error)

	// IsAlive reports whether the registered daemon is still running.
	IsAlive() (bool, error)

	// Clear removes the registration.
	Clear() error
}

// AutostartManager installs the daemon as a login service.
// Implementation: systemd user unit.
type AutostartManager interface {
	// Install writes the unit for execPath/configPath and enables it.
	Install(execPath, configPath string) error

	// Uninstall disables and removes the unit.
	Uninstall() error

	// IsInstalled checks if the unit file exists.
	IsInstalled() bool

	// NeedsUpdate checks if the installed unit differs from what Install would write.
	NeedsUpdate(execPath, configPath string) bool

	// UnitPath returns the unit file path.
	UnitPath() string
}
