package infra

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

const unitName = "hotkeyd.service"

// User unit template. The daemon needs the graphical session's DISPLAY,
// so it is bound to graphical-session.target.
const userUnitTemplate = `[Unit]
Description=hotkeyd keybinding daemon
PartOf=graphical-session.target
After=graphical-session.target

[Service]
Type=simple
ExecStart={{.ExecutablePath}} run --config {{.ConfigPath}}
ExecReload={{.ExecutablePath}} reload
Restart=on-failure
RestartSec=2

[Install]
WantedBy=graphical-session.target
`

var userUnit = template.Must(template.New("unit").Parse(userUnitTemplate))

type unitConfig struct {
	ExecutablePath string
	ConfigPath     string
}

// CommandRunner runs an external command. Replaced in tests.
type CommandRunner func(name string, args ...string) error

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, bytes.TrimSpace(out))
	}
	return nil
}

// SystemdUnitManager implements domain.AutostartManager with a systemd user unit.
type SystemdUnitManager struct {
	unitDir string
	run     CommandRunner
}

// NewSystemdUnitManager creates a manager for $XDG_CONFIG_HOME/systemd/user.
func NewSystemdUnitManager() *SystemdUnitManager {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return NewSystemdUnitManagerWithDir(filepath.Join(base, "systemd", "user"), runCommand)
}

// NewSystemdUnitManagerWithDir creates a manager with a custom unit dir and runner (for testing).
func NewSystemdUnitManagerWithDir(unitDir string, run CommandRunner) *SystemdUnitManager {
	return &SystemdUnitManager{unitDir: unitDir, run: run}
}

// UnitPath returns the unit file path.
func (m *SystemdUnitManager) UnitPath() string {
	return filepath.Join(m.unitDir, unitName)
}

func (m *SystemdUnitManager) render(execPath, configPath string) ([]byte, error) {
	var buf bytes.Buffer
	if err := userUnit.Execute(&buf, unitConfig{ExecutablePath: execPath, ConfigPath: configPath}); err != nil {
		return nil, fmt.Errorf("failed to render unit: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the unit, reloads systemd and enables the service.
func (m *SystemdUnitManager) Install(execPath, configPath string) error {
	if err := os.MkdirAll(m.unitDir, 0755); err != nil {
		return err
	}

	content, err := m.render(execPath, configPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.UnitPath(), content, 0644); err != nil {
		return err
	}

	if err := m.run("systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	return m.run("systemctl", "--user", "enable", unitName)
}

// Uninstall disables the service and removes the unit.
func (m *SystemdUnitManager) Uninstall() error {
	// Ignore errors if it was never enabled
	_ = m.run("systemctl", "--user", "disable", unitName)

	if err := os.Remove(m.UnitPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return m.run("systemctl", "--user", "daemon-reload")
}

// IsInstalled checks if the unit file exists.
func (m *SystemdUnitManager) IsInstalled() bool {
	_, err := os.Stat(m.UnitPath())
	return err == nil
}

// NeedsUpdate checks if the unit exists but has different content than expected.
func (m *SystemdUnitManager) NeedsUpdate(execPath, configPath string) bool {
	if !m.IsInstalled() {
		return false // Doesn't exist, needs install not update
	}

	current, err := os.ReadFile(m.UnitPath())
	if err != nil {
		return true
	}
	expected, err := m.render(execPath, configPath)
	if err != nil {
		return false
	}
	return !bytes.Equal(current, expected)
}

// Ensure SystemdUnitManager implements domain.AutostartManager.
var _ domain.AutostartManager = (*SystemdUnitManager)(nil)
