package daemon

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/config"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/usecase"
)

// FileLoader loads settings from a config file on every call.
type FileLoader struct {
	path   string
	logger *zap.Logger
}

// NewFileLoader creates a loader for the config file at path.
func NewFileLoader(path string, logger *zap.Logger) *FileLoader {
	return &FileLoader{path: path, logger: logger}
}

// Load parses the file and converts its keybinds. Individual invalid
// keybinds are logged and skipped; an unreadable file is an error.
func (l *FileLoader) Load() (*Settings, error) {
	cfg, err := config.Load(l.path)
	if err != nil {
		return nil, err
	}
	return SettingsFrom(cfg, l.logger)
}

// SettingsFrom converts a parsed config into loop settings.
func SettingsFrom(cfg *config.Config, logger *zap.Logger) (*Settings, error) {
	timeout, err := cfg.ChordTimeoutDuration()
	if err != nil {
		return nil, err
	}
	return &Settings{
		Keybinds:             usecase.MapBindings(logger, cfg.Converters(logger)...),
		ChordTimeout:         timeout,
		ExitChordOnUnmatched: cfg.ExitOnUnmatched(),
		Journal:              cfg.Journal,
	}, nil
}

var _ BindingLoader = (*FileLoader)(nil)
