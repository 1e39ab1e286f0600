// Package config holds the user-facing configuration tree and converts it
// into the flat keybind set the daemon dispatches against.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// ModKey is replaced by Config.DefaultModifier in modifier lists.
const ModKey = "modkey"

// Config is the daemon configuration file.
type Config struct {
	DefaultModifier      string    `toml:"default_modifier" yaml:"default_modifier"`
	ChordTimeout         string    `toml:"chord_timeout,omitempty" yaml:"chord_timeout,omitempty"`
	ExitChordOnUnmatched *bool     `toml:"exit_chord_on_unmatched,omitempty" yaml:"exit_chord_on_unmatched,omitempty"`
	Journal              bool      `toml:"journal" yaml:"journal"` // applied on every reload
	Keybinds             []Keybind `toml:"keybind" yaml:"keybinds"`
}

// Keybind is one user binding. Exactly one of Key and Keys is set:
// Executes takes Keys, every other command takes Key.
type Keybind struct {
	Command  string    `toml:"command" yaml:"command"`
	Value    string    `toml:"value,omitempty" yaml:"value,omitempty"`
	Values   []string  `toml:"values,omitempty" yaml:"values,omitempty"`
	Children []Keybind `toml:"children,omitempty" yaml:"children,omitempty"`
	Modifier []string  `toml:"modifier,omitempty" yaml:"modifier,omitempty"`
	Key      string    `toml:"key,omitempty" yaml:"key,omitempty"`
	Keys     []string  `toml:"keys,omitempty" yaml:"keys,omitempty"`
}

// ChordTimeoutDuration parses ChordTimeout. Empty means no timeout.
func (c *Config) ChordTimeoutDuration() (time.Duration, error) {
	if c.ChordTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ChordTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid chord_timeout %q: %w", c.ChordTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid chord_timeout %q: negative", c.ChordTimeout)
	}
	return d, nil
}

// ExitOnUnmatched reports whether an unmatched key leaves the active chord.
// Defaults to true.
func (c *Config) ExitOnUnmatched() bool {
	if c.ExitChordOnUnmatched == nil {
		return true
	}
	return *c.ExitChordOnUnmatched
}

// Converters wraps every top-level binding as a domain.KeybindConverter.
func (c *Config) Converters(logger *zap.Logger) []domain.KeybindConverter {
	conv := NewConverter(c.DefaultModifier, logger)
	result := make([]domain.KeybindConverter, len(c.Keybinds))
	for i, kb := range c.Keybinds {
		result[i] = conv.Bind(kb)
	}
	return result
}

// DefaultPath returns $XDG_CONFIG_HOME/hotkeyd/config.toml, falling back
// to ~/.config/hotkeyd/config.toml.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hotkeyd", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "hotkeyd", "config.toml")
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Default returns the starter configuration written by `hotkeyd init`.
func Default() *Config {
	return &Config{
		DefaultModifier: "Mod4",
		ChordTimeout:    "5s",
		Keybinds: []Keybind{
			{Command: KindExecute, Value: "st", Modifier: []string{ModKey, "Shift"}, Key: "Return"},
			{Command: KindExecute, Value: "dmenu_run", Modifier: []string{ModKey}, Key: "p"},
			{
				Command:  KindChord,
				Modifier: []string{ModKey},
				Key:      "x",
				Children: []Keybind{
					{Command: KindExecute, Value: "slock", Key: "l"},
					{Command: KindExecutes, Values: []string{"pactl set-sink-volume 0 -5%", "pactl set-sink-volume 0 +5%"}, Keys: []string{"minus", "equal"}},
					{Command: KindExitChord, Key: "Escape"},
				},
			},
			{Command: KindReload, Modifier: []string{ModKey, "Shift"}, Key: "r"},
			{Command: KindKill, Modifier: []string{ModKey, "Shift"}, Key: "q"},
		},
	}
}
