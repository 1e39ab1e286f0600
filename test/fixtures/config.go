// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
)

// Workspace is a throwaway directory holding a config file and daemon state.
type Workspace struct {
	Dir        string
	ConfigPath string
	DataDir    string
	OutDir     string // Execute commands in the sample config write markers here
}

// NewWorkspace lays out a workspace under dir.
func NewWorkspace(dir string) (*Workspace, error) {
	ws := &Workspace{
		Dir:        dir,
		ConfigPath: filepath.Join(dir, "config", "hotkeyd.toml"),
		DataDir:    filepath.Join(dir, "data"),
		OutDir:     filepath.Join(dir, "out"),
	}
	for _, d := range []string{filepath.Dir(ws.ConfigPath), ws.DataDir, ws.OutDir} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

const sampleConfig = `
default_modifier = "Mod4"
chord_timeout = "{{.ChordTimeout}}"
journal = {{.Journal}}

[[keybind]]
command = "Execute"
value = "touch {{.OutDir}}/{{.Marker}}"
modifier = ["modkey"]
key = "Return"

[[keybind]]
command = "Chord"
modifier = ["modkey"]
key = "x"

  [[keybind.children]]
  command = "Execute"
  value = "touch {{.OutDir}}/locked"
  key = "l"

  [[keybind.children]]
  command = "ExitChord"
  key = "Escape"

[[keybind]]
command = "Reload"
modifier = ["modkey", "Shift"]
key = "r"

[[keybind]]
command = "Kill"
modifier = ["modkey", "Shift"]
key = "q"
`

var sampleTemplate = template.Must(template.New("config").Parse(sampleConfig))

// SampleOptions customizes the sample config.
type SampleOptions struct {
	Marker       string // File touched by Mod4+Return
	ChordTimeout string
	Journal      bool
}

// WriteSampleConfig writes the sample TOML config, replacing any previous one.
func (ws *Workspace) WriteSampleConfig(opts SampleOptions) error {
	if opts.Marker == "" {
		opts.Marker = "terminal"
	}
	if opts.ChordTimeout == "" {
		opts.ChordTimeout = "0s"
	}

	var b strings.Builder
	err := sampleTemplate.Execute(&b, struct {
		SampleOptions
		OutDir string
	}{opts, ws.OutDir})
	if err != nil {
		return err
	}

	// Replace atomically so watchers never see a half-written file.
	tmp := ws.ConfigPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, ws.ConfigPath)
}

// Marker reports whether an Execute command touched name in OutDir.
func (ws *Workspace) Marker(name string) bool {
	_, err := os.Stat(filepath.Join(ws.OutDir, name))
	return err == nil
}

// RecordingSpawner records commands instead of running them.
type RecordingSpawner struct {
	mu      sync.Mutex
	spawned []string
}

// Spawn records command.
func (s *RecordingSpawner) Spawn(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawned = append(s.spawned, command)
	return nil
}

// Spawned returns a copy of the recorded commands.
func (s *RecordingSpawner) Spawned() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spawned...)
}
