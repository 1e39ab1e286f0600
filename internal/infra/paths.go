package infra

import (
	"os"
	"path/filepath"
)

const (
	pidFileName  = "hotkeyd.pid"
	pipeFileName = "commands.pipe"
)

// Paths holds the runtime file locations for the current user.
type Paths struct {
	DataDir  string // Where the pid file, key and journal live
	PIDFile  string
	PipePath string
	IsRoot   bool
}

// DetectPaths determines runtime locations based on effective UID.
// Root daemons keep state under /var/lib, users under ~/.hotkeyd.
func DetectPaths() *Paths {
	if os.Geteuid() == 0 {
		return PathsIn("/var/lib/hotkeyd", true)
	}
	home, _ := os.UserHomeDir()
	return PathsIn(filepath.Join(home, ".hotkeyd"), false)
}

// PathsIn lays out runtime files under dataDir (for testing).
func PathsIn(dataDir string, isRoot bool) *Paths {
	return &Paths{
		DataDir:  dataDir,
		PIDFile:  filepath.Join(dataDir, pidFileName),
		PipePath: filepath.Join(dataDir, pipeFileName),
		IsRoot:   isRoot,
	}
}

// Ensure creates the data directory.
func (p *Paths) Ensure() error {
	return os.MkdirAll(p.DataDir, 0700)
}
