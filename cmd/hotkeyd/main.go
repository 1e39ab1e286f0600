// Package main is the CLI entry point for hotkeyd.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/command"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/config"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/daemon"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/infra"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hotkeyd",
	Short: "Hotkey daemon - runs commands on key combinations",
	Long: `hotkeyd maps key combinations to commands: spawning programs,
entering chords (nested keybind scopes), reloading its configuration
and stopping itself. Commands can also be sent to a running daemon
through its command pipe.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Runs the daemon in the foreground until a Kill command is received
or the process is interrupted. With --stdin, key combos such as
"Mod4+Shift+Return" are read one per line from standard input.`,
	RunE: runRun,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE:  runStart,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE:  runInit,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config file",
	Long:  `Parses the config file and converts every keybind, reporting each invalid one.`,
	RunE:  runCheck,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <normalized-command>",
	Short: "Show which command a normalized string resolves to",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

var sendCmd = &cobra.Command{
	Use:   "send <normalized-command>",
	Short: "Send a normalized command to the running daemon",
	Example: `  hotkeyd send 'Execute("st")'
  hotkeyd send 'ExitChord()'`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask the running daemon to reload its config",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendToDaemon(command.NewReload().Normalize())
	},
}

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Ask the running daemon to exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendToDaemon(command.NewKill().Normalize())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the daemon is running",
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently dispatched commands",
	Long:  `Shows the dispatch journal. The journal is only written when "journal = true" is set in the config.`,
	RunE:  runHistory,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start hotkeyd automatically with the graphical session",
	Long:  `Installs and enables a systemd user unit running "hotkeyd run" with the current config.`,
	RunE:  runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the systemd user unit",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := infra.NewSystemdUnitManager()
		if !m.IsInstalled() {
			fmt.Println("hotkeyd is not installed")
			return nil
		}
		if err := m.Uninstall(); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", m.UnitPath())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	dataDir    string

	readStdin  bool
	logFile    string
	debugLog   bool
	noWatch    bool
	initFormat string
	forceInit  bool
	historyN   int
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Config file (.toml, .yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "State directory (default ~/.hotkeyd, /var/lib/hotkeyd for root)")

	runCmd.Flags().BoolVar(&readStdin, "stdin", false, "Read key combos from standard input")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	runCmd.Flags().BoolVar(&debugLog, "debug", false, "Enable debug logging")
	runCmd.Flags().BoolVar(&noWatch, "no-watch", false, "Don't reload when the config file changes")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Log file (default <data-dir>/hotkeyd.log)")
	initCmd.Flags().StringVar(&initFormat, "format", "", "Config format: toml or yaml (default from file extension)")
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
	historyCmd.Flags().IntVarP(&historyN, "limit", "n", 20, "Number of entries to show (0 for all)")
	historyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(versionCmd)
}

func paths() *infra.Paths {
	if dataDir != "" {
		return infra.PathsIn(config.ExpandHome(dataDir), os.Geteuid() == 0)
	}
	return infra.DetectPaths()
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := createLogger(logFile, debugLog)
	defer func() { _ = logger.Sync() }()

	cfgPath := config.ExpandHome(configPath)
	if _, err := config.Load(cfgPath); err != nil {
		return err
	}

	p := paths()
	if err := p.Ensure(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	pm := infra.NewProcessManager()
	registry := infra.NewPIDFile(p.PIDFile, pm)
	if alive, _ := registry.IsAlive(); alive {
		return fmt.Errorf("hotkeyd is already running (pid file %s)", p.PIDFile)
	}

	resolver, err := command.BuildRegistry()
	if err != nil {
		return err
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	pipe := infra.NewCommandPipe(p.PipePath, logger)
	if err := pipe.Open(); err != nil {
		return err
	}
	defer pipe.Close()
	go func() {
		if err := pipe.Run(ctx); err != nil {
			logger.Error("command pipe stopped", zap.Error(err))
		}
	}()

	sources := daemon.Sources{Commands: pipe}

	if readStdin {
		keys := infra.NewLineKeySource(os.Stdin, logger)
		go func() {
			if err := keys.Run(ctx); err != nil {
				logger.Error("key source stopped", zap.Error(err))
			}
		}()
		sources.Keys = keys
	}

	if !noWatch {
		watcher := infra.NewConfigWatcher(cfgPath, infra.DefaultConfigDebounce, logger)
		if err := watcher.Start(); err != nil {
			logger.Warn("config watching disabled", zap.Error(err))
		} else {
			go watcher.Run(ctx)
			sources.ConfigChanges = watcher.Changes()
		}
	}

	d := daemon.New(
		daemon.NewFileLoader(cfgPath, logger),
		usecase.NewDispatcher(resolver, nil, logger),
		infra.NewExecSpawner(logger),
		sources,
		registry,
		domain.DaemonInfo{
			PID:        pm.GetCurrentPID(),
			ConfigPath: cfgPath,
			PipePath:   p.PipePath,
			Version:    Version,
		},
		logger,
	).WithJournal(func() (domain.Journal, error) {
		j, err := infra.OpenJournal(p.DataDir)
		if err != nil {
			return nil, err
		}
		return j, nil
	})

	err = d.Run(ctx)
	cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runStart(cmd *cobra.Command, args []string) error {
	p := paths()
	if err := p.Ensure(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	registry := infra.NewPIDFile(p.PIDFile, infra.NewProcessManager())
	if alive, _ := registry.IsAlive(); alive {
		fmt.Println("hotkeyd is already running")
		return nil
	}

	cfgPath := config.ExpandHome(configPath)
	if _, err := config.Load(cfgPath); err != nil {
		return err
	}

	if logFile == "" {
		logFile = filepath.Join(p.DataDir, "hotkeyd.log")
	}

	pid, err := infra.StartDetached("", "run",
		"--config", cfgPath,
		"--data-dir", p.DataDir,
		"--log-file", logFile)
	if err != nil {
		return err
	}

	fmt.Printf("hotkeyd started (pid %d)\n", pid)
	fmt.Printf("Logs: %s\n", logFile)
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	path := config.ExpandHome(configPath)

	format := config.Format(initFormat)
	if format == "" {
		f, err := config.FormatFor(path)
		if err != nil {
			return err
		}
		format = f
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	data, err := config.Marshal(config.Default(), format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if _, err := cfg.ChordTimeoutDuration(); err != nil {
		return err
	}

	// Child failures inside chords are only logged, so surface them on stderr.
	logger := createConsoleLogger(cmd.ErrOrStderr())
	defer func() { _ = logger.Sync() }()

	out := cmd.OutOrStdout()
	var total, invalid int
	for _, conv := range cfg.Converters(logger) {
		keybinds, err := conv.ToCoreKeybinds()
		if err != nil {
			invalid++
			fmt.Fprintf(out, "  ✗ %v\n", err)
			continue
		}
		for _, kb := range keybinds {
			total++
			fmt.Fprintf(out, "  ✓ %-24s %s\n", comboString(kb), kb.Command)
		}
	}

	fmt.Fprintf(out, "\n%d keybinds, %d invalid\n", total, invalid)
	if invalid > 0 {
		return fmt.Errorf("%d invalid keybinds in %s", invalid, configPath)
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	resolver, err := command.BuildRegistry()
	if err != nil {
		return err
	}

	c, err := resolver.Denormalize(domain.NormalizedCommand(args[0]))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Name(), c.Normalize())
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	nc := domain.NormalizedCommand(args[0])

	// Catch typos before they reach the daemon's log.
	resolver, err := command.BuildRegistry()
	if err != nil {
		return err
	}
	if _, err := resolver.Denormalize(nc); err != nil {
		return err
	}
	return sendToDaemon(nc)
}

func sendToDaemon(nc domain.NormalizedCommand) error {
	p := paths()
	pipePath := p.PipePath

	registry := infra.NewPIDFile(p.PIDFile, infra.NewProcessManager())
	if info, err := registry.Get(); err == nil && info != nil && info.PipePath != "" {
		pipePath = info.PipePath
	}

	if err := infra.SendCommand(pipePath, nc); err != nil {
		return err
	}
	fmt.Printf("Sent %s\n", nc)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	p := paths()
	registry := infra.NewPIDFile(p.PIDFile, infra.NewProcessManager())

	fmt.Println("\n=== hotkeyd Status ===")

	info, err := registry.Get()
	if err != nil {
		return err
	}
	alive, _ := registry.IsAlive()
	if info == nil || !alive {
		fmt.Println("Status: NOT RUNNING")
		if info != nil {
			fmt.Printf("Stale pid file: %s (pid %d)\n", p.PIDFile, info.PID)
		}
		fmt.Println("\nRun 'hotkeyd start' to start the daemon.")
		return nil
	}

	fmt.Println("Status: RUNNING")
	fmt.Printf("PID: %d\n", info.PID)
	if info.Version != "" {
		fmt.Printf("Version: %s\n", info.Version)
	}
	fmt.Printf("Config: %s\n", info.ConfigPath)
	fmt.Printf("Command pipe: %s\n", info.PipePath)
	if info.StartedAt > 0 {
		started := time.Unix(info.StartedAt, 0)
		fmt.Printf("Uptime: %s\n", time.Since(started).Round(time.Second))
	}
	fmt.Println("======================")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	var records []domain.DispatchRecord
	journal, err := infra.OpenExistingJournal(paths().DataDir)
	switch {
	case errors.Is(err, infra.ErrNoJournal):
	case err != nil:
		return err
	default:
		defer journal.Close()
		records, err = journal.Recent(cmd.Context(), historyN)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeHistoryJSON(out, records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No dispatches recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOUTCOME\tCOMMAND\tERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			time.Unix(0, r.At).Format(time.DateTime), r.Outcome, r.Command, r.Error)
	}
	return tw.Flush()
}

func runInstall(cmd *cobra.Command, args []string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	cfgPath, err := filepath.Abs(config.ExpandHome(configPath))
	if err != nil {
		return err
	}
	if _, err := config.Load(cfgPath); err != nil {
		return err
	}

	m := infra.NewSystemdUnitManager()
	if m.IsInstalled() && !m.NeedsUpdate(execPath, cfgPath) {
		fmt.Printf("Already installed: %s\n", m.UnitPath())
		return nil
	}
	if err := m.Install(execPath, cfgPath); err != nil {
		return err
	}

	fmt.Printf("Installed %s\n", m.UnitPath())
	fmt.Println("It starts with your next graphical session; run 'systemctl --user start hotkeyd' to start it now.")
	return nil
}

type historyEntry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Command string    `json:"command"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
}

func writeHistoryJSON(w io.Writer, records []domain.DispatchRecord) error {
	entries := make([]historyEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, historyEntry{
			ID:      r.ID,
			At:      time.Unix(0, r.At).UTC(),
			Command: r.Command.String(),
			Outcome: r.Outcome,
			Error:   r.Error,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func comboString(kb domain.Keybind) string {
	return domain.KeyEvent{Modifiers: kb.Modifier, Key: kb.Key}.String()
}

// createLogger builds the daemon logger. Empty path logs to stderr.
func createLogger(path string, debug bool) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if path != "" {
		zcfg.OutputPaths = []string{path}
		zcfg.ErrorOutputPaths = []string{path}
	}
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func createConsoleLogger(w io.Writer) *zap.Logger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapcore.WarnLevel,
	)
	return zap.New(core)
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		data, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(data))
	} else {
		fmt.Printf("hotkeyd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
