//go:build integration

package integration

import (
	"context"
	"io"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/command"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/daemon"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/infra"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/usecase"
	"github.com/eliteGoblin/focusd/hotkeyd/test/fixtures"
)

var _ = Describe("Daemon", func() {
	var (
		ws       *fixtures.Workspace
		paths    *infra.Paths
		registry *infra.PIDFile
		keysIn   *io.PipeWriter
		ctx      context.Context
		cancel   context.CancelFunc
		done     chan error
	)

	// startDaemon wires the real infrastructure the way `hotkeyd run --stdin` does.
	startDaemon := func(opts fixtures.SampleOptions) {
		Expect(ws.WriteSampleConfig(opts)).To(Succeed())

		logger := zap.NewNop()
		ctx, cancel = context.WithCancel(context.Background())

		resolver, err := command.BuildRegistry()
		Expect(err).NotTo(HaveOccurred())

		pipe := infra.NewCommandPipe(paths.PipePath, logger)
		Expect(pipe.Open()).To(Succeed())
		DeferCleanup(pipe.Close)
		go func() { _ = pipe.Run(ctx) }()

		var keysOut *io.PipeReader
		keysOut, keysIn = io.Pipe()
		keys := infra.NewLineKeySource(keysOut, logger)
		go func() { _ = keys.Run(ctx) }()

		watcher := infra.NewConfigWatcher(ws.ConfigPath, 50*time.Millisecond, logger)
		Expect(watcher.Start()).To(Succeed())
		go watcher.Run(ctx)

		registry = infra.NewPIDFile(paths.PIDFile, infra.NewProcessManager())

		d := daemon.New(
			daemon.NewFileLoader(ws.ConfigPath, logger),
			usecase.NewDispatcher(resolver, nil, logger),
			infra.NewExecSpawner(logger),
			daemon.Sources{Keys: keys, Commands: pipe, ConfigChanges: watcher.Changes()},
			registry,
			domain.DaemonInfo{PID: os.Getpid(), ConfigPath: ws.ConfigPath, PipePath: paths.PipePath},
			logger,
		).WithJournal(func() (domain.Journal, error) {
			j, err := infra.OpenJournal(paths.DataDir)
			if err != nil {
				return nil, err
			}
			return j, nil
		})

		done = make(chan error, 1)
		go func() { done <- d.Run(ctx) }()

		Eventually(func() bool {
			alive, _ := registry.IsAlive()
			return alive
		}).WithTimeout(2 * time.Second).Should(BeTrue())
	}

	press := func(combo string) {
		_, err := io.WriteString(keysIn, combo+"\n")
		Expect(err).NotTo(HaveOccurred())
	}

	send := func(nc domain.NormalizedCommand) {
		Expect(infra.SendCommand(paths.PipePath, nc)).To(Succeed())
	}

	BeforeEach(func() {
		var err error
		ws, err = fixtures.NewWorkspace(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
		paths = infra.PathsIn(ws.DataDir, false)
	})

	AfterEach(func() {
		if cancel != nil {
			cancel()
		}
		if keysIn != nil {
			keysIn.Close()
		}
	})

	Describe("key presses", func() {
		It("should execute the bound command", func() {
			startDaemon(fixtures.SampleOptions{})

			press("Mod4+Return")

			Eventually(func() bool { return ws.Marker("terminal") }).
				WithTimeout(2 * time.Second).Should(BeTrue())
		})

		It("should run chord children only inside the chord", func() {
			startDaemon(fixtures.SampleOptions{})

			press("l")
			press("Mod4+x")
			press("l")

			Eventually(func() bool { return ws.Marker("locked") }).
				WithTimeout(2 * time.Second).Should(BeTrue())
		})

		It("should leave the chord on Escape", func() {
			startDaemon(fixtures.SampleOptions{})

			press("Mod4+x")
			press("Escape")
			press("l")
			press("Mod4+Return")

			Eventually(func() bool { return ws.Marker("terminal") }).
				WithTimeout(2 * time.Second).Should(BeTrue())
			Expect(ws.Marker("locked")).To(BeFalse())
		})

		It("should stop on the kill binding and clear the pid file", func() {
			startDaemon(fixtures.SampleOptions{})

			press("Mod4+Shift+q")

			Eventually(done).WithTimeout(2 * time.Second).Should(Receive(BeNil()))
			info, err := registry.Get()
			Expect(err).NotTo(HaveOccurred())
			Expect(info).To(BeNil())
		})
	})

	Describe("command pipe", func() {
		It("should execute sent commands", func() {
			startDaemon(fixtures.SampleOptions{})

			send(command.NewExecute("touch " + ws.OutDir + "/from-pipe").Normalize())

			Eventually(func() bool { return ws.Marker("from-pipe") }).
				WithTimeout(2 * time.Second).Should(BeTrue())
		})

		It("should stop on Kill()", func() {
			startDaemon(fixtures.SampleOptions{})

			send(command.NewKill().Normalize())

			Eventually(done).WithTimeout(2 * time.Second).Should(Receive(BeNil()))
		})

		It("should survive unrecognized commands", func() {
			startDaemon(fixtures.SampleOptions{})

			send("Explode()")
			press("Mod4+Return")

			Eventually(func() bool { return ws.Marker("terminal") }).
				WithTimeout(2 * time.Second).Should(BeTrue())
			Consistently(done).WithTimeout(200 * time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("reloading", func() {
		It("should pick up a rewritten config on the reload binding", func() {
			startDaemon(fixtures.SampleOptions{Marker: "before"})

			Expect(ws.WriteSampleConfig(fixtures.SampleOptions{Marker: "after"})).To(Succeed())
			press("Mod4+Shift+r")
			press("Mod4+Return")

			Eventually(func() bool { return ws.Marker("after") }).
				WithTimeout(2 * time.Second).Should(BeTrue())
			Expect(ws.Marker("before")).To(BeFalse())
		})

		It("should reload when the config file changes", func() {
			startDaemon(fixtures.SampleOptions{Marker: "before"})

			Expect(ws.WriteSampleConfig(fixtures.SampleOptions{Marker: "after"})).To(Succeed())

			Eventually(func() bool {
				press("Mod4+Return")
				return ws.Marker("after")
			}).WithTimeout(3 * time.Second).WithPolling(100 * time.Millisecond).Should(BeTrue())
		})
	})

	Describe("journal", func() {
		It("should leave no journal files when disabled", func() {
			startDaemon(fixtures.SampleOptions{})

			press("Mod4+Return")
			Eventually(func() bool { return ws.Marker("terminal") }).
				WithTimeout(2 * time.Second).Should(BeTrue())
			send(command.NewKill().Normalize())
			Eventually(done).WithTimeout(2 * time.Second).Should(Receive(BeNil()))

			_, err := infra.OpenExistingJournal(paths.DataDir)
			Expect(err).To(MatchError(infra.ErrNoJournal))
		})

		It("should record every dispatch", func() {
			startDaemon(fixtures.SampleOptions{Journal: true})

			press("Mod4+Return")
			Eventually(func() bool { return ws.Marker("terminal") }).
				WithTimeout(2 * time.Second).Should(BeTrue())
			send("Explode()")
			send(command.NewKill().Normalize())
			Eventually(done).WithTimeout(2 * time.Second).Should(Receive(BeNil()))

			j, err := infra.OpenExistingJournal(paths.DataDir)
			Expect(err).NotTo(HaveOccurred())
			defer j.Close()

			records, err := j.Recent(context.Background(), 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(records[0].Command).To(Equal(command.NewKill().Normalize()))
			Expect(records[1].Outcome).To(Equal(string(usecase.OutcomeUnrecognized)))
			Expect(records[2].Outcome).To(Equal(string(usecase.OutcomeExecuted)))
		})
	})
})
