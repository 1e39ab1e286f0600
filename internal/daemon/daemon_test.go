package daemon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/command"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/usecase"
)

// chanKeys implements domain.KeySource for testing
type chanKeys chan domain.KeyEvent

func (c chanKeys) Events() <-chan domain.KeyEvent { return c }

// chanCommands implements domain.CommandSource for testing
type chanCommands chan domain.NormalizedCommand

func (c chanCommands) Commands() <-chan domain.NormalizedCommand { return c }

// recordingSpawner implements domain.Spawner for testing
type recordingSpawner struct {
	mu      sync.Mutex
	spawned []string
}

func (s *recordingSpawner) Spawn(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawned = append(s.spawned, cmd)
	return nil
}

func (s *recordingSpawner) Spawned() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spawned...)
}

// mockRegistry implements domain.DaemonRegistry for testing
type mockRegistry struct {
	mu          sync.Mutex
	info        *domain.DaemonInfo
	registerErr error
	cleared     bool
}

func (m *mockRegistry) Register(info domain.DaemonInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return m.registerErr
	}
	m.info = &info
	return nil
}

func (m *mockRegistry) Get() (*domain.DaemonInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info, nil
}

func (m *mockRegistry) IsAlive() (bool, error) { return m.info != nil, nil }

func (m *mockRegistry) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = nil
	m.cleared = true
	return nil
}

// recordingJournal implements domain.Journal for testing
type recordingJournal struct {
	mu       sync.Mutex
	commands []domain.NormalizedCommand
	closed   bool
}

func (j *recordingJournal) Record(ctx context.Context, rec domain.DispatchRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.commands = append(j.commands, rec.Command)
	return nil
}

func (j *recordingJournal) Recent(ctx context.Context, limit int) ([]domain.DispatchRecord, error) {
	return nil, nil
}

func (j *recordingJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

func kb(nc domain.NormalizedCommand, key string, mods ...string) domain.Keybind {
	return domain.Keybind{Command: nc, Modifier: mods, Key: key}
}

func key(k string, mods ...string) domain.KeyEvent {
	return domain.KeyEvent{Modifiers: mods, Key: k}
}

// sampleKeybinds: Mod4+Return runs st, Mod4+x enters a chord with l (slock)
// and Escape (exit), Mod4+q kills.
func sampleKeybinds() []domain.Keybind {
	return []domain.Keybind{
		kb(command.NewExecute("st").Normalize(), "Return", "Mod4"),
		kb(command.NewChord([]domain.Keybind{
			kb(command.NewExecute("slock").Normalize(), "l"),
			kb(command.NewExitChord().Normalize(), "Escape"),
		}).Normalize(), "x", "Mod4"),
		kb(command.NewKill().Normalize(), "q", "Mod4"),
	}
}

type harness struct {
	keys     chanKeys
	commands chanCommands
	changes  chan struct{}
	spawner  *recordingSpawner
	registry *mockRegistry
	daemon   *Daemon
}

func newHarness(t *testing.T, loader BindingLoader) *harness {
	t.Helper()
	reg, err := command.BuildRegistry()
	require.NoError(t, err)

	h := &harness{
		keys:     make(chanKeys),
		commands: make(chanCommands),
		changes:  make(chan struct{}),
		spawner:  &recordingSpawner{},
		registry: &mockRegistry{},
	}
	h.daemon = New(
		loader,
		usecase.NewDispatcher(reg, nil, zap.NewNop()),
		h.spawner,
		Sources{Keys: h.keys, Commands: h.commands, ConfigChanges: h.changes},
		h.registry,
		domain.DaemonInfo{PID: 4242},
		zap.NewNop(),
	)
	return h
}

func staticLoader(s Settings) BindingLoader {
	return LoaderFunc(func() (*Settings, error) {
		copied := s
		return &copied, nil
	})
}

// start runs the daemon and returns a channel receiving Run's result.
func (h *harness) start(t *testing.T, ctx context.Context) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- h.daemon.Run(ctx) }()
	return done
}

func (h *harness) press(t *testing.T, ev domain.KeyEvent) {
	t.Helper()
	select {
	case h.keys <- ev:
	case <-time.After(2 * time.Second):
		t.Fatalf("daemon did not accept key %s", ev)
	}
}

func (h *harness) send(t *testing.T, nc domain.NormalizedCommand) {
	t.Helper()
	select {
	case h.commands <- nc:
	case <-time.After(2 * time.Second):
		t.Fatalf("daemon did not accept command %s", nc)
	}
}

// stop sends Kill and waits for Run to return nil.
func (h *harness) stop(t *testing.T, done <-chan error) {
	t.Helper()
	h.send(t, command.NewKill().Normalize())
	wait(t, done)
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
		return nil
	}
}

func TestRun_KillStops(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds()}))
	done := h.start(t, context.Background())

	h.press(t, key("q", "Mod4"))

	assert.NoError(t, wait(t, done))
	assert.True(t, h.registry.cleared)
}

func TestRun_RegistersDaemon(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds()}))
	done := h.start(t, context.Background())

	// The first accepted event proves Run is past registration.
	h.press(t, key("nothing"))
	info, err := h.registry.Get()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 4242, info.PID)

	h.stop(t, done)
}

func TestRun_ContextCancel(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := h.start(t, ctx)

	cancel()

	assert.ErrorIs(t, wait(t, done), context.Canceled)
	assert.True(t, h.registry.cleared)
}

func TestRun_InitialLoadFailure(t *testing.T) {
	loadErr := errors.New("bad config")
	h := newHarness(t, LoaderFunc(func() (*Settings, error) { return nil, loadErr }))

	err := h.daemon.Run(context.Background())
	assert.ErrorIs(t, err, loadErr)
	assert.Nil(t, h.registry.info)
}

func TestRun_RegistryFailure(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{}))
	h.registry.registerErr = errors.New("read-only fs")

	assert.Error(t, h.daemon.Run(context.Background()))
}

func TestRun_KeyExecutes(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds()}))
	done := h.start(t, context.Background())

	h.press(t, key("Return", "Mod4"))
	h.press(t, key("Return"))
	h.stop(t, done)

	assert.Equal(t, []string{"st"}, h.spawner.Spawned())
}

func TestRun_PipeCommandExecutes(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{}))
	done := h.start(t, context.Background())

	h.send(t, command.NewExecute("notify-send hi").Normalize())
	h.send(t, "Garbage(")
	h.stop(t, done)

	assert.Equal(t, []string{"notify-send hi"}, h.spawner.Spawned())
}

func TestRun_ChordExitsOnUnmatchedKey(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds(), ExitChordOnUnmatched: true}))
	done := h.start(t, context.Background())

	h.press(t, key("x", "Mod4"))
	h.press(t, key("l"))
	h.press(t, key("l"))
	h.press(t, key("z")) // unmatched: leaves the chord
	h.press(t, key("l")) // global scope: no binding
	h.press(t, key("Return", "Mod4"))
	h.stop(t, done)

	assert.Equal(t, []string{"slock", "slock", "st"}, h.spawner.Spawned())
}

func TestRun_ChordIgnoresUnmatchedKeyWhenDisabled(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds(), ExitChordOnUnmatched: false}))
	done := h.start(t, context.Background())

	h.press(t, key("x", "Mod4"))
	h.press(t, key("z"))
	h.press(t, key("l"))
	h.press(t, key("Return", "Mod4")) // global bindings are inactive inside the chord
	h.stop(t, done)

	assert.Equal(t, []string{"slock"}, h.spawner.Spawned())
}

func TestRun_ExitChordCommand(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds()}))
	done := h.start(t, context.Background())

	h.press(t, key("x", "Mod4"))
	h.press(t, key("Escape"))
	h.press(t, key("l"))
	h.press(t, key("Return", "Mod4"))
	h.stop(t, done)

	assert.Equal(t, []string{"st"}, h.spawner.Spawned())
}

func TestRun_ChordTimeout(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds(), ChordTimeout: 20 * time.Millisecond}))
	done := h.start(t, context.Background())

	h.press(t, key("x", "Mod4"))
	time.Sleep(150 * time.Millisecond)
	h.press(t, key("l"))
	h.press(t, key("Return", "Mod4"))
	h.stop(t, done)

	assert.Equal(t, []string{"st"}, h.spawner.Spawned())
}

func TestRun_ChordTimeoutRestartsOnActivity(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds(), ChordTimeout: 300 * time.Millisecond}))
	done := h.start(t, context.Background())

	h.press(t, key("x", "Mod4"))
	for i := 0; i < 3; i++ {
		time.Sleep(100 * time.Millisecond)
		h.press(t, key("l"))
	}
	h.stop(t, done)

	assert.Equal(t, []string{"slock", "slock", "slock"}, h.spawner.Spawned())
}

func TestRun_ReloadCommand(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func() (*Settings, error) {
		if calls.Add(1) == 1 {
			return &Settings{Keybinds: sampleKeybinds()}, nil
		}
		return &Settings{Keybinds: []domain.Keybind{
			kb(command.NewExecute("alacritty").Normalize(), "Return", "Mod4"),
		}}, nil
	})
	h := newHarness(t, loader)
	done := h.start(t, context.Background())

	h.press(t, key("Return", "Mod4"))
	h.send(t, command.NewReload().Normalize())
	h.press(t, key("Return", "Mod4"))
	h.stop(t, done)

	assert.Equal(t, []string{"st", "alacritty"}, h.spawner.Spawned())
	assert.Equal(t, int32(2), calls.Load())
}

func TestRun_ReloadLeavesChord(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds()}))
	done := h.start(t, context.Background())

	h.press(t, key("x", "Mod4"))
	h.send(t, command.NewReload().Normalize())
	h.press(t, key("l"))
	h.press(t, key("Return", "Mod4"))
	h.stop(t, done)

	assert.Equal(t, []string{"st"}, h.spawner.Spawned())
}

func TestRun_ReloadFailureKeepsKeybinds(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func() (*Settings, error) {
		if calls.Add(1) == 1 {
			return &Settings{Keybinds: sampleKeybinds()}, nil
		}
		return nil, errors.New("syntax error")
	})
	h := newHarness(t, loader)
	done := h.start(t, context.Background())

	h.send(t, command.NewReload().Normalize())
	h.press(t, key("Return", "Mod4"))
	h.stop(t, done)

	assert.Equal(t, []string{"st"}, h.spawner.Spawned())
}

func TestRun_ConfigChangeReloads(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func() (*Settings, error) {
		calls.Add(1)
		return &Settings{Keybinds: sampleKeybinds()}, nil
	})
	h := newHarness(t, loader)
	done := h.start(t, context.Background())

	select {
	case h.changes <- struct{}{}:
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not accept change notification")
	}
	h.stop(t, done)

	assert.Equal(t, int32(2), calls.Load())
}

func TestRun_ClosedKeySourceKeepsRunning(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds()}))
	done := h.start(t, context.Background())

	close(h.keys)
	h.send(t, command.NewExecute("st").Normalize())
	h.stop(t, done)

	assert.Equal(t, []string{"st"}, h.spawner.Spawned())
}

func TestRun_NilSources(t *testing.T) {
	reg, err := command.BuildRegistry()
	require.NoError(t, err)
	d := New(staticLoader(Settings{}), usecase.NewDispatcher(reg, nil, zap.NewNop()),
		&recordingSpawner{}, Sources{}, nil, domain.DaemonInfo{}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Run(ctx), context.DeadlineExceeded)
}

func TestRun_ReloadTogglesJournal(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func() (*Settings, error) {
		n := calls.Add(1)
		return &Settings{Keybinds: sampleKeybinds(), Journal: n == 2}, nil
	})
	h := newHarness(t, loader)

	var opened []*recordingJournal
	h.daemon.WithJournal(func() (domain.Journal, error) {
		j := &recordingJournal{}
		opened = append(opened, j)
		return j, nil
	})
	done := h.start(t, context.Background())

	h.press(t, key("Return", "Mod4"))
	h.send(t, command.NewReload().Normalize())
	h.press(t, key("Return", "Mod4"))
	h.send(t, command.NewReload().Normalize())
	h.press(t, key("Return", "Mod4"))
	h.stop(t, done)

	require.Len(t, opened, 1)
	assert.Equal(t, []domain.NormalizedCommand{
		command.NewExecute("st").Normalize(),
		command.NewReload().Normalize(),
	}, opened[0].commands)
	assert.True(t, opened[0].closed)
}

func TestRun_JournalClosedOnExit(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds(), Journal: true}))
	j := &recordingJournal{}
	h.daemon.WithJournal(func() (domain.Journal, error) { return j, nil })
	done := h.start(t, context.Background())

	h.press(t, key("Return", "Mod4"))
	h.stop(t, done)

	assert.Equal(t, []domain.NormalizedCommand{
		command.NewExecute("st").Normalize(),
		command.NewKill().Normalize(),
	}, j.commands)
	assert.True(t, j.closed)
}

func TestRun_JournalOpenFailureKeepsRunning(t *testing.T) {
	h := newHarness(t, staticLoader(Settings{Keybinds: sampleKeybinds(), Journal: true}))
	h.daemon.WithJournal(func() (domain.Journal, error) { return nil, errors.New("bad key") })
	done := h.start(t, context.Background())

	h.press(t, key("Return", "Mod4"))
	h.stop(t, done)

	assert.Equal(t, []string{"st"}, h.spawner.Spawned())
}
