package infra

import (
	"bufio"
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// LineKeySource implements domain.KeySource by reading one key combo per
// line (e.g. "Mod4+Shift+Return"). Lines starting with # are ignored.
type LineKeySource struct {
	r      io.Reader
	events chan domain.KeyEvent
	logger *zap.Logger
}

// NewLineKeySource creates a key source reading from r.
func NewLineKeySource(r io.Reader, logger *zap.Logger) *LineKeySource {
	return &LineKeySource{
		r:      r,
		events: make(chan domain.KeyEvent),
		logger: logger,
	}
}

// Events returns the event channel. It is closed at end of input.
func (s *LineKeySource) Events() <-chan domain.KeyEvent {
	return s.events
}

// Run reads r until EOF or ctx is cancelled.
func (s *LineKeySource) Run(ctx context.Context) error {
	defer close(s.events)

	scanner := bufio.NewScanner(s.r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ev, err := domain.ParseKeyCombo(line)
		if err != nil {
			s.logger.Warn("ignoring invalid key combo",
				zap.String("input", line),
				zap.Error(err))
			continue
		}

		select {
		case s.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
	return scanner.Err()
}

// Ensure LineKeySource implements domain.KeySource.
var _ domain.KeySource = (*LineKeySource)(nil)
