package usecase

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// MapBindings converts every converter into core keybinds. A converter
// that fails is logged and skipped; the others are still mapped.
func MapBindings(logger *zap.Logger, convs ...domain.KeybindConverter) []domain.Keybind {
	result := make([]domain.Keybind, 0, len(convs))
	for i, c := range convs {
		kbs, err := c.ToCoreKeybinds()
		if err != nil {
			logger.Error("invalid key binding",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		result = append(result, kbs...)
	}
	return result
}
