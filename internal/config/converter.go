package config

import (
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/command"
	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// Command kinds accepted in Keybind.Command. Matching is case-insensitive.
const (
	KindExecute   = "Execute"
	KindExecutes  = "Executes"
	KindChord     = "Chord"
	KindExitChord = "ExitChord"
	KindReload    = "Reload"
	KindKill      = "Kill"
)

var kinds = []string{KindExecute, KindExecutes, KindChord, KindExitChord, KindReload, KindKill}

func parseKind(s string) (string, bool) {
	for _, k := range kinds {
		if strings.EqualFold(k, strings.TrimSpace(s)) {
			return k, true
		}
	}
	return "", false
}

// Converter expands user keybinds into core keybinds.
type Converter struct {
	defaultModifier string
	logger          *zap.Logger
}

// NewConverter creates a converter substituting ModKey with defaultModifier.
func NewConverter(defaultModifier string, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{
		defaultModifier: defaultModifier,
		logger:          logger,
	}
}

type commandKey struct {
	cmd command.Command
	key string
}

// Convert expands kb into one or more core keybinds.
// Chord children that fail to convert are logged and dropped.
func (c *Converter) Convert(kb Keybind) ([]domain.Keybind, error) {
	pairs, err := c.pairs(kb)
	if err != nil {
		return nil, &ConvertError{Command: kb.Command, Key: describeKey(kb), Err: err}
	}

	result := make([]domain.Keybind, 0, len(pairs))
	for _, p := range pairs {
		result = append(result, domain.Keybind{
			Command:  p.cmd.Normalize(),
			Modifier: c.modifiers(kb.Modifier),
			Key:      strings.ToValidUTF8(p.key, "\uFFFD"),
		})
	}
	return result, nil
}

func (c *Converter) pairs(kb Keybind) ([]commandKey, error) {
	kind, ok := parseKind(kb.Command)
	if !ok {
		return nil, ErrUnknownCommand
	}

	switch kind {
	case KindChord:
		if len(kb.Children) == 0 {
			return nil, ErrChildrenNotFound
		}
		key, err := singleKey(kb)
		if err != nil {
			return nil, err
		}
		return []commandKey{{command.NewChord(c.convertChildren(kb)), key}}, nil

	case KindExecute:
		if kb.Value == "" {
			return nil, ErrValueNotFound
		}
		key, err := singleKey(kb)
		if err != nil {
			return nil, err
		}
		return []commandKey{{command.NewExecute(kb.Value), key}}, nil

	case KindExecutes:
		if len(kb.Values) == 0 {
			return nil, ErrValuesNotFound
		}
		for _, v := range kb.Values {
			if v == "" {
				return nil, ErrValuesNotFound
			}
		}
		keys, err := multipleKeys(kb)
		if err != nil {
			return nil, err
		}
		if len(keys) != len(kb.Values) {
			return nil, ErrKeyCountMismatch
		}
		pairs := make([]commandKey, len(keys))
		for i, v := range kb.Values {
			pairs[i] = commandKey{command.NewExecute(v), keys[i]}
		}
		return pairs, nil

	case KindExitChord:
		return singleKeyPair(kb, command.NewExitChord())
	case KindReload:
		return singleKeyPair(kb, command.NewReload())
	default:
		return singleKeyPair(kb, command.NewKill())
	}
}

// convertChildren converts every child, dropping the ones that fail.
func (c *Converter) convertChildren(parent Keybind) []domain.Keybind {
	children := make([]domain.Keybind, 0, len(parent.Children))
	for _, child := range parent.Children {
		converted, err := c.Convert(child)
		if err != nil {
			c.logger.Error("invalid key binding in chord",
				zap.String("chord_key", describeKey(parent)),
				zap.Error(err))
			continue
		}
		children = append(children, converted...)
	}
	return children
}

func (c *Converter) modifiers(mods []string) []string {
	if mods == nil {
		return nil
	}
	result := make([]string, len(mods))
	for i, m := range mods {
		if strings.EqualFold(m, ModKey) && c.defaultModifier != "" {
			m = c.defaultModifier
		}
		result[i] = strings.ToValidUTF8(m, "\uFFFD")
	}
	return result
}

// Bind returns kb as a domain.KeybindConverter.
func (c *Converter) Bind(kb Keybind) domain.KeybindConverter {
	return boundKeybind{converter: c, keybind: kb}
}

type boundKeybind struct {
	converter *Converter
	keybind   Keybind
}

func (b boundKeybind) ToCoreKeybinds() ([]domain.Keybind, error) {
	return b.converter.Convert(b.keybind)
}

func singleKeyPair(kb Keybind, cmd command.Command) ([]commandKey, error) {
	key, err := singleKey(kb)
	if err != nil {
		return nil, err
	}
	return []commandKey{{cmd, key}}, nil
}

func singleKey(kb Keybind) (string, error) {
	switch {
	case kb.Key != "" && len(kb.Keys) > 0:
		return "", ErrAmbiguousKey
	case len(kb.Keys) > 0:
		return "", ErrSingleKeyNeeded
	case kb.Key == "":
		return "", ErrKeyNotFound
	}
	return kb.Key, nil
}

func multipleKeys(kb Keybind) ([]string, error) {
	switch {
	case kb.Key != "" && len(kb.Keys) > 0:
		return nil, ErrAmbiguousKey
	case kb.Key != "":
		return nil, ErrMultipleKeysNeeded
	case len(kb.Keys) == 0:
		return nil, ErrKeyNotFound
	}
	for _, k := range kb.Keys {
		if k == "" {
			return nil, ErrKeyNotFound
		}
	}
	return kb.Keys, nil
}

func describeKey(kb Keybind) string {
	if kb.Key != "" {
		return kb.Key
	}
	return strings.Join(kb.Keys, ",")
}

var _ domain.KeybindConverter = boundKeybind{}
