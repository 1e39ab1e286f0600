package command

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/eliteGoblin/focusd/hotkeyd/internal/domain"
)

// encode builds the canonical form Name(payload).
// A nil payload yields Name().
func encode(name string, payload any) domain.NormalizedCommand {
	if payload == nil {
		return domain.NormalizedCommand(name + "()")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Payloads are plain strings and keybinds; failing here is a programming error.
		panic(fmt.Sprintf("command: cannot encode %s payload: %v", name, err))
	}
	return domain.NormalizedCommand(name + "(" + string(data) + ")")
}

// decode parses nc as Name(payload) into payload.
// Only the exact canonical form is accepted: the decoded value must encode
// back to nc byte for byte.
func decode(nc domain.NormalizedCommand, name string, payload any) bool {
	s := string(nc)
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return false
	}
	inner := s[len(name)+1 : len(s)-1]

	if payload == nil {
		return inner == ""
	}
	if inner == "" {
		return false
	}
	if err := json.Unmarshal([]byte(inner), payload); err != nil {
		return false
	}
	return reencodes(nc, name, payload)
}

// validText replaces invalid UTF-8 with U+FFFD. JSON strings cannot carry
// such bytes, so a payload holding them would not decode to itself.
func validText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// validKeybinds returns kbs with every string made valid UTF-8. Nil and empty
// modifier lists are kept as they are.
func validKeybinds(kbs []domain.Keybind) []domain.Keybind {
	if kbs == nil {
		return nil
	}
	out := make([]domain.Keybind, len(kbs))
	for i, kb := range kbs {
		out[i] = domain.Keybind{
			Command:  domain.NormalizedCommand(validText(string(kb.Command))),
			Modifier: kb.Modifier,
			Key:      validText(kb.Key),
		}
		if kb.Modifier != nil {
			out[i].Modifier = make([]string, len(kb.Modifier))
			for j, m := range kb.Modifier {
				out[i].Modifier[j] = validText(m)
			}
		}
	}
	return out
}

func reencodes(nc domain.NormalizedCommand, name string, payload any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return encode(name, payload) == nc
}
