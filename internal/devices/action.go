package devices

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

type Action string

const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
)

var ErrUnknownAction = errors.New("unknown action")

var actionAliases = map[string]Action{
	"on":      ActionOn,
	"1":       ActionOn,
	"true":    ActionOn,
	"start":   ActionOn,
	"вкл":     ActionOn,
	"включи":  ActionOn,
	"off":     ActionOff,
	"0":       ActionOff,
	"false":   ActionOff,
	"stop":    ActionOff,
	"изкл":    ActionOff,
	"изключи": ActionOff,
}

// ParseAction maps operator and webhook spellings, Bulgarian included, to an Action.
func ParseAction(s string) (Action, error) {
	if a, ok := actionAliases[fold(s)]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// IsOn reports the power state the action leads to.
func (a Action) IsOn() bool {
	return a == ActionOn
}

func ActionFor(on bool) Action {
	if on {
		return ActionOn
	}
	return ActionOff
}

// fold normalizes s for case-insensitive matching across scripts.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
