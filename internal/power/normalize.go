package power

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

var ErrInvalidInput = errors.New("invalid power state")

var stateWords = map[string]bool{
	"on":       true,
	"true":     true,
	"1":        true,
	"вкл":      true,
	"включен":  true,
	"включи":   true,
	"off":      false,
	"false":    false,
	"0":        false,
	"изкл":     false,
	"изключен": false,
	"изключи":  false,
}

// Normalize interprets a reported power state. Numbers other than 1 and 0 and any
// unknown word are rejected with ErrInvalidInput.
func Normalize(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		return numberState(v, raw)
	case int:
		return numberState(float64(v), raw)
	case int64:
		return numberState(float64(v), raw)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidInput, raw)
		}
		return numberState(f, raw)
	case string:
		if on, ok := stateWords[cases.Fold().String(strings.TrimSpace(v))]; ok {
			return on, nil
		}
	}
	return false, fmt.Errorf("%w: %v", ErrInvalidInput, raw)
}

func numberState(f float64, raw any) (bool, error) {
	switch f {
	case 1:
		return true, nil
	case 0:
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrInvalidInput, raw)
}
