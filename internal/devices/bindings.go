package devices

import (
	"sync"

	"smart-stay/internal/config"
)

type Binding struct {
	DeviceID string `json:"device_id" yaml:"device_id"`
	Command  string `json:"command" yaml:"command"`
}

// Bindings maps each action to the device and command that performs it. Entries are
// repointed in memory when a command succeeds against a re-resolved device.
type Bindings struct {
	mu       sync.RWMutex
	bindings map[Action]Binding
}

func NewBindings(on Binding, off Binding) *Bindings {
	return &Bindings{
		bindings: map[Action]Binding{
			ActionOn:  on,
			ActionOff: off,
		},
	}
}

func BindingsFromConfig(cfg config.SmartThingsConfig) *Bindings {
	return NewBindings(
		Binding{DeviceID: cfg.On.DeviceID, Command: cfg.On.Command},
		Binding{DeviceID: cfg.Off.DeviceID, Command: cfg.Off.Command},
	)
}

func (b *Bindings) Get(action Action) (Binding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	binding, ok := b.bindings[action]
	return binding, ok && binding.DeviceID != ""
}

func (b *Bindings) Repoint(action Action, deviceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	binding := b.bindings[action]
	binding.DeviceID = deviceID
	b.bindings[action] = binding
}

func (b *Bindings) All() map[Action]Binding {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[Action]Binding, len(b.bindings))
	for k, v := range b.bindings {
		out[k] = v
	}
	return out
}
