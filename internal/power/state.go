package power

import (
	"sync"
	"time"

	"smart-stay/internal/obs"
)

const SourceSystem = "system"

// Snapshot is the power state as of its last accepted update.
type Snapshot struct {
	IsOn       bool      `json:"is_on"`
	Source     string    `json:"source"`
	LastUpdate time.Time `json:"last_update"`
}

// State holds the canonical "is the circuit on" flag. Updates are last-write-wins in
// acceptance order.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState starts in the off position.
func NewState(now time.Time) *State {
	return &State{snap: Snapshot{IsOn: false, Source: SourceSystem, LastUpdate: now}}
}

func (s *State) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *State) Set(isOn bool, source string, at time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{IsOn: isOn, Source: source, LastUpdate: at}
	if isOn {
		obs.PowerOn.Set(1)
	} else {
		obs.PowerOn.Set(0)
	}
	return s.snap
}
