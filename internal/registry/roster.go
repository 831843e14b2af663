package registry

import (
	"fmt"
	"sync"

	"github.com/mtzanidakis/synedrio/internal/config"
)

// Roster tracks which council members take part in the next deliberation.
// A run reads it once at start, so toggling never affects a run in flight.
type Roster struct {
	reg    *Registry
	active map[string]bool
	mu     sync.RWMutex
}

func NewRoster(reg *Registry) *Roster {
	r := &Roster{
		reg:    reg,
		active: make(map[string]bool, reg.Len()),
	}
	for _, def := range reg.agents {
		r.active[def.ID] = !def.Disabled
	}
	return r
}

func (r *Roster) Set(id string, active bool) error {
	if _, ok := r.reg.Get(id); !ok {
		return fmt.Errorf("unknown agent %q", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[id] = active
	return nil
}

// Toggle flips membership and returns the new state.
func (r *Roster) Toggle(id string) (bool, error) {
	if _, ok := r.reg.Get(id); !ok {
		return false, fmt.Errorf("unknown agent %q", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[id] = !r.active[id]
	return r.active[id], nil
}

func (r *Roster) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[id]
}

// Active returns the ids of active members in registry order.
func (r *Roster) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.active))
	for _, def := range r.reg.agents {
		if r.active[def.ID] {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

// AgentStatus is a catalogue entry together with its roster membership.
type AgentStatus struct {
	config.AgentDefinition
	Active bool `json:"active"`
}

func (r *Roster) Statuses() []AgentStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AgentStatus, 0, len(r.reg.agents))
	for _, def := range r.reg.agents {
		out = append(out, AgentStatus{AgentDefinition: def, Active: r.active[def.ID]})
	}
	return out
}

// Select picks the agents for a turn: leading @mentions win over the roster.
// It returns the chosen ids and the turn text without the mentions.
func (r *Roster) Select(content string) ([]string, string) {
	if ids, rest := r.reg.ParseMentions(content); len(ids) > 0 {
		return ids, rest
	}
	return r.Active(), content
}
