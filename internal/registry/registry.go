package registry

import (
	"fmt"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/store"
)

// Registry is the immutable, ordered catalogue of council members.
type Registry struct {
	agents       []config.AgentDefinition
	index        map[string]int
	synthesizer  int
	defaultModel string
}

// AgentStore is the subset of the store used by Sync.
type AgentStore interface {
	SaveAgent(a *store.Agent) error
	DeleteAgentsNotIn(ids []string) error
}

func New(agents []config.AgentDefinition, defaultModel string) (*Registry, error) {
	if err := config.ValidateAgents(agents); err != nil {
		return nil, err
	}

	r := &Registry{
		agents:       make([]config.AgentDefinition, len(agents)),
		index:        make(map[string]int, len(agents)),
		defaultModel: defaultModel,
	}
	copy(r.agents, agents)
	for i, a := range r.agents {
		r.index[a.ID] = i
		if a.Synthesizer {
			r.synthesizer = i
		}
	}
	return r, nil
}

// Sync mirrors the catalogue into the store so the web API can list it
// alongside run records.
func (r *Registry) Sync(s AgentStore) error {
	ids := make([]string, 0, len(r.agents))
	for i, def := range r.agents {
		ids = append(ids, def.ID)

		name := def.Name
		if name == "" {
			name = def.ID
		}
		a := &store.Agent{
			ID:          def.ID,
			Position:    i,
			Name:        name,
			Role:        def.Role,
			Description: def.Description,
			Model:       r.ResolveModel(def.ID),
			Synthesizer: def.Synthesizer,
		}
		if err := s.SaveAgent(a); err != nil {
			return fmt.Errorf("save agent %s: %w", def.ID, err)
		}
	}

	if err := s.DeleteAgentsNotIn(ids); err != nil {
		return fmt.Errorf("delete stale agents: %w", err)
	}
	return nil
}

func (r *Registry) Get(id string) (config.AgentDefinition, bool) {
	i, ok := r.index[id]
	if !ok {
		return config.AgentDefinition{}, false
	}
	return r.agents[i], true
}

// List returns the catalogue in registry order.
func (r *Registry) List() []config.AgentDefinition {
	out := make([]config.AgentDefinition, len(r.agents))
	copy(out, r.agents)
	return out
}

func (r *Registry) Len() int {
	return len(r.agents)
}

func (r *Registry) Synthesizer() config.AgentDefinition {
	return r.agents[r.synthesizer]
}

func (r *Registry) SynthesizerID() string {
	return r.agents[r.synthesizer].ID
}

// Name returns the display name of an agent, falling back to its id.
func (r *Registry) Name(id string) string {
	if def, ok := r.Get(id); ok && def.Name != "" {
		return def.Name
	}
	return id
}

func (r *Registry) ResolveModel(id string) string {
	if def, ok := r.Get(id); ok && def.Model != "" {
		return def.Model
	}
	return r.defaultModel
}
