package council

import (
	"fmt"

	"github.com/mtzanidakis/synedrio/internal/config"
)

// Plan describes the tiers of one deliberation: analysts run in parallel,
// then (optionally) critique among them, then the synthesizer alone.
type Plan struct {
	Analysts          []config.AgentDefinition
	Synthesizer       config.AgentDefinition
	SynthesizerActive bool
	Critique          bool
	Ignored           []string // active ids not present in the catalogue
}

// BuildPlan filters the catalogue by the active set, keeping catalogue order.
// It returns an error if synthesizerID is not a catalogue member.
func BuildPlan(agents []config.AgentDefinition, active []string, synthesizerID string) (*Plan, error) {
	known := make(map[string]bool, len(agents))
	for _, a := range agents {
		known[a.ID] = true
	}
	if !known[synthesizerID] {
		return nil, fmt.Errorf("synthesizer %q is not a member of the council", synthesizerID)
	}

	activeSet := make(map[string]bool, len(active))
	plan := &Plan{}
	for _, id := range active {
		if !known[id] {
			plan.Ignored = append(plan.Ignored, id)
			continue
		}
		activeSet[id] = true
	}

	for _, a := range agents {
		if a.ID == synthesizerID {
			plan.Synthesizer = a
			plan.SynthesizerActive = activeSet[a.ID]
			continue
		}
		if activeSet[a.ID] {
			plan.Analysts = append(plan.Analysts, a)
		}
	}
	plan.Critique = len(plan.Analysts) > 1

	return plan, nil
}

// AnalystIDs returns the analyst ids in execution order.
func (p *Plan) AnalystIDs() []string {
	ids := make([]string, len(p.Analysts))
	for i, a := range p.Analysts {
		ids[i] = a.ID
	}
	return ids
}
