package registry

import (
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/store"
)

func testAgents() []config.AgentDefinition {
	return []config.AgentDefinition{
		{ID: "chairman", Name: "The Judge", Synthesizer: true, Model: "gemini-3-pro-preview"},
		{ID: "forensic", Name: "Objective Analyst"},
		{ID: "ux-director", Name: "Subjective Analyst", Disabled: true},
		{ID: "consumer", Name: "The Public Voice", Model: "gemini-2.5-flash"},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(testAgents(), "default-model")
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestNewRejectsInvalidCatalogue(t *testing.T) {
	_, err := New([]config.AgentDefinition{{ID: "a"}}, "")
	if !errors.Is(err, config.ErrNoSynthesizer) {
		t.Fatalf("expected ErrNoSynthesizer, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	reg := newTestRegistry(t)

	if reg.SynthesizerID() != "chairman" {
		t.Errorf("expected chairman synthesizer, got %s", reg.SynthesizerID())
	}
	def, ok := reg.Get("consumer")
	if !ok || def.Name != "The Public Voice" {
		t.Errorf("unexpected lookup result: %+v, %v", def, ok)
	}
	if _, ok := reg.Get("nobody"); ok {
		t.Error("expected unknown agent lookup to fail")
	}
	if got := reg.ResolveModel("forensic"); got != "default-model" {
		t.Errorf("expected default model fallback, got %s", got)
	}
	if got := reg.ResolveModel("consumer"); got != "gemini-2.5-flash" {
		t.Errorf("expected agent model, got %s", got)
	}
	if got := reg.Name("nobody"); got != "nobody" {
		t.Errorf("expected id fallback for name, got %s", got)
	}

	list := reg.List()
	list[0].Name = "mutated"
	if reg.Synthesizer().Name != "The Judge" {
		t.Error("List must return a copy")
	}
}

func TestSync(t *testing.T) {
	reg := newTestRegistry(t)
	s, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	_ = s.SaveAgent(&store.Agent{ID: "stale", Name: "Stale"})

	if err := reg.Sync(s); err != nil {
		t.Fatalf("sync: %v", err)
	}

	agents, err := s.ListAgents()
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 4 {
		t.Fatalf("expected 4 agents, got %d", len(agents))
	}
	if agents[0].ID != "chairman" || !agents[0].Synthesizer {
		t.Errorf("expected chairman first as synthesizer, got %+v", agents[0])
	}
	if agents[1].Model != "default-model" {
		t.Errorf("expected resolved model persisted, got %s", agents[1].Model)
	}
}

func TestRoster(t *testing.T) {
	reg := newTestRegistry(t)
	roster := NewRoster(reg)

	want := []string{"chairman", "forensic", "consumer"}
	if got := roster.Active(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	active, err := roster.Toggle("ux-director")
	if err != nil || !active {
		t.Fatalf("expected ux-director enabled, got %v, %v", active, err)
	}
	if err := roster.Set("chairman", false); err != nil {
		t.Fatalf("set: %v", err)
	}

	want = []string{"forensic", "ux-director", "consumer"}
	if got := roster.Active(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected registry order %v, got %v", want, got)
	}

	if _, err := roster.Toggle("nobody"); err == nil {
		t.Error("expected error toggling unknown agent")
	}
	if err := roster.Set("nobody", true); err == nil {
		t.Error("expected error setting unknown agent")
	}
}

func TestRosterConcurrentToggle(t *testing.T) {
	roster := NewRoster(newTestRegistry(t))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = roster.Toggle("forensic")
			_ = roster.Active()
		}()
	}
	wg.Wait()

	// An even number of toggles leaves the member where it started.
	if !roster.IsActive("forensic") {
		t.Error("expected forensic active after 50 toggles")
	}
}

func TestParseMentions(t *testing.T) {
	reg := newTestRegistry(t)

	tests := []struct {
		name     string
		in       string
		wantIDs  []string
		wantRest string
	}{
		{"no mentions", "compare these", nil, "compare these"},
		{"single", "@forensic which is sharper?", []string{"forensic"}, "which is sharper?"},
		{"multiple", "@forensic @consumer @chairman go", []string{"forensic", "consumer", "chairman"}, "go"},
		{"duplicate", "@forensic @forensic go", []string{"forensic"}, "go"},
		{"unknown stops parse", "@forensic @nobody go", []string{"forensic"}, "@nobody go"},
		{"unknown only", "@nobody go", nil, "@nobody go"},
		{"mention without text", "@consumer", []string{"consumer"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, rest := reg.ParseMentions(tt.in)
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
			if rest != tt.wantRest {
				t.Errorf("rest = %q, want %q", rest, tt.wantRest)
			}
		})
	}
}

func TestRosterSelect(t *testing.T) {
	roster := NewRoster(newTestRegistry(t))

	ids, rest := roster.Select("@ux-director how does it feel?")
	if !reflect.DeepEqual(ids, []string{"ux-director"}) || rest != "how does it feel?" {
		t.Errorf("expected mention to win, got %v %q", ids, rest)
	}

	ids, rest = roster.Select("plain question")
	if !reflect.DeepEqual(ids, roster.Active()) || rest != "plain question" {
		t.Errorf("expected roster selection, got %v %q", ids, rest)
	}
}

func TestRosterStatuses(t *testing.T) {
	statuses := NewRoster(newTestRegistry(t)).Statuses()
	if len(statuses) != 4 {
		t.Fatalf("expected 4 statuses, got %d", len(statuses))
	}
	if statuses[2].ID != "ux-director" || statuses[2].Active {
		t.Errorf("expected disabled ux-director, got %+v", statuses[2])
	}
	if !statuses[0].Active || !statuses[0].Synthesizer {
		t.Errorf("expected active synthesizer first, got %+v", statuses[0])
	}
}
