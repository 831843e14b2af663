package ipc

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/council"
	"github.com/mtzanidakis/synedrio/internal/natsbus"
	"github.com/mtzanidakis/synedrio/internal/registry"
	"github.com/mtzanidakis/synedrio/internal/transcript"
)

type echoInvoker struct {
	gate chan struct{}
}

func (e *echoInvoker) InvokeAgent(ctx context.Context, agent config.AgentDefinition, turn council.Turn, prior []transcript.Message) council.Reply {
	if e.gate != nil {
		<-e.gate
	}
	return council.Reply{Text: agent.ID + " saw " + turn.Content}
}

func (e *echoInvoker) InvokeCritique(ctx context.Context, reviewer config.AgentDefinition, others []council.AnalysisResult) council.Reply {
	return council.Reply{Text: "ok"}
}

func (e *echoInvoker) InvokeSynthesis(ctx context.Context, synthesizer config.AgentDefinition, turn council.Turn, analyses []council.AnalysisResult, critiques []council.Critique) council.Reply {
	return council.Reply{Text: "verdict"}
}

type harness struct {
	client *natsbus.Client
	roster *registry.Roster
}

func newHarness(t *testing.T, gate chan struct{}) *harness {
	t.Helper()

	bus, err := natsbus.New(config.NATSConfig{Port: -1, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("create bus: %v", err)
	}
	t.Cleanup(bus.Close)

	client, err := natsbus.NewClient(bus)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(client.Close)

	reg, err := registry.New(config.DefaultCouncil(), "test-model")
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	roster := registry.NewRoster(reg)
	log := transcript.New()
	inv := &echoInvoker{gate: gate}
	orch := council.New(reg, log, inv, nil, nil)

	srv := NewServer(orch, roster, log)
	if err := srv.Start(client); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Close)
	_ = client.Flush()

	return &harness{client: client, roster: roster}
}

func (h *harness) request(t *testing.T, typ string, payload any, out any) {
	t.Helper()
	raw, _ := json.Marshal(payload)
	data, _ := json.Marshal(Command{Type: typ, Payload: raw})

	msg, err := h.client.Request(natsbus.TopicIPC(natsbus.IPCService), data, 5*time.Second)
	if err != nil {
		t.Fatalf("%s request: %v", typ, err)
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		t.Fatalf("%s response: %v", typ, err)
	}
}

func TestDeliberate(t *testing.T) {
	h := newHarness(t, nil)

	var resp DeliberateResponse
	h.request(t, "deliberate", DeliberateRequest{
		Content:     "which one?",
		Attachments: []transcript.Attachment{{Data: []byte("png"), MIMEType: "image/png"}},
		Agents:      []string{"chairman", "forensic", "consumer"},
	}, &resp)

	if !resp.OK || resp.Error != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Outcome == nil || len(resp.Outcome.Analyses) != 2 || !resp.Outcome.Synthesized {
		t.Fatalf("unexpected outcome: %+v", resp.Outcome)
	}
	if len(resp.Messages) != 4 {
		t.Fatalf("expected 4 run messages, got %d", len(resp.Messages))
	}
	if resp.Messages[0].Attachments != nil {
		t.Error("expected attachments stripped from reply")
	}
	if resp.Messages[1].Content != "forensic saw which one?" {
		t.Errorf("unexpected analyst reply %q", resp.Messages[1].Content)
	}
}

func TestDeliberateUsesMentions(t *testing.T) {
	h := newHarness(t, nil)

	var resp DeliberateResponse
	h.request(t, "deliberate", DeliberateRequest{Content: "@consumer vibe check"}, &resp)

	if resp.Outcome == nil || len(resp.Outcome.Analyses) != 1 || resp.Outcome.Synthesized {
		t.Fatalf("expected a single-analyst run, got %+v", resp.Outcome)
	}
	if got := resp.Messages[1].Content; got != "consumer saw vibe check" {
		t.Errorf("expected mention stripped from content, got %q", got)
	}
}

func TestDeliberateRejections(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, gate)

	var resp DeliberateResponse
	h.request(t, "deliberate", DeliberateRequest{Content: " "}, &resp)
	if resp.Error != council.ErrEmptyTurn.Error() {
		t.Errorf("expected empty turn error, got %q", resp.Error)
	}

	first := make(chan DeliberateResponse, 1)
	go func() {
		var r DeliberateResponse
		raw, _ := json.Marshal(DeliberateRequest{Content: "first", Agents: []string{"forensic"}})
		data, _ := json.Marshal(Command{Type: "deliberate", Payload: raw})
		msg, err := h.client.Request(natsbus.TopicIPC(natsbus.IPCService), data, 5*time.Second)
		if err == nil {
			_ = json.Unmarshal(msg.Data, &r)
		}
		first <- r
	}()

	// Wait until the first run holds the token.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var st council.State
		h.request(t, "state", nil, &st)
		if st.Active {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first run never became active")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var busy DeliberateResponse
	h.request(t, "deliberate", DeliberateRequest{Content: "second"}, &busy)
	if busy.Error != council.ErrBusy.Error() {
		t.Errorf("expected busy error, got %+v", busy)
	}

	close(gate)
	if r := <-first; !r.OK {
		t.Errorf("first run should complete, got %+v", r)
	}
}

func TestListAndToggleAgents(t *testing.T) {
	h := newHarness(t, nil)

	var list struct {
		Agents []registry.AgentStatus `json:"agents"`
	}
	h.request(t, "list_agents", nil, &list)
	if len(list.Agents) != 4 || list.Agents[0].ID != "chairman" {
		t.Fatalf("unexpected agents: %+v", list.Agents)
	}

	var toggled struct {
		OK     bool   `json:"ok"`
		Active bool   `json:"active"`
		Error  string `json:"error"`
	}
	h.request(t, "toggle_agent", map[string]any{"id": "consumer"}, &toggled)
	if !toggled.OK || toggled.Active {
		t.Errorf("expected consumer disabled, got %+v", toggled)
	}
	if h.roster.IsActive("consumer") {
		t.Error("roster not updated")
	}

	h.request(t, "toggle_agent", map[string]any{"id": "consumer", "active": true}, &toggled)
	if !toggled.Active || !h.roster.IsActive("consumer") {
		t.Error("expected consumer re-enabled")
	}

	toggled.Error = ""
	h.request(t, "toggle_agent", map[string]any{"id": "ghost"}, &toggled)
	if !strings.Contains(toggled.Error, "ghost") {
		t.Errorf("expected unknown agent error, got %q", toggled.Error)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, nil)

	var resp map[string]any
	h.request(t, "explode", nil, &resp)
	if resp["error"] != "unknown command: explode" {
		t.Errorf("unexpected response: %v", resp)
	}
}
