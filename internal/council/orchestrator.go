package council

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/synedrio/internal/natsbus"
	"github.com/mtzanidakis/synedrio/internal/registry"
	"github.com/mtzanidakis/synedrio/internal/store"
	"github.com/mtzanidakis/synedrio/internal/transcript"
	"golang.org/x/sync/errgroup"
)

// Orchestrator drives deliberations over the shared transcript. It is the
// only writer of the log while a run is active, and at most one run is
// active at a time.
type Orchestrator struct {
	registry  *registry.Registry
	log       *transcript.Log
	invoker   Invoker
	publisher Publisher
	runs      RunStore

	mu      sync.Mutex
	running bool
	runID   string
	phase   Phase
}

// Handle tracks a started run.
type Handle struct {
	RunID   string
	done    chan struct{}
	outcome *Outcome
}

// Done is closed once the run has been torn down.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finishes and returns its outcome.
func (h *Handle) Wait() *Outcome {
	<-h.done
	return h.outcome
}

type run struct {
	id        string
	turn      Turn
	plan      *Plan
	keys      map[string]transcript.Key
	startedAt time.Time
	degraded  int
}

// New creates an orchestrator. publisher and runs may be nil.
func New(reg *registry.Registry, log *transcript.Log, inv Invoker, publisher Publisher, runs RunStore) *Orchestrator {
	return &Orchestrator{
		registry:  reg,
		log:       log,
		invoker:   inv,
		publisher: publisher,
		runs:      runs,
	}
}

// Run starts a deliberation and waits for it to finish.
func (o *Orchestrator) Run(ctx context.Context, turn Turn, active []string) (*Outcome, error) {
	h, err := o.Start(ctx, turn, active)
	if err != nil {
		return nil, err
	}
	return h.Wait(), nil
}

// Start validates the turn, claims the run token and performs setup: the
// user message and every analyst placeholder are in the log when Start
// returns. The phases then continue in the background, detached from ctx
// cancellation.
func (o *Orchestrator) Start(ctx context.Context, turn Turn, active []string) (*Handle, error) {
	if strings.TrimSpace(turn.Content) == "" && len(turn.Attachments) == 0 {
		return nil, ErrEmptyTurn
	}
	if len(turn.Attachments) > MaxAttachments {
		return nil, ErrTooManyAttachments
	}

	plan, err := BuildPlan(o.registry.List(), active, o.registry.SynthesizerID())
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}

	runID := uuid.New().String()
	if !o.tryAcquire(runID) {
		return nil, ErrBusy
	}

	r := &run{
		id:        runID,
		turn:      turn,
		plan:      plan,
		keys:      make(map[string]transcript.Key, len(plan.Analysts)+1),
		startedAt: time.Now(),
	}
	if len(plan.Ignored) > 0 {
		slog.Warn("ignoring unknown agents", "run", runID, "agents", plan.Ignored)
	}
	o.setup(r)

	h := &Handle{RunID: runID, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.outcome = o.execute(context.WithoutCancel(ctx), r)
	}()
	return h, nil
}

// State returns the transcript together with the run flag and phase label.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	st := State{Active: o.running, Phase: o.phase, RunID: o.runID}
	o.mu.Unlock()
	st.Messages = o.log.Messages()
	return st
}

func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) tryAcquire(runID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return false
	}
	o.running = true
	o.runID = runID
	o.phase = PhaseInitializing
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
	o.runID = ""
	o.phase = PhaseIdle
}

func (o *Orchestrator) setPhase(r *run, phase Phase) {
	o.mu.Lock()
	o.phase = phase
	o.mu.Unlock()

	slog.Info("deliberation phase", "run", r.id, "phase", string(phase))
	o.publishEvent(r.id, "phase_changed", map[string]any{"phase": phase})
}

func (o *Orchestrator) setup(r *run) {
	slog.Info("starting deliberation", "run", r.id,
		"analysts", r.plan.AnalystIDs(),
		"synthesizer", r.plan.SynthesizerActive,
		"attachments", len(r.turn.Attachments))

	o.saveRun(r)
	o.publishEvent(r.id, "deliberation_started", map[string]any{
		"analysts":    r.plan.AnalystIDs(),
		"synthesizer": r.plan.SynthesizerActive,
		"attachments": len(r.turn.Attachments),
	})
	o.publishEvent(r.id, "phase_changed", map[string]any{"phase": PhaseInitializing})

	user := o.log.Append(transcript.Message{
		Role:        transcript.RoleUser,
		Content:     r.turn.Content,
		Attachments: r.turn.Attachments,
		RunID:       r.id,
	})
	user.Attachments = nil
	o.publishEvent(r.id, "message_added", map[string]any{
		"message":     user,
		"attachments": len(r.turn.Attachments),
	})

	for _, a := range r.plan.Analysts {
		o.reserve(r, a.ID)
	}
}

func (o *Orchestrator) execute(ctx context.Context, r *run) *Outcome {
	o.setPhase(r, PhaseAnalysis)
	analyses := o.analyze(ctx, r)

	critiques := []Critique{}
	if r.plan.Critique {
		o.setPhase(r, PhaseCritique)
		critiques = o.critique(ctx, r, analyses)
	}

	outcome := &Outcome{
		RunID:     r.id,
		Analyses:  analyses,
		Critiques: critiques,
		StartedAt: r.startedAt,
	}

	if r.plan.SynthesizerActive {
		o.setPhase(r, PhaseSynthesis)
		outcome.Verdict = o.synthesize(ctx, r, analyses, critiques)
		outcome.Synthesized = true
	}

	outcome.Degraded = r.degraded
	outcome.Duration = time.Since(r.startedAt)
	o.teardown(r, outcome)
	return outcome
}

func (o *Orchestrator) analyze(ctx context.Context, r *run) []AnalysisResult {
	type result struct {
		idx   int
		reply Reply
	}

	analysts := r.plan.Analysts
	results := make(chan result, len(analysts))

	var g errgroup.Group
	for i, agent := range analysts {
		g.Go(func() error {
			results <- result{idx: i, reply: o.invoker.InvokeAgent(ctx, agent, r.turn, nil)}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	out := make([]AnalysisResult, len(analysts))
	for res := range results {
		agent := analysts[res.idx]
		o.resolve(r, agent.ID, res.reply)
		out[res.idx] = AnalysisResult{
			AgentID: agent.ID,
			Name:    o.registry.Name(agent.ID),
			Text:    res.reply.Text,
		}
	}
	return out
}

func (o *Orchestrator) critique(ctx context.Context, r *run, analyses []AnalysisResult) []Critique {
	out := make([]Critique, len(analyses))
	var mu sync.Mutex

	var g errgroup.Group
	for i, own := range analyses {
		others := make([]AnalysisResult, 0, len(analyses)-1)
		for j, a := range analyses {
			if j != i {
				others = append(others, a)
			}
		}
		reviewer := r.plan.Analysts[i]

		g.Go(func() error {
			reply := o.invoker.InvokeCritique(ctx, reviewer, others)
			mu.Lock()
			defer mu.Unlock()
			if reply.Degraded {
				r.degraded++
				slog.Warn("critique degraded", "run", r.id, "agent", reviewer.ID)
			}
			out[i] = Critique{ReviewerID: own.AgentID, Reviewer: own.Name, Text: reply.Text}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) synthesize(ctx context.Context, r *run, analyses []AnalysisResult, critiques []Critique) string {
	synth := r.plan.Synthesizer
	o.reserve(r, synth.ID)
	reply := o.invoker.InvokeSynthesis(ctx, synth, r.turn, analyses, critiques)
	o.resolve(r, synth.ID, reply)
	return reply.Text
}

func (o *Orchestrator) reserve(r *run, agentID string) {
	key, err := o.log.Reserve(r.id, agentID)
	if err != nil {
		slog.Error("reserve placeholder failed", "run", r.id, "agent", agentID, "error", err)
		return
	}
	r.keys[agentID] = key
	o.publishEvent(r.id, "message_added", map[string]any{
		"agent_id": agentID,
		"pending":  true,
	})
}

func (o *Orchestrator) resolve(r *run, agentID string, reply Reply) {
	if reply.Degraded {
		r.degraded++
		slog.Warn("agent reply degraded", "run", r.id, "agent", agentID)
	}
	key, ok := r.keys[agentID]
	if !ok {
		slog.Error("no placeholder for agent", "run", r.id, "agent", agentID)
		return
	}
	msg, err := o.log.Resolve(key, reply.Text)
	if err != nil {
		slog.Error("resolve placeholder failed", "run", r.id, "agent", agentID, "error", err)
		return
	}
	o.publishEvent(r.id, "message_resolved", map[string]any{"message": msg})
}

func (o *Orchestrator) teardown(r *run, outcome *Outcome) {
	if n := o.log.Pending(r.id); n > 0 {
		slog.Error("placeholder left pending at teardown", "run", r.id, "pending", n)
	}

	if o.runs != nil {
		if err := o.runs.CompleteRun(r.id, len(outcome.Critiques), outcome.Degraded, outcome.Synthesized); err != nil {
			slog.Error("complete run record failed", "run", r.id, "error", err)
		}
	}

	o.release()

	o.publishEvent(r.id, "deliberation_completed", map[string]any{
		"analyses":    len(outcome.Analyses),
		"critiques":   len(outcome.Critiques),
		"synthesized": outcome.Synthesized,
		"degraded":    outcome.Degraded,
	})
	slog.Info("deliberation finished", "run", r.id, "duration", outcome.Duration, "degraded", outcome.Degraded)
}

func (o *Orchestrator) saveRun(r *run) {
	if o.runs == nil {
		return
	}
	analysts, _ := json.Marshal(r.plan.AnalystIDs())
	rec := &store.Run{
		ID:          r.id,
		Status:      store.RunStatusRunning,
		Analysts:    analysts,
		Attachments: len(r.turn.Attachments),
		StartedAt:   r.startedAt,
	}
	if r.plan.SynthesizerActive {
		rec.Synthesizer = r.plan.Synthesizer.ID
	}
	if err := o.runs.SaveRun(rec); err != nil {
		slog.Error("save run record failed", "run", r.id, "error", err)
	}
}

func (o *Orchestrator) publishEvent(runID, eventType string, data map[string]any) {
	if o.publisher == nil {
		return
	}

	event := map[string]any{
		"type":      eventType,
		"run_id":    runID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	}
	if err := o.publisher.PublishJSON(natsbus.TopicEventsDeliberation(runID), event); err != nil {
		slog.Debug("publish event failed", "run", runID, "type", eventType, "error", err)
	}
}
