package gemini

import (
	"context"
	"log/slog"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/council"
	"github.com/mtzanidakis/synedrio/internal/transcript"
)

// Invoker implements council.Invoker on top of a Model. Every provider
// failure is turned into a degraded reply.
type Invoker struct {
	model Model
	cfg   config.GeminiConfig
}

var _ council.Invoker = (*Invoker)(nil)

func NewInvoker(model Model, cfg config.GeminiConfig) *Invoker {
	return &Invoker{model: model, cfg: cfg}
}

func (i *Invoker) InvokeAgent(ctx context.Context, agent config.AgentDefinition, turn council.Turn, prior []transcript.Message) council.Reply {
	history := make([]string, 0, len(prior))
	for _, m := range prior {
		history = append(history, m.Content)
	}

	text, err := i.generate(ctx, Request{
		Model:       modelFor(agent, i.cfg.Model),
		System:      agent.Instructions,
		History:     history,
		Images:      turn.Attachments,
		Prompt:      turn.Content,
		Temperature: i.cfg.Temperature,
	})
	if err != nil {
		slog.Warn("agent invocation failed", "agent", agent.ID, "error", err)
		return council.Reply{Text: connectionError(displayName(agent)), Degraded: true}
	}
	if text == "" {
		return council.Reply{Text: fallbackSilent, Degraded: true}
	}
	return council.Reply{Text: text}
}

func (i *Invoker) InvokeCritique(ctx context.Context, reviewer config.AgentDefinition, others []council.AnalysisResult) council.Reply {
	if len(others) == 0 {
		return council.Reply{Text: fallbackNothingToSay}
	}

	text, err := i.generate(ctx, Request{
		Model:       i.cfg.CritiqueModel,
		Prompt:      critiquePrompt(reviewer, others),
		Temperature: i.cfg.CritiqueTemperature,
	})
	if err != nil {
		slog.Warn("critique invocation failed", "agent", reviewer.ID, "error", err)
		return council.Reply{Text: fallbackUnverified, Degraded: true}
	}
	if text == "" {
		return council.Reply{Text: fallbackNoComments, Degraded: true}
	}
	return council.Reply{Text: text}
}

func (i *Invoker) InvokeSynthesis(ctx context.Context, synthesizer config.AgentDefinition, turn council.Turn, analyses []council.AnalysisResult, critiques []council.Critique) council.Reply {
	system := synthesizer.Instructions
	if system == "" {
		system = defaultJudgeInstruction
	}

	text, err := i.generate(ctx, Request{
		Model:  modelFor(synthesizer, i.cfg.SynthesisModel),
		System: system,
		Images: turn.Attachments,
		Prompt: synthesisPrompt(turn.Content, analyses, critiques),
	})
	if err != nil {
		slog.Warn("synthesis invocation failed", "agent", synthesizer.ID, "error", err)
		return council.Reply{Text: fallbackUnavailable, Degraded: true}
	}
	if text == "" {
		return council.Reply{Text: fallbackNoVerdict, Degraded: true}
	}
	return council.Reply{Text: text}
}

func (i *Invoker) generate(ctx context.Context, req Request) (string, error) {
	if i.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.Timeout)
		defer cancel()
	}
	return i.model.Generate(ctx, req)
}

func modelFor(agent config.AgentDefinition, fallback string) string {
	if agent.Model != "" {
		return agent.Model
	}
	return fallback
}
