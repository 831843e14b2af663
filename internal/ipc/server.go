package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mtzanidakis/synedrio/internal/council"
	"github.com/mtzanidakis/synedrio/internal/natsbus"
	"github.com/mtzanidakis/synedrio/internal/registry"
	"github.com/mtzanidakis/synedrio/internal/transcript"
	"github.com/nats-io/nats.go"
)

type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DeliberateRequest is the payload of a "deliberate" command. Attachment
// data travels base64 encoded.
type DeliberateRequest struct {
	Content     string                  `json:"content"`
	Attachments []transcript.Attachment `json:"attachments,omitempty"`
	Agents      []string                `json:"agents,omitempty"`
}

type DeliberateResponse struct {
	OK       bool                 `json:"ok,omitempty"`
	Error    string               `json:"error,omitempty"`
	Outcome  *council.Outcome     `json:"outcome,omitempty"`
	Messages []transcript.Message `json:"messages,omitempty"`
}

// Server answers council commands on host.ipc.council.
type Server struct {
	orch   *council.Orchestrator
	roster *registry.Roster
	log    *transcript.Log
	sub    *nats.Subscription
}

func NewServer(orch *council.Orchestrator, roster *registry.Roster, log *transcript.Log) *Server {
	return &Server{orch: orch, roster: roster, log: log}
}

func (s *Server) Start(client *natsbus.Client) error {
	sub, err := client.Subscribe(natsbus.TopicIPC(natsbus.IPCService), s.handle)
	if err != nil {
		return fmt.Errorf("subscribe ipc: %w", err)
	}
	s.sub = sub
	return nil
}

func (s *Server) Close() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
}

func (s *Server) handle(msg *nats.Msg) {
	var cmd Command
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		slog.Warn("invalid IPC command", "error", err)
		respond(msg, map[string]any{"error": "invalid command"})
		return
	}

	slog.Info("IPC command received", "type", cmd.Type)

	switch cmd.Type {
	case "deliberate":
		s.deliberate(msg, cmd.Payload)
	case "list_agents":
		respond(msg, map[string]any{"agents": s.roster.Statuses()})
	case "toggle_agent":
		s.toggleAgent(msg, cmd.Payload)
	case "state":
		st := s.orch.State()
		st.Messages = StripAttachments(st.Messages)
		respond(msg, st)
	default:
		slog.Warn("unknown IPC command", "type", cmd.Type)
		respond(msg, map[string]any{"error": "unknown command: " + cmd.Type})
	}
}

// deliberate starts the run synchronously so rejections are answered at
// once, then replies from a goroutine when the run has finished.
func (s *Server) deliberate(msg *nats.Msg, payload json.RawMessage) {
	var req DeliberateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		respond(msg, DeliberateResponse{Error: "invalid payload"})
		return
	}

	active, content := s.roster.Select(req.Content)
	if len(req.Agents) > 0 {
		active, content = req.Agents, req.Content
	}

	h, err := s.orch.Start(context.Background(), council.Turn{Content: content, Attachments: req.Attachments}, active)
	if err != nil {
		if !errors.Is(err, council.ErrBusy) {
			slog.Warn("deliberation rejected", "error", err)
		}
		respond(msg, DeliberateResponse{Error: err.Error()})
		return
	}

	go func() {
		out := h.Wait()
		respond(msg, DeliberateResponse{
			OK:       true,
			Outcome:  out,
			Messages: StripAttachments(s.log.Run(out.RunID)),
		})
	}()
}

func (s *Server) toggleAgent(msg *nats.Msg, payload json.RawMessage) {
	var req struct {
		ID     string `json:"id"`
		Active *bool  `json:"active"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.ID == "" {
		respond(msg, map[string]any{"error": "id is required"})
		return
	}

	var active bool
	var err error
	if req.Active != nil {
		active = *req.Active
		err = s.roster.Set(req.ID, active)
	} else {
		active, err = s.roster.Toggle(req.ID)
	}
	if err != nil {
		respond(msg, map[string]any{"error": err.Error()})
		return
	}

	slog.Info("agent toggled via IPC", "agent", req.ID, "active", active)
	respond(msg, map[string]any{"ok": true, "id": req.ID, "active": active})
}

func respond(msg *nats.Msg, data any) {
	resp, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to marshal IPC response", "error", err)
		return
	}
	if err := msg.Respond(resp); err != nil {
		slog.Error("failed to respond to IPC", "error", err)
	}
}

// StripAttachments drops image payloads from messages before they leave the
// process over size-limited transports.
func StripAttachments(msgs []transcript.Message) []transcript.Message {
	out := make([]transcript.Message, len(msgs))
	for i, m := range msgs {
		m.Attachments = nil
		out[i] = m
	}
	return out
}
