package telegram

import (
	"strings"
	"testing"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/registry"
	"github.com/mtzanidakis/synedrio/internal/transcript"
)

func TestChunkMessage(t *testing.T) {
	// Short message
	chunks := chunkMessage("hello", 4096)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}

	// Exact limit
	msg := make([]byte, 4096)
	for i := range msg {
		msg[i] = 'a'
	}
	chunks = chunkMessage(string(msg), 4096)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk for exact limit, got %d", len(chunks))
	}

	// Over limit
	msg = make([]byte, 8192)
	for i := range msg {
		msg[i] = 'a'
	}
	chunks = chunkMessage(string(msg), 4096)
	if len(chunks) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(chunks))
	}

	// Split at newline
	msg = make([]byte, 5000)
	for i := range msg {
		msg[i] = 'a'
	}
	msg[3000] = '\n'
	chunks = chunkMessage(string(msg), 4096)
	if len(chunks) != 2 {
		t.Errorf("expected 2 chunks with newline split, got %d", len(chunks))
	}
	if len(chunks[0]) != 3001 { // Up to and including the newline
		t.Errorf("expected first chunk length 3001, got %d", len(chunks[0]))
	}
}

func TestToTelegramMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**bold**", "*bold*"},
		{"hello **world**!", "hello *world*!"},
		{"**a** and **b**", "*a* and *b*"},
		{"no bold here", "no bold here"},
		{"*already single*", "*already single*"},
	}
	for _, tt := range tests {
		got := toTelegramMarkdown(tt.in)
		if got != tt.want {
			t.Errorf("toTelegramMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in       string
		cmd, arg string
		ok       bool
	}{
		{"/council", "council", "", true},
		{"/toggle forensic", "toggle", "forensic", true},
		{"/toggle@synedrio_bot  consumer ", "toggle", "consumer", true},
		{"/CLEAR", "clear", "", true},
		{"compare these", "", "", false},
		{"/", "", "", false},
	}
	for _, tt := range tests {
		cmd, arg, ok := parseCommand(tt.in)
		if cmd != tt.cmd || arg != tt.arg || ok != tt.ok {
			t.Errorf("parseCommand(%q) = %q, %q, %v; want %q, %q, %v", tt.in, cmd, arg, ok, tt.cmd, tt.arg, tt.ok)
		}
	}
}

func TestPhotoBuffer(t *testing.T) {
	buf := newPhotoBuffer()

	if n, ok := buf.add(1, transcript.Attachment{MIMEType: "image/png"}); n != 1 || !ok {
		t.Fatalf("expected first photo queued, got %d, %v", n, ok)
	}
	if n, ok := buf.add(1, transcript.Attachment{MIMEType: "image/jpeg"}); n != 2 || !ok {
		t.Fatalf("expected second photo queued, got %d, %v", n, ok)
	}
	if _, ok := buf.add(1, transcript.Attachment{}); ok {
		t.Error("expected third photo refused")
	}

	got := buf.peek(1)
	if len(got) != 2 || got[0].MIMEType != "image/png" {
		t.Fatalf("expected Image A first, got %+v", got)
	}
	got[0].MIMEType = "mutated"
	if buf.peek(1)[0].MIMEType != "image/png" {
		t.Error("peek must return a copy")
	}

	if len(buf.peek(2)) != 0 {
		t.Error("expected chats to be buffered independently")
	}

	buf.clear(1)
	if len(buf.peek(1)) != 0 {
		t.Error("expected buffer cleared")
	}
}

func TestFormatReply(t *testing.T) {
	def := config.AgentDefinition{ID: "chairman", Name: "The Judge", Role: "Final Verdict"}
	got := formatReply(def, "**Winner: Image A**")
	want := "*The Judge* (Final Verdict)\n\n*Winner: Image A*"
	if got != want {
		t.Errorf("formatReply = %q, want %q", got, want)
	}

	got = formatReply(config.AgentDefinition{Name: "Anon"}, "ok")
	if got != "*Anon*\n\nok" {
		t.Errorf("expected header without role, got %q", got)
	}
}

func TestFormatRoster(t *testing.T) {
	out := formatRoster([]registry.AgentStatus{
		{AgentDefinition: config.AgentDefinition{ID: "chairman", Name: "The Judge", Synthesizer: true}, Active: true},
		{AgentDefinition: config.AgentDefinition{ID: "consumer", Name: "The Public Voice"}},
	})
	if !strings.Contains(out, "● The Judge `chairman` (synthesizer)") {
		t.Errorf("expected active synthesizer line, got %q", out)
	}
	if !strings.Contains(out, "○ The Public Voice `consumer`") {
		t.Errorf("expected inactive member line, got %q", out)
	}
}
