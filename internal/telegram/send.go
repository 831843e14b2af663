package telegram

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/registry"
)

// chunkMessage splits a message into chunks that fit within Telegram's message size limit.
func chunkMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		// Try to split at a newline
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}

		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}

	return chunks
}

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// toTelegramMarkdown rewrites model Markdown into Telegram's legacy dialect,
// which marks bold with single asterisks.
func toTelegramMarkdown(text string) string {
	return boldPattern.ReplaceAllString(text, "*$1*")
}

func formatReply(def config.AgentDefinition, text string) string {
	header := "*" + def.Name + "*"
	if def.Role != "" {
		header += " (" + def.Role + ")"
	}
	return header + "\n\n" + toTelegramMarkdown(text)
}

func formatRoster(statuses []registry.AgentStatus) string {
	var sb strings.Builder
	sb.WriteString("*Council*\n")
	for _, s := range statuses {
		mark := "○"
		if s.Active {
			mark = "●"
		}
		fmt.Fprintf(&sb, "%s %s `%s`", mark, s.Name, s.ID)
		if s.Synthesizer {
			sb.WriteString(" (synthesizer)")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nSend up to two photos, then a question. /toggle <id> changes membership.")
	return sb.String()
}

// parseCommand splits "/toggle@botname forensic" into ("toggle", "forensic").
func parseCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	cmd, _, _ = strings.Cut(head, "@")
	if cmd == "" {
		return "", "", false
	}
	return strings.ToLower(cmd), strings.TrimSpace(rest), true
}

func imageLabel(n int) string {
	if n == 1 {
		return "A"
	}
	return "B"
}
